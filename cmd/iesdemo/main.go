// Command iesdemo runs one row-scaled smoother update on a synthetic
// linear history-matching problem and writes a prior/posterior scatter
// plot of the two-parameter ensemble to ensemble.png.
package main

import (
	"fmt"
	"image/color"
	"log"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hammal/ies"
	"github.com/hammal/ies/observation"
	"github.com/hammal/ies/rowscaling"
)

const (
	numObs     = 40
	numMembers = 200
	obsStd     = 0.5
	trueSlope  = 1.2
	trueOffset = -0.8
)

func main() {
	src := rand.NewPCG(42, 0)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	// Forward model: straight line y = a x + b sampled at numObs points.
	forward := mat.NewDense(numObs, 2, nil)
	for i := 0; i < numObs; i++ {
		x := float64(i) / float64(numObs-1)
		forward.Set(i, 0, x)
		forward.Set(i, 1, 1)
	}

	// Prior parameter ensemble, rows (slope, offset), columns members.
	prior := mat.NewDense(2, numMembers, nil)
	for j := 0; j < numMembers; j++ {
		prior.Set(0, j, 1+normal.Rand())
		prior.Set(1, j, normal.Rand())
	}

	// Simulated responses for every member.
	responses := mat.NewDense(numObs, numMembers, nil)
	responses.Mul(forward, prior)

	// Noisy observations of the true line.
	values := mat.NewVecDense(numObs, nil)
	for i := 0; i < numObs; i++ {
		x := forward.At(i, 0)
		values.SetVec(i, trueSlope*x+trueOffset+obsStd*normal.Rand())
	}

	std := make([]float64, numObs)
	for i := range std {
		std[i] = obsStd
	}
	errs, err := observation.Diagonal(std)
	if err != nil {
		log.Fatal(err)
	}

	// Two groups sharing one transition: a plain update and one where the
	// offset row is damped to 30 percent.
	full := mat.DenseCopyOf(prior)
	damped := mat.DenseCopyOf(prior)
	perRow, err := rowscaling.NewPerRow([]float64{1, 0.3})
	if err != nil {
		log.Fatal(err)
	}
	groups := []rowscaling.Group{
		{A: full, Scale: rowscaling.Identity{}},
		{A: damped, Scale: perRow},
	}

	if _, err := ies.UpdateStepRowScaling(responses, groups, errs, values, ies.UpdateConfig{Src: src}); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("true parameters:            slope %+.3f  offset %+.3f\n", trueSlope, trueOffset)
	report("prior ensemble mean:        ", prior)
	report("posterior mean (full):      ", full)
	report("posterior mean (damped b):  ", damped)

	if err := scatterPlot(prior, full); err != nil {
		log.Fatal(err)
	}
	fmt.Println("wrote ensemble.png")
}

func report(label string, a *mat.Dense) {
	slope := floats.Sum(a.RawRowView(0)) / float64(numMembers)
	offset := floats.Sum(a.RawRowView(1)) / float64(numMembers)
	fmt.Printf("%sslope %+.3f  offset %+.3f\n", label, slope, offset)
}

func scatterPlot(prior, posterior *mat.Dense) error {
	p := plot.New()
	p.Title.Text = "Smoother update, one step"
	p.X.Label.Text = "slope"
	p.Y.Label.Text = "offset"

	priorPts, err := plotter.NewScatter(ensembleXYs(prior))
	if err != nil {
		return err
	}
	priorPts.GlyphStyle.Color = color.RGBA{R: 160, G: 160, B: 160, A: 255}

	postPts, err := plotter.NewScatter(ensembleXYs(posterior))
	if err != nil {
		return err
	}
	postPts.GlyphStyle.Color = color.RGBA{B: 200, A: 255}

	p.Add(priorPts, postPts)
	p.Legend.Add("prior", priorPts)
	p.Legend.Add("posterior", postPts)

	return p.Save(6*vg.Inch, 6*vg.Inch, "ensemble.png")
}

func ensembleXYs(a *mat.Dense) plotter.XYs {
	_, n := a.Dims()
	pts := make(plotter.XYs, n)
	for j := 0; j < n; j++ {
		pts[j].X = a.At(0, j)
		pts[j].Y = a.At(1, j)
	}
	return pts
}
