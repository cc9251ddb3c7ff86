package ies

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hammal/ies/gonumExtensions"
	"github.com/hammal/ies/observation"
)

// StandardNormal draws an (m by n) matrix of independent standard-normal
// samples from src. The source is explicit so that callers control
// reproducibility; there is no package-level generator.
func StandardNormal(m, n int, src rand.Source) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	data := make([]float64, m*n)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(m, n, data)
}

// measurementPerturbations colors the noise matrix with the Cholesky factor
// of the observation error covariance and centers the result so that each
// row sums to zero across the ensemble. Columns of the result are sampled
// from N(0, Cdd) and centered, Evensen (2019).
func measurementPerturbations(errs observation.Errors, noise *mat.Dense) (*mat.Dense, error) {
	m := errs.Dim()
	nr, nc := noise.Dims()
	if nr != m {
		return nil, fmt.Errorf("ies: noise matrix has %d rows for %d observations", nr, m)
	}
	if nc < 2 {
		return nil, fmt.Errorf("ies: ensemble size %d, need at least 2", nc)
	}

	l, err := errs.CholeskyLower()
	if err != nil {
		return nil, err
	}
	var colored mat.Dense
	colored.Mul(l, noise)

	// Remove the finite-ensemble sampling bias by right-multiplying with
	// the centering matrix I - 11'/N.
	var center mat.Dense
	center.Scale(1/float64(nc), gonumExtensions.Ones(nc, nc))
	center.Sub(gonumExtensions.Eye(nc, nc, 0), &center)

	perturbations := mat.NewDense(m, nc, nil)
	perturbations.Mul(&colored, &center)
	return perturbations, nil
}
