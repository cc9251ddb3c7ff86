package ies

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hammal/ies/gonumExtensions"
	"github.com/hammal/ies/inversion"
	"github.com/hammal/ies/observation"
	"github.com/hammal/ies/rowscaling"
)

// UpdateConfig carries the optional knobs of an update step. The zero value
// requests a freshly sampled noise matrix (which then needs Src), the
// default truncation of 0.98 and exact inversion.
type UpdateConfig struct {
	// Noise is an (m by N) matrix of standard-normal draws. When set, the
	// update is fully deterministic.
	Noise *mat.Dense
	// Src generates the noise matrix when Noise is nil.
	Src rand.Source
	// Truncation bounds the singular-value energy retained by the
	// subspace inversion schemes.
	Truncation inversion.Truncation
	// Inversion selects the inversion scheme of the coefficient solver.
	Inversion inversion.Type
}

// UpdateStepRowScaling performs one smoother update. It synthesizes a
// centered measurement-perturbation ensemble, whitens innovations,
// perturbations and responses by the observation error magnitudes, solves
// for the ensemble-space coefficient matrix W, assembles the transition
// matrix T = I + W/sqrt(N-1), and applies the identical T to every supplied
// group, mutating each group's parameter matrix through its row scaling.
//
// response is the (m by N) simulated response ensemble and is not modified.
// values holds the m observed values. All group shapes are validated before
// any group is mutated. The returned slice is the input slice, in order.
func UpdateStepRowScaling(response *mat.Dense, groups []rowscaling.Group, errs observation.Errors, values *mat.VecDense, cfg UpdateConfig) ([]rowscaling.Group, error) {
	if response == nil {
		return nil, errors.New("ies: nil response ensemble")
	}
	m, n := response.Dims()
	if n < 2 {
		return nil, fmt.Errorf("ies: ensemble size %d, need at least 2", n)
	}
	if values == nil || values.Len() != m {
		return nil, fmt.Errorf("ies: %d observation values for %d response rows", vecLen(values), m)
	}
	if errs.Dim() != m {
		return nil, fmt.Errorf("ies: error model covers %d observations, responses have %d", errs.Dim(), m)
	}
	if err := validateGroups(groups, n); err != nil {
		return nil, err
	}

	noise := cfg.Noise
	if noise == nil {
		if cfg.Src == nil {
			return nil, errors.New("ies: neither a noise matrix nor a random source was supplied")
		}
		noise = StandardNormal(m, n, cfg.Src)
	} else if nr, nc := noise.Dims(); nr != m || nc != n {
		return nil, fmt.Errorf("ies: noise matrix is %dx%d, want %dx%d", nr, nc, m, n)
	}

	perturbations, err := measurementPerturbations(errs, noise)
	if err != nil {
		return nil, err
	}

	normalized, err := errs.Normalize(cfg.Inversion)
	if err != nil {
		return nil, err
	}

	innovations, err := observation.Innovations(values, perturbations, response)
	if err != nil {
		return nil, err
	}

	// Scaling stage: divide every quantity row-wise by the observation
	// error magnitude so the coefficient solver sees whitened inputs.
	responses := mat.DenseCopyOf(response)
	divideRows(innovations, normalized.Scaling)
	divideRows(perturbations, normalized.Scaling)
	divideRows(responses, normalized.Scaling)

	trunc := cfg.Truncation
	if trunc == (inversion.Truncation{}) {
		trunc = inversion.DefaultTruncation
	}

	var r mat.Matrix
	if normalized.R != nil {
		r = normalized.R
	}

	// The prior ensemble-space matrix is zero and the step length one:
	// a single full step with no accumulated correction. Callers running
	// an outer IES loop manage that state across calls themselves.
	w, err := inversion.CoefficientMatrix(
		anomalies(responses), r, perturbations, innovations,
		cfg.Inversion, trunc, mat.NewDense(n, n, nil), 1.0,
	)
	if err != nil {
		return nil, err
	}
	if gonumExtensions.NANORINF(w) {
		return nil, errors.New("ies: coefficient matrix contains NaN or Inf, inversion is ill-conditioned")
	}

	transition := transitionMatrix(w)

	// Groups own disjoint state and all consume the same read-only
	// transition, so the fan-out runs concurrently.
	var eg errgroup.Group
	for _, g := range groups {
		eg.Go(func() error {
			return g.Scale.Multiply(g.A, transition)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// validateGroups checks every group's shape up front so that a bad group
// cannot leave the update partially applied.
func validateGroups(groups []rowscaling.Group, n int) error {
	if len(groups) == 0 {
		return errors.New("ies: no parameter groups")
	}
	for i, g := range groups {
		if g.A == nil {
			return fmt.Errorf("ies: group %d has a nil parameter matrix", i)
		}
		if g.Scale == nil {
			return fmt.Errorf("ies: group %d has no row scaling", i)
		}
		rows, cols := g.A.Dims()
		if cols != n {
			return fmt.Errorf("ies: group %d has %d members, responses have %d", i, cols, n)
		}
		if sized, ok := g.Scale.(interface{ ExpectedRows() int }); ok {
			if want := sized.ExpectedRows(); want != rows {
				return fmt.Errorf("ies: group %d has %d parameter rows, row scaling expects %d", i, rows, want)
			}
		}
	}
	return nil
}

// anomalies returns (Y - mean(Y)) / sqrt(N-1) with the mean taken across
// ensemble members, the normalized form the coefficient solver expects.
func anomalies(y *mat.Dense) *mat.Dense {
	m, n := y.Dims()
	nsc := 1 / math.Sqrt(float64(n-1))
	s := mat.NewDense(m, n, nil)
	for i := 0; i < m; i++ {
		row := y.RawRowView(i)
		mean := floats.Sum(row) / float64(n)
		out := s.RawRowView(i)
		for j := 0; j < n; j++ {
			out[j] = (row[j] - mean) * nsc
		}
	}
	return s
}

// divideRows divides row i of a by scale[i]. The scaling vector is
// validated to be strictly positive before this is called.
func divideRows(a *mat.Dense, scale *mat.VecDense) {
	m, _ := a.Dims()
	for i := 0; i < m; i++ {
		floats.Scale(1/scale.AtVec(i), a.RawRowView(i))
	}
}

func vecLen(v *mat.VecDense) int {
	if v == nil {
		return 0
	}
	return v.Len()
}
