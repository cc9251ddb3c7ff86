// Package observation holds the observation-error model and the innovation
// ensemble construction consumed by the smoother update.
package observation

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/hammal/ies/inversion"
)

// minScaling is the smallest observation error magnitude accepted when
// normalizing. Anything at or below this would whiten into Inf/NaN.
const minScaling = 1e-12

// Errors is the observation-error specification, either a vector of
// standard deviations (diagonal error model) or a full covariance matrix.
type Errors struct {
	std *mat.VecDense
	cov *mat.SymDense
}

// Diagonal returns an error model with independent observation errors
// given by their standard deviations.
func Diagonal(std []float64) (Errors, error) {
	if len(std) == 0 {
		return Errors{}, errors.New("observation: empty standard deviation vector")
	}
	for i, v := range std {
		if v < 0 || math.IsNaN(v) {
			return Errors{}, fmt.Errorf("observation: standard deviation %v at index %d", v, i)
		}
	}
	v := mat.NewVecDense(len(std), nil)
	for i, s := range std {
		v.SetVec(i, s)
	}
	return Errors{std: v}, nil
}

// Covariance returns an error model with a full observation error
// covariance matrix. The matrix must be positive-definite for the
// perturbation factorization to exist; that is checked when the Cholesky
// factor is requested.
func Covariance(cov *mat.SymDense) (Errors, error) {
	if cov == nil || cov.SymmetricDim() == 0 {
		return Errors{}, errors.New("observation: empty covariance matrix")
	}
	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)
	return Errors{cov: c}, nil
}

// Dim returns the number of observations m.
func (e Errors) Dim() int {
	if e.cov != nil {
		return e.cov.SymmetricDim()
	}
	if e.std != nil {
		return e.std.Len()
	}
	return 0
}

// IsDiagonal reports whether the error model is a plain vector of
// standard deviations.
func (e Errors) IsDiagonal() bool {
	return e.cov == nil
}

// CholeskyLower returns the lower Cholesky factor of the error covariance,
// the factor used to color standard-normal noise into measurement
// perturbations. For the diagonal model this is simply diag(std).
func (e Errors) CholeskyLower() (mat.Matrix, error) {
	if e.IsDiagonal() {
		if e.std == nil {
			return nil, errors.New("observation: no error model")
		}
		return mat.NewDiagDense(e.std.Len(), e.std.RawVector().Data), nil
	}
	var chol mat.Cholesky
	if !chol.Factorize(e.cov) {
		return nil, errors.New("observation: error covariance is not positive definite")
	}
	var l mat.TriDense
	chol.LTo(&l)
	return &l, nil
}

// Normalized is the usable form of the error specification: the covariance
// representation R handed to the coefficient solver and the per-observation
// scaling applied to innovations, perturbations and responses.
type Normalized struct {
	// R is nil for schemes that do not consume a covariance
	// representation.
	R *mat.Dense
	// Scaling has strictly positive entries of length Dim().
	Scaling *mat.VecDense
}

// Normalize derives the error representation for the given inversion
// scheme. For a full covariance the scaling is the square root of its
// diagonal and R becomes the corresponding correlation matrix; for the
// diagonal model the scaling is the standard deviations themselves and R
// is the identity when the scheme consumes it.
func (e Errors) Normalize(typ inversion.Type) (Normalized, error) {
	m := e.Dim()
	if m == 0 {
		return Normalized{}, errors.New("observation: no error model")
	}

	if e.IsDiagonal() {
		scaling := mat.NewVecDense(m, nil)
		for i := 0; i < m; i++ {
			s := e.std.AtVec(i)
			if s <= minScaling {
				return Normalized{}, fmt.Errorf("observation: error magnitude %v at index %d is too small to scale by", s, i)
			}
			scaling.SetVec(i, s)
		}
		var r *mat.Dense
		if typ == inversion.ExactR {
			r = mat.NewDense(m, m, nil)
			for i := 0; i < m; i++ {
				r.Set(i, i, 1)
			}
		}
		return Normalized{R: r, Scaling: scaling}, nil
	}

	scaling := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		v := e.cov.At(i, i)
		if v <= minScaling*minScaling {
			return Normalized{}, fmt.Errorf("observation: error variance %v at index %d is too small to scale by", v, i)
		}
		scaling.SetVec(i, math.Sqrt(v))
	}
	// R is the correlation matrix D^-1 C D^-1.
	r := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			r.Set(i, j, e.cov.At(i, j)/(scaling.AtVec(i)*scaling.AtVec(j)))
		}
	}
	return Normalized{R: r, Scaling: scaling}, nil
}
