// Package rowscaling applies the ensemble transition matrix to parameter
// ensembles whose rows carry individual scaling metadata.
package rowscaling

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// RowScaling owns per-row scaling metadata for one parameter ensemble and
// exposes the single capability of applying a linear ensemble transition to
// it, mutating the parameter matrix in place.
type RowScaling interface {
	// Multiply right-multiplies the (possibly row-wise damped) parameter
	// matrix a by the transition matrix and stores the result back in a.
	Multiply(a *mat.Dense, transition mat.Matrix) error
}

// Group pairs a parameter ensemble with its row scaling. Rows of A are
// parameters, columns are ensemble members.
type Group struct {
	A     *mat.Dense
	Scale RowScaling
}

// Identity applies the transition to every row unchanged.
type Identity struct{}

// Multiply replaces a with a times the transition matrix.
func (Identity) Multiply(a *mat.Dense, transition mat.Matrix) error {
	if err := checkShapes(a, transition); err != nil {
		return err
	}
	var updated mat.Dense
	updated.Mul(a, transition)
	a.Copy(&updated)
	return nil
}

// PerRow interpolates each row between its prior value and the fully
// updated value. A factor of 0 leaves the row untouched, a factor of 1
// applies the transition in full.
type PerRow struct {
	factors []float64
}

// NewPerRow returns a row scaling with one damping factor per parameter
// row. Factors must lie in [0, 1].
func NewPerRow(factors []float64) (*PerRow, error) {
	if len(factors) == 0 {
		return nil, errors.New("rowscaling: no row factors")
	}
	for i, f := range factors {
		if f < 0 || f > 1 {
			return nil, fmt.Errorf("rowscaling: factor %v at row %d outside [0, 1]", f, i)
		}
	}
	fs := make([]float64, len(factors))
	copy(fs, factors)
	return &PerRow{factors: fs}, nil
}

// ExpectedRows returns the number of parameter rows the scaling was built
// for.
func (p *PerRow) ExpectedRows() int {
	return len(p.factors)
}

// Multiply stores (1-s_i) a_i + s_i (a T)_i into row i of a, where s_i is
// the row's damping factor.
func (p *PerRow) Multiply(a *mat.Dense, transition mat.Matrix) error {
	if err := checkShapes(a, transition); err != nil {
		return err
	}
	rows, cols := a.Dims()
	if rows != len(p.factors) {
		return fmt.Errorf("rowscaling: %d rows for %d row factors", rows, len(p.factors))
	}
	var updated mat.Dense
	updated.Mul(a, transition)
	for i, s := range p.factors {
		if s == 0 {
			continue
		}
		row := a.RawRowView(i)
		urow := updated.RawRowView(i)
		for j := 0; j < cols; j++ {
			row[j] = (1-s)*row[j] + s*urow[j]
		}
	}
	return nil
}

func checkShapes(a *mat.Dense, transition mat.Matrix) error {
	if a == nil {
		return errors.New("rowscaling: nil parameter matrix")
	}
	_, ac := a.Dims()
	tr, tc := transition.Dims()
	if tr != tc {
		return fmt.Errorf("rowscaling: transition matrix is %dx%d, want square", tr, tc)
	}
	if ac != tr {
		return fmt.Errorf("rowscaling: parameter matrix has %d members, transition matrix %d", ac, tr)
	}
	return nil
}
