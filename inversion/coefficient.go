package inversion

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CoefficientMatrix computes the ensemble-space coefficient matrix W
// following steps 4-8 of Algorithm 1 in Evensen (2019):
//
//	W = W - stepLength * (W - S' (S S' + R)^-1 H)
//
// y holds the predicted ensemble anomalies normalized by sqrt(N-1), e and d
// the perturbation and innovation ensembles in the same normalized units,
// and r the error covariance representation (may be nil for schemes that do
// not consume it). w is the prior ensemble-space matrix; it is updated in
// place and returned. The result is deterministic for identical inputs.
func CoefficientMatrix(y, r, e, d mat.Matrix, typ Type, trunc Truncation, w *mat.Dense, stepLength float64) (*mat.Dense, error) {
	ym, yn := y.Dims()
	if wr, wc := w.Dims(); wr != yn || wc != yn {
		return nil, fmt.Errorf("inversion: prior matrix is %dx%d, want %dx%d", wr, wc, yn, yn)
	}
	if em, en := e.Dims(); em != ym || en != yn {
		return nil, fmt.Errorf("inversion: perturbations are %dx%d, want %dx%d", em, en, ym, yn)
	}
	if dm, dn := d.Dims(); dm != ym || dn != yn {
		return nil, fmt.Errorf("inversion: innovations are %dx%d, want %dx%d", dm, dn, ym, yn)
	}
	if yn < 2 {
		return nil, fmt.Errorf("inversion: ensemble size %d, need at least 2", yn)
	}

	n := yn
	nsc := 1 / math.Sqrt(float64(n-1))

	// Omega = I + (W - mean(W)) / sqrt(N-1), line 5 of Algorithm 1.
	omega := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		mean := floats.Sum(w.RawRowView(i)) / float64(n)
		for j := 0; j < n; j++ {
			omega.Set(i, j, nsc*(w.At(i, j)-mean))
		}
		omega.Set(i, i, omega.At(i, i)+1)
	}

	// Solve Omega' S' = Y' for the average sensitivity matrix S,
	// line 6 of Algorithm 1.
	var st mat.Dense
	if err := st.Solve(omega.T(), y.T()); err != nil {
		return nil, fmt.Errorf("inversion: sensitivity solve: %w", err)
	}
	s := mat.DenseCopyOf(st.T())

	// H = D + S W, line 7. Differs from the paper in that D is defined
	// as dobs + E - Y instead of dobs + E.
	h := mat.NewDense(ym, n, nil)
	h.Mul(s, w)
	h.Add(h, d)

	switch typ {
	case Exact:
		if err := exactInversion(w, s, h, stepLength); err != nil {
			return nil, err
		}
	case ExactR, SubspaceRE:
		if err := subspaceInversion(w, typ, e, r, s, h, trunc, stepLength); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("inversion: unknown scheme %v", typ)
	}
	return w, nil
}

// exactInversion assumes a diagonal error covariance matrix and inverts
// (S'S + I) in ensemble space. Section 3.2.
func exactInversion(w *mat.Dense, s, h mat.Matrix, stepLength float64) error {
	_, n := s.Dims()

	c := mat.NewDense(n, n, nil)
	c.Mul(s.T(), s)
	for i := 0; i < n; i++ {
		c.Set(i, i, c.At(i, i)+1)
	}

	var svd mat.SVD
	if !svd.Factorize(c, mat.SVDThin) {
		return errors.New("inversion: SVD of (S'S + I) failed to converge")
	}
	sigma := svd.Values(nil)
	var v mat.Dense
	svd.VTo(&v)

	// pinv = V Sigma^-1 V'. The singular values are bounded below by one.
	scaled := mat.DenseCopyOf(&v)
	for j := range sigma {
		sigma[j] = 1 / sigma[j]
	}
	scaleCols(scaled, sigma)
	var pinv mat.Dense
	pinv.Mul(scaled, v.T())

	var sth mat.Dense
	sth.Mul(s.T(), h)
	var upd mat.Dense
	upd.Mul(&pinv, &sth)

	// W = W - stepLength (W - (S'S + I)^-1 S' H)
	var diff mat.Dense
	diff.Sub(w, &upd)
	diff.Scale(stepLength, &diff)
	w.Sub(w, &diff)
	return nil
}

// subspaceInversion handles the reduced-rank schemes of Sections 3.3-3.4.
func subspaceInversion(w *mat.Dense, typ Type, e, r, s, h mat.Matrix, trunc Truncation, stepLength float64) error {
	_, n := s.Dims()
	nsc := 1 / math.Sqrt(float64(n-1))

	var (
		x1  *mat.Dense
		eig []float64
		err error
	)
	switch typ {
	case SubspaceRE:
		var se mat.Dense
		se.Scale(nsc, e)
		x1, eig, err = lowRankE(s, &se, trunc)
	case ExactR:
		if r == nil {
			return errors.New("inversion: scheme ExactR requires an error covariance representation")
		}
		var sr mat.Dense
		sr.Scale(nsc*nsc, r)
		x1, eig, err = lowRankCinv(s, &sr, trunc)
	}
	if err != nil {
		return err
	}

	x3 := projectX3(x1, h, eig)

	// W = stepLength S' X3 + (1 - stepLength) W, line 9.
	var stx mat.Dense
	stx.Mul(s.T(), x3)
	stx.Scale(stepLength, &stx)
	w.Scale(1-stepLength, w)
	w.Add(w, &stx)
	return nil
}
