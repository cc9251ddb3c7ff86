package inversion

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// truncatedSVD computes the thin SVD of s and returns the left singular
// vectors together with the inverted singular values. Entries beyond the
// truncation point, and entries whose singular value is zero, are set to
// zero rather than inverted.
func truncatedSVD(s mat.Matrix, trunc Truncation) (*mat.Dense, []float64, error) {
	var svd mat.SVD
	if !svd.Factorize(s, mat.SVDThin) {
		return nil, nil, errors.New("inversion: SVD of ensemble anomalies failed to converge")
	}
	var u mat.Dense
	svd.UTo(&u)
	sigma := svd.Values(nil)

	num := trunc.components(sigma)
	invSigma := make([]float64, len(sigma))
	for i, v := range sigma {
		if i < num && v > 0 {
			invSigma[i] = 1 / v
		}
	}
	return &u, invSigma, nil
}

// lowRankE computes the projection X1 and the eigenvalue weights
// 1/(1 + Lambda1^2) with the error covariance represented by the
// perturbation ensemble e. Eqs. 14.51-14.55 in Evensen (2007).
func lowRankE(s, e mat.Matrix, trunc Truncation) (*mat.Dense, []float64, error) {
	u0, invSigma, err := truncatedSVD(s, trunc)
	if err != nil {
		return nil, nil, err
	}

	// X0 = Sigma0^+ U0' E
	var x0 mat.Dense
	x0.Mul(u0.T(), e)
	scaleRows(&x0, invSigma)

	var svd mat.SVD
	if !svd.Factorize(&x0, mat.SVDThin) {
		return nil, nil, errors.New("inversion: SVD of scaled perturbations failed to converge")
	}
	var u1 mat.Dense
	svd.UTo(&u1)
	sigma1 := svd.Values(nil)

	eig := make([]float64, len(invSigma))
	for i := range eig {
		eig[i] = 1 / (1 + sigma1[i]*sigma1[i])
	}

	// X1 = U0 Sigma0^+ U1
	scaled := mat.DenseCopyOf(u0)
	scaleCols(scaled, invSigma)
	var x1 mat.Dense
	x1.Mul(scaled, &u1)
	return &x1, eig, nil
}

// lowRankCinv computes the projection X1 and the eigenvalue weights
// 1/(1 + Lambda1) with the full error covariance representation r.
// Eqs. 14.26-14.29 in Evensen (2007).
func lowRankCinv(s, r mat.Matrix, trunc Truncation) (*mat.Dense, []float64, error) {
	_, n := s.Dims()
	u0, invSigma, err := truncatedSVD(s, trunc)
	if err != nil {
		return nil, nil, err
	}

	// B = (N-1) Sigma0^+ U0' R U0 Sigma0^+'
	var ru mat.Dense
	ru.Mul(r, u0)
	var b mat.Dense
	b.Mul(u0.T(), &ru)
	scaleRows(&b, invSigma)
	scaleCols(&b, invSigma)
	b.Scale(float64(n-1), &b)

	var svd mat.SVD
	if !svd.Factorize(&b, mat.SVDThin) {
		return nil, nil, errors.New("inversion: SVD of projected error covariance failed to converge")
	}
	var z mat.Dense
	svd.UTo(&z)
	eig := svd.Values(nil)
	for i := range eig {
		eig[i] = 1 / (1 + eig[i])
	}

	scaleRows(&z, invSigma)
	var x1 mat.Dense
	x1.Mul(u0, &z)
	return &x1, eig, nil
}

// projectX3 implements parts of Eq. 14.31 in Evensen (2007),
// X1 (I + Lambda1)^-1 X1' H, where eig already holds the inverted
// eigenvalue terms.
func projectX3(x1 mat.Matrix, h mat.Matrix, eig []float64) *mat.Dense {
	var t mat.Dense
	t.CloneFrom(x1.T())
	scaleRows(&t, eig)

	var x2 mat.Dense
	x2.Mul(&t, h)
	var x3 mat.Dense
	x3.Mul(x1, &x2)
	return &x3
}

// scaleRows multiplies row i of a by v[i].
func scaleRows(a *mat.Dense, v []float64) {
	m, n := a.Dims()
	if m != len(v) {
		panic(fmt.Errorf("inversion: %d scale factors for %d rows", len(v), m))
	}
	for i := 0; i < m; i++ {
		row := a.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] *= v[i]
		}
	}
}

// scaleCols multiplies column j of a by v[j].
func scaleCols(a *mat.Dense, v []float64) {
	m, n := a.Dims()
	if n != len(v) {
		panic(fmt.Errorf("inversion: %d scale factors for %d columns", len(v), n))
	}
	for i := 0; i < m; i++ {
		row := a.RawRowView(i)
		for j := 0; j < n; j++ {
			row[j] *= v[j]
		}
	}
}
