package inversion

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

func randomDense(m, n int, src rand.Source) *mat.Dense {
	dist := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	data := make([]float64, m*n)
	for i := range data {
		data[i] = dist.Rand()
	}
	return mat.NewDense(m, n, data)
}

// With zero anomalies and zero innovations there is nothing to correct and
// the coefficient matrix must come out exactly zero.
func TestCoefficientMatrixZeroProblem(t *testing.T) {
	m, n := 3, 5
	y := mat.NewDense(m, n, nil)
	e := mat.NewDense(m, n, nil)
	d := mat.NewDense(m, n, nil)

	w, err := CoefficientMatrix(y, nil, e, d, Exact, DefaultTruncation, mat.NewDense(n, n, nil), 1.0)
	if err != nil {
		t.Fatalf("solving: %v", err)
	}
	if !mat.Equal(w, mat.NewDense(n, n, nil)) {
		t.Errorf("got nonzero coefficients for a zero problem:\n%v", mat.Formatted(w))
	}
}

// With R = I and no truncation the subspace inversion must reproduce the
// exact inversion.
func TestExactMatchesSubspaceExactR(t *testing.T) {
	m, n := 3, 5
	src := rand.NewPCG(2, 9)
	y := randomDense(m, n, src)
	e := randomDense(m, n, src)
	d := randomDense(m, n, src)
	identity := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		identity.Set(i, i, 1)
	}

	exact, err := CoefficientMatrix(y, nil, e, d, Exact, DefaultTruncation, mat.NewDense(n, n, nil), 1.0)
	if err != nil {
		t.Fatalf("exact inversion: %v", err)
	}
	subspace, err := CoefficientMatrix(y, identity, e, d, ExactR, TruncateFraction(1.0), mat.NewDense(n, n, nil), 1.0)
	if err != nil {
		t.Fatalf("subspace inversion: %v", err)
	}
	if !mat.EqualApprox(exact, subspace, 1e-8) {
		t.Errorf("schemes disagree:\nexact\n%v\nsubspace\n%v", mat.Formatted(exact), mat.Formatted(subspace))
	}
}

// A zero step length must keep the prior coefficient matrix untouched for
// every scheme.
func TestCoefficientMatrixZeroStepKeepsPrior(t *testing.T) {
	m, n := 4, 6
	src := rand.NewPCG(12, 3)
	y := randomDense(m, n, src)
	e := randomDense(m, n, src)
	d := randomDense(m, n, src)
	prior := randomDense(n, n, src)
	identity := mat.NewDense(m, m, nil)
	for i := 0; i < m; i++ {
		identity.Set(i, i, 1)
	}

	for _, typ := range []Type{Exact, ExactR, SubspaceRE} {
		w, err := CoefficientMatrix(y, identity, e, d, typ, TruncateFraction(1.0), mat.DenseCopyOf(prior), 0.0)
		if err != nil {
			t.Fatalf("%v inversion: %v", typ, err)
		}
		if !mat.EqualApprox(w, prior, 1e-12) {
			t.Errorf("%v inversion moved the prior at step length zero", typ)
		}
	}
}

func TestCoefficientMatrixDeterministic(t *testing.T) {
	m, n := 3, 7
	src := rand.NewPCG(1, 1)
	y := randomDense(m, n, src)
	e := randomDense(m, n, src)
	d := randomDense(m, n, src)

	w1, err := CoefficientMatrix(y, nil, e, d, Exact, DefaultTruncation, mat.NewDense(n, n, nil), 1.0)
	if err != nil {
		t.Fatalf("first solve: %v", err)
	}
	w2, err := CoefficientMatrix(y, nil, e, d, Exact, DefaultTruncation, mat.NewDense(n, n, nil), 1.0)
	if err != nil {
		t.Fatalf("second solve: %v", err)
	}
	if !mat.Equal(w1, w2) {
		t.Error("identical inputs produced different coefficient matrices")
	}
}

func TestCoefficientMatrixShapeErrors(t *testing.T) {
	y := mat.NewDense(3, 5, nil)
	e := mat.NewDense(3, 5, nil)
	d := mat.NewDense(3, 5, nil)

	if _, err := CoefficientMatrix(y, nil, e, d, Exact, DefaultTruncation, mat.NewDense(4, 4, nil), 1.0); err == nil {
		t.Error("expected an error for a mis-sized prior matrix")
	}
	if _, err := CoefficientMatrix(y, nil, mat.NewDense(2, 5, nil), d, Exact, DefaultTruncation, mat.NewDense(5, 5, nil), 1.0); err == nil {
		t.Error("expected an error for mis-sized perturbations")
	}
	if _, err := CoefficientMatrix(y, nil, e, mat.NewDense(3, 4, nil), Exact, DefaultTruncation, mat.NewDense(5, 5, nil), 1.0); err == nil {
		t.Error("expected an error for mis-sized innovations")
	}
}

func TestCoefficientMatrixExactRNeedsR(t *testing.T) {
	y := mat.NewDense(3, 5, nil)
	e := mat.NewDense(3, 5, nil)
	d := mat.NewDense(3, 5, nil)
	if _, err := CoefficientMatrix(y, nil, e, d, ExactR, DefaultTruncation, mat.NewDense(5, 5, nil), 1.0); err == nil {
		t.Error("expected an error when ExactR is selected without R")
	}
}
