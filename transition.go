package ies

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// transitionMatrix assembles the affine operator T = I + W/sqrt(N-1) that
// maps prior ensemble-member coordinates to posterior coordinates.
func transitionMatrix(w *mat.Dense) *mat.Dense {
	n, _ := w.Dims()
	t := mat.NewDense(n, n, nil)
	t.Scale(1/math.Sqrt(float64(n-1)), w)
	for i := 0; i < n; i++ {
		t.Set(i, i, t.At(i, i)+1)
	}
	return t
}
