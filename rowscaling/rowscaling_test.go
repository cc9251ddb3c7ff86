package rowscaling

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func identityMatrix(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func TestIdentityMultiply(t *testing.T) {
	a := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	prior := mat.DenseCopyOf(a)

	if err := (Identity{}).Multiply(a, identityMatrix(3)); err != nil {
		t.Fatalf("multiplying: %v", err)
	}
	if !mat.Equal(a, prior) {
		t.Errorf("identity transition changed the matrix:\n%v", mat.Formatted(a))
	}

	// A cyclic column permutation.
	perm := mat.NewDense(3, 3, []float64{0, 1, 0, 0, 0, 1, 1, 0, 0})
	if err := (Identity{}).Multiply(a, perm); err != nil {
		t.Fatalf("multiplying: %v", err)
	}
	want := mat.NewDense(2, 3, []float64{3, 1, 2, 6, 4, 5})
	if !mat.EqualApprox(a, want, 1e-15) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(a), mat.Formatted(want))
	}
}

func TestIdentityMultiplyShapeError(t *testing.T) {
	a := mat.NewDense(2, 3, nil)
	if err := (Identity{}).Multiply(a, identityMatrix(4)); err == nil {
		t.Error("expected an error for a 4x4 transition on 3 members")
	}
	if err := (Identity{}).Multiply(a, mat.NewDense(3, 4, nil)); err == nil {
		t.Error("expected an error for a non-square transition")
	}
}

func TestNewPerRowValidatesFactors(t *testing.T) {
	if _, err := NewPerRow(nil); err == nil {
		t.Error("expected an error for empty factors")
	}
	if _, err := NewPerRow([]float64{0.5, 1.5}); err == nil {
		t.Error("expected an error for a factor above one")
	}
	if _, err := NewPerRow([]float64{-0.1}); err == nil {
		t.Error("expected an error for a negative factor")
	}
}

func TestPerRowMultiply(t *testing.T) {
	scaling, err := NewPerRow([]float64{0, 1, 0.5})
	if err != nil {
		t.Fatalf("building scaling: %v", err)
	}

	a := mat.NewDense(3, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
	})
	// Transition swapping the two members.
	swap := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	if err := scaling.Multiply(a, swap); err != nil {
		t.Fatalf("multiplying: %v", err)
	}

	// Row 0 is frozen, row 1 fully swapped, row 2 averaged.
	want := mat.NewDense(3, 2, []float64{
		1, 2,
		4, 3,
		5.5, 5.5,
	})
	if !mat.EqualApprox(a, want, 1e-15) {
		t.Errorf("got\n%v\nwant\n%v", mat.Formatted(a), mat.Formatted(want))
	}
}

func TestPerRowRowCountMismatch(t *testing.T) {
	scaling, err := NewPerRow([]float64{1, 1})
	if err != nil {
		t.Fatalf("building scaling: %v", err)
	}
	if err := scaling.Multiply(mat.NewDense(3, 2, nil), identityMatrix(2)); err == nil {
		t.Error("expected an error for 3 rows against 2 factors")
	}
	if scaling.ExpectedRows() != 2 {
		t.Errorf("ExpectedRows: got %d want 2", scaling.ExpectedRows())
	}
}

func TestPerRowHalfStepIsMidpoint(t *testing.T) {
	scaling, err := NewPerRow([]float64{0.5})
	if err != nil {
		t.Fatalf("building scaling: %v", err)
	}
	a := mat.NewDense(1, 2, []float64{2, 4})
	double := mat.NewDense(2, 2, []float64{2, 0, 0, 2})
	if err := scaling.Multiply(a, double); err != nil {
		t.Fatalf("multiplying: %v", err)
	}
	if got := a.At(0, 0); math.Abs(got-3) > 1e-15 {
		t.Errorf("midpoint of 2 and 4: got %v", got)
	}
}
