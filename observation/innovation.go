package observation

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Innovations builds the (m by N) residual ensemble D between perturbed
// observations and simulated responses,
//
//	D = values 1' + E - Y,
//
// so column j holds, for ensemble member j, the perturbed observation
// realizations minus that member's responses.
func Innovations(values *mat.VecDense, perturbations, responses mat.Matrix) (*mat.Dense, error) {
	if values == nil {
		return nil, fmt.Errorf("observation: nil observation values")
	}
	m := values.Len()
	em, en := perturbations.Dims()
	if em != m {
		return nil, fmt.Errorf("observation: perturbations have %d rows for %d observations", em, m)
	}
	ym, yn := responses.Dims()
	if ym != em || yn != en {
		return nil, fmt.Errorf("observation: responses are %dx%d, perturbations %dx%d", ym, yn, em, en)
	}

	d := mat.NewDense(m, en, nil)
	d.Sub(perturbations, responses)
	for i := 0; i < m; i++ {
		row := d.RawRowView(i)
		v := values.AtVec(i)
		for j := range row {
			row[j] += v
		}
	}
	return d, nil
}
