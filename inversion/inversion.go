// Package inversion computes the ensemble-space coefficient matrix of the
// iterative ensemble smoother following Algorithm 1 in Evensen (2019),
// "Efficient Implementation of an Iterative Ensemble Smoother for Data
// Assimilation in Ecological Modeling".
package inversion

import "fmt"

// Type selects the inversion scheme used when solving for the coefficient
// matrix.
type Type int

const (
	// Exact inversion assuming a diagonal error covariance matrix.
	// Inverts (S'S + I) in ensemble space, which is cheap whenever the
	// number of observations exceeds the ensemble size.
	Exact Type = iota
	// ExactR is the subspace inversion using the full error covariance
	// representation R. Sections 3.3-3.4 and Eqs. 14.26-14.29 of Evensen
	// (2007).
	ExactR
	// SubspaceRE is the subspace inversion where the error covariance is
	// represented by the perturbation ensemble E. Eqs. 14.54-14.55 of
	// Evensen (2007).
	SubspaceRE
)

func (t Type) String() string {
	switch t {
	case Exact:
		return "exact"
	case ExactR:
		return "subspace exact R"
	case SubspaceRE:
		return "subspace RE"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Truncation controls how many singular values a subspace inversion
// retains. The zero value is not meaningful; build one with
// TruncateFraction or TruncateRank.
type Truncation struct {
	fraction float64
	rank     int
	byRank   bool
}

// DefaultTruncation retains 98 percent of the singular value energy.
var DefaultTruncation = TruncateFraction(0.98)

// TruncateFraction keeps the smallest number of leading singular values
// accounting for at least the given fraction of the total variance.
// A fraction of 1.0 retains full rank.
func TruncateFraction(fraction float64) Truncation {
	return Truncation{fraction: fraction}
}

// TruncateRank keeps a fixed number of leading singular values.
func TruncateRank(rank int) Truncation {
	return Truncation{rank: rank, byRank: true}
}

// components returns the number of singular values in sigma to retain.
func (t Truncation) components(sigma []float64) int {
	if t.byRank {
		if t.rank > len(sigma) {
			return len(sigma)
		}
		return t.rank
	}
	return significantComponents(sigma, t.fraction)
}

// significantComponents determines the number of singular values by
// enforcing that less than the given fraction of the total variance be
// accounted for.
func significantComponents(sigma []float64, fraction float64) int {
	var total float64
	for _, s := range sigma {
		total += s * s
	}
	if total == 0 {
		return 0
	}
	num := 0
	var running float64
	for _, s := range sigma {
		if running/total < fraction {
			num++
			running += s * s
		} else {
			break
		}
	}
	return num
}
