package gonudg

import (
	"gonum.org/v1/gonum/mat"
)

// Vandermonde1D initializes the 1D Vandermonde Matrix V_{ij} = phi_j(r_i)
func Vandermonde1D(N int, R []float64) *mat.Dense {
	V1D := mat.NewDense(len(R), N+1, nil)
	for j := 0; j <= N; j++ {
		V1D.SetCol(j, JacobiP(R, 0, 0, j))
	}
	return V1D
}

// GradVandermonde1D builds (Vr)_{ij} = dphi_j/dr at point i
func GradVandermonde1D(N int, R []float64) *mat.Dense {
	Vr := mat.NewDense(len(R), N+1, nil)
	for j := 0; j <= N; j++ {
		Vr.SetCol(j, GradJacobiP(R, 0, 0, j))
	}
	return Vr
}
