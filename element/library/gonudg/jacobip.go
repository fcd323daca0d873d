package gonudg

import (
	"math"
)

// jacobiA is the off-diagonal coefficient a_{n+1} of the orthonormal
// recurrence x P_n = a_{n+1} P_{n+1} + b_n P_n + a_n P_{n-1}
func jacobiA(alpha, beta float64, n int) float64 {
	k := float64(n) + 1
	h := 2*float64(n) + alpha + beta
	return 2 / (h + 2) * math.Sqrt(k*(k+alpha+beta)*(k+alpha)*(k+beta)/((h+1)*(h+3)))
}

// jacobiB is the diagonal coefficient b_n, undefined for n == 0 and
// alpha+beta == 0 where it vanishes
func jacobiB(alpha, beta float64, n int) float64 {
	h := 2*float64(n) + alpha + beta
	return (beta*beta - alpha*alpha) / (h * (h + 2))
}

// JacobiP evaluates the orthonormal Jacobi polynomial of type (alpha,beta)
// and order n at x
func JacobiP(x []float64, alpha, beta float64, n int) []float64 {
	P := make([]float64, len(x))
	if n < 0 {
		return P
	}
	p0 := 1 / math.Sqrt(Gamma0(alpha, beta))
	for i := range P {
		P[i] = p0
	}
	if n == 0 {
		return P
	}

	prev := P
	P = make([]float64, len(x))
	s1 := 1 / math.Sqrt(Gamma1(alpha, beta))
	for i, xi := range x {
		P[i] = 0.5 * ((alpha+beta+2)*xi + alpha - beta) * s1
	}
	for k := 1; k < n; k++ {
		ak, bk, ak1 := jacobiA(alpha, beta, k-1), jacobiB(alpha, beta, k), jacobiA(alpha, beta, k)
		for i, xi := range x {
			// overwrite P_{k-1} with P_{k+1}, then swap
			prev[i] = ((xi-bk)*P[i] - ak*prev[i]) / ak1
		}
		prev, P = P, prev
	}
	return P
}

// JacobiPSingle is JacobiP at a single point
func JacobiPSingle(x, alpha, beta float64, n int) float64 {
	return JacobiP([]float64{x}, alpha, beta, n)[0]
}

// GradJacobiP is dP_n/dx = sqrt(n(n+alpha+beta+1)) P_{n-1}^(alpha+1,beta+1)
func GradJacobiP(x []float64, alpha, beta float64, n int) []float64 {
	if n <= 0 {
		return make([]float64, len(x))
	}
	dP := JacobiP(x, alpha+1, beta+1, n-1)
	scale := math.Sqrt(float64(n) * (float64(n) + alpha + beta + 1))
	for i := range dP {
		dP[i] *= scale
	}
	return dP
}
