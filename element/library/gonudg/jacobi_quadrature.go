package gonudg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// JacobiGQ returns the N+1 point Gauss rule for the weight
// (1-x)^alpha (1+x)^beta on [-1,1]. Nodes are the eigenvalues of the Jacobi
// matrix of the orthonormal recurrence, weights the squared first
// eigenvector components scaled by the weight integral.
func JacobiGQ(alpha, beta float64, N int) (x, w []float64) {
	g0 := Gamma0(alpha, beta)
	if N == 0 {
		return []float64{(beta - alpha) / (alpha + beta + 2)}, []float64{g0}
	}

	n := N + 1
	J := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if i > 0 || math.Abs(alpha+beta) > 1.e-15 {
			J.SetSym(i, i, jacobiB(alpha, beta, i))
		}
		if i+1 < n {
			J.SetSym(i, i+1, jacobiA(alpha, beta, i))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(J, true) {
		panic("gonudg: Jacobi matrix eigen decomposition failed")
	}
	x = eig.Values(nil)
	var V mat.Dense
	eig.VectorsTo(&V)
	w = make([]float64, n)
	for i := range w {
		v := V.At(0, i)
		w[i] = g0 * v * v
	}
	return x, w
}

// JacobiGL returns the N+1 Gauss-Lobatto nodes for the weight
// (1-x)^alpha (1+x)^beta: the endpoints and the interior Gauss nodes of
// (alpha+1, beta+1)
func JacobiGL(alpha, beta float64, N int) []float64 {
	switch {
	case N <= 0:
		return []float64{0}
	case N == 1:
		return []float64{-1, 1}
	}
	inner, _ := JacobiGQ(alpha+1, beta+1, N-2)
	x := make([]float64, 0, N+1)
	x = append(x, -1)
	x = append(x, inner...)
	return append(x, 1)
}

// Gamma0 is the integral of the Jacobi weight over [-1,1]
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1
	return math.Pow(2, ab1) * math.Gamma(alpha+1) * math.Gamma(beta+1) / (ab1 * math.Gamma(ab1))
}

// Gamma1 is the squared norm of the unnormalized first Jacobi polynomial
func Gamma1(alpha, beta float64) float64 {
	return (alpha + 1) * (beta + 1) / (alpha + beta + 3) * Gamma0(alpha, beta)
}
