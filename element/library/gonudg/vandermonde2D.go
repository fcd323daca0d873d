package gonudg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// modes2D lists the mode indices (i,j), i+j <= N, in column order
func modes2D(N int) [][2]int {
	m := make([][2]int, 0, (N+1)*(N+2)/2)
	for i := 0; i <= N; i++ {
		for j := 0; j <= N-i; j++ {
			m = append(m, [2]int{i, j})
		}
	}
	return m
}

// Vandermonde2D is V_{ij} = phi_j(r_i, s_i) for the orthonormal triangle basis
func Vandermonde2D(N int, R, S []float64) *mat.Dense {
	modes := modes2D(N)
	a, b := RStoAB(R, S)
	V := mat.NewDense(len(R), len(modes), nil)
	for col, m := range modes {
		V.SetCol(col, simplex2D(a, b, m[0], m[1]))
	}
	return V
}

// GradVandermonde2D returns (Vr)_{ij} = dphi_j/dr and (Vs)_{ij} = dphi_j/ds
// at point i
func GradVandermonde2D(N int, R, S []float64) (Vr, Vs *mat.Dense) {
	modes := modes2D(N)
	a, b := RStoAB(R, S)
	Vr = mat.NewDense(len(R), len(modes), nil)
	Vs = mat.NewDense(len(R), len(modes), nil)
	for col, m := range modes {
		dr, ds := gradSimplex2D(a, b, m[0], m[1])
		Vr.SetCol(col, dr)
		Vs.SetCol(col, ds)
	}
	return Vr, Vs
}

// Simplex2DP evaluates the orthonormal mode (i,j) at (R,S)
func Simplex2DP(R, S []float64, i, j int) []float64 {
	a, b := RStoAB(R, S)
	return simplex2D(a, b, i, j)
}

// GradSimplex2DP evaluates the (r,s) derivatives of mode (i,j) at (R,S)
func GradSimplex2DP(R, S []float64, i, j int) (dr, ds []float64) {
	a, b := RStoAB(R, S)
	return gradSimplex2D(a, b, i, j)
}

func simplex2D(a, b []float64, i, j int) []float64 {
	h1 := JacobiP(a, 0, 0, i)
	h2 := JacobiP(b, float64(2*i+1), 0, j)
	P := make([]float64, len(a))
	for n := range P {
		P[n] = math.Sqrt2 * h1[n] * h2[n] * pow(1-b[n], i)
	}
	return P
}

// gradSimplex2D applies the chain rule of the collapsed map:
// d/dr = 2/(1-b) d/da, d/ds = (1+a)/(1-b) d/da + d/db
func gradSimplex2D(a, b []float64, i, j int) (dr, ds []float64) {
	fa, dfa := JacobiP(a, 0, 0, i), GradJacobiP(a, 0, 0, i)
	gb := JacobiP(b, float64(2*i+1), 0, j)
	dgb := GradJacobiP(b, float64(2*i+1), 0, j)

	dr = make([]float64, len(a))
	ds = make([]float64, len(a))
	scale := math.Pow(2, float64(i)+0.5)
	for n := range a {
		hb := 0.5 * (1 - b[n])
		var lower float64 // hb^(i-1), zero for i == 0
		if i > 0 {
			lower = pow(hb, i-1)
		}
		da := dfa[n] * gb[n]
		if i > 0 {
			da *= lower
		}
		db := dgb[n]*pow(hb, i) - 0.5*float64(i)*gb[n]*lower
		dr[n] = scale * da
		ds[n] = scale * (0.5*(1+a[n])*da + fa[n]*db)
	}
	return dr, ds
}

// RStoAB maps triangle coordinates to the collapsed square
func RStoAB(R, S []float64) (a, b []float64) {
	a = make([]float64, len(R))
	b = make([]float64, len(R))
	for n := range R {
		if S[n] != 1 {
			a[n] = 2*(1+R[n])/(1-S[n]) - 1
		} else {
			a[n] = -1
		}
		b[n] = S[n]
	}
	return a, b
}

// pow is x^n for n >= 0
func pow(x float64, n int) float64 {
	r := 1.
	for ; n > 0; n-- {
		r *= x
	}
	return r
}
