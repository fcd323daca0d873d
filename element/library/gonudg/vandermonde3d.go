package gonudg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// modes3D lists the mode indices (i,j,k), i+j+k <= N, in column order
func modes3D(N int) [][3]int {
	m := make([][3]int, 0, (N+1)*(N+2)*(N+3)/6)
	for i := 0; i <= N; i++ {
		for j := 0; j <= N-i; j++ {
			for k := 0; k <= N-i-j; k++ {
				m = append(m, [3]int{i, j, k})
			}
		}
	}
	return m
}

// Vandermonde3D is V_{ij} = phi_j(r_i, s_i, t_i) for the orthonormal
// tetrahedron basis
func Vandermonde3D(N int, r, s, t []float64) *mat.Dense {
	modes := modes3D(N)
	a, b, c := RSTtoABC(r, s, t)
	V := mat.NewDense(len(r), len(modes), nil)
	for col, m := range modes {
		V.SetCol(col, simplex3D(a, b, c, m[0], m[1], m[2]))
	}
	return V
}

// GradVandermonde3D returns the r, s and t derivative Vandermonde matrices
func GradVandermonde3D(N int, r, s, t []float64) (Vr, Vs, Vt *mat.Dense) {
	modes := modes3D(N)
	a, b, c := RSTtoABC(r, s, t)
	Vr = mat.NewDense(len(r), len(modes), nil)
	Vs = mat.NewDense(len(r), len(modes), nil)
	Vt = mat.NewDense(len(r), len(modes), nil)
	for col, m := range modes {
		dr, ds, dt := gradSimplex3D(a, b, c, m[0], m[1], m[2])
		Vr.SetCol(col, dr)
		Vs.SetCol(col, ds)
		Vt.SetCol(col, dt)
	}
	return Vr, Vs, Vt
}

// Dmatrices3D computes the differentiation matrices Dr, Ds, Dt
// Given the Vandermonde matrix V and points (R,S,T)
func Dmatrices3D(N int, r, s, t []float64, V *mat.Dense) (pDr, pDs, pDt *mat.Dense) {
	// Get gradient Vandermonde matrices
	Vr, Vs, Vt := GradVandermonde3D(N, r, s, t)

	var Vinv mat.Dense
	if err := Vinv.Inverse(V); err != nil {
		panic(err)
	}

	// Dr = Vr * V^{-1}, etc.
	var Dr, Ds, Dt mat.Dense
	Dr.Mul(Vr, &Vinv)
	Ds.Mul(Vs, &Vinv)
	Dt.Mul(Vt, &Vinv)

	return &Dr, &Ds, &Dt
}

// Simplex3DP evaluates the orthonormal mode (i,j,k) at (r,s,t)
func Simplex3DP(r, s, t []float64, i, j, k int) []float64 {
	a, b, c := RSTtoABC(r, s, t)
	return simplex3D(a, b, c, i, j, k)
}

// GradSimplex3DP evaluates the (r,s,t) derivatives of mode (i,j,k)
func GradSimplex3DP(r, s, t []float64, i, j, k int) (dr, ds, dt []float64) {
	a, b, c := RSTtoABC(r, s, t)
	return gradSimplex3D(a, b, c, i, j, k)
}

func simplex3D(a, b, c []float64, i, j, k int) []float64 {
	h1 := JacobiP(a, 0, 0, i)
	h2 := JacobiP(b, float64(2*i+1), 0, j)
	h3 := JacobiP(c, float64(2*(i+j)+2), 0, k)
	P := make([]float64, len(a))
	for n := range P {
		P[n] = 2 * math.Sqrt2 * h1[n] * h2[n] * pow(1-b[n], i) * h3[n] * pow(1-c[n], i+j)
	}
	return P
}

// lowerPow is x^(n-1) for n > 0 and 1 otherwise
func lowerPow(x float64, n int) float64 {
	if n > 0 {
		return pow(x, n-1)
	}
	return 1
}

func gradSimplex3D(a, b, c []float64, i, j, k int) (dr, ds, dt []float64) {
	ij := i + j
	fa, dfa := JacobiP(a, 0, 0, i), GradJacobiP(a, 0, 0, i)
	gb := JacobiP(b, float64(2*i+1), 0, j)
	dgb := GradJacobiP(b, float64(2*i+1), 0, j)
	hc := JacobiP(c, float64(2*ij+2), 0, k)
	dhc := GradJacobiP(c, float64(2*ij+2), 0, k)

	dr = make([]float64, len(a))
	ds = make([]float64, len(a))
	dt = make([]float64, len(a))
	scale := math.Pow(2, float64(2*i+j)+1.5)
	for n := range a {
		hb, hcc := 0.5*(1-b[n]), 0.5*(1-c[n])

		vr := dfa[n] * gb[n] * hc[n] * lowerPow(hb, i) * lowerPow(hcc, ij)

		db := dgb[n] * pow(hb, i)
		if i > 0 {
			db -= 0.5 * float64(i) * gb[n] * pow(hb, i-1)
		}
		db = fa[n] * db * hc[n] * lowerPow(hcc, ij)

		dc := dhc[n] * pow(hcc, ij)
		if ij > 0 {
			dc -= 0.5 * float64(ij) * hc[n] * pow(hcc, ij-1)
		}
		dc = fa[n] * gb[n] * dc * pow(hb, i)

		dr[n] = scale * vr
		ds[n] = scale * (0.5*(1+a[n])*vr + db)
		dt[n] = scale * (0.5*(1+a[n])*vr + 0.5*(1+b[n])*db + dc)
	}
	return dr, ds, dt
}

// RSTtoABC maps tetrahedron coordinates (r,s,t) to the collapsed (a,b,c)
func RSTtoABC(r, s, t []float64) (a, b, c []float64) {
	a = make([]float64, len(r))
	b = make([]float64, len(r))
	c = append([]float64(nil), t...)
	for n := range r {
		a[n], b[n] = -1, -1
		if st := s[n] + t[n]; math.Abs(st) > 1e-14 {
			a[n] = -2*(1+r[n])/st - 1
		}
		if math.Abs(t[n]-1) > 1e-14 {
			b[n] = 2*(1+s[n])/(1-t[n]) - 1
		}
	}
	return a, b, c
}
