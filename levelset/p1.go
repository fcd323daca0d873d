package levelset

import (
	"github.com/notargets/CutFEM/mesh"
	"gonum.org/v1/gonum/mat"
)

// P1 is the continuous piecewise linear interpolant of a level set on the
// mesh vertices. Its cut of every simplex is exactly straight.
type P1 struct {
	Values []float64
}

// Interpolate samples ev at the mesh vertices
func Interpolate(m *mesh.Mesh, ev Evaluator) *P1 {
	p := &P1{Values: make([]float64, m.NumVertices())}
	for v, x := range m.Vertices {
		p.Values[v] = ev.Evaluate(x)
	}
	return p
}

// Local returns the barycentric interpolant of the vertex values of elem
func (p *P1) Local(m *mesh.Mesh, elem int) Local {
	ev := m.EToV[elem]
	vals := make([]float64, len(ev))
	for i, v := range ev {
		vals[i] = p.Values[v]
	}
	return LocalFunc(func(ref []float64) float64 {
		// λ_0 = 1 - Σ(ξ_d+1)/2, λ_{d+1} = (ξ_d+1)/2
		phi := vals[0]
		for d := range ref {
			phi += 0.5 * (ref[d] + 1) * (vals[d+1] - vals[0])
		}
		return phi
	})
}

// Gradient returns the constant physical gradient of the interpolant on elem
func (p *P1) Gradient(m *mesh.Mesh, elem int) []float64 {
	ev := m.EToV[elem]
	dim := m.Dim
	gref := mat.NewVecDense(dim, nil)
	for d := 0; d < dim; d++ {
		gref.SetVec(d, 0.5*(p.Values[ev[d+1]]-p.Values[ev[0]]))
	}
	// ∇φ = J⁻ᵀ ∇_ξ φ
	var g mat.VecDense
	g.MulVec(m.Affine(elem).JInv.T(), gref)
	out := make([]float64, dim)
	for d := range out {
		out[d] = g.AtVec(d)
	}
	return out
}
