package stokes

import (
	"context"
	"testing"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/fespace"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/xfem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var circle = levelset.Func(func(x []float64) float64 {
	return (x[0]-0.5)*(x[0]-0.5) + (x[1]-0.5)*(x[1]-0.5) - 0.09
})

type taylorHood struct {
	m    *mesh.Mesh
	u, p *xfem.XStdSpace
}

func newTaylorHood(t *testing.T) *taylorHood {
	t.Helper()
	m, err := mesh.UnitSquare(5)
	require.NoError(t, err)
	th := &taylorHood{m: m}
	for _, order := range []int{2, 1} {
		base, err := fespace.NewH1(m, order)
		require.NoError(t, err)
		xs, err := xfem.NewXFESpace(base, xfem.Options{})
		require.NoError(t, err)
		require.NoError(t, xs.Update(context.Background(), levelset.OnMesh(circle)))
		if order == 2 {
			th.u = xfem.NewXStdSpace(xs)
		} else {
			th.p = xfem.NewXStdSpace(xs)
		}
	}
	return th
}

func (th *taylorHood) element(t *testing.T, k int) *element.CompoundElement {
	t.Helper()
	u, err := th.u.FE(k, nil)
	require.NoError(t, err)
	p, err := th.p.FE(k, nil)
	require.NoError(t, err)
	return element.NewCompoundElement(u, u, p)
}

func viscosity(a float64) func([]float64) float64 {
	return func([]float64) float64 { return a }
}

func TestNitscheUncut(t *testing.T) {
	th := newTaylorHood(t)
	ni := &NitscheIntegrator{AlphaNeg: viscosity(1), AlphaPos: viscosity(10), Lambda: 20}
	fe := th.element(t, 0)
	A, err := ni.CalcElementMatrix(fe, th.m.Mapping(0), arena.New())
	require.NoError(t, err)
	r, c := A.Dims()
	assert.Equal(t, fe.NDof(), r)
	assert.Equal(t, fe.NDof(), c)
	assert.Zero(t, mat.Norm(A, 1))
}

func TestNitscheCut(t *testing.T) {
	th := newTaylorHood(t)
	ni := &NitscheIntegrator{AlphaNeg: viscosity(1), AlphaPos: viscosity(10), Lambda: 20}
	ar := arena.New()
	ncut := 0
	for k, on := range th.u.X.ActiveElements() {
		if !on {
			continue
		}
		ncut++
		fe := th.element(t, k)
		A, err := ni.CalcElementMatrix(fe, th.m.Mapping(k), ar)
		require.NoError(t, err)
		N, _ := A.Dims()
		require.Equal(t, 2*12+6, N)
		assert.True(t, mat.EqualApprox(A, A.T(), 1.e-10), "element %d", k)
		assert.Greater(t, mat.Norm(A, 1), 0.)

		// fields without extension have no jump
		v := mat.NewVecDense(N, nil)
		for lo, n := range map[int]int{0: 6, 12: 6, 24: 3} {
			for i := 0; i < n; i++ {
				v.SetVec(lo+i, float64(i+lo)/7-1)
			}
		}
		assert.InDelta(t, 0., mat.Inner(v, A, v), 1.e-10)

		// the penalty adds a positive semi-definite term
		stiff := &NitscheIntegrator{AlphaNeg: viscosity(1), AlphaPos: viscosity(10), Lambda: 40}
		B, err := stiff.CalcElementMatrix(fe, th.m.Mapping(k), ar)
		require.NoError(t, err)
		var diff mat.Dense
		diff.Sub(B, A)
		var eig mat.EigenSym
		require.True(t, eig.Factorize(mat.NewSymDense(N, diff.RawMatrix().Data), false))
		for _, l := range eig.Values(nil) {
			assert.GreaterOrEqual(t, l, -1.e-9)
		}
	}
	assert.Greater(t, ncut, 0)
}

func TestNitscheErrors(t *testing.T) {
	th := newTaylorHood(t)
	ni := &NitscheIntegrator{AlphaNeg: viscosity(1), AlphaPos: viscosity(1), Lambda: 1}
	u, err := th.u.FE(0, nil)
	require.NoError(t, err)

	_, err = ni.CalcElementMatrix(element.NewCompoundElement(u, u), th.m.Mapping(0), nil)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)

	lag := th.u.Base.FE(0)
	_, err = ni.CalcElementMatrix(element.NewCompoundElement(lag, lag, lag), th.m.Mapping(0), nil)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)
}

func TestNitscheWithoutRule(t *testing.T) {
	th := newTaylorHood(t)
	ni := &NitscheIntegrator{AlphaNeg: viscosity(1), AlphaPos: viscosity(1), Lambda: 1}
	k := -1
	for e, on := range th.u.X.ActiveElements() {
		if on {
			k = e
			break
		}
	}
	require.GreaterOrEqual(t, k, 0)
	u, err := th.u.FE(k, nil)
	require.NoError(t, err)
	p, err := th.p.FE(k, nil)
	require.NoError(t, err)
	bare := *u.XFE()
	bare.Rule = nil
	nu := &xfem.XStdElement{Base: u.Base, X: &bare}
	_, err = ni.CalcElementMatrix(element.NewCompoundElement(nu, nu, p), th.m.Mapping(k), nil)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)
}

func TestElementSize(t *testing.T) {
	tri, err := element.NewAffineMapping(element.Tri, [][]float64{{0, 0}, {2, 0}, {0, 1}})
	require.NoError(t, err)
	h, err := elementSize(tri)
	require.NoError(t, err)
	assert.InDelta(t, 1., h, 1.e-14)

	tet, err := element.NewAffineMapping(element.Tet, [][]float64{{0, 0, 0}, {2, 0, 0}, {0, 3, 0}, {0, 0, 1}})
	require.NoError(t, err)
	h, err = elementSize(tet)
	require.NoError(t, err)
	assert.InDelta(t, 1., h, 1.e-14)

	// det(I + ∇u) = 1 + x is affine, so the centroid value gives the exact area
	m, err := mesh.UnitSquare(2)
	require.NoError(t, err)
	m.SetDeformation(func(x, u []float64) { u[0], u[1] = 0.5*x[0]*x[0], 0 },
		func(x []float64, G *mat.Dense) {
			G.Zero()
			G.Set(0, 0, x[0])
		})
	for k := 0; k < m.NumElements(); k++ {
		cx := 0.
		for _, v := range m.EToV[k] {
			cx += m.Vertices[v][0] / 3
		}
		h, err := elementSize(m.Mapping(k))
		require.NoError(t, err)
		assert.InDelta(t, m.Affine(k).Measure()*(1+cx), h*h, 1.e-12, "element %d", k)
	}
}
