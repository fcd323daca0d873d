package integrate

import (
	"context"
	"math"
	"testing"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/classify"
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

var plane = levelset.Func(func(x []float64) float64 { return x[0] - 0.5 })

type fixture struct {
	m  *mesh.Mesh
	h1 *fespace.H1
	ci *classify.CutInfo
	p1 *levelset.P1
}

func newFixture(t *testing.T, order int) *fixture {
	t.Helper()
	m, err := mesh.UnitSquare(5)
	require.NoError(t, err)
	h1, err := fespace.NewH1(m, order)
	require.NoError(t, err)
	ci, err := classify.NewCutInfo(m, classify.Options{})
	require.NoError(t, err)
	p1 := levelset.Interpolate(m, plane)
	require.NoError(t, ci.Update(context.Background(), p1))
	return &fixture{m: m, h1: h1, ci: ci, p1: p1}
}

func (f *fixture) ctx(k int) *ElementContext {
	return &ElementContext{Elem: k, TrialFE: f.h1.FE(k), Mapping: f.m.Mapping(k), CutInfo: f.ci}
}

func (f *fixture) firstCut(t *testing.T) int {
	c, err := f.ci.Current()
	require.NoError(t, err)
	for k := 0; k < f.m.NumElements(); k++ {
		if c.ElementType(k) == element.IF {
			return k
		}
	}
	t.Fatal("no cut element")
	return -1
}

func matSum(t *testing.T, bi *CutBilinearIntegrator[float64], ec *ElementContext, ar *arena.Arena) float64 {
	t.Helper()
	M, err := ElementMatrix(bi, ec, ar)
	require.NoError(t, err)
	return mat.Sum(M)
}

func TestMassSplit(t *testing.T) {
	f := newFixture(t, 1)
	ar := arena.New()
	neg := NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.NEG)
	pos := NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.POS)
	iface := NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.IF)
	totalNeg, totalIF := 0., 0.
	for k := 0; k < f.m.NumElements(); k++ {
		ec := f.ctx(k)
		n, p := matSum(t, neg, ec, ar), matSum(t, pos, ec, ar)
		assert.InDelta(t, f.m.Affine(k).Measure(), n+p, 1.e-13)
		totalNeg += n
		totalIF += matSum(t, iface, ec, ar)
		ar.Reset()
	}
	assert.InDelta(t, 0.5, totalNeg, 1.e-12)
	assert.InDelta(t, 1., totalIF, 1.e-12)
	assert.True(t, neg.Batched())
}

func TestLaplace(t *testing.T) {
	f := newFixture(t, 2)
	k := f.firstCut(t)
	ec := f.ctx(k)
	lap := NewCutBilinearIntegrator[float64](Laplace(Const(1.), 2), element.NEG)
	assert.Equal(t, 2, lap.Order(ec.TrialFE, ec.TrialFE))
	A, err := ElementMatrix(lap, ec, nil)
	require.NoError(t, err)
	r, c := A.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, 6, c)
	for i := 0; i < r; i++ {
		row := 0.
		for j := 0; j < c; j++ {
			assert.Equal(t, A.At(i, j), A.At(j, i))
			row += A.At(i, j)
		}
		assert.InDelta(t, 0., row, 1.e-12)
	}

	t.Run("GeneralPathMatches", func(t *testing.T) {
		form := Laplace(Const(1.), 2)
		form.Terms = append(form.Terms, Term[float64]{Coef: Const(0.), TrialComp: 0, TestComp: 1})
		require.False(t, form.Diagonal())
		G, err := ElementMatrix(NewCutBilinearIntegrator[float64](form, element.NEG), ec, arena.New())
		require.NoError(t, err)
		assert.True(t, mat.EqualApprox(A, G, 1.e-13))
	})
}

// scalarOnly refuses batched evaluation
type scalarOnly struct{ *Form[float64] }

func (scalarOnly) EvaluateBatch([]*element.MappedPoint, []float64) error { return cuterr.ErrNoBatch }

func TestBatchFallback(t *testing.T) {
	f := newFixture(t, 2)
	k := f.firstCut(t)
	want, err := ElementMatrix(NewCutBilinearIntegrator[float64](Mass(Const(2.)), element.POS), f.ctx(k), nil)
	require.NoError(t, err)

	bi := NewCutBilinearIntegrator[float64](scalarOnly{Mass(Const(2.))}, element.POS)
	got, err := ElementMatrix(bi, f.ctx(k), arena.New())
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(want, got, 1.e-14))
	assert.False(t, bi.Batched())
}

func TestErrors(t *testing.T) {
	f := newFixture(t, 1)
	bi := NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.NEG)

	ec := f.ctx(0)
	ec.ComplexTrafo = true
	_, err := bi.CalcElementMatrix(ec, nil)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)

	ec = f.ctx(0)
	ec.TrialFE = &xfem.DummyElement{Geom: element.Prism}
	_, err = bi.CalcElementMatrix(ec, nil)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)

	ec = f.ctx(0)
	ec.CutInfo = nil
	_, err = bi.CalcElementMatrix(ec, nil)
	assert.ErrorIs(t, err, cuterr.ErrNotUpdated)
}

func TestLevelSetSource(t *testing.T) {
	f := newFixture(t, 1)
	k := f.firstCut(t)
	fromCache, err := ElementMatrix(NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.NEG), f.ctx(k), nil)
	require.NoError(t, err)
	ec := f.ctx(k)
	ec.CutInfo = nil
	ec.Level = f.p1.Local(f.m, k)
	built, err := ElementMatrix(NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.NEG), ec, nil)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(fromCache, built, 1.e-14))
}

func TestComplexMass(t *testing.T) {
	f := newFixture(t, 1)
	k := f.firstCut(t)
	re, err := ElementMatrix(NewCutBilinearIntegrator[float64](Mass(Const(1.)), element.NEG), f.ctx(k), nil)
	require.NoError(t, err)
	cm, err := ElementMatrixComplex(NewCutBilinearIntegrator[complex128](Mass(Const(1i)), element.NEG), f.ctx(k), nil)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, 0., real(cm.At(i, j)), 1.e-15)
			assert.InDelta(t, re.At(i, j), imag(cm.At(i, j)), 1.e-15)
		}
	}
}

func TestLinearSource(t *testing.T) {
	f := newFixture(t, 1)
	li := NewCutLinearIntegrator[float64](Source(Const(1.)), element.NEG)
	total := 0.
	for k := 0; k < f.m.NumElements(); k++ {
		v, err := li.CalcElementVector(f.ctx(k), nil)
		require.NoError(t, err)
		for _, x := range v {
			total += x
		}
	}
	assert.InDelta(t, 0.5, total, 1.e-12)
	assert.Equal(t, 2, li.Order(f.h1.FE(0)))
}

func TestElementBoundary(t *testing.T) {
	f := newFixture(t, 1)
	perimeter := 0.4 + 0.2*math.Sqrt2
	ar := arena.New()

	neg := NewCutElementBoundaryIntegrator[float64](Mass(Const(1.)), element.NEG)
	pos := NewCutElementBoundaryIntegrator[float64](Mass(Const(1.)), element.POS)
	vals, err := neg.CalcElementMatrix(f.ctx(0), ar)
	require.NoError(t, err)
	assert.InDelta(t, perimeter, sum(vals), 1.e-13)
	vals, err = pos.CalcElementMatrix(f.ctx(0), ar)
	require.NoError(t, err)
	assert.InDelta(t, 0., sum(vals), 1.e-15)

	k := f.firstCut(t)
	ec := f.ctx(k)
	ec.Level = f.p1.Local(f.m, k)
	vn, err := neg.CalcElementMatrix(ec, ar)
	require.NoError(t, err)
	vp, err := pos.CalcElementMatrix(ec, ar)
	require.NoError(t, err)
	assert.InDelta(t, perimeter, sum(vn)+sum(vp), 1.e-13)

	t.Run("NormalDerivative", func(t *testing.T) {
		// ∮ ∂ₙu v with u = x is ∮ n_x v; Σ over test functions is ∮ n_x = 0
		form := &Form[float64]{
			Trial: []*Proxy{TrialFunction("u", NormalDerivative{D: 2})},
			Test:  []*Proxy{TestFunction("v", Identity())},
			Terms: []Term[float64]{{}},
		}
		bi := NewCutElementBoundaryIntegrator[float64](form, element.NEG)
		vals, err := bi.CalcElementMatrix(f.ctx(0), ar)
		require.NoError(t, err)
		u := f.h1.Interpolate(func(x []float64) float64 { return x[0] })
		dofs := f.h1.DofNrs(0)
		s := 0.
		for i := range dofs {
			for j, d := range dofs {
				s += vals[i*3+j] * u[d]
			}
		}
		assert.InDelta(t, 0., s, 1.e-13)
	})
}

func sum(v []float64) (s float64) {
	for _, x := range v {
		s += x
	}
	return
}

func quadForm(vals []float64, u []float64) (s float64) {
	n := len(u)
	for i := range u {
		for j := range u {
			s += u[i] * vals[i*n+j] * u[j]
		}
	}
	return
}

func sidesOf(f *fixture, elems [2]int, g func(x []float64) float64) []float64 {
	vals := f.h1.Interpolate(g)
	var u []float64
	for _, k := range elems {
		for _, d := range f.h1.DofNrs(k) {
			u = append(u, vals[d])
		}
	}
	return u
}

func TestFacetJump(t *testing.T) {
	f := newFixture(t, 1)
	interior, boundary := -1, -1
	for fc, sides := range f.m.FacetElems {
		if len(sides) == 2 && interior < 0 {
			interior = fc
		}
		if len(sides) == 1 && boundary < 0 {
			boundary = fc
		}
	}
	require.GreaterOrEqual(t, interior, 0)
	sides := f.m.FacetElems[interior]
	fe := f.h1.FE(0)
	fcx := &FacetContext{Mesh: f.m, Facet: interior, FE: [2]element.FiniteElement{fe, fe}}

	jump := NewCutFacetIntegrator[float64](GhostPenalty[float64](1, 1, Identity()), element.NEG)
	vals, err := jump.CalcFacetMatrix(fcx, nil)
	require.NoError(t, err)
	elems := [2]int{sides[0].Elem, sides[1].Elem}
	u := sidesOf(f, elems, func(x []float64) float64 { return 1 + 2*x[0] - x[1] })
	assert.InDelta(t, 0., quadForm(vals, u), 1.e-13)

	fv := f.m.FacetVertices(interior)
	a, b := f.m.Vertices[fv[0]], f.m.Vertices[fv[1]]
	length := math.Hypot(a[0]-b[0], a[1]-b[1])
	one := make([]float64, 6)
	for i := 0; i < 3; i++ {
		one[i] = 1
	}
	// a unit jump on the facet
	assert.InDelta(t, length, quadForm(vals, one), 1.e-13)

	fcx.Facet = boundary
	_, err = jump.CalcFacetMatrix(fcx, nil)
	assert.ErrorIs(t, err, cuterr.ErrNoNeighbor)
}

func TestGhostPenalty(t *testing.T) {
	f := newFixture(t, 1)
	sides := f.m.FacetElems[f.m.ElemFacets[0][1]]
	require.Len(t, sides, 2)
	elems := [2]int{sides[0].Elem, sides[1].Elem}
	fe := f.h1.FE(0)
	pc := &PatchContext{Mesh: f.m, Elems: elems, FE: [2]element.FiniteElement{fe, fe}}
	h := f.m.ElementSize(elems[0])
	linear := func(x []float64) float64 { return 3*x[0] + x[1] }

	for _, op := range []DiffOp{Identity(), Gradient(2)} {
		gp := NewFacetPatchIntegrator[float64](GhostPenalty[float64](0.1, h, op))
		vals, err := gp.CalcPatchMatrix(pc, arena.New())
		require.NoError(t, err)
		assert.InDelta(t, 0., quadForm(vals, sidesOf(f, elems, linear)), 1.e-11, op.Name())
	}

	gp := NewFacetPatchIntegrator[float64](GhostPenalty[float64](0.1, h, Identity()))
	vals, err := gp.CalcPatchMatrix(pc, nil)
	require.NoError(t, err)
	u := sidesOf(f, elems, linear)
	for i := 3; i < 6; i++ {
		u[i] += 1
	}
	area := f.m.Affine(elems[0]).Measure() + f.m.Affine(elems[1]).Measure()
	assert.InDelta(t, 0.1/(h*h)*area, quadForm(vals, u), 1.e-11)
}

func TestExtendedMass(t *testing.T) {
	m, err := mesh.UnitSquare(5)
	require.NoError(t, err)
	base, err := fespace.NewH1(m, 1)
	require.NoError(t, err)
	xs, err := xfem.NewXFESpace(base, xfem.Options{})
	require.NoError(t, err)
	require.NoError(t, xs.Update(context.Background(), levelset.Interpolate(m, plane)))
	s := xfem.NewXStdSpace(xs)

	for _, dt := range []element.DomainType{element.NEG, element.POS} {
		side := xfem.Neg(Identity())
		if dt == element.POS {
			side = xfem.Pos(Identity())
		}
		form := Dot(Const(1.), TrialFunction("u", side), TestFunction("v", side))
		bi := NewCutBilinearIntegrator[float64](form, dt)
		total := 0.
		for k := 0; k < m.NumElements(); k++ {
			fe, err := s.FE(k, nil)
			require.NoError(t, err)
			vals, err := bi.CalcElementMatrix(&ElementContext{
				Elem: k, TrialFE: fe, Mapping: m.Mapping(k), CutInfo: xs.CutInfo(),
			}, nil)
			require.NoError(t, err)
			// the base part of the compound space is one on the whole mesh
			u := make([]float64, fe.NDof())
			for i := 0; i < fe.Base.NDof(); i++ {
				u[i] = 1
			}
			total += quadForm(vals, u)
		}
		assert.InDelta(t, 0.5, total, 1.e-12, dt.String())
	}
}

type stuckMapping struct{ *element.AffineMapping }

func (s stuckMapping) Map(_, x []float64) { copy(x, s.Verts[0]) }

func TestMapPatchPoint(t *testing.T) {
	m, err := mesh.UnitSquare(2)
	require.NoError(t, err)
	a := m.Affine(0)
	x := []float64{0.9, 0.8}

	res := MapPatchPoint(a, a, x, 0.5, 0.3)
	assert.True(t, res.Converged)
	assert.LessOrEqual(t, res.Iterations, 1)
	want := make([]float64, 2)
	a.InverseMap(x, want)
	assert.InDeltaSlice(t, want, res.Ref, 1.e-14)
	assert.InDelta(t, 0.3/a.Det, res.Weight, 1.e-14)

	m.SetDeformation(func(x, u []float64) {
		u[0] = 0.05 * x[0] * x[1]
		u[1] = -0.02 * x[0] * x[0]
	}, func(x []float64, G *mat.Dense) {
		G.Set(0, 0, 0.05*x[1])
		G.Set(0, 1, 0.05*x[0])
		G.Set(1, 0, -0.04*x[0])
		G.Set(1, 1, 0)
	})
	dm := m.Mapping(0)
	res = MapPatchPoint(dm, a, x, 0.5, 1)
	require.True(t, res.Converged)
	y := make([]float64, 2)
	dm.Map(res.Ref, y)
	assert.InDeltaSlice(t, x, y, 1.e-12)

	res = MapPatchPoint(stuckMapping{a}, a, x, 0.5, 1)
	assert.False(t, res.Converged)
	assert.Equal(t, 200, res.Iterations)
	assert.InDeltaSlice(t, want, res.Ref, 1.e-14)
}
