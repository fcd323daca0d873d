package assemble

import (
	"context"
	"errors"
	"testing"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/fespace"
	"github.com/notargets/CutFEM/integrate"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/xfem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var plane = levelset.Func(func(x []float64) float64 { return x[0] - 0.5 })

type fixture struct {
	m  *mesh.Mesh
	h1 *fespace.H1
	ci *classify.CutInfo
}

func newFixture(t *testing.T, order int) *fixture {
	t.Helper()
	m, err := mesh.UnitSquare(5)
	require.NoError(t, err)
	h1, err := fespace.NewH1(m, order)
	require.NoError(t, err)
	ci, err := classify.NewCutInfo(m, classify.Options{})
	require.NoError(t, err)
	require.NoError(t, ci.Update(context.Background(), levelset.Interpolate(m, plane)))
	return &fixture{m: m, h1: h1, ci: ci}
}

func (f *fixture) cutMatrix(form *integrate.Form[float64], dt element.DomainType) ElementMatrixFunc {
	cm := &CutMatrix{
		Mesh:    f.m,
		Dofs:    f.h1,
		FE:      func(k int, _ *arena.Arena) (element.FiniteElement, error) { return f.h1.FE(k), nil },
		CutInfo: f.ci,

		Integrator: integrate.NewCutBilinearIntegrator[float64](form, dt),
	}
	return cm.Element
}

func ones(n int) []float64 {
	u := make([]float64, n)
	for i := range u {
		u[i] = 1
	}
	return u
}

func TestGlobal(t *testing.T) {
	g := NewGlobal(3)
	A := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, g.AddMatrix([]int{0, 2}, A))
	require.NoError(t, g.AddMatrix([]int{2, -1}, A))
	assert.Equal(t, 4, g.NNZ())
	csr := g.ToCSR()
	assert.Equal(t, 1., csr.At(0, 0))
	assert.Equal(t, 2., csr.At(0, 2))
	assert.Equal(t, 3., csr.At(2, 0))
	assert.Equal(t, 5., csr.At(2, 2))
	assert.Equal(t, 4, g.ToCOO().NNZ())

	y, err := g.Apply([]float64{1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 8}, y)

	require.NoError(t, g.AddVector([]int{1, -1, 1}, []float64{1, 7, 2}))
	assert.Equal(t, []float64{0, 3, 0}, g.Vector())

	assert.Error(t, g.AddMatrix([]int{0}, A))
	assert.Error(t, g.AddMatrix([]int{0, 3}, A))
	assert.Error(t, g.AddVector([]int{0}, []float64{1, 2}))
	_, err = g.Apply([]float64{1})
	assert.Error(t, err)
}

func TestAssembleSplitMass(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	integrators := []ElementMatrixFunc{
		f.cutMatrix(integrate.Mass(integrate.Const(1.)), element.NEG),
		f.cutMatrix(integrate.Mass(integrate.Const(1.)), element.POS),
	}
	g, err := AssembleMatrix(ctx, f.h1, f.m.NumElements(), integrators, Options{Workers: 3, PartitionSize: 7})
	require.NoError(t, err)
	u := ones(f.h1.NDof())
	Au, err := g.Apply(u)
	require.NoError(t, err)
	assert.InDelta(t, 1., floats.Dot(u, Au), 1.e-12)

	neg, err := AssembleMatrix(ctx, f.h1, f.m.NumElements(), integrators[:1], Options{})
	require.NoError(t, err)
	Au, err = neg.Apply(u)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, floats.Dot(u, Au), 1.e-12)
}

func TestAssembleDeterministic(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	lap := []ElementMatrixFunc{f.cutMatrix(integrate.Laplace(integrate.Const(1.), 2), element.NEG)}
	serial, err := AssembleMatrix(ctx, f.h1, f.m.NumElements(), lap, Options{Workers: 1})
	require.NoError(t, err)
	parallel, err := AssembleMatrix(ctx, f.h1, f.m.NumElements(), lap, Options{Workers: 4, PartitionSize: 3})
	require.NoError(t, err)

	a, b := serial.ToCSR(), parallel.ToCSR()
	n := f.h1.NDof()
	for i := 0; i < n; i++ {
		row := 0.
		for j := 0; j < n; j++ {
			require.Equal(t, a.At(i, j), b.At(i, j))
			assert.InDelta(t, a.At(i, j), a.At(j, i), 1.e-14)
			row += a.At(i, j)
		}
		assert.InDelta(t, 0., row, 1.e-12)
	}
	assert.Equal(t, serial.NNZ(), parallel.NNZ())
}

func TestAssembleExtended(t *testing.T) {
	f := newFixture(t, 1)
	xs, err := xfem.NewXFESpace(f.h1, xfem.Options{})
	require.NoError(t, err)
	require.NoError(t, xs.Update(context.Background(), levelset.Interpolate(f.m, plane)))
	s := xfem.NewXStdSpace(xs)

	side := xfem.Neg(integrate.Identity())
	form := integrate.Dot(integrate.Const(1.), integrate.TrialFunction("u", side), integrate.TestFunction("v", side))
	cm := &CutMatrix{
		Mesh:       f.m,
		Dofs:       s,
		FE:         func(k int, ar *arena.Arena) (element.FiniteElement, error) { return s.FE(k, ar) },
		CutInfo:    xs.CutInfo(),
		Integrator: integrate.NewCutBilinearIntegrator[float64](form, element.NEG),
	}
	g, err := AssembleMatrix(context.Background(), s, f.m.NumElements(), []ElementMatrixFunc{cm.Element}, Options{Workers: 2})
	require.NoError(t, err)
	require.Equal(t, s.NDof(), g.Size())

	u := make([]float64, s.NDof())
	for i := 0; i < f.h1.NDof(); i++ {
		u[i] = 1
	}
	Au, err := g.Apply(u)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, floats.Dot(u, Au), 1.e-12)
}

func TestAssembleErrors(t *testing.T) {
	f := newFixture(t, 1)
	failing := func(_ context.Context, k int, _ *arena.Arena) ([]int, *mat.Dense, error) {
		if k == 3 {
			return nil, nil, cuterr.ErrInvalidGeometry
		}
		return nil, nil, nil
	}
	_, err := AssembleMatrix(context.Background(), f.h1, f.m.NumElements(), []ElementMatrixFunc{failing}, Options{})
	assert.True(t, errors.Is(err, cuterr.ErrInvalidGeometry))

	wrongSize := func(_ context.Context, _ int, _ *arena.Arena) ([]int, *mat.Dense, error) {
		return []int{0}, mat.NewDense(2, 2, nil), nil
	}
	_, err = AssembleMatrix(context.Background(), f.h1, f.m.NumElements(), []ElementMatrixFunc{wrongSize}, Options{})
	assert.Error(t, err)

	g, err := AssembleMatrix(context.Background(), f.h1, 0, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, g.NNZ())
}
