package classify

import (
	"context"
	"math"
	"testing"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var circle = levelset.Func(func(x []float64) float64 {
	return (x[0]-0.5)*(x[0]-0.5) + (x[1]-0.5)*(x[1]-0.5) - 0.09
})

func newSquare(t *testing.T, n int, opts Options) (*mesh.Mesh, *CutInfo) {
	t.Helper()
	m, err := mesh.UnitSquare(n)
	require.NoError(t, err)
	opts.PartitionSize = 7
	opts.Workers = 3
	ci, err := NewCutInfo(m, opts)
	require.NoError(t, err)
	return m, ci
}

func vertexSigns(m *mesh.Mesh, ev levelset.Evaluator, verts []int) (neg, pos bool) {
	for _, v := range verts {
		phi := ev.Evaluate(m.Vertices[v])
		neg = neg || phi < 0
		pos = pos || phi > 0
	}
	return
}

func TestCombinedDomain(t *testing.T) {
	assert.Equal(t, CombinedDomain(1), CDomNeg)
	assert.Equal(t, CombinedDomain(3), CDomUncut)
	assert.Equal(t, CombinedDomain(5), CDomHasNeg)
	assert.Equal(t, CombinedDomain(6), CDomHasPos)
	assert.Equal(t, CombinedDomain(7), CDomAny)
	assert.True(t, CDomHasNeg.Has(element.IF))
	assert.False(t, CDomHasNeg.Has(element.POS))
	assert.Equal(t, "NEG|IF", CDomHasNeg.String())
}

func TestUpdateCircle(t *testing.T) {
	m, ci := newSquare(t, 5, Options{})
	_, err := ci.Current()
	assert.ErrorIs(t, err, cuterr.ErrNotUpdated)
	assert.False(t, ci.Updated())

	require.NoError(t, ci.Update(context.Background(), levelset.OnMesh(circle)))
	c, err := ci.Current()
	require.NoError(t, err)

	negArea, nif := 0., 0
	for k := 0; k < m.NumElements(); k++ {
		assert.InDelta(t, 1., c.NegMeasure(k)+c.PosMeasure(k), 1.e-12)
		negArea += c.NegMeasure(k) * m.Affine(k).Measure()
		neg, pos := vertexSigns(m, circle, m.EToV[k])
		switch c.ElementType(k) {
		case element.IF:
			nif++
			assert.True(t, neg && pos)
			r, err := ci.Rule(k)
			require.NoError(t, err)
			require.NotNil(t, r)
		case element.NEG:
			assert.False(t, pos)
		case element.POS:
			assert.False(t, neg)
		}
	}
	assert.Greater(t, nif, 0)
	assert.Equal(t, nif, ci.Rules().Len())
	assert.InDelta(t, math.Pi*0.09, negArea, 0.03)

	for f := 0; f < m.NumFacets(); f++ {
		neg, pos := vertexSigns(m, circle, m.FacetVertices(f))
		assert.Equal(t, neg && pos, c.FacetType(f) == element.IF, "facet %d", f)
		// in 2-D the edges are the facets
		assert.Equal(t, c.FacetType(f), c.EdgeType(f))
	}
	for v := 0; v < m.NumVertices(); v++ {
		assert.Equal(t, element.SignOf(circle.Evaluate(m.Vertices[v])), c.VertexType(v))
	}

	ifElems := c.ElementsOfType(CDomIF)
	hasNeg := c.ElementsOfType(CDomHasNeg)
	for k := range ifElems {
		if ifElems[k] {
			assert.True(t, hasNeg[k])
		}
	}
}

func TestUpdateIsRepeatable(t *testing.T) {
	_, ci := newSquare(t, 5, Options{})
	field := levelset.OnMesh(circle)
	require.NoError(t, ci.Update(context.Background(), field))
	c1, _ := ci.Current()
	require.NoError(t, ci.Update(context.Background(), field))
	c2, _ := ci.Current()
	assert.Equal(t, c1.elem, c2.elem)
	assert.Equal(t, c1.facet, c2.facet)
	assert.Equal(t, c1.vertex, c2.vertex)
	assert.Equal(t, c1.neg, c2.neg)
}

func TestFailedUpdateKeepsState(t *testing.T) {
	m, ci := newSquare(t, 5, Options{})
	require.NoError(t, ci.Update(context.Background(), levelset.OnMesh(circle)))
	before, _ := ci.Current()

	// x = y passes through the vertices of the diagonal
	plane := levelset.Interpolate(m, levelset.Func(func(x []float64) float64 { return x[0] - x[1] }))
	err := ci.Update(context.Background(), plane)
	assert.ErrorIs(t, err, cuterr.ErrInvalidGeometry)
	after, _ := ci.Current()
	assert.Same(t, before, after)
}

func TestPerturbedZeros(t *testing.T) {
	opts := Options{Cut: cutint.DefaultOptions()}
	opts.Cut.PerturbZeros = true
	m, ci := newSquare(t, 5, opts)
	plane := levelset.Interpolate(m, levelset.Func(func(x []float64) float64 { return x[0] - x[1] }))
	require.NoError(t, ci.Update(context.Background(), plane))
	c, _ := ci.Current()
	for v := 0; v < m.NumVertices(); v++ {
		if m.Vertices[v][0] == m.Vertices[v][1] {
			assert.Equal(t, element.IF, c.VertexType(v))
		}
	}
}

func TestRuleFor(t *testing.T) {
	m, ci := newSquare(t, 5, Options{})
	_, _, err := ci.RuleFor(0, 2, element.NEG)
	assert.ErrorIs(t, err, cuterr.ErrNotUpdated)
	require.NoError(t, ci.Update(context.Background(), levelset.OnMesh(circle)))
	c, _ := ci.Current()
	for k := 0; k < m.NumElements(); k++ {
		dt := c.ElementType(k)
		if dt == element.IF {
			r, cr, err := ci.RuleFor(k, 4, element.NEG)
			require.NoError(t, err)
			require.NotNil(t, cr)
			assert.InDelta(t, 2*c.NegMeasure(k), r.Sum(), 1.e-12)
			continue
		}
		r, cr, err := ci.RuleFor(k, 2, dt.Opposite())
		require.NoError(t, err)
		assert.Nil(t, cr)
		assert.Zero(t, r.Size())
		r, _, err = ci.RuleFor(k, 2, dt)
		require.NoError(t, err)
		assert.InDelta(t, 2., r.Sum(), 1.e-12)
	}
}

func TestFacetsWithNeighborTypes(t *testing.T) {
	m, ci := newSquare(t, 5, Options{})
	require.NoError(t, ci.Update(context.Background(), levelset.OnMesh(circle)))
	c, _ := ci.Current()
	ghost := c.FacetsWithNeighborTypes(CDomHasNeg, CDomIF, true, false, false)
	n := 0
	for f, on := range ghost {
		if !on {
			continue
		}
		n++
		sides := m.FacetElems[f]
		require.Len(t, sides, 2)
		t0, t1 := c.ElementType(sides[0].Elem), c.ElementType(sides[1].Elem)
		assert.True(t, t0 == element.IF || t1 == element.IF)
	}
	assert.Greater(t, n, 0)

	near := c.ElementsWithNeighborFacets(ghost)
	ifElems := c.ElementsOfType(CDomIF)
	for k := range near {
		if ifElems[k] {
			// every cut element of this mesh has a cut or negative neighbour
			assert.True(t, near[k], "element %d", k)
		}
	}

	all := FacetsWithNeighborTypes(m, ifElems, ifElems, false, false, false)
	for f, on := range all {
		sides := m.FacetElems[f]
		touches := false
		for _, s := range sides {
			touches = touches || ifElems[s.Elem]
		}
		assert.Equal(t, touches, on)
	}
}

type fakeSpace struct{ dofs [][]int }

func (s fakeSpace) NDof() int             { return 4 }
func (s fakeSpace) DofNrs(elem int) []int { return s.dofs[elem] }

func TestDofsOfElements(t *testing.T) {
	s := fakeSpace{dofs: [][]int{{0, 1}, {1, -1, 3}}}
	assert.Equal(t, []bool{false, true, false, true}, DofsOfElements(s, []bool{false, true}))
}

func TestDistanceThreshold(t *testing.T) {
	m, ci := newSquare(t, 5, Options{DistanceThreshold: true, VMax: 1, T0: 0, T1: 0.1})
	far := levelset.Func(func(x []float64) float64 { return x[0] - 10 })
	require.NoError(t, ci.Update(context.Background(), levelset.OnMesh(far)))
	c, _ := ci.Current()
	for k := 0; k < m.NumElements(); k++ {
		assert.Equal(t, element.NEG, c.ElementType(k))
		assert.Equal(t, 1., c.NegMeasure(k))
	}
	assert.Zero(t, ci.Rules().Len())
}

func TestUpdateSpaceTime(t *testing.T) {
	m, ci := newSquare(t, 5, Options{Cut: cutint.DefaultOptions()})
	moving := levelset.TimeFunc(func(x []float64, t float64) float64 { return x[0] - 0.25 - 0.5*t })
	require.NoError(t, ci.UpdateSpaceTime(context.Background(), levelset.OnMeshTime(moving)))
	c, err := ci.Current()
	require.NoError(t, err)
	for k := 0; k < m.NumElements(); k++ {
		xmin, xmax := 1., 0.
		for _, v := range m.EToV[k] {
			xmin = math.Min(xmin, m.Vertices[v][0])
			xmax = math.Max(xmax, m.Vertices[v][0])
		}
		require.NotNil(t, c.SpaceTimeRule(k))
		switch {
		case xmax <= 0.2:
			assert.Equal(t, element.NEG, c.ElementType(k))
		case xmin >= 0.8:
			assert.Equal(t, element.POS, c.ElementType(k))
		case xmin >= 0.4 && xmax <= 0.6:
			assert.Equal(t, element.IF, c.ElementType(k))
		}
		assert.InDelta(t, 1., c.NegMeasure(k)+c.PosMeasure(k), 1.e-12)
	}
}

func TestUpdateSpaceTimeGuards(t *testing.T) {
	moving := levelset.OnMeshTime(levelset.TimeFunc(func(x []float64, t float64) float64 { return x[0] - 0.45 - 0.1*t }))
	empty, err := NewCutInfo(&mesh.Mesh{Dim: 2, Geom: element.Tri}, Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, empty.UpdateSpaceTime(context.Background(), moving), cuterr.ErrInvalidGeometry)
	assert.False(t, empty.Updated())

	m, ci := newSquare(t, 5, Options{Cut: cutint.DefaultOptions()})
	require.NoError(t, ci.UpdateSpaceTime(context.Background(), moving))
	c, err := ci.Current()
	require.NoError(t, err)
	cut := -1
	for k := 0; k < m.NumElements(); k++ {
		if c.ElementType(k) == element.IF {
			cut = k
			break
		}
	}
	require.GreaterOrEqual(t, cut, 0)
	_, err = ci.Rules().Get(cut, ci.Options().Cut.Order)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)
	_, _, err = ci.RuleFor(cut, 2, element.NEG)
	assert.ErrorIs(t, err, cuterr.ErrUnsupported)
}
