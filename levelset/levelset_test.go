package levelset

import (
	"testing"

	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/mesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindAndP1(t *testing.T) {
	m, err := mesh.UnitSquare(3)
	require.NoError(t, err)
	ev := Func(func(x []float64) float64 { return 2*x[0] - x[1] + 0.1 })
	field := OnMesh(ev)
	p1 := Interpolate(m, ev)
	ref := []float64{-0.2, -0.3}
	x := make([]float64, 2)
	for k := 0; k < m.NumElements(); k++ {
		m.Mapping(k).Map(ref, x)
		// a linear field is reproduced exactly
		assert.InDelta(t, ev(x), field.Local(m, k).Evaluate(ref), 1.e-14)
		assert.InDelta(t, ev(x), p1.Local(m, k).Evaluate(ref), 1.e-14)
		assert.InDeltaSlice(t, []float64{2, -1}, p1.Gradient(m, k), 1.e-12)
	}
}

func TestTimeEvaluators(t *testing.T) {
	tf := TimeFunc(func(x []float64, t float64) float64 { return x[0] - t })
	assert.Equal(t, 0.5, tf.Evaluate([]float64{0.5}))
	assert.Equal(t, 0.25, Frozen(tf, 0.25).Evaluate([]float64{0.5}))

	am, err := element.NewAffineMapping(element.Line, [][]float64{{0}, {1}})
	require.NoError(t, err)
	tl := BindTime(tf, am)
	assert.InDelta(t, 0.5-0.3, tl.EvaluateAt([]float64{0}, 0.3), 1.e-15)
	assert.InDelta(t, 1-0.3, BindAt(tf, am, 0.3).Evaluate([]float64{1}), 1.e-15)
	assert.InDelta(t, 0.5-0.3, FrozenLocal(tl, 0.3).Evaluate([]float64{0}), 1.e-15)
}

func TestFacetLocalAndRestrict(t *testing.T) {
	local := LocalFunc(func(ref []float64) float64 { return ref[0] + 2*ref[1] })
	fm, err := element.NewFacetMap(element.Tri, 1) // facet (1,2)
	require.NoError(t, err)
	fl := FacetLocal(local, fm)
	assert.InDelta(t, 1-2, fl.Evaluate([]float64{-1}), 1.e-15)
	assert.InDelta(t, -1+2, fl.Evaluate([]float64{1}), 1.e-15)

	edge := Restrict(local, [][]float64{{-1, -1}, {1, -1}})
	assert.InDelta(t, -3, edge.Evaluate([]float64{-1}), 1.e-15)
	assert.InDelta(t, -2, edge.Evaluate([]float64{0}), 1.e-15)
}
