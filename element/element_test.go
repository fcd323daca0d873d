package element

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLagrangeElementKronecker(t *testing.T) {
	cases := []struct {
		geom  ElementGeometry
		order int
		np    int
	}{
		{Line, 1, 2}, {Line, 4, 5},
		{Tri, 1, 3}, {Tri, 2, 6}, {Tri, 4, 15},
		{Tet, 1, 4}, {Tet, 2, 10}, {Tet, 3, 20},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s%d", tc.geom, tc.order), func(t *testing.T) {
			le, err := NewLagrangeElement(tc.geom, tc.order)
			require.NoError(t, err)
			require.Equal(t, tc.np, le.NDof())
			shape := make([]float64, le.NDof())
			for i := 0; i < le.NDof(); i++ {
				le.CalcShape(le.Node(i), shape)
				for j := range shape {
					expected := 0.
					if i == j {
						expected = 1
					}
					assert.InDelta(t, expected, shape[j], 1.e-10)
				}
			}
			// gradients of a partition of unity sum to zero
			dim := tc.geom.Dim()
			ds := mat.NewDense(le.NDof(), dim, nil)
			ref := make([]float64, dim)
			for d := range ref {
				ref[d] = -0.6
			}
			le.CalcDShape(ref, ds)
			for d := 0; d < dim; d++ {
				sum := 0.
				for j := 0; j < le.NDof(); j++ {
					sum += ds.At(j, d)
				}
				assert.InDelta(t, 0., sum, 1.e-10)
			}
		})
	}
}

func TestLagrangeElementLinearGradient(t *testing.T) {
	le, err := NewLagrangeElement(Tri, 3)
	require.NoError(t, err)
	// interpolate u = 2r - s and check the gradient at an arbitrary point
	coef := make([]float64, le.NDof())
	for i := range coef {
		n := le.Node(i)
		coef[i] = 2*n[0] - n[1]
	}
	ds := mat.NewDense(le.NDof(), 2, nil)
	le.CalcDShape([]float64{-0.2, -0.5}, ds)
	var g [2]float64
	for j := range coef {
		g[0] += coef[j] * ds.At(j, 0)
		g[1] += coef[j] * ds.At(j, 1)
	}
	assert.InDelta(t, 2., g[0], 1.e-10)
	assert.InDelta(t, -1., g[1], 1.e-10)
}

func TestLagrangeElementEntityDofs(t *testing.T) {
	le, err := NewLagrangeElement(Tet, 3)
	require.NoError(t, err)
	assert.Len(t, le.VertexDofs(), 4)
	assert.Len(t, le.EdgeDofs(), 6)
	assert.Equal(t, []int{4, 5}, le.EdgeDofs()[0])
	assert.Len(t, le.FaceDofs(), 4)
	assert.Equal(t, []int{16}, le.FaceDofs()[0])
	assert.Empty(t, le.InnerDofs())

	_, err = NewLagrangeElement(Tet, 4)
	assert.True(t, errors.Is(err, cuterr.ErrUnsupported))
	_, err = NewLagrangeElement(Hex, 1)
	assert.True(t, errors.Is(err, cuterr.ErrUnsupported))
}

func TestAffineMapping(t *testing.T) {
	m, err := NewAffineMapping(Tri, [][]float64{{0, 0}, {2, 0}, {0, 1}})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Det, 1.e-15)
	assert.InDelta(t, 1., m.Measure(), 1.e-15)

	x := make([]float64, 2)
	m.Map([]float64{1, -1}, x)
	assert.InDeltaSlice(t, []float64{2, 0}, x, 1.e-15)

	ref := make([]float64, 2)
	m.InverseMap([]float64{0.5, 0.25}, ref)
	m.Map(ref, x)
	assert.InDeltaSlice(t, []float64{0.5, 0.25}, x, 1.e-14)

	_, err = NewAffineMapping(Tri, [][]float64{{0, 0}, {1, 1}, {2, 2}})
	assert.True(t, errors.Is(err, cuterr.ErrInvalidGeometry))
}

func TestMapNormal(t *testing.T) {
	m, err := NewAffineMapping(Tri, [][]float64{{0, 0}, {2, 0}, {0, 1}})
	require.NoError(t, err)
	mp, err := NewMappedPoint(m, []float64{-0.5, -0.5}, 1)
	require.NoError(t, err)
	// hypotenuse of the reference triangle maps onto the segment (2,0)-(0,1)
	nref := []float64{1 / math.Sqrt2, 1 / math.Sqrt2}
	n, factor := MapNormal(mp, nref)
	assert.InDeltaSlice(t, []float64{1 / math.Sqrt(5), 2 / math.Sqrt(5)}, n, 1.e-14)
	// reference hypotenuse length 2√2, physical √5
	assert.InDelta(t, math.Sqrt(5)/(2*math.Sqrt2), factor, 1.e-14)
}

func TestDeformedMapping(t *testing.T) {
	base, err := NewAffineMapping(Tri, [][]float64{{0, 0}, {1, 0}, {0, 1}})
	require.NoError(t, err)
	dm := &DeformedMapping{
		Base: base,
		Disp: func(x, u []float64) { u[0], u[1] = 0.1*x[0]*x[0], 0 },
		Grad: func(x []float64, G *mat.Dense) {
			G.Zero()
			G.Set(0, 0, 0.2*x[0])
		},
	}
	ref := []float64{-0.3, -0.4}
	J := mat.NewDense(2, 2, nil)
	dm.Jacobian(ref, J)
	h := 1.e-6
	xp, xm := make([]float64, 2), make([]float64, 2)
	for d := 0; d < 2; d++ {
		rp := append([]float64(nil), ref...)
		rm := append([]float64(nil), ref...)
		rp[d] += h
		rm[d] -= h
		dm.Map(rp, xp)
		dm.Map(rm, xm)
		for i := 0; i < 2; i++ {
			assert.InDelta(t, (xp[i]-xm[i])/(2*h), J.At(i, d), 1.e-8)
		}
	}
}

func TestFacetMap(t *testing.T) {
	for _, geom := range []ElementGeometry{Line, Tri, Tet} {
		for lf := range geom.Facets() {
			fm, err := NewFacetMap(geom, lf)
			require.NoError(t, err)
			dim := geom.Dim()
			// the facet vertices map onto the parent facet vertices
			frv := fm.Geom.ReferenceVertices()
			ref := make([]float64, dim)
			for i, fv := range frv {
				fm.Map(fv, ref)
				assert.InDeltaSlice(t, fm.Verts[i], ref, 1.e-14)
			}
			// the normal points away from the centroid
			c := make([]float64, dim)
			for _, v := range geom.ReferenceVertices() {
				for d := range c {
					c[d] += v[d] / float64(geom.NumVertices())
				}
			}
			proj := 0.
			for d := 0; d < dim; d++ {
				proj += fm.Normal[d] * (fm.Verts[0][d] - c[d])
			}
			assert.Greater(t, proj, 0.)
		}
	}
	A := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0, 0})
	assert.InDelta(t, 1., SurfaceMeasure(A), 1.e-15)
}

func TestDomainType(t *testing.T) {
	assert.Equal(t, POS, NEG.Opposite())
	assert.Equal(t, IF, IF.Opposite())
	assert.Equal(t, IF, SignOf(0))
	assert.Equal(t, NEG, SignOf(-1.e-20))
	assert.Equal(t, "POS", POS.String())
}
