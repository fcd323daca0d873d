package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	triFacets = [][]int{{0, 1}, {1, 2}, {2, 0}}
	tetFacets = [][]int{
		{0, 1, 2}, // Face 0
		{0, 1, 3}, // Face 1
		{1, 2, 3}, // Face 2
		{0, 2, 3}, // Face 3
	}
)

func TestFacetConnector_TwoTriangles(t *testing.T) {
	// unit square split along the diagonal 1-2
	EToV := [][]int{{0, 1, 2}, {1, 3, 2}}
	fc, err := NewFacetConnector(EToV, triFacets)
	require.NoError(t, err)
	require.NoError(t, fc.Verify())

	nb, nf, ok := fc.Neighbor(0, 1)
	require.True(t, ok)
	assert.Equal(t, 1, nb)
	assert.Equal(t, 2, nf)

	// element 0 facet 1 is (1,2); element 1 facet 2 is (2,1)
	assert.Equal(t, []int{1, 0}, fc.Perm[0][1])

	boundary := 0
	for e := 0; e < 2; e++ {
		for f := 0; f < 3; f++ {
			if fc.IsBoundary(e, f) {
				boundary++
			}
		}
	}
	assert.Equal(t, 4, boundary)
}

func TestFacetConnector_Tets(t *testing.T) {
	EToV := [][]int{{0, 1, 2, 3}, {1, 2, 3, 4}}
	fc, err := NewFacetConnector(EToV, tetFacets)
	require.NoError(t, err)
	require.NoError(t, fc.Verify())

	// shared face is (1,2,3): face 2 of element 0, face 0 of element 1
	nb, nf, ok := fc.Neighbor(0, 2)
	require.True(t, ok)
	assert.Equal(t, 1, nb)
	assert.Equal(t, 0, nf)
	assert.Equal(t, []int{0, 1, 2}, fc.Perm[0][2])
}

func TestFacetConnector_Errors(t *testing.T) {
	_, err := NewFacetConnector(nil, triFacets)
	assert.Error(t, err)

	// three triangles on one edge
	_, err = NewFacetConnector([][]int{{0, 1, 2}, {0, 1, 3}, {0, 1, 4}}, triFacets)
	assert.Error(t, err)
}

func TestTableBuilder(t *testing.T) {
	tb := NewTableBuilder(3)
	tb.SetRow(2, []int{5, 6})
	tb.Add(0, 1)
	tb.Add(0, 2)
	tab := tb.Build()
	require.Equal(t, 3, tab.NRows())
	assert.Equal(t, []int{1, 2}, tab.Row(0))
	assert.Empty(t, tab.Row(1))
	assert.Equal(t, []int{5, 6}, tab.Row(2))
	assert.Equal(t, 4, tab.Size())

	inv := tab.Invert(7)
	assert.Equal(t, []int{0}, inv.Row(1))
	assert.Equal(t, []int{2}, inv.Row(6))

	tab.Map(func(v int) int { return v * 10 })
	assert.Equal(t, []int{50, 60}, tab.Row(2))

	_, err := NewTableFromRows([][]int{{0, 3}}, 3)
	assert.Error(t, err)
}
