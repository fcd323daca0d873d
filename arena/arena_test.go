package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArena_AllocZeroed(t *testing.T) {
	a := New()
	s := Alloc[float64](a, 8)
	require.Len(t, s, 8)
	for i := range s {
		s[i] = float64(i + 1)
	}
	a.Reset()
	s2 := Alloc[float64](a, 8)
	for _, v := range s2 {
		assert.Equal(t, 0.0, v)
	}
}

func TestArena_ScopeRelease(t *testing.T) {
	a := New()
	_ = Alloc[int](a, 10)
	sc := a.Mark()
	x := Alloc[int](a, 5)
	x[0] = 42
	a.Release(sc)
	y := Alloc[int](a, 5)
	// the released region is handed out again
	assert.Equal(t, &x[0], &y[0])
	assert.Equal(t, 0, y[0])
}

func TestArena_DistinctTypes(t *testing.T) {
	a := New()
	f := Alloc[float64](a, 3)
	c := Alloc[complex128](a, 3)
	b := Alloc[uint8](a, 3)
	f[0], c[0], b[0] = 1, 2i, 3
	assert.Equal(t, 1.0, f[0])
	assert.Equal(t, 2i, c[0])
	assert.Equal(t, uint8(3), b[0])
}

func TestArena_GrowBeyondChunk(t *testing.T) {
	a := New()
	s1 := Alloc[float64](a, defaultChunk-1)
	s2 := Alloc[float64](a, 3*defaultChunk)
	require.Len(t, s2, 3*defaultChunk)
	s1[0] = 7
	s2[0] = 9
	assert.Equal(t, 7.0, s1[0])
	assert.Nil(t, Alloc[float64](a, 0))
}
