// Package arena provides a scoped bump allocator for per-element scratch
// memory. Each worker owns one Arena; slices handed out stay valid until the
// enclosing Scope is released.
package arena

import (
	"reflect"
)

const defaultChunk = 4096

type resetter interface {
	mark() poolMark
	rewind(m poolMark)
}

type poolMark struct {
	chunk, off int
}

// Pool is a chunked bump allocator for one element type.
type Pool[T any] struct {
	chunks [][]T
	chunk  int // index of the active chunk
	off    int // next free slot in the active chunk
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if n == 0 {
		return nil
	}
	for {
		if p.chunk < len(p.chunks) {
			c := p.chunks[p.chunk]
			if p.off+n <= len(c) {
				s := c[p.off : p.off+n : p.off+n]
				p.off += n
				clear(s)
				return s
			}
			// try the next retained chunk before growing
			p.chunk++
			p.off = 0
			continue
		}
		size := defaultChunk
		if len(p.chunks) > 0 {
			size = 2 * len(p.chunks[len(p.chunks)-1])
		}
		for size < n {
			size *= 2
		}
		p.chunks = append(p.chunks, make([]T, size))
	}
}

func (p *Pool[T]) mark() poolMark { return poolMark{p.chunk, p.off} }

func (p *Pool[T]) rewind(m poolMark) {
	p.chunk, p.off = m.chunk, m.off
}

// Arena groups one Pool per element type.
type Arena struct {
	pools []resetter
	index map[reflect.Type]int
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{index: make(map[reflect.Type]int)}
}

// Scope records the fill level of every pool at the time of Mark.
type Scope struct {
	marks []poolMark
}

// Alloc returns a zeroed []T of length n from the arena.
func Alloc[T any](a *Arena, n int) []T {
	t := reflect.TypeFor[T]()
	i, ok := a.index[t]
	if !ok {
		i = len(a.pools)
		a.pools = append(a.pools, &Pool[T]{})
		a.index[t] = i
	}
	return a.pools[i].(*Pool[T]).Get(n)
}

// Mark opens a scope.
func (a *Arena) Mark() Scope {
	s := Scope{marks: make([]poolMark, len(a.pools))}
	for i, p := range a.pools {
		s.marks[i] = p.mark()
	}
	return s
}

// Release rewinds every pool to the state recorded by s. Pools created after
// the mark are rewound to empty.
func (a *Arena) Release(s Scope) {
	for i, p := range a.pools {
		if i < len(s.marks) {
			p.rewind(s.marks[i])
		} else {
			p.rewind(poolMark{})
		}
	}
}

// Reset rewinds the whole arena.
func (a *Arena) Reset() {
	for _, p := range a.pools {
		p.rewind(poolMark{})
	}
}
