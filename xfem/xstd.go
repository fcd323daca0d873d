package xfem

import (
	"context"
	"fmt"
	"slices"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/fespace"
	"github.com/notargets/CutFEM/levelset"
)

// XStdSpace is the compound of a base space and its extension. Base dofs
// come first, x-dof i has the compound number base.NDof()+i.
type XStdSpace struct {
	Base fespace.Space
	X    *XFESpace
}

func NewXStdSpace(x *XFESpace) *XStdSpace {
	return &XStdSpace{Base: x.Base(), X: x}
}

func (s *XStdSpace) Update(ctx context.Context, field levelset.Field) error {
	return s.X.Update(ctx, field)
}

func (s *XStdSpace) NDof() int { return s.Base.NDof() + s.X.NDof() }

func (s *XStdSpace) DofNrs(elem int) []int {
	b, x := s.Base.DofNrs(elem), s.X.DofNrs(elem)
	nb := s.Base.NDof()
	out := make([]int, len(b), len(b)+len(x))
	copy(out, b)
	for _, d := range x {
		out = append(out, nb+d)
	}
	return out
}

func (s *XStdSpace) FE(elem int, ar *arena.Arena) (*XStdElement, error) {
	x, err := s.X.FE(elem, ar)
	if err != nil {
		return nil, err
	}
	return &XStdElement{Base: s.Base.FE(elem), X: x.(element.ShapeEvaluator)}, nil
}

// FreeDofs marks the non-Dirichlet dofs of both blocks
func (s *XStdSpace) FreeDofs() []bool {
	nb := s.Base.NDof()
	out := make([]bool, nb, s.NDof())
	for d := range out {
		out[d] = !s.Base.IsDirichlet(d)
	}
	return append(out, s.X.FreeDofs()...)
}

// XToNegPos splits a compound vector into the base functions of the two
// sides. Each x-dof contributes to the side it is supported on.
func (s *XStdSpace) XToNegPos(vec []float64) (neg, pos []float64, err error) {
	nb := s.Base.NDof()
	if len(vec) != s.NDof() {
		return nil, nil, fmt.Errorf("vector of size %d for %d dofs", len(vec), s.NDof())
	}
	neg = slices.Clone(vec[:nb])
	pos = slices.Clone(vec[:nb])
	for x, v := range vec[nb:] {
		b := s.X.BaseDofOfXDof(x)
		if s.X.DomOfDof(x) == element.POS {
			pos[b] += v
		} else {
			neg[b] += v
		}
	}
	return neg, pos, nil
}

// BlockKind selects the smoothing block layout
type BlockKind uint8

const (
	Jacobi         BlockKind = iota // One block per dof
	VertexPatch                     // Dofs of the elements around a vertex
	ElementPatch                    // Dofs of one element
	InterfacePatch                  // All dofs of the cut elements in one block
)

// SmoothingBlocks returns blocks of free compound dofs. Empty blocks are
// dropped and every block is sorted.
func (s *XStdSpace) SmoothingBlocks(kind BlockKind) ([][]int, error) {
	free := s.FreeDofs()
	m := s.Base.Mesh()
	var blocks [][]int
	add := func(dofs []int) {
		var b []int
		for _, d := range dofs {
			if free[d] {
				b = append(b, d)
			}
		}
		slices.Sort(b)
		b = slices.Compact(b)
		if len(b) > 0 {
			blocks = append(blocks, b)
		}
	}
	switch kind {
	case Jacobi:
		for d := range free {
			add([]int{d})
		}
	case VertexPatch:
		for v := 0; v < m.NumVertices(); v++ {
			var dofs []int
			for _, k := range m.VertexElems.Row(v) {
				dofs = append(dofs, s.DofNrs(k)...)
			}
			add(dofs)
		}
	case ElementPatch:
		for k := 0; k < m.NumElements(); k++ {
			add(s.DofNrs(k))
		}
	case InterfacePatch:
		var dofs []int
		for k, on := range s.X.ActiveElements() {
			if on {
				dofs = append(dofs, s.DofNrs(k)...)
			}
		}
		add(dofs)
	default:
		return nil, fmt.Errorf("unknown smoothing block kind %d", kind)
	}
	return blocks, nil
}

// DirectSolverClusters tags the x-dofs with cluster 1 and the base dofs with 0
func (s *XStdSpace) DirectSolverClusters() []int {
	out := make([]int, s.NDof())
	for i := s.Base.NDof(); i < len(out); i++ {
		out[i] = 1
	}
	return out
}
