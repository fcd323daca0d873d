package element

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// FEKind tags the concrete variant behind a FiniteElement so callers can
// branch on it without type inspection
type FEKind uint8

const (
	Standard FEKind = iota
	Extended
	Dummy
	Compound
)

func (k FEKind) String() string {
	switch k {
	case Standard:
		return "Standard"
	case Extended:
		return "Extended"
	case Dummy:
		return "Dummy"
	case Compound:
		return "Compound"
	}
	return fmt.Sprintf("FEKind(%d)", uint8(k))
}

// FiniteElement is the capability set shared by every element variant
type FiniteElement interface {
	Kind() FEKind
	Geometry() ElementGeometry
	NDof() int
	Order() int
}

// ShapeEvaluator evaluates shape functions and their reference gradients.
// dshape is [NDof × dim].
type ShapeEvaluator interface {
	FiniteElement
	CalcShape(ref []float64, shape []float64)
	CalcDShape(ref []float64, dshape *mat.Dense)
}

// CompoundElement concatenates the dofs of its blocks
type CompoundElement struct {
	blocks  []FiniteElement
	offsets []int
}

func NewCompoundElement(blocks ...FiniteElement) *CompoundElement {
	ce := &CompoundElement{blocks: blocks, offsets: make([]int, len(blocks)+1)}
	for i, b := range blocks {
		ce.offsets[i+1] = ce.offsets[i] + b.NDof()
	}
	return ce
}

func (ce *CompoundElement) Kind() FEKind { return Compound }

func (ce *CompoundElement) Geometry() ElementGeometry {
	if len(ce.blocks) == 0 {
		return Point
	}
	return ce.blocks[0].Geometry()
}

func (ce *CompoundElement) NDof() int { return ce.offsets[len(ce.blocks)] }

func (ce *CompoundElement) Order() (p int) {
	for _, b := range ce.blocks {
		p = max(p, b.Order())
	}
	return
}

func (ce *CompoundElement) NBlocks() int { return len(ce.blocks) }

func (ce *CompoundElement) Block(i int) FiniteElement { return ce.blocks[i] }

// Range returns the dof range [lo,hi) of block i
func (ce *CompoundElement) Range(i int) (lo, hi int) {
	return ce.offsets[i], ce.offsets[i+1]
}
