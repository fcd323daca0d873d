package xfem

import (
	"fmt"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"gonum.org/v1/gonum/mat"
)

// Operator evaluates a linear differential operator of the shape functions
// at one mapped point into out, [Dim × NDof]
type Operator interface {
	Name() string
	Dim() int
	DiffOrder() int
	CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error
}

type sideMode uint8

const (
	modeExtend sideMode = iota
	modeNeg
	modePos
	modeJump
)

// sideOp applies a base operator to the base block and scales every x-dof
// column by its side
type sideOp struct {
	base Operator
	mode sideMode
}

// Extend applies op to every x-dof and ignores the base dofs
func Extend(op Operator) Operator { return &sideOp{op, modeExtend} }

// Neg restricts op to the negative side: base dofs and NEG x-dofs
func Neg(op Operator) Operator { return &sideOp{op, modeNeg} }

// Pos restricts op to the positive side
func Pos(op Operator) Operator { return &sideOp{op, modePos} }

// Jump is Pos(op) - Neg(op). The base dofs cancel.
func Jump(op Operator) Operator { return &sideOp{op, modeJump} }

func (o *sideOp) Name() string {
	prefix := [...]string{"extend", "neg", "pos", "jump"}[o.mode]
	return prefix + "(" + o.base.Name() + ")"
}

func (o *sideOp) Dim() int       { return o.base.Dim() }
func (o *sideOp) DiffOrder() int { return o.base.DiffOrder() }

func (o *sideOp) baseCoef() float64 {
	if o.mode == modeNeg || o.mode == modePos {
		return 1
	}
	return 0
}

func (o *sideOp) xCoef(dt element.DomainType) float64 {
	switch o.mode {
	case modeExtend:
		return 1
	case modeNeg:
		if dt == element.NEG {
			return 1
		}
	case modePos:
		if dt == element.POS {
			return 1
		}
	case modeJump:
		switch dt {
		case element.POS:
			return 1
		case element.NEG:
			return -1
		}
	}
	return 0
}

func (o *sideOp) CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error {
	out.Zero()
	dim := o.base.Dim()
	switch f := fe.(type) {
	case *DummyElement:
		return nil
	case *XFiniteElement:
		return o.extension(f, mp, out, 0)
	case *XStdElement:
		nb := f.Base.NDof()
		if c := o.baseCoef(); c != 0 {
			if err := o.base.CalcMatrix(f.Base, mp, out.Slice(0, dim, 0, nb).(*mat.Dense)); err != nil {
				return err
			}
		}
		if x := f.XFE(); x != nil {
			return o.extension(x, mp, out, nb)
		}
		return nil
	default:
		// a standard element is its own restriction to either side
		if o.baseCoef() == 0 {
			return nil
		}
		return o.base.CalcMatrix(fe, mp, out)
	}
}

func (o *sideOp) extension(x *XFiniteElement, mp *element.MappedPoint, out *mat.Dense, offset int) error {
	n := x.NDof()
	if n == 0 {
		return nil
	}
	dim := o.base.Dim()
	block := out.Slice(0, dim, offset, offset+n).(*mat.Dense)
	if err := o.base.CalcMatrix(x.Base, mp, block); err != nil {
		return err
	}
	for i, dt := range x.Signs {
		c := o.xCoef(dt)
		if c == 1 {
			continue
		}
		for r := 0; r < dim; r++ {
			block.Set(r, i, c*block.At(r, i))
		}
	}
	return nil
}

// Identity evaluates the shape functions, [1 × NDof]
type Identity struct{}

func (Identity) Name() string   { return "id" }
func (Identity) Dim() int       { return 1 }
func (Identity) DiffOrder() int { return 0 }

func (Identity) CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error {
	se, ok := fe.(element.ShapeEvaluator)
	if !ok {
		return fmt.Errorf("identity of %s element: %w", fe.Kind(), cuterr.ErrUnsupported)
	}
	shape := make([]float64, se.NDof())
	se.CalcShape(mp.Ref, shape)
	for i, v := range shape {
		out.Set(0, i, v)
	}
	return nil
}

// Gradient evaluates the physical gradients ∇̂φ J⁻¹, [D × NDof]
type Gradient struct{ D int }

func (g Gradient) Name() string   { return "grad" }
func (g Gradient) Dim() int       { return g.D }
func (g Gradient) DiffOrder() int { return 1 }

func (g Gradient) CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error {
	se, ok := fe.(element.ShapeEvaluator)
	if !ok {
		return fmt.Errorf("gradient of %s element: %w", fe.Kind(), cuterr.ErrUnsupported)
	}
	nd := se.NDof()
	if nd == 0 {
		return nil
	}
	dshape := mat.NewDense(nd, g.D, nil)
	se.CalcDShape(mp.Ref, dshape)
	var phys mat.Dense
	phys.Mul(dshape, mp.JInv)
	out.Copy(phys.T())
	return nil
}
