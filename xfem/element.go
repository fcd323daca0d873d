package xfem

import (
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"gonum.org/v1/gonum/mat"
)

// DummyElement stands in for the extension on an element that is not cut
type DummyElement struct {
	Domain element.DomainType
	Geom   element.ElementGeometry
}

func (d *DummyElement) Kind() element.FEKind              { return element.Dummy }
func (d *DummyElement) Geometry() element.ElementGeometry { return d.Geom }
func (d *DummyElement) NDof() int                         { return 0 }
func (d *DummyElement) Order() int                        { return 0 }
func (d *DummyElement) CalcShape([]float64, []float64)    {}
func (d *DummyElement) CalcDShape([]float64, *mat.Dense)  {}

// XFiniteElement is the extension of a base element on a cut element. Its
// shape functions are the base shapes; Signs[i] is the side of dof i.
type XFiniteElement struct {
	Base  element.ShapeEvaluator
	Signs []element.DomainType
	Rule  *cutint.CutQuadratureRule

	empty bool
}

func (x *XFiniteElement) Kind() element.FEKind              { return element.Extended }
func (x *XFiniteElement) Geometry() element.ElementGeometry { return x.Base.Geometry() }
func (x *XFiniteElement) Order() int                        { return x.Base.Order() }

// Empty reports an element of an empty space, which has no dofs
func (x *XFiniteElement) Empty() bool { return x.empty }

func (x *XFiniteElement) NDof() int {
	if x.empty {
		return 0
	}
	return x.Base.NDof()
}

func (x *XFiniteElement) CalcShape(ref, shape []float64) {
	if !x.empty {
		x.Base.CalcShape(ref, shape)
	}
}

func (x *XFiniteElement) CalcDShape(ref []float64, dshape *mat.Dense) {
	if !x.empty {
		x.Base.CalcDShape(ref, dshape)
	}
}

// XStdElement is the compound of a base element and its extension. The base
// dofs come first.
type XStdElement struct {
	Base element.ShapeEvaluator
	X    element.ShapeEvaluator // *XFiniteElement or *DummyElement
}

func (e *XStdElement) Kind() element.FEKind              { return element.Compound }
func (e *XStdElement) Geometry() element.ElementGeometry { return e.Base.Geometry() }
func (e *XStdElement) NDof() int                         { return e.Base.NDof() + e.X.NDof() }
func (e *XStdElement) Order() int                        { return e.Base.Order() }

// XFE returns the extension, nil when the element is not cut
func (e *XStdElement) XFE() *XFiniteElement {
	x, _ := e.X.(*XFiniteElement)
	return x
}

// CalcShape evaluates the base shapes followed by the unrestricted extension
func (e *XStdElement) CalcShape(ref, shape []float64) {
	nb := e.Base.NDof()
	e.Base.CalcShape(ref, shape[:nb])
	e.X.CalcShape(ref, shape[nb:])
}

func (e *XStdElement) CalcDShape(ref []float64, dshape *mat.Dense) {
	nb, dim := e.Base.NDof(), e.Geometry().Dim()
	e.Base.CalcDShape(ref, dshape.Slice(0, nb, 0, dim).(*mat.Dense))
	if nx := e.X.NDof(); nx > 0 {
		e.X.CalcDShape(ref, dshape.Slice(nb, nb+nx, 0, dim).(*mat.Dense))
	}
}
