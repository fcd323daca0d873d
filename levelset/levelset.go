// Package levelset evaluates the scalar field whose zero contour is the
// interface, either in physical space or at element reference points.
package levelset

import (
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/quadrature"
)

// Evaluator evaluates the level set at a physical point
type Evaluator interface {
	Evaluate(x []float64) float64
}

// TimeEvaluator evaluates a moving level set
type TimeEvaluator interface {
	Evaluator
	EvaluateAt(x []float64, t float64) float64
}

type Func func(x []float64) float64

func (f Func) Evaluate(x []float64) float64 { return f(x) }

// TimeFunc is a moving level set. Evaluate uses t = 0.
type TimeFunc func(x []float64, t float64) float64

func (f TimeFunc) Evaluate(x []float64) float64             { return f(x, 0) }
func (f TimeFunc) EvaluateAt(x []float64, t float64) float64 { return f(x, t) }

// Frozen fixes the time of a moving level set
func Frozen(tf TimeEvaluator, t float64) Evaluator {
	return Func(func(x []float64) float64 { return tf.EvaluateAt(x, t) })
}

// Local evaluates the level set at reference points of one element
type Local interface {
	Evaluate(ref []float64) float64
}

type LocalFunc func(ref []float64) float64

func (f LocalFunc) Evaluate(ref []float64) float64 { return f(ref) }

// TimeLocal evaluates a moving level set at reference points of one element
type TimeLocal interface {
	EvaluateAt(ref []float64, t float64) float64
}

type TimeLocalFunc func(ref []float64, t float64) float64

func (f TimeLocalFunc) EvaluateAt(ref []float64, t float64) float64 { return f(ref, t) }

// FrozenLocal fixes the time of an element-local moving level set
func FrozenLocal(tl TimeLocal, t float64) Local {
	return LocalFunc(func(ref []float64) float64 { return tl.EvaluateAt(ref, t) })
}

// Bind composes a physical evaluator with an element mapping
func Bind(ev Evaluator, m element.Mapping) Local {
	x := make([]float64, m.Dim())
	return LocalFunc(func(ref []float64) float64 {
		m.Map(ref, x)
		return ev.Evaluate(x)
	})
}

// BindAt composes a moving level set frozen at t with an element mapping
func BindAt(tev TimeEvaluator, m element.Mapping, t float64) Local {
	return Bind(Frozen(tev, t), m)
}

// BindTime composes a moving level set with an element mapping
func BindTime(tev TimeEvaluator, m element.Mapping) TimeLocal {
	x := make([]float64, m.Dim())
	return TimeLocalFunc(func(ref []float64, t float64) float64 {
		m.Map(ref, x)
		return tev.EvaluateAt(x, t)
	})
}

// Field produces the element-local level set of every element of a mesh
type Field interface {
	Local(m *mesh.Mesh, elem int) Local
}

// TimeField is the moving counterpart of Field
type TimeField interface {
	TimeLocal(m *mesh.Mesh, elem int) TimeLocal
}

type onMesh struct{ ev Evaluator }

func (f onMesh) Local(m *mesh.Mesh, elem int) Local { return Bind(f.ev, m.Mapping(elem)) }

// OnMesh lifts a physical evaluator to a Field through the element mappings
func OnMesh(ev Evaluator) Field { return onMesh{ev} }

type onMeshTime struct{ tev TimeEvaluator }

func (f onMeshTime) TimeLocal(m *mesh.Mesh, elem int) TimeLocal {
	return BindTime(f.tev, m.Mapping(elem))
}

// OnMeshTime lifts a moving level set to a TimeField
func OnMeshTime(tev TimeEvaluator) TimeField { return onMeshTime{tev} }

// FacetLocal restricts an element-local level set to a local facet. The
// returned Local takes facet reference coordinates.
func FacetLocal(local Local, fm *element.FacetMap) Local {
	ref := make([]float64, len(fm.Origin))
	return LocalFunc(func(fref []float64) float64 {
		fm.Map(fref, ref)
		return local.Evaluate(ref)
	})
}

// Restrict composes a level set with the affine map of a sub-simplex given by
// its vertices in the reference coordinates of local
func Restrict(local Local, verts [][]float64) Local {
	apply, _ := quadrature.SimplexMap(verts)
	ref := make([]float64, len(verts[0]))
	return LocalFunc(func(sref []float64) float64 {
		apply(sref, ref)
		return local.Evaluate(ref)
	})
}
