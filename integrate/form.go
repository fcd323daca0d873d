package integrate

import (
	"fmt"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
)

// Coefficient is a scalar field evaluated at a mapped point
type Coefficient[S Scalar] func(mp *element.MappedPoint) S

// Const returns the constant coefficient c
func Const[S Scalar](c S) Coefficient[S] {
	return func(*element.MappedPoint) S { return c }
}

// Integrand evaluates the local operator value D of a bilinear form. D is
// [totalDim(TestProxies) × totalDim(TrialProxies)] row-major per point and
// is scaled by the point weight by the caller.
type Integrand[S Scalar] interface {
	TrialProxies() []*Proxy
	TestProxies() []*Proxy
	// Nonzero reports the structural coupling of test proxy l with trial
	// proxy k as Nonzero()[l][k]
	Nonzero() [][]bool
	// EvaluateBatch fills out with len(pts) consecutive D blocks. It may
	// return cuterr.ErrNoBatch.
	EvaluateBatch(pts []*element.MappedPoint, out []S) error
	EvaluatePoint(pt *element.MappedPoint, out []S)
}

// Term is Coef · trial[Trial][TrialComp] · test[Test][TestComp]. A nil Coef
// is one.
type Term[S Scalar] struct {
	Coef      Coefficient[S]
	Trial     int
	Test      int
	TrialComp int
	TestComp  int
}

// Form is a sum of Terms over a fixed proxy list
type Form[S Scalar] struct {
	Trial []*Proxy
	Test  []*Proxy
	Terms []Term[S]
}

func (f *Form[S]) TrialProxies() []*Proxy { return f.Trial }
func (f *Form[S]) TestProxies() []*Proxy  { return f.Test }

func (f *Form[S]) Nonzero() [][]bool {
	nz := make([][]bool, len(f.Test))
	for l := range nz {
		nz[l] = make([]bool, len(f.Trial))
	}
	for _, t := range f.Terms {
		nz[t.Test][t.Trial] = true
	}
	return nz
}

// Diagonal reports whether every term couples equal components of the same
// proxy index
func (f *Form[S]) Diagonal() bool {
	for _, t := range f.Terms {
		if t.Trial != t.Test || t.TrialComp != t.TestComp {
			return false
		}
	}
	return true
}

func offsets(ps []*Proxy) []int {
	off := make([]int, len(ps)+1)
	for i, p := range ps {
		off[i+1] = off[i] + p.Op.Dim()
	}
	return off
}

func (f *Form[S]) EvaluatePoint(pt *element.MappedPoint, out []S) {
	ot, ov := offsets(f.Trial), offsets(f.Test)
	nt := ot[len(f.Trial)]
	clear(out[:nt*ov[len(f.Test)]])
	one := fromReal[S](1)
	for _, t := range f.Terms {
		c := one
		if t.Coef != nil {
			c = t.Coef(pt)
		}
		out[(ov[t.Test]+t.TestComp)*nt+ot[t.Trial]+t.TrialComp] += c
	}
}

func (f *Form[S]) EvaluateBatch(pts []*element.MappedPoint, out []S) error {
	n := totalDim(f.Trial) * totalDim(f.Test)
	for i, pt := range pts {
		f.EvaluatePoint(pt, out[i*n:(i+1)*n])
	}
	return nil
}

// Dot couples trial and test componentwise with coefficient coef
func Dot[S Scalar](coef Coefficient[S], trial, test *Proxy) *Form[S] {
	f := &Form[S]{Trial: []*Proxy{trial}, Test: []*Proxy{test}}
	for d := 0; d < trial.Op.Dim(); d++ {
		f.Terms = append(f.Terms, Term[S]{Coef: coef, TrialComp: d, TestComp: d})
	}
	return f
}

// Laplace is ∫ coef ∇u·∇v
func Laplace[S Scalar](coef Coefficient[S], dim int) *Form[S] {
	return Dot(coef, TrialFunction("u", Gradient(dim)), TestFunction("v", Gradient(dim)))
}

// Mass is ∫ coef u v
func Mass[S Scalar](coef Coefficient[S]) *Form[S] {
	return Dot(coef, TrialFunction("u", Identity()), TestFunction("v", Identity()))
}

// Add appends the terms and proxies of o to f. Proxy indices of o are
// shifted past those of f.
func (f *Form[S]) Add(o *Form[S]) *Form[S] {
	nt, nv := len(f.Trial), len(f.Test)
	f.Trial = append(f.Trial, o.Trial...)
	f.Test = append(f.Test, o.Test...)
	for _, t := range o.Terms {
		t.Trial += nt
		t.Test += nv
		f.Terms = append(f.Terms, t)
	}
	return f
}

// jumpForm is scale ∫ [op u][op v] with the jump between the first and
// the other element
func jumpForm[S Scalar](scale float64, op DiffOp) *Form[S] {
	u := TrialFunction("u", op)
	v := TestFunction("v", op)
	f := &Form[S]{
		Trial: []*Proxy{u, u.OnOther()},
		Test:  []*Proxy{v, v.OnOther()},
	}
	for l := 0; l < 2; l++ {
		for k := 0; k < 2; k++ {
			c := scale
			if l != k {
				c = -scale
			}
			for d := 0; d < op.Dim(); d++ {
				f.Terms = append(f.Terms, Term[S]{Coef: Const(fromReal[S](c)),
					Trial: k, Test: l, TrialComp: d, TestComp: d})
			}
		}
	}
	return f
}

// GhostPenalty is the patch jump form gamma/h² ∫ [op u][op v] where the
// jump is taken between the extensions of the two patch elements
func GhostPenalty[S Scalar](gamma float64, h float64, op DiffOp) *Form[S] {
	return jumpForm[S](gamma/(h*h), op)
}

// FacetGhostPenalty is the derivative jump penalty on interior facets,
// Σ_i gammas[i] h^(2i+1) ∫_F [∂ₙ^(i+1) u][∂ₙ^(i+1) v], for a
// CutFacetIntegrator. Shape functions carry first derivatives only, so
// more than one gamma is unsupported.
func FacetGhostPenalty[S Scalar](gammas []float64, h float64, dim int) (*Form[S], error) {
	switch {
	case len(gammas) == 0:
		return nil, fmt.Errorf("facet ghost penalty without coefficients: %w", cuterr.ErrUnsupported)
	case len(gammas) > 1:
		return nil, fmt.Errorf("normal derivative jumps of order %d: %w", len(gammas), cuterr.ErrUnsupported)
	}
	return jumpForm[S](gammas[0]*h, NormalDerivative{D: dim}), nil
}

// LinearIntegrand evaluates totalDim(TestProxies) values per point
type LinearIntegrand[S Scalar] interface {
	TestProxies() []*Proxy
	EvaluateBatch(pts []*element.MappedPoint, out []S) error
	EvaluatePoint(pt *element.MappedPoint, out []S)
}

// LinearTerm is Coef · test[Test][Comp]
type LinearTerm[S Scalar] struct {
	Coef Coefficient[S]
	Test int
	Comp int
}

type LinearForm[S Scalar] struct {
	Test  []*Proxy
	Terms []LinearTerm[S]
}

func (f *LinearForm[S]) TestProxies() []*Proxy { return f.Test }

func (f *LinearForm[S]) EvaluatePoint(pt *element.MappedPoint, out []S) {
	ov := offsets(f.Test)
	clear(out[:ov[len(f.Test)]])
	one := fromReal[S](1)
	for _, t := range f.Terms {
		c := one
		if t.Coef != nil {
			c = t.Coef(pt)
		}
		out[ov[t.Test]+t.Comp] += c
	}
}

func (f *LinearForm[S]) EvaluateBatch(pts []*element.MappedPoint, out []S) error {
	n := totalDim(f.Test)
	for i, pt := range pts {
		f.EvaluatePoint(pt, out[i*n:(i+1)*n])
	}
	return nil
}

// Source is ∫ f v
func Source[S Scalar](f Coefficient[S]) *LinearForm[S] {
	return &LinearForm[S]{
		Test:  []*Proxy{TestFunction("v", Identity())},
		Terms: []LinearTerm[S]{{Coef: f}},
	}
}
