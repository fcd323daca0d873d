// Package integrate evaluates symbolic trial/test forms on cut quadrature
// rules and accumulates element matrices and vectors.
package integrate

import (
	"fmt"
	"log/slog"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/xfem"
	"gonum.org/v1/gonum/mat"
)

var logger = slog.Default().With(slog.String("component", "integrate"))

func SetLogger(l *slog.Logger) { logger = l.With(slog.String("component", "integrate")) }

// Scalar is the field of the assembled matrices
type Scalar interface {
	float64 | complex128
}

func fromReal[S Scalar](x float64) S {
	var s S
	switch p := any(&s).(type) {
	case *float64:
		*p = x
	case *complex128:
		*p = complex(x, 0)
	}
	return s
}

func alloc[T any](ar *arena.Arena, n int) []T {
	if ar == nil {
		return make([]T, n)
	}
	return arena.Alloc[T](ar, n)
}

// DiffOp evaluates a differential operator of the shape functions, see
// xfem.Operator. The side operators xfem.Neg, xfem.Pos, xfem.Extend and
// xfem.Jump are DiffOps.
type DiffOp = xfem.Operator

func Identity() DiffOp { return xfem.Identity{} }

func Gradient(dim int) DiffOp { return xfem.Gradient{D: dim} }

// NormalDerivative is ∇φ·n at points carrying a normal
type NormalDerivative struct{ D int }

func (o NormalDerivative) Name() string   { return "dn" }
func (o NormalDerivative) Dim() int       { return 1 }
func (o NormalDerivative) DiffOrder() int { return 1 }

func (o NormalDerivative) CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error {
	if mp.Normal == nil {
		return fmt.Errorf("normal derivative at a volume point: %w", cuterr.ErrUnsupported)
	}
	n := fe.NDof()
	if n == 0 {
		return nil
	}
	g := mat.NewDense(o.D, n, nil)
	if err := (xfem.Gradient{D: o.D}).CalcMatrix(fe, mp, g); err != nil {
		return err
	}
	out.Mul(mat.NewDense(1, o.D, mp.Normal), g)
	return nil
}

// Component selects row Comp of Op
type Component struct {
	Op   DiffOp
	Comp int
}

func (o Component) Name() string   { return fmt.Sprintf("%s[%d]", o.Op.Name(), o.Comp) }
func (o Component) Dim() int       { return 1 }
func (o Component) DiffOrder() int { return o.Op.DiffOrder() }

func (o Component) CalcMatrix(fe element.FiniteElement, mp *element.MappedPoint, out *mat.Dense) error {
	n := fe.NDof()
	if n == 0 {
		return nil
	}
	full := mat.NewDense(o.Op.Dim(), n, nil)
	if err := o.Op.CalcMatrix(fe, mp, full); err != nil {
		return err
	}
	out.Copy(full.Slice(o.Comp, o.Comp+1, 0, n))
	return nil
}

// Proxy is a trial or test function seen through a differential operator
type Proxy struct {
	Name  string
	Op    DiffOp
	Block int  // Block of an element.CompoundElement, -1 for the whole element
	Other bool // Lives on the second element of a facet or patch
	Test  bool
}

func TrialFunction(name string, op DiffOp) *Proxy {
	return &Proxy{Name: name, Op: op, Block: -1}
}

func TestFunction(name string, op DiffOp) *Proxy {
	return &Proxy{Name: name, Op: op, Block: -1, Test: true}
}

// OnBlock returns a copy of p restricted to block b of a compound element
func (p *Proxy) OnBlock(b int) *Proxy {
	c := *p
	c.Block = b
	return &c
}

// OnOther returns a copy of p evaluated on the neighbour element
func (p *Proxy) OnOther() *Proxy {
	c := *p
	c.Other = true
	return &c
}

// With returns a copy of p with its operator replaced
func (p *Proxy) With(op DiffOp) *Proxy {
	c := *p
	c.Op = op
	return &c
}

func (p *Proxy) sameShape(o *Proxy) bool {
	return p.Op.Name() == o.Op.Name() && p.Block == o.Block && p.Other == o.Other
}

func totalDim(ps []*Proxy) int {
	n := 0
	for _, p := range ps {
		n += p.Op.Dim()
	}
	return n
}

func maxDiffOrder(ps []*Proxy) int {
	d := 0
	for _, p := range ps {
		d = max(d, p.Op.DiffOrder())
	}
	return d
}

// blockOf resolves the element and dof offset addressed by p on fe
func blockOf(p *Proxy, fe element.FiniteElement) (element.FiniteElement, int, error) {
	if p.Block < 0 {
		return fe, 0, nil
	}
	ce, ok := fe.(*element.CompoundElement)
	if !ok || p.Block >= ce.NBlocks() {
		return nil, 0, fmt.Errorf("proxy %s block %d of a %s element: %w",
			p.Name, p.Block, fe.Kind(), cuterr.ErrUnsupported)
	}
	lo, _ := ce.Range(p.Block)
	return ce.Block(p.Block), lo, nil
}
