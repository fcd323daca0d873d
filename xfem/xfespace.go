// Package xfem provides the extended finite element spaces of unfitted
// discretizations. Every base dof of a cut element gets one extended dof whose
// shape function is the base shape restricted to one side of the interface.
package xfem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/fespace"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/partitions"
	"github.com/notargets/CutFEM/utils"
)

var logger = slog.Default().With(slog.String("component", "xfem"))

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l.With(slog.String("component", "xfem")) }

type Options struct {
	Empty bool // The space carries no dofs but still reports cut elements
	Trace bool // Face x-dofs outside the band of cut elements become LOCAL

	// Cut configures the geometry. The integration order is replaced by
	// 2p+2 for the base order p.
	Cut cutint.Options

	DistanceThreshold bool
	VMax, T0, T1      float64

	Workers       int
	PartitionSize int
	Strategy      partitions.PartitionStrategy
}

// XFESpace is the extended dof space over a base space
type XFESpace struct {
	base    fespace.Space
	opts    Options
	cutInfo *classify.CutInfo

	mu sync.RWMutex
	st *xstate
}

type xstate struct {
	cls *classify.Classification

	ndof         int
	basedof2xdof []int
	xdof2basedof []int
	el2dofs      *utils.Table
	sel2dofs     *utils.Table

	domofdof  []element.DomainType
	active    []bool
	dirichlet []bool
	free      []bool
	coupling  []fespace.CouplingType
}

func NewXFESpace(base fespace.Space, opts Options) (*XFESpace, error) {
	m := base.Mesh()
	if m.Dim < 2 {
		return nil, fmt.Errorf("extended space on a %d-D mesh: %w", m.Dim, cuterr.ErrUnsupported)
	}
	cut := opts.Cut
	cut.Order = 2*base.Order() + 2
	ci, err := classify.NewCutInfo(m, classify.Options{
		Cut:               cut,
		DistanceThreshold: opts.DistanceThreshold,
		VMax:              opts.VMax,
		T0:                opts.T0,
		T1:                opts.T1,
		Workers:           opts.Workers,
		PartitionSize:     opts.PartitionSize,
		Strategy:          opts.Strategy,
	})
	if err != nil {
		return nil, err
	}
	opts.Cut = ci.Options().Cut
	return &XFESpace{base: base, opts: opts, cutInfo: ci}, nil
}

func (xs *XFESpace) Base() fespace.Space        { return xs.base }
func (xs *XFESpace) CutInfo() *classify.CutInfo { return xs.cutInfo }
func (xs *XFESpace) Options() Options           { return xs.opts }
func (xs *XFESpace) RuleOrder() int             { return xs.opts.Cut.Order }
func (xs *XFESpace) Empty() bool                { return xs.opts.Empty }

// Update classifies the mesh against field and renumbers the extended dofs.
// On error the previous state is kept.
func (xs *XFESpace) Update(ctx context.Context, field levelset.Field) error {
	if err := xs.cutInfo.Update(ctx, field); err != nil {
		return fmt.Errorf("xfespace update: %w", err)
	}
	return xs.rebuild()
}

// UpdateSpaceTime is Update for a moving level set over the time slab of the
// cut options
func (xs *XFESpace) UpdateSpaceTime(ctx context.Context, field levelset.TimeField) error {
	if err := xs.cutInfo.UpdateSpaceTime(ctx, field); err != nil {
		return fmt.Errorf("xfespace update: %w", err)
	}
	return xs.rebuild()
}

func (xs *XFESpace) rebuild() error {
	cls, err := xs.cutInfo.Current()
	if err != nil {
		return err
	}
	base := xs.base
	m := base.Mesh()
	K := m.NumElements()
	nb := base.NDof()
	st := &xstate{cls: cls, active: make([]bool, K)}

	// base dofs of cut elements and cut boundary facets
	activeDofs := make([]bool, nb)
	elb := utils.NewTableBuilder(K)
	for k := 0; k < K; k++ {
		if cls.ElementType(k) != element.IF {
			continue
		}
		st.active[k] = true
		d := base.DofNrs(k)
		elb.SetRow(k, d)
		for _, b := range d {
			activeDofs[b] = true
		}
	}
	selb := utils.NewTableBuilder(len(m.Boundary))
	for b, bf := range m.Boundary {
		if cls.FacetType(bf.Facet) != element.IF {
			continue
		}
		d := base.SurfaceDofNrs(b)
		selb.SetRow(b, d)
		for _, bd := range d {
			activeDofs[bd] = true
		}
	}

	st.basedof2xdof = make([]int, nb)
	for i, on := range activeDofs {
		st.basedof2xdof[i] = -1
		if on {
			st.basedof2xdof[i] = st.ndof
			st.xdof2basedof = append(st.xdof2basedof, i)
			st.ndof++
		}
	}
	if xs.opts.Empty {
		st.ndof = 0
		st.xdof2basedof = nil
		for i := range st.basedof2xdof {
			st.basedof2xdof[i] = -1
		}
		st.el2dofs = utils.NewTableBuilder(K).Build()
		st.sel2dofs = utils.NewTableBuilder(len(m.Boundary)).Build()
	} else {
		st.el2dofs = elb.Build()
		st.el2dofs.Map(func(b int) int { return st.basedof2xdof[b] })
		st.sel2dofs = selb.Build()
		st.sel2dofs.Map(func(b int) int { return st.basedof2xdof[b] })
	}

	xs.assignDomains(st)
	xs.assignDirichlet(st)
	xs.assignCoupling(st)

	xs.mu.Lock()
	xs.st = st
	xs.mu.Unlock()
	logger.Debug("extended space updated", slog.Int("ndof", st.ndof),
		slog.Int("base_ndof", nb))
	return nil
}

// assignDomains sets the side on which every extended dof is supported. The
// extension of an entity shared with a positive element lives on NEG.
func (xs *XFESpace) assignDomains(st *xstate) {
	base := xs.base
	m := base.Mesh()
	cls := st.cls
	st.domofdof = make([]element.DomainType, st.ndof)
	for i := range st.domofdof {
		st.domofdof[i] = element.IF
	}
	set := func(dofs []int, dt element.DomainType) {
		for _, b := range dofs {
			if x := st.basedof2xdof[b]; x >= 0 {
				st.domofdof[x] = dt
			}
		}
	}
	sideOf := func(elems []int) element.DomainType {
		for _, k := range elems {
			if cls.ElementType(k) == element.POS {
				return element.NEG
			}
		}
		return element.POS
	}
	if m.Dim == 3 {
		for f := 0; f < m.NumFaces(); f++ {
			set(base.FaceDofNrs(f), sideOf(m.FaceElems.Row(f)))
		}
	}
	for e := 0; e < m.NumEdges(); e++ {
		set(base.EdgeDofNrs(e), sideOf(m.EdgeElems.Row(e)))
	}
	for v := 0; v < m.NumVertices(); v++ {
		set(base.VertexDofNrs(v), sideOf(m.VertexElems.Row(v)))
	}
	for k := 0; k < m.NumElements(); k++ {
		dt := element.NEG
		if cls.MostPositive(k) {
			dt = element.POS
		}
		set(base.InnerDofNrs(k), dt)
	}
	for b, bf := range m.Boundary {
		if dt := cls.FacetType(bf.Facet); dt != element.IF {
			set(base.SurfaceDofNrs(b), dt.Opposite())
		}
	}
}

// assignDirichlet keeps a Dirichlet condition only on x-dofs of cut boundary
// facets
func (xs *XFESpace) assignDirichlet(st *xstate) {
	cutOnBoundary := make([]bool, st.ndof)
	for b := 0; b < st.sel2dofs.NRows(); b++ {
		for _, x := range st.sel2dofs.Row(b) {
			cutOnBoundary[x] = true
		}
	}
	st.dirichlet = make([]bool, st.ndof)
	st.free = make([]bool, st.ndof)
	for x, b := range st.xdof2basedof {
		st.dirichlet[x] = xs.base.IsDirichlet(b) && cutOnBoundary[x]
		st.free[x] = !st.dirichlet[x]
	}
}

func (xs *XFESpace) assignCoupling(st *xstate) {
	m := xs.base.Mesh()
	st.coupling = make([]fespace.CouplingType, st.ndof)
	for x := range st.coupling {
		st.coupling[x] = fespace.Wirebasket
	}
	for x, b := range st.xdof2basedof {
		st.coupling[x] = xs.base.CouplingType(b)
	}
	if !xs.opts.Trace || m.Dim != 3 {
		return
	}
	for f := 0; f < m.NumFaces(); f++ {
		cut := 0
		for _, k := range m.FaceElems.Row(f) {
			if st.active[k] {
				cut++
			}
		}
		if cut >= 2 {
			continue
		}
		for _, b := range xs.base.FaceDofNrs(f) {
			if x := st.basedof2xdof[b]; x >= 0 {
				st.coupling[x] = fespace.Local
			}
		}
	}
}

func (xs *XFESpace) state() *xstate {
	xs.mu.RLock()
	defer xs.mu.RUnlock()
	return xs.st
}

func (xs *XFESpace) Updated() bool { return xs.state() != nil }

// NDof is zero before the first Update
func (xs *XFESpace) NDof() int {
	if st := xs.state(); st != nil {
		return st.ndof
	}
	return 0
}

// DofNrs returns the x-dofs of elem in the local order of its base element,
// nil for an element that is not cut
func (xs *XFESpace) DofNrs(elem int) []int {
	st := xs.state()
	if st == nil || st.el2dofs.NRows() == 0 {
		return nil
	}
	return st.el2dofs.Row(elem)
}

// SurfaceDofNrs returns the x-dofs of boundary facet bnd
func (xs *XFESpace) SurfaceDofNrs(bnd int) []int {
	st := xs.state()
	if st == nil || st.sel2dofs.NRows() == 0 {
		return nil
	}
	return st.sel2dofs.Row(bnd)
}

// DomainNrs returns the side of every dof of DofNrs(elem)
func (xs *XFESpace) DomainNrs(elem int) []element.DomainType {
	dofs := xs.DofNrs(elem)
	st := xs.state()
	out := make([]element.DomainType, len(dofs))
	for i, x := range dofs {
		out[i] = st.domofdof[x]
	}
	return out
}

func (xs *XFESpace) DomOfDof(x int) element.DomainType { return xs.state().domofdof[x] }

// XDofOfBaseDof returns -1 for base dofs without extension
func (xs *XFESpace) XDofOfBaseDof(b int) int {
	st := xs.state()
	if st == nil {
		return -1
	}
	return st.basedof2xdof[b]
}

func (xs *XFESpace) BaseDofOfXDof(x int) int { return xs.state().xdof2basedof[x] }

func (xs *XFESpace) CouplingType(x int) fespace.CouplingType { return xs.state().coupling[x] }
func (xs *XFESpace) IsDirichlet(x int) bool                  { return xs.state().dirichlet[x] }

// FreeDofs returns the complement of the Dirichlet dofs
func (xs *XFESpace) FreeDofs() []bool {
	if st := xs.state(); st != nil {
		return st.free
	}
	return nil
}

// ActiveElements marks the cut elements
func (xs *XFESpace) ActiveElements() []bool {
	if st := xs.state(); st != nil {
		return st.active
	}
	return nil
}

// ElementType returns the classification of elem from the last Update
func (xs *XFESpace) ElementType(elem int) element.DomainType {
	return xs.state().cls.ElementType(elem)
}

// FE returns the finite element of elem. Inactive elements get a
// DummyElement. Signs are allocated from ar when it is not nil.
func (xs *XFESpace) FE(elem int, ar *arena.Arena) (element.FiniteElement, error) {
	st := xs.state()
	if st == nil {
		return nil, cuterr.ErrNotUpdated
	}
	m := xs.base.Mesh()
	if !st.active[elem] {
		return &DummyElement{Domain: st.cls.ElementType(elem), Geom: m.Geom}, nil
	}
	rule, err := xs.cutInfo.Rules().Get(elem, xs.opts.Cut.Order)
	if err != nil {
		return nil, fmt.Errorf("element %d: %w", elem, err)
	}
	if rule == nil {
		return nil, fmt.Errorf("no cut rule for element %d: %w", elem, cuterr.ErrNotUpdated)
	}
	xfe := &XFiniteElement{Base: xs.base.FE(elem), Rule: rule, empty: xs.opts.Empty}
	if xs.opts.Empty {
		return xfe, nil
	}
	dofs := st.el2dofs.Row(elem)
	if ar != nil {
		xfe.Signs = arena.Alloc[element.DomainType](ar, len(dofs))
	} else {
		xfe.Signs = make([]element.DomainType, len(dofs))
	}
	for i, x := range dofs {
		xfe.Signs[i] = st.domofdof[x]
	}
	return xfe, nil
}
