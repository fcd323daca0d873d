package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/partitions"
	"github.com/notargets/CutFEM/quadrature"
)

var logger = slog.Default().With(slog.String("component", "classify"))

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l.With(slog.String("component", "classify")) }

type Options struct {
	Cut cutint.Options

	// With DistanceThreshold set an element whose vertex values share one
	// sign and satisfy min|φ| > 2(h+(T1-T0)·VMax) is taken as uncut without
	// building its rule. The level set must then be a distance function.
	DistanceThreshold bool
	VMax              float64
	T0, T1            float64

	Workers       int
	PartitionSize int
	Strategy      partitions.PartitionStrategy
}

// CutInfo is the domain classifier of one mesh. Update may be called
// repeatedly; queries see the result of the last successful Update.
type CutInfo struct {
	mesh    *mesh.Mesh
	opts    Options
	builder *cutint.Builder
	cache   *cutint.Cache

	mu  sync.RWMutex
	cur *Classification
}

func NewCutInfo(m *mesh.Mesh, opts Options) (*CutInfo, error) {
	if m == nil {
		return nil, fmt.Errorf("cut info without mesh: %w", cuterr.ErrInvalidGeometry)
	}
	if opts.Cut.Order <= 0 {
		opts.Cut.Order = cutint.DefaultOptions().Order
	}
	b := cutint.NewBuilder(opts.Cut)
	opts.Cut = b.Options
	return &CutInfo{
		mesh:    m,
		opts:    opts,
		builder: b,
		cache:   cutint.NewCache(nil),
	}, nil
}

func (ci *CutInfo) Mesh() *mesh.Mesh         { return ci.mesh }
func (ci *CutInfo) Options() Options         { return ci.opts }
func (ci *CutInfo) Builder() *cutint.Builder { return ci.builder }

// Update classifies the mesh against field. On error the previous
// classification is kept.
func (ci *CutInfo) Update(ctx context.Context, field levelset.Field) error {
	local := func(k int) levelset.Local { return field.Local(ci.mesh, k) }
	c, err := ci.classify(ctx, local)
	if err != nil {
		return err
	}
	ci.commit(c, func(elem, order int) (*cutint.CutQuadratureRule, error) {
		return ci.builder.WithOrder(order).Build(ci.mesh.Geom, field.Local(ci.mesh, elem))
	})
	return nil
}

// UpdateSpaceTime classifies the mesh against a moving level set over the
// time slab of the cut options. An entity is IF when it is cut at any time
// point of the slab or its sign changes between time points.
func (ci *CutInfo) UpdateSpaceTime(ctx context.Context, field levelset.TimeField) error {
	m := ci.mesh
	K := m.NumElements()
	if K == 0 {
		return fmt.Errorf("space-time update of a mesh without elements: %w", cuterr.ErrInvalidGeometry)
	}
	st := make([]*cutint.SpaceTimeRule, K)
	err := ci.parallel(ctx, K, func(k int, _ *arena.Arena) error {
		r, err := ci.builder.BuildSpaceTime(m.Geom, field.TimeLocal(m, k))
		if err != nil {
			return err
		}
		st[k] = r
		return nil
	})
	if err != nil {
		return err
	}

	if len(st[0].Times) == 0 {
		return fmt.Errorf("space-time rule without time points: %w", cuterr.ErrInvalidGeometry)
	}

	// sub-entities from the frozen slices
	var merged *Classification
	for _, t := range st[0].Times {
		tp := st[0].PhysicalTime(t)
		local := func(k int) levelset.Local { return levelset.FrozenLocal(field.TimeLocal(m, k), tp) }
		c := ci.newClassification()
		if err := ci.classifySubEntities(ctx, c, local); err != nil {
			return fmt.Errorf("time %g: %w", tp, err)
		}
		if merged == nil {
			merged = c
			continue
		}
		mergeTypes(merged.facet, c.facet)
		mergeTypes(merged.edge, c.edge)
		mergeTypes(merged.vertex, c.vertex)
	}
	for k, r := range st {
		merged.elem[k] = r.Type()
		refm := m.Geom.ReferenceMeasure()
		merged.neg[k] = r.Measure(element.NEG) / refm
		merged.pos[k] = r.Measure(element.POS) / refm
		merged.spaceTime[k] = r
	}
	merged.rules = make([]*cutint.CutQuadratureRule, K)
	ci.commit(merged, spatialRuleOfSlab)
	return nil
}

// spatialRuleOfSlab is the rule source of a space-time classification. The
// slab has no single spatial cut, so spatial consumers are refused.
func spatialRuleOfSlab(elem, order int) (*cutint.CutQuadratureRule, error) {
	return nil, fmt.Errorf("spatial cut rule of element %d at order %d from a space-time update: %w",
		elem, order, cuterr.ErrUnsupported)
}

func mergeTypes(dst, src []element.DomainType) {
	for i := range dst {
		if dst[i] != src[i] {
			dst[i] = element.IF
		}
	}
}

func (ci *CutInfo) newClassification() *Classification {
	m := ci.mesh
	K := m.NumElements()
	return &Classification{
		mesh:      m,
		elem:      make([]element.DomainType, K),
		neg:       make([]float64, K),
		pos:       make([]float64, K),
		facet:     make([]element.DomainType, m.NumFacets()),
		edge:      make([]element.DomainType, m.NumEdges()),
		vertex:    make([]element.DomainType, m.NumVertices()),
		rules:     make([]*cutint.CutQuadratureRule, K),
		spaceTime: make([]*cutint.SpaceTimeRule, K),
	}
}

func (ci *CutInfo) commit(c *Classification, source cutint.SourceFunc) {
	ci.mu.Lock()
	defer ci.mu.Unlock()
	ci.cur = c
	ci.cache.Invalidate()
	ci.cache.SetSource(source)
	for k, r := range c.rules {
		if r != nil {
			ci.cache.Put(k, ci.opts.Cut.Order, r)
		}
	}
	n := 0
	for _, dt := range c.elem {
		if dt == element.IF {
			n++
		}
	}
	logger.Debug("classification updated", slog.Int("elements", len(c.elem)),
		slog.Int("cut", n))
}

// parallel runs fn over [0,n) on the configured partitioning
func (ci *CutInfo) parallel(ctx context.Context, n int, fn func(i int, ar *arena.Arena) error) error {
	pb := &partitions.PartitionBuilder{
		NumElements:         n,
		TargetPartitionSize: ci.opts.PartitionSize,
		Strategy:            ci.opts.Strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return err
	}
	return partitions.RunElements(ctx, layout, ci.opts.Workers,
		func(_ context.Context, i int, ar *arena.Arena) error { return fn(i, ar) })
}

func (ci *CutInfo) classify(ctx context.Context, local func(k int) levelset.Local) (*Classification, error) {
	c := ci.newClassification()
	m := ci.mesh
	refm := m.Geom.ReferenceMeasure()
	err := ci.parallel(ctx, m.NumElements(), func(k int, _ *arena.Arena) error {
		loc := local(k)
		if dt, ok := ci.farFromInterface(k, loc); ok {
			c.elem[k] = dt
			if dt == element.NEG {
				c.neg[k] = 1
			} else {
				c.pos[k] = 1
			}
			return nil
		}
		r, err := ci.builder.Build(m.Geom, loc)
		if err != nil {
			return err
		}
		c.neg[k] = r.Measure(element.NEG) / refm
		c.pos[k] = r.Measure(element.POS) / refm
		switch {
		case c.neg[k] > 0 && c.pos[k] > 0:
			c.elem[k] = element.IF
			c.rules[k] = r
		case c.neg[k] > 0:
			c.elem[k] = element.NEG
		default:
			c.elem[k] = element.POS
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ci.classifySubEntities(ctx, c, local); err != nil {
		return nil, err
	}
	return c, nil
}

// farFromInterface applies the distance threshold
func (ci *CutInfo) farFromInterface(k int, loc levelset.Local) (element.DomainType, bool) {
	if !ci.opts.DistanceThreshold {
		return element.IF, false
	}
	h := ci.mesh.ElementSize(k)
	limit := 2 * (h + (ci.opts.T1-ci.opts.T0)*ci.opts.VMax)
	dt := element.IF
	for i, v := range ci.mesh.ElementVertexRefs() {
		phi := loc.Evaluate(v)
		if math.Abs(phi) <= limit {
			return element.IF, false
		}
		s := element.SignOf(phi)
		if i > 0 && s != dt {
			return element.IF, false
		}
		dt = s
	}
	return dt, true
}

func (ci *CutInfo) classifySubEntities(ctx context.Context, c *Classification, local func(k int) levelset.Local) error {
	m := ci.mesh
	err := ci.parallel(ctx, m.NumFacets(), func(f int, _ *arena.Arena) error {
		s := m.FacetElems[f][0]
		r, err := ci.builder.BuildFacet(m.Geom, s.Local, local(s.Elem))
		switch {
		case errors.Is(err, cuterr.ErrInvalidGeometry) && ci.opts.Cut.PerturbZeros:
			// both signs and a zero vertex: the facet is cut
			c.facet[f] = element.IF
		case err != nil:
			return fmt.Errorf("facet %d: %w", f, err)
		default:
			c.facet[f] = r.Type
		}
		return nil
	})
	if err != nil {
		return err
	}

	rv := m.ElementVertexRefs()
	if m.Dim >= 2 {
		line := ci.builder.WithOrder(0)
		err = ci.parallel(ctx, m.NumEdges(), func(e int, _ *arena.Arena) error {
			k := m.EdgeElems.Row(e)[0]
			le := 0
			for i, ge := range m.ElemEdges[k] {
				if ge == e {
					le = i
				}
			}
			ev := m.Geom.Edges()[le]
			r, err := line.Build(element.Line, levelset.Restrict(local(k), [][]float64{rv[ev[0]], rv[ev[1]]}))
			if err != nil {
				return fmt.Errorf("edge %d: %w", e, err)
			}
			c.edge[e] = r.Type
			return nil
		})
		if err != nil {
			return err
		}
	}

	return ci.parallel(ctx, m.NumVertices(), func(v int, _ *arena.Arena) error {
		elems := m.VertexElems.Row(v)
		if len(elems) == 0 {
			c.vertex[v] = element.IF
			return nil
		}
		k := elems[0]
		lv := 0
		for i, gv := range m.EToV[k] {
			if gv == v {
				lv = i
			}
		}
		phi := local(k).Evaluate(rv[lv])
		switch {
		case math.Abs(phi) <= ci.opts.Cut.ZeroTol:
			c.vertex[v] = element.IF
		default:
			c.vertex[v] = element.SignOf(phi)
		}
		return nil
	})
}

// Current returns the last committed classification
func (ci *CutInfo) Current() (*Classification, error) {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	if ci.cur == nil {
		return nil, cuterr.ErrNotUpdated
	}
	return ci.cur, nil
}

func (ci *CutInfo) Updated() bool {
	ci.mu.RLock()
	defer ci.mu.RUnlock()
	return ci.cur != nil
}

// Rules returns the rule cache. Rules of IF elements at the classification
// order are filled by Update; other entries are built on demand.
func (ci *CutInfo) Rules() *cutint.Cache { return ci.cache }

// Rule returns the cut rule of element k at the classification order, or nil
// for an uncut element
func (ci *CutInfo) Rule(k int) (*cutint.CutQuadratureRule, error) {
	c, err := ci.Current()
	if err != nil {
		return nil, err
	}
	return c.rules[k], nil
}

// RuleFor returns the rule of element k at order restricted to dt. Uncut
// elements of type dt get the plain rule, other uncut elements an empty one.
func (ci *CutInfo) RuleFor(k, order int, dt element.DomainType) (*quadrature.Rule, *cutint.CutQuadratureRule, error) {
	c, err := ci.Current()
	if err != nil {
		return nil, nil, err
	}
	et := c.elem[k]
	if et != element.IF {
		if et != dt {
			return &quadrature.Rule{}, nil, nil
		}
		r, err := quadrature.Select(ci.mesh.Geom, order)
		return r, nil, err
	}
	cr, err := ci.cache.Get(k, order)
	if err != nil {
		return nil, nil, err
	}
	if cr == nil {
		return nil, nil, fmt.Errorf("no cut rule for element %d at order %d: %w", k, order, cuterr.ErrNotUpdated)
	}
	return cr.Rule(dt), cr, nil
}

func (ci *CutInfo) ElementType(k int) (element.DomainType, error) {
	c, err := ci.Current()
	if err != nil {
		return element.IF, err
	}
	return c.ElementType(k), nil
}

func (ci *CutInfo) ElementsOfType(mask CombinedDomain) ([]bool, error) {
	c, err := ci.Current()
	if err != nil {
		return nil, err
	}
	return c.ElementsOfType(mask), nil
}

func (ci *CutInfo) FacetsOfType(mask CombinedDomain) ([]bool, error) {
	c, err := ci.Current()
	if err != nil {
		return nil, err
	}
	return c.FacetsOfType(mask), nil
}
