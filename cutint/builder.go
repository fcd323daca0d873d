package cutint

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/quadrature"
)

// Builder is the CutGeometryBuilder. It is stateless apart from its options
// and safe for concurrent use.
type Builder struct {
	Options
}

func NewBuilder(opts Options) *Builder {
	if opts.ZeroTol <= 0 {
		opts.ZeroTol = DefaultOptions().ZeroTol
	}
	if opts.TimeInterval == [2]float64{} {
		opts.TimeInterval = [2]float64{0, 1}
	}
	return &Builder{Options: opts}
}

// WithOrder returns a copy of the builder integrating to order
func (b *Builder) WithOrder(order int) *Builder {
	c := *b
	c.Order = order
	return &c
}

type cell struct {
	verts [][]float64
	phi   []float64
}

// Build computes the cut rule of the reference element geom for the level
// set local, given in reference coordinates
func (b *Builder) Build(geom element.ElementGeometry, local levelset.Local) (*CutQuadratureRule, error) {
	return b.build(geom, local, false)
}

// BuildFacet computes the cut rule of local facet lf of geom in facet
// reference coordinates. Exact zeros on a cut facet are always rejected.
func (b *Builder) BuildFacet(geom element.ElementGeometry, lf int, local levelset.Local) (*CutQuadratureRule, error) {
	fm, err := element.NewFacetMap(geom, lf)
	if err != nil {
		return nil, err
	}
	r, err := b.build(fm.Geom, levelset.FacetLocal(local, fm), true)
	if err != nil {
		return nil, fmt.Errorf("facet %d of %s: %w", lf, geom, err)
	}
	r.Facet = fm
	return r, nil
}

func (b *Builder) build(geom element.ElementGeometry, local levelset.Local, strict bool) (*CutQuadratureRule, error) {
	switch geom {
	case element.Point:
		return b.buildPoint(local, strict)
	case element.Line, element.Tri, element.Tet:
	default:
		return nil, fmt.Errorf("cut rule on %s: %w", geom, cuterr.ErrUnsupported)
	}
	rv := geom.ReferenceVertices()
	phi := make([]float64, len(rv))
	for i, v := range rv {
		phi[i] = local.Evaluate(v)
	}
	if err := b.checkZeros(phi, strict); err != nil {
		return nil, err
	}

	out := newRule(geom)
	cells := []cell{{verts: rv, phi: phi}}
	for lvl := 0; lvl < b.RefLvlSpace; lvl++ {
		var next []cell
		for _, c := range cells {
			next = append(next, refine(c, local)...)
		}
		cells = next
	}
	for _, c := range cells {
		var err error
		if b.SubdivLvl > 0 {
			err = b.subdivide(out, c, local, 0)
		} else {
			err = b.straight(out, c)
		}
		if err != nil {
			return nil, err
		}
	}

	neg, pos := out.Volume[element.NEG].Sum() > 0, out.Volume[element.POS].Sum() > 0
	switch {
	case neg && pos:
		out.Type = element.IF
	case neg:
		out.Type = element.NEG
	default:
		out.Type = element.POS
	}
	if out.Type != element.IF {
		// single-sign: the plain rule of the element
		full, err := quadrature.Select(geom, b.Order)
		if err != nil {
			return nil, err
		}
		out.Volume[out.Type] = full.Clone()
		out.Volume[out.Type.Opposite()] = &quadrature.Rule{}
		out.Interface = InterfaceRule{}
		out.Crossings = nil
	}
	return out, nil
}

func (b *Builder) buildPoint(local levelset.Local, strict bool) (*CutQuadratureRule, error) {
	v := local.Evaluate([]float64{})
	out := newRule(element.Point)
	out.Type = element.SignOf(v)
	if out.Type == element.IF {
		if strict || !b.PerturbZeros {
			return nil, fmt.Errorf("zero level set value at point: %w", cuterr.ErrInvalidGeometry)
		}
		out.Type = element.POS
	}
	out.Volume[out.Type] = &quadrature.Rule{Points: [][]float64{{}}, Weights: []float64{1}}
	return out, nil
}

// checkZeros applies the zero policy to the element vertex values. Zeros on
// an element that does not change sign only touch the interface.
func (b *Builder) checkZeros(phi []float64, strict bool) error {
	var hasNeg, hasPos bool
	var zeros []int
	scale := 0.
	for i, v := range phi {
		switch {
		case v < 0:
			hasNeg = true
		case v > 0:
			hasPos = true
		default:
			zeros = append(zeros, i)
		}
		scale = math.Max(scale, math.Abs(v))
	}
	if len(zeros) == 0 || (len(zeros) < len(phi) && !(hasNeg && hasPos)) {
		return nil
	}
	if strict || !b.PerturbZeros || scale == 0 {
		return fmt.Errorf("zero level set value at vertex %v of a cut element: %w",
			zeros, cuterr.ErrInvalidGeometry)
	}
	for _, i := range zeros {
		phi[i] = b.ZeroTol * scale
	}
	logger.Debug("perturbed zero vertex values", slog.Any("vertices", zeros),
		slog.Float64("value", b.ZeroTol*scale))
	return nil
}

// straight applies the straight cut to one cell of the reference element
func (b *Builder) straight(out *CutQuadratureRule, c cell) error {
	var hasNeg, hasPos bool
	scale := 0.
	for _, v := range c.phi {
		hasNeg = hasNeg || v < 0
		hasPos = hasPos || v > 0
		scale = math.Max(scale, math.Abs(v))
	}
	if !(hasNeg && hasPos) {
		dt := element.POS
		if hasNeg {
			dt = element.NEG
		}
		return b.addFull(out, c.verts, dt)
	}
	phi := c.phi
	if slices.Contains(phi, 0) {
		phi = slices.Clone(phi)
		for i, v := range phi {
			if v == 0 {
				phi[i] = b.ZeroTol * scale
			}
		}
	}
	dim := len(c.verts) - 1
	p := straightCut(c.verts, phi)
	vgeom, _ := element.SimplexOfDim(dim)
	igeom, _ := element.SimplexOfDim(dim - 1)
	vrule, err := quadrature.Select(vgeom, b.Order)
	if err != nil {
		return err
	}
	irule, err := quadrature.Select(igeom, b.Order)
	if err != nil {
		return err
	}
	for s := range p.vol {
		for _, simplex := range p.vol[s] {
			out.Volume[s].Append(quadrature.MapToSimplex(vrule, simplex))
		}
	}
	for _, simplex := range p.iface {
		r := quadrature.MapToSimplex(irule, simplex)
		out.Interface.Points = append(out.Interface.Points, r.Points...)
		out.Interface.Weights = append(out.Interface.Weights, r.Weights...)
		for range r.Points {
			out.Interface.Normals = append(out.Interface.Normals, p.normal)
		}
	}
	out.Crossings = append(out.Crossings, p.crossings...)
	return nil
}

func (b *Builder) addFull(out *CutQuadratureRule, verts [][]float64, dt element.DomainType) error {
	geom, _ := element.SimplexOfDim(len(verts) - 1)
	r, err := quadrature.Select(geom, b.Order)
	if err != nil {
		return err
	}
	out.Volume[dt].Append(quadrature.MapToSimplex(r, verts))
	return nil
}

// subdivide refines c until it is monotone or the depth budget is spent. At
// the finest level the straight cut of the cell is the best-effort
// approximation of the interface.
func (b *Builder) subdivide(out *CutQuadratureRule, c cell, local levelset.Local, lvl int) error {
	samples := append([]float64(nil), c.phi...)
	n := len(c.verts)
	dim := len(c.verts[0])
	centroid := make([]float64, dim)
	for i := 0; i < n; i++ {
		for d := range centroid {
			centroid[d] += c.verts[i][d] / float64(n)
		}
		for j := i + 1; j < n; j++ {
			samples = append(samples, local.Evaluate(midpoint(c.verts[i], c.verts[j])))
		}
	}
	samples = append(samples, local.Evaluate(centroid))
	allPos, allNeg := true, true
	for _, v := range samples {
		allPos = allPos && v > 0
		allNeg = allNeg && v < 0
	}
	switch {
	case allPos:
		return b.addFull(out, c.verts, element.POS)
	case allNeg:
		return b.addFull(out, c.verts, element.NEG)
	case lvl >= b.SubdivLvl:
		return b.straight(out, c)
	}
	for _, child := range refine(c, local) {
		if err := b.subdivide(out, child, local, lvl+1); err != nil {
			return err
		}
	}
	return nil
}

func midpoint(a, b []float64) []float64 {
	m := make([]float64, len(a))
	for i := range a {
		m[i] = 0.5 * (a[i] + b[i])
	}
	return m
}

var (
	// Child vertex lists over the vertices 0..n-1 followed by the edge
	// midpoints in the order of midpointPairs
	lineChildren = [][]int{{0, 2}, {2, 1}}
	triChildren  = [][]int{{0, 3, 5}, {3, 1, 4}, {5, 4, 2}, {3, 4, 5}}
	// Bey's refinement, octahedron split along m02-m13
	tetChildren = [][]int{
		{0, 4, 5, 6}, {4, 1, 7, 8}, {5, 7, 2, 9}, {6, 8, 9, 3},
		{4, 5, 6, 8}, {4, 5, 7, 8}, {5, 6, 8, 9}, {5, 7, 8, 9},
	}
	midpointPairs = map[int][][2]int{
		2: {{0, 1}},
		3: {{0, 1}, {1, 2}, {2, 0}},
		4: {{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}},
	}
)

// refine red-refines a cell, evaluating local at the new vertices
func refine(c cell, local levelset.Local) []cell {
	n := len(c.verts)
	pts := append([][]float64(nil), c.verts...)
	phi := append([]float64(nil), c.phi...)
	for _, pr := range midpointPairs[n] {
		m := midpoint(c.verts[pr[0]], c.verts[pr[1]])
		pts = append(pts, m)
		phi = append(phi, local.Evaluate(m))
	}
	var children [][]int
	switch n {
	case 2:
		children = lineChildren
	case 3:
		children = triChildren
	default:
		children = tetChildren
	}
	out := make([]cell, len(children))
	for i, ch := range children {
		out[i] = cell{verts: make([][]float64, n), phi: make([]float64, n)}
		for j, v := range ch {
			out[i].verts[j] = pts[v]
			out[i].phi[j] = phi[v]
		}
	}
	return out
}
