package integrate

import (
	"fmt"
	"math"

	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/quadrature"
)

// ElementContext is everything an element integrator reads. The cut rule
// is taken from Rule, then from CutInfo, then built from Level.
type ElementContext struct {
	Elem    int
	TrialFE element.FiniteElement
	TestFE  element.FiniteElement // nil: TrialFE
	Mapping element.Mapping

	CutInfo *classify.CutInfo
	Level   levelset.Local // Level set in reference coordinates of Elem
	Rule    *cutint.CutQuadratureRule

	ComplexTrafo bool // The mapping carries complex (PML) scaling
}

func (ec *ElementContext) testFE() element.FiniteElement {
	if ec.TestFE != nil {
		return ec.TestFE
	}
	return ec.TrialFE
}

func (ec *ElementContext) check() error {
	if ec.ComplexTrafo {
		return fmt.Errorf("element %d: complex transformation: %w", ec.Elem, cuterr.ErrUnsupported)
	}
	for _, fe := range []element.FiniteElement{ec.TrialFE, ec.testFE()} {
		switch g := fe.Geometry(); g {
		case element.Line, element.Tri, element.Tet, element.Rectangle, element.Hex:
		default:
			return fmt.Errorf("element %d: shape %s: %w", ec.Elem, g, cuterr.ErrUnsupported)
		}
	}
	return nil
}

func builderFor(ci *classify.CutInfo, order, subdiv int) *cutint.Builder {
	if ci != nil {
		return ci.Builder().WithOrder(order)
	}
	o := cutint.DefaultOptions()
	o.Order = order
	o.SubdivLvl = subdiv
	return cutint.NewBuilder(o)
}

// volumePoints maps the dt part of the cut rule of ec at order
func volumePoints(ec *ElementContext, order, subdiv int, dt element.DomainType) ([]qpoint, error) {
	cr := ec.Rule
	var qr *quadrature.Rule
	switch {
	case cr != nil:
	case ec.CutInfo != nil:
		var err error
		if qr, cr, err = ec.CutInfo.RuleFor(ec.Elem, order, dt); err != nil {
			return nil, err
		}
	case ec.Level != nil:
		var err error
		if cr, err = builderFor(nil, order, subdiv).Build(ec.Mapping.Geometry(), ec.Level); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("element %d: no cut rule source: %w", ec.Elem, cuterr.ErrNotUpdated)
	}
	if cr != nil {
		if dt == element.IF {
			mps, err := cr.MapInterface(ec.Mapping)
			if err != nil {
				return nil, err
			}
			pts := make([]qpoint, len(mps))
			for i, mp := range mps {
				pts[i].mp[0] = mp
			}
			return pts, nil
		}
		qr = cr.Volume[dt]
	}
	if dt == element.IF {
		// uncut element, the interface does not meet it
		return nil, nil
	}
	pts := make([]qpoint, qr.Size())
	for i, p := range qr.Points {
		mp, err := element.NewMappedPoint(ec.Mapping, p, qr.Weights[i])
		if err != nil {
			return nil, err
		}
		pts[i].mp[0] = mp
	}
	return pts, nil
}

// facetRule returns the dt part of local facet lf of elem in facet
// reference coordinates. For IF the points lie where the zero level set
// meets the facet and normals holds their unit normals within the facet.
func facetRule(geom element.ElementGeometry, lf int, level levelset.Local, ci *classify.CutInfo,
	facet, order int, dt element.DomainType) (rule *quadrature.Rule, normals [][]float64, err error) {
	fgeom := geom.FacetGeometry()
	if level != nil {
		cr, err := builderFor(ci, order, 0).BuildFacet(geom, lf, level)
		if err != nil {
			return nil, nil, err
		}
		if dt == element.IF {
			return cr.Rule(element.IF), cr.Interface.Normals, nil
		}
		return cr.Volume[dt], nil, nil
	}
	if ci == nil {
		if dt == element.IF {
			return &quadrature.Rule{}, nil, nil
		}
		rule, err = quadrature.Select(fgeom, order)
		return rule, nil, err
	}
	c, err := ci.Current()
	if err != nil {
		return nil, nil, err
	}
	switch ft := c.FacetType(facet); {
	case ft == element.IF:
		return nil, nil, fmt.Errorf("cut facet %d without a level set: %w", facet, cuterr.ErrUnsupported)
	case ft == dt:
		rule, err = quadrature.Select(fgeom, order)
		return rule, nil, err
	}
	return &quadrature.Rule{}, nil, nil
}

// facetPoints maps a facet rule into the element behind mapping. mp.Normal
// is the outward unit normal of the facet. mp.Weight is the physical
// surface weight, or with interface normals the physical measure of the
// codim-2 intersection: 1 per point in 2-D, the mapped tangent length in 3-D.
func facetPoints(mapping element.Mapping, lf int, rule *quadrature.Rule, normals [][]float64) ([]qpoint, error) {
	fm, err := element.NewFacetMap(mapping.Geometry(), lf)
	if err != nil {
		return nil, err
	}
	surf := 1.
	if fm.Geom != element.Point {
		surf = element.SurfaceMeasure(fm.Jac)
	}
	pts := make([]qpoint, rule.Size())
	ref := make([]float64, mapping.Dim())
	for i, p := range rule.Points {
		fm.Map(p, ref)
		mp, err := element.NewMappedPoint(mapping, ref, rule.Weights[i])
		if err != nil {
			return nil, err
		}
		n, factor := element.MapNormal(mp, fm.Normal)
		mp.Normal = n
		if normals != nil {
			mp.Weight = rule.Weights[i] * tangentLength(mp, fm, normals[i])
		} else {
			mp.Weight = rule.Weights[i] * surf * factor
		}
		pts[i].mp[0] = mp
	}
	return pts, nil
}

// tangentLength is the physical length of the unit facet tangent of the
// interface segment with facet normal nf. Point intersections have length 1.
func tangentLength(mp *element.MappedPoint, fm *element.FacetMap, nf []float64) float64 {
	if len(nf) != 2 {
		return 1
	}
	tf := []float64{-nf[1], nf[0]}
	dim := len(fm.Origin)
	tref := make([]float64, dim)
	for i := 0; i < dim; i++ {
		tref[i] = fm.Jac.At(i, 0)*tf[0] + fm.Jac.At(i, 1)*tf[1]
	}
	l := 0.
	for i := 0; i < dim; i++ {
		v := 0.
		for d := 0; d < dim; d++ {
			v += mp.J.At(i, d) * tref[d]
		}
		l += v * v
	}
	return math.Sqrt(l)
}

// FacetContext is an interior facet between the two elements of
// Mesh.FacetElems[Facet]. FE[i] is the element on side i.
type FacetContext struct {
	Mesh    *mesh.Mesh
	Facet   int
	FE      [2]element.FiniteElement
	Level   levelset.Local // On the first side, nil for an uncut facet
	CutInfo *classify.CutInfo
}

// PatchContext is a pair of elements coupled by a ghost penalty
type PatchContext struct {
	Mesh  *mesh.Mesh
	Elems [2]int
	FE    [2]element.FiniteElement
}
