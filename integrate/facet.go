package integrate

import (
	"fmt"
	"sync/atomic"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
)

// CutElementBoundaryIntegrator integrates a bilinear form over the Domain
// part of the boundary of one element. Points carry the outward normal.
type CutElementBoundaryIntegrator[S Scalar] struct {
	Integrand  Integrand[S]
	Domain     element.DomainType
	ForceOrder int
	Batch      bool

	noBatch atomic.Bool
}

func NewCutElementBoundaryIntegrator[S Scalar](in Integrand[S], dt element.DomainType) *CutElementBoundaryIntegrator[S] {
	return &CutElementBoundaryIntegrator[S]{Integrand: in, Domain: dt, Batch: true}
}

func (bi *CutElementBoundaryIntegrator[S]) CalcElementMatrix(ec *ElementContext, ar *arena.Arena) ([]S, error) {
	if err := ec.check(); err != nil {
		return nil, err
	}
	trial, test := ec.TrialFE, ec.testFE()
	order := bi.ForceOrder
	if order <= 0 {
		order = trial.Order() + test.Order()
	}
	geom := ec.Mapping.Geometry()
	var facets []int
	if ec.CutInfo != nil {
		facets = ec.CutInfo.Mesh().ElemFacets[ec.Elem]
	}
	var pts []qpoint
	for lf := range geom.Facets() {
		gf := -1
		if facets != nil {
			gf = facets[lf]
		}
		rule, normals, err := facetRule(geom, lf, ec.Level, ec.CutInfo, gf, order, bi.Domain)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", ec.Elem, err)
		}
		fp, err := facetPoints(ec.Mapping, lf, rule, normals)
		if err != nil {
			return nil, err
		}
		pts = append(pts, fp...)
	}
	ntrial, ntest := trial.NDof(), test.NDof()
	out := make([]S, ntest*ntrial)
	sym := symmetric(bi.Integrand, trial == test)
	bt := batcher[S]{enabled: bi.Batch, failed: &bi.noBatch}
	if err := accumulateMatrix(bi.Integrand, pts, oneSide(trial, test), out, ntrial, sym, bt, ar); err != nil {
		return nil, err
	}
	return out, nil
}

// CutFacetIntegrator integrates a two-sided form over the Domain part of an
// interior facet. Other proxies address the dofs [n1, n1+n2) of the second
// element. The normal points out of the first element.
type CutFacetIntegrator[S Scalar] struct {
	Integrand  Integrand[S]
	Domain     element.DomainType
	ForceOrder int
	Batch      bool

	noBatch atomic.Bool
}

func NewCutFacetIntegrator[S Scalar](in Integrand[S], dt element.DomainType) *CutFacetIntegrator[S] {
	return &CutFacetIntegrator[S]{Integrand: in, Domain: dt, Batch: true}
}

func (fi *CutFacetIntegrator[S]) CalcFacetMatrix(fc *FacetContext, ar *arena.Arena) ([]S, error) {
	m := fc.Mesh
	sides := m.FacetElems[fc.Facet]
	if len(sides) < 2 {
		return nil, fmt.Errorf("facet %d: %w", fc.Facet, cuterr.ErrNoNeighbor)
	}
	order := fi.ForceOrder
	if order <= 0 {
		order = 2 * max(fc.FE[0].Order(), fc.FE[1].Order())
	}
	s0, s1 := sides[0], sides[1]
	rule, normals, err := facetRule(m.Geom, s0.Local, fc.Level, fc.CutInfo, fc.Facet, order, fi.Domain)
	if err != nil {
		return nil, fmt.Errorf("facet %d: %w", fc.Facet, err)
	}
	pts, err := facetPoints(m.Mapping(s0.Elem), s0.Local, rule, normals)
	if err != nil {
		return nil, err
	}
	map1 := m.Mapping(s1.Elem)
	for i := range pts {
		mp0 := pts[i].mp[0]
		res := MapPatchPoint(map1, m.Affine(s1.Elem), mp0.X, m.ElementSize(s1.Elem), 0)
		mp1, err := element.NewMappedPoint(map1, res.Ref, 0)
		if err != nil {
			return nil, err
		}
		mp1.Weight = mp0.Weight
		mp1.Normal = mp0.Normal
		pts[i].mp[1] = mp1
	}
	sd := twoSides(fc.FE[0], fc.FE[1])
	n := sd.ndof(sd.trial)
	out := make([]S, n*n)
	sym := symmetric(fi.Integrand, true)
	bt := batcher[S]{enabled: fi.Batch, failed: &fi.noBatch}
	if err := accumulateMatrix(fi.Integrand, pts, sd, out, n, sym, bt, ar); err != nil {
		return nil, err
	}
	return out, nil
}
