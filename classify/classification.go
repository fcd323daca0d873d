package classify

import (
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/mesh"
)

// Classification is an immutable snapshot produced by one Update
type Classification struct {
	mesh   *mesh.Mesh
	elem   []element.DomainType
	neg    []float64 // Fraction of the reference measure on NEG
	pos    []float64
	facet  []element.DomainType
	edge   []element.DomainType
	vertex []element.DomainType

	rules     []*cutint.CutQuadratureRule // IF elements only
	spaceTime []*cutint.SpaceTimeRule     // Set by UpdateSpaceTime
}

func (c *Classification) ElementType(k int) element.DomainType { return c.elem[k] }
func (c *Classification) FacetType(f int) element.DomainType   { return c.facet[f] }
func (c *Classification) EdgeType(e int) element.DomainType    { return c.edge[e] }
func (c *Classification) VertexType(v int) element.DomainType  { return c.vertex[v] }

// NegMeasure returns the fraction of element k on the negative side
func (c *Classification) NegMeasure(k int) float64 { return c.neg[k] }
func (c *Classification) PosMeasure(k int) float64 { return c.pos[k] }

// MostPositive reports whether more of element k lies on POS than on NEG
func (c *Classification) MostPositive(k int) bool { return c.pos[k] > c.neg[k] }

// SpaceTimeRule returns the slab rule of element k, nil after a spatial Update
func (c *Classification) SpaceTimeRule(k int) *cutint.SpaceTimeRule { return c.spaceTime[k] }

func ofType(types []element.DomainType, mask CombinedDomain) []bool {
	out := make([]bool, len(types))
	for i, dt := range types {
		out[i] = mask.Has(dt)
	}
	return out
}

func (c *Classification) ElementsOfType(mask CombinedDomain) []bool { return ofType(c.elem, mask) }
func (c *Classification) FacetsOfType(mask CombinedDomain) []bool   { return ofType(c.facet, mask) }
func (c *Classification) EdgesOfType(mask CombinedDomain) []bool    { return ofType(c.edge, mask) }
func (c *Classification) VerticesOfType(mask CombinedDomain) []bool { return ofType(c.vertex, mask) }

// FacetsWithNeighborTypes marks the facets between an element in a and an
// element in b. With useAnd false a facet is marked when either neighbour is
// in a or b. The missing neighbour of a boundary facet counts as a member of
// a and b according to bndA and bndB.
func FacetsWithNeighborTypes(m *mesh.Mesh, a, b []bool, useAnd, bndA, bndB bool) []bool {
	out := make([]bool, m.NumFacets())
	for f, sides := range m.FacetElems {
		aL, bL := a[sides[0].Elem], b[sides[0].Elem]
		aR, bR := bndA, bndB
		if len(sides) > 1 {
			aR, bR = a[sides[1].Elem], b[sides[1].Elem]
		}
		if useAnd {
			out[f] = (aL && bR) || (aR && bL)
		} else {
			out[f] = aL || bR || aR || bL
		}
	}
	return out
}

// FacetsWithNeighborTypes selects facets by the types of their elements, for
// instance CDomHasNeg and CDomIF for ghost-penalty facets
func (c *Classification) FacetsWithNeighborTypes(a, b CombinedDomain, useAnd, bndA, bndB bool) []bool {
	return FacetsWithNeighborTypes(c.mesh, c.ElementsOfType(a), c.ElementsOfType(b), useAnd, bndA, bndB)
}

// ElementsWithNeighborFacets marks the elements adjacent to a marked facet
func ElementsWithNeighborFacets(m *mesh.Mesh, facets []bool) []bool {
	out := make([]bool, m.NumElements())
	for f, on := range facets {
		if !on {
			continue
		}
		for _, s := range m.FacetElems[f] {
			out[s.Elem] = true
		}
	}
	return out
}

func (c *Classification) ElementsWithNeighborFacets(facets []bool) []bool {
	return ElementsWithNeighborFacets(c.mesh, facets)
}

// DofSpace is the part of a finite element space needed to collect dofs
type DofSpace interface {
	NDof() int
	DofNrs(elem int) []int
}

// DofsOfElements marks the dofs of the elements in elems. Negative dof
// numbers are ignored.
func DofsOfElements(space DofSpace, elems []bool) []bool {
	out := make([]bool, space.NDof())
	for k, on := range elems {
		if !on {
			continue
		}
		for _, d := range space.DofNrs(k) {
			if d >= 0 {
				out[d] = true
			}
		}
	}
	return out
}

// DofsOfElements marks the dofs of the elements whose type is in mask
func (c *Classification) DofsOfElements(space DofSpace, mask CombinedDomain) []bool {
	return DofsOfElements(space, c.ElementsOfType(mask))
}
