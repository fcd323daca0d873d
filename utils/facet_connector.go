package utils

import (
	"fmt"
	"sort"
)

// FacetConnector matches the facets of neighbouring elements by their sorted
// vertex signature. Boundary facets connect to themselves, EToE[e][f] == e.
type FacetConnector struct {
	K      int // Total elements
	Nfaces int // Facets per element

	EToE [][]int // Element-to-element connectivity
	EToF [][]int // Element-to-local-facet connectivity of the neighbour

	// Perm[e][f][i] is the position, within the neighbour's local facet, of
	// vertex i of local facet f of element e
	Perm [][][]int
}

type facetKey [3]int

type facetSide struct {
	elem, face int
}

// NewFacetConnector builds connectivity from element vertex lists. facetVerts
// lists the local vertex indices of each facet of the reference element.
func NewFacetConnector(EToV [][]int, facetVerts [][]int) (*FacetConnector, error) {
	K := len(EToV)
	if K == 0 || len(facetVerts) == 0 {
		return nil, fmt.Errorf("invalid dimensions: K=%d, Nfaces=%d", K, len(facetVerts))
	}
	Nfaces := len(facetVerts)
	fc := &FacetConnector{
		K:      K,
		Nfaces: Nfaces,
		EToE:   make([][]int, K),
		EToF:   make([][]int, K),
		Perm:   make([][][]int, K),
	}
	for e := 0; e < K; e++ {
		fc.EToE[e] = make([]int, Nfaces)
		fc.EToF[e] = make([]int, Nfaces)
		fc.Perm[e] = make([][]int, Nfaces)
		for f := 0; f < Nfaces; f++ {
			fc.EToE[e][f] = e // Self-connection by default
			fc.EToF[e][f] = f
		}
	}

	faceMap := make(map[facetKey]facetSide, K*Nfaces)
	for e := 0; e < K; e++ {
		for f := 0; f < Nfaces; f++ {
			key, err := fc.signature(EToV[e], facetVerts[f])
			if err != nil {
				return nil, fmt.Errorf("element %d facet %d: %w", e, f, err)
			}
			existing, found := faceMap[key]
			if !found {
				faceMap[key] = facetSide{e, f}
				continue
			}
			if fc.EToE[existing.elem][existing.face] != existing.elem {
				return nil, fmt.Errorf("facet %v shared by more than two elements", key)
			}
			fc.EToE[e][f] = existing.elem
			fc.EToF[e][f] = existing.face
			fc.EToE[existing.elem][existing.face] = e
			fc.EToF[existing.elem][existing.face] = f

			mine := localVerts(EToV[e], facetVerts[f])
			theirs := localVerts(EToV[existing.elem], facetVerts[existing.face])
			fc.Perm[e][f] = matchVerts(mine, theirs)
			fc.Perm[existing.elem][existing.face] = matchVerts(theirs, mine)
		}
	}
	return fc, nil
}

func (fc *FacetConnector) signature(ev []int, fv []int) (facetKey, error) {
	key := facetKey{-1, -1, -1}
	if len(fv) > 3 {
		return key, fmt.Errorf("facet with %d vertices", len(fv))
	}
	v := make([]int, len(fv))
	for i, lv := range fv {
		if lv >= len(ev) {
			return key, fmt.Errorf("local vertex %d outside element with %d vertices", lv, len(ev))
		}
		v[i] = ev[lv]
	}
	sort.Ints(v)
	copy(key[:], v)
	return key, nil
}

func localVerts(ev []int, fv []int) []int {
	v := make([]int, len(fv))
	for i, lv := range fv {
		v[i] = ev[lv]
	}
	return v
}

func matchVerts(mine, theirs []int) []int {
	p := make([]int, len(mine))
	for i, gv := range mine {
		for j, tv := range theirs {
			if gv == tv {
				p[i] = j
			}
		}
	}
	return p
}

// Neighbor returns the element and local facet across facet f of element e.
// ok is false on boundary facets.
func (fc *FacetConnector) Neighbor(e, f int) (nb, nf int, ok bool) {
	nb, nf = fc.EToE[e][f], fc.EToF[e][f]
	return nb, nf, nb != e
}

// IsBoundary reports whether facet f of element e has no neighbour
func (fc *FacetConnector) IsBoundary(e, f int) bool {
	return fc.EToE[e][f] == e
}

// Verify checks that every connection is symmetric
func (fc *FacetConnector) Verify() error {
	for e := 0; e < fc.K; e++ {
		for f := 0; f < fc.Nfaces; f++ {
			nb, nf, ok := fc.Neighbor(e, f)
			if !ok {
				continue
			}
			if fc.EToE[nb][nf] != e || fc.EToF[nb][nf] != f {
				return fmt.Errorf("asymmetric connection: (%d,%d)->(%d,%d)->(%d,%d)",
					e, f, nb, nf, fc.EToE[nb][nf], fc.EToF[nb][nf])
			}
		}
	}
	return nil
}
