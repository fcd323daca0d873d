// Package mesh stores simplex meshes together with the derived topology that
// the cut classification and the extended dof spaces walk over.
package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/utils"
	"gonum.org/v1/gonum/mat"
)

// Labeler returns the boundary label of a facet from its centroid
type Labeler func(centroid []float64) int

// FacetSide is one element side of a facet
type FacetSide struct {
	Elem  int
	Local int // Local facet index within Elem
}

// BoundaryFacet is a surface element
type BoundaryFacet struct {
	Facet int
	Side  FacetSide
	Label int
}

type Mesh struct {
	Dim      int
	Geom     element.ElementGeometry
	Vertices [][]float64
	EToV     [][]int

	Edges     [][2]int // Sorted global vertex pairs (Dim >= 2)
	ElemEdges [][]int  // [K][local edge] -> global edge
	EdgeElems *utils.Table

	Faces     [][3]int // Sorted global vertex triples (Dim == 3)
	ElemFaces [][]int
	FaceElems *utils.Table

	ElemFacets  [][]int       // [K][local facet] -> global facet
	FacetElems  [][]FacetSide // One side on the boundary, two inside
	VertexElems *utils.Table
	Boundary    []BoundaryFacet
	Connector   *utils.FacetConnector

	affine     []*element.AffineMapping
	deform     func(x, u []float64)
	deformGrad func(x []float64, G *mat.Dense)
}

// NewMesh builds a simplex mesh of dimension dim. Boundary facets are
// labelled by labeler, or 1 when labeler is nil.
func NewMesh(dim int, verts [][]float64, etov [][]int, labeler Labeler) (*Mesh, error) {
	geom, err := element.SimplexOfDim(dim)
	if err != nil || dim == 0 {
		return nil, fmt.Errorf("mesh of dimension %d: %w", dim, cuterr.ErrUnsupported)
	}
	if len(etov) == 0 {
		return nil, fmt.Errorf("mesh without elements: %w", cuterr.ErrInvalidGeometry)
	}
	m := &Mesh{Dim: dim, Geom: geom, EToV: etov, Vertices: make([][]float64, len(verts))}
	for i, v := range verts {
		if len(v) < dim {
			return nil, fmt.Errorf("vertex %d has %d coordinates: %w", i, len(v), cuterr.ErrInvalidGeometry)
		}
		m.Vertices[i] = v[:dim]
	}
	m.affine = make([]*element.AffineMapping, len(etov))
	for k, ev := range etov {
		if len(ev) != geom.NumVertices() {
			return nil, fmt.Errorf("element %d has %d vertices: %w", k, len(ev), cuterr.ErrInvalidGeometry)
		}
		ev2 := make([][]float64, len(ev))
		for i, v := range ev {
			if v < 0 || v >= len(verts) {
				return nil, fmt.Errorf("element %d references vertex %d: %w", k, v, cuterr.ErrInvalidGeometry)
			}
			ev2[i] = m.Vertices[v]
		}
		if m.affine[k], err = element.NewAffineMapping(geom, ev2); err != nil {
			return nil, fmt.Errorf("element %d: %w", k, err)
		}
	}
	if m.Connector, err = utils.NewFacetConnector(etov, geom.Facets()); err != nil {
		return nil, fmt.Errorf("invalid mesh connectivity: %w", err)
	}
	m.buildTopology(labeler)
	return m, nil
}

func (m *Mesh) buildTopology(labeler Labeler) {
	K := len(m.EToV)
	nv := len(m.Vertices)

	vb := utils.NewTableBuilder(nv)
	for k, ev := range m.EToV {
		for _, v := range ev {
			vb.Add(v, k)
		}
	}
	m.VertexElems = vb.Build()

	if m.Dim >= 2 {
		index := make(map[[2]int]int)
		m.ElemEdges = make([][]int, K)
		for k, ev := range m.EToV {
			m.ElemEdges[k] = make([]int, len(m.Geom.Edges()))
			for le, e := range m.Geom.Edges() {
				key := sorted2(ev[e[0]], ev[e[1]])
				id, ok := index[key]
				if !ok {
					id = len(m.Edges)
					index[key] = id
					m.Edges = append(m.Edges, key)
				}
				m.ElemEdges[k][le] = id
			}
		}
		eb := utils.NewTableBuilder(len(m.Edges))
		for k, ees := range m.ElemEdges {
			for _, e := range ees {
				eb.Add(e, k)
			}
		}
		m.EdgeElems = eb.Build()
	}

	if m.Dim == 3 {
		index := make(map[[3]int]int)
		m.ElemFaces = make([][]int, K)
		for k, ev := range m.EToV {
			m.ElemFaces[k] = make([]int, 4)
			for lf, f := range m.Geom.Facets() {
				key := sorted3(ev[f[0]], ev[f[1]], ev[f[2]])
				id, ok := index[key]
				if !ok {
					id = len(m.Faces)
					index[key] = id
					m.Faces = append(m.Faces, key)
				}
				m.ElemFaces[k][lf] = id
			}
		}
		fb := utils.NewTableBuilder(len(m.Faces))
		for k, efs := range m.ElemFaces {
			for _, f := range efs {
				fb.Add(f, k)
			}
		}
		m.FaceElems = fb.Build()
	}

	switch m.Dim {
	case 1:
		m.ElemFacets = make([][]int, K)
		for k, ev := range m.EToV {
			m.ElemFacets[k] = []int{ev[0], ev[1]}
		}
		m.FacetElems = make([][]FacetSide, nv)
	case 2:
		m.ElemFacets = m.ElemEdges
		m.FacetElems = make([][]FacetSide, len(m.Edges))
	case 3:
		m.ElemFacets = m.ElemFaces
		m.FacetElems = make([][]FacetSide, len(m.Faces))
	}
	for k, efs := range m.ElemFacets {
		for lf, f := range efs {
			m.FacetElems[f] = append(m.FacetElems[f], FacetSide{Elem: k, Local: lf})
		}
	}
	for f, sides := range m.FacetElems {
		if len(sides) != 1 {
			continue
		}
		label := 1
		if labeler != nil {
			label = labeler(m.FacetCentroid(f))
		}
		m.Boundary = append(m.Boundary, BoundaryFacet{Facet: f, Side: sides[0], Label: label})
	}
}

func sorted2(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func sorted3(a, b, c int) [3]int {
	v := []int{a, b, c}
	sort.Ints(v)
	return [3]int{v[0], v[1], v[2]}
}

func (m *Mesh) NumElements() int { return len(m.EToV) }
func (m *Mesh) NumVertices() int { return len(m.Vertices) }
func (m *Mesh) NumEdges() int    { return len(m.Edges) }
func (m *Mesh) NumFaces() int    { return len(m.Faces) }
func (m *Mesh) NumFacets() int   { return len(m.FacetElems) }

// FacetVertices returns the global vertices of facet f, ordered as the local
// facet of its first element
func (m *Mesh) FacetVertices(f int) []int {
	s := m.FacetElems[f][0]
	lv := m.Geom.Facets()[s.Local]
	out := make([]int, len(lv))
	for i, v := range lv {
		out[i] = m.EToV[s.Elem][v]
	}
	return out
}

func (m *Mesh) FacetCentroid(f int) []float64 {
	c := make([]float64, m.Dim)
	fv := m.FacetVertices(f)
	for _, v := range fv {
		for d := range c {
			c[d] += m.Vertices[v][d] / float64(len(fv))
		}
	}
	return c
}

// Affine returns the affine map of element k, ignoring any deformation
func (m *Mesh) Affine(k int) *element.AffineMapping { return m.affine[k] }

// Mapping returns the element map of k
func (m *Mesh) Mapping(k int) element.Mapping {
	if m.deform != nil {
		return &element.DeformedMapping{Base: m.affine[k], Disp: m.deform, Grad: m.deformGrad}
	}
	return m.affine[k]
}

// SetDeformation switches every element to the deformed mapping
// x = A(ξ) + disp(A(ξ)). A nil disp restores the affine maps.
func (m *Mesh) SetDeformation(disp func(x, u []float64), grad func(x []float64, G *mat.Dense)) {
	m.deform, m.deformGrad = disp, grad
	if disp == nil {
		m.deformGrad = nil
	}
}

// ElementSize returns |T|^(1/dim) of the undeformed element
func (m *Mesh) ElementSize(k int) float64 {
	return math.Pow(m.affine[k].Measure(), 1/float64(m.Dim))
}

// ElementVertexRefs returns the reference coordinates of the element
// vertices, shared by all elements
func (m *Mesh) ElementVertexRefs() [][]float64 { return m.Geom.ReferenceVertices() }
