package fespace

import (
	"fmt"
	"slices"

	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/mesh"
)

// H1 is the continuous Lagrange space of one order. Dofs are numbered by
// entity: vertices, edges, faces (3-D), then element interiors. Edge dofs run
// from the lower to the higher global vertex.
type H1 struct {
	mesh  *mesh.Mesh
	order int
	fe    *element.LagrangeElement

	nEdge, nFace, nInner       int // Dofs per entity
	edgeBase, faceBase, inBase int
	ndof                       int

	dofs      [][]int
	surface   [][]int
	coupling  []CouplingType
	dirichlet []bool
}

// NewH1 builds the space. Boundary facets whose label is in dirichlet carry
// Dirichlet dofs.
func NewH1(m *mesh.Mesh, order int, dirichlet ...int) (*H1, error) {
	fe, err := element.NewLagrangeElement(m.Geom, order)
	if err != nil {
		return nil, fmt.Errorf("h1 space: %w", err)
	}
	s := &H1{mesh: m, order: order, fe: fe}
	p := order
	if m.Dim >= 2 {
		s.nEdge = p - 1
	}
	if m.Dim == 3 {
		s.nFace = (p - 1) * (p - 2) / 2
	}
	s.nInner = len(fe.InnerDofs())
	s.edgeBase = m.NumVertices()
	s.faceBase = s.edgeBase + m.NumEdges()*s.nEdge
	s.inBase = s.faceBase + m.NumFaces()*s.nFace
	s.ndof = s.inBase + m.NumElements()*s.nInner

	s.buildElementDofs()
	s.coupling = make([]CouplingType, s.ndof)
	for d := range s.coupling {
		switch {
		case d < s.edgeBase:
			s.coupling[d] = Wirebasket
		case d < s.inBase:
			s.coupling[d] = Interface
		default:
			s.coupling[d] = Local
		}
	}
	s.buildSurface()
	s.dirichlet = make([]bool, s.ndof)
	for b, bf := range m.Boundary {
		if slices.Contains(dirichlet, bf.Label) {
			for _, d := range s.surface[b] {
				s.dirichlet[d] = true
			}
		}
	}
	return s, nil
}

func (s *H1) buildElementDofs() {
	m := s.mesh
	s.dofs = make([][]int, m.NumElements())
	for k, ev := range m.EToV {
		d := make([]int, s.fe.NDof())
		for lv, ld := range s.fe.VertexDofs() {
			d[ld[0]] = ev[lv]
		}
		for le, lds := range s.fe.EdgeDofs() {
			e := m.ElemEdges[k][le]
			le2 := m.Geom.Edges()[le]
			reversed := ev[le2[0]] > ev[le2[1]]
			for j, ld := range lds {
				if reversed {
					j = len(lds) - 1 - j
				}
				d[ld] = s.edgeBase + e*s.nEdge + j
			}
		}
		// at most one dof per face for the supported orders
		for lf, lds := range s.fe.FaceDofs() {
			f := m.ElemFaces[k][lf]
			for j, ld := range lds {
				d[ld] = s.faceBase + f*s.nFace + j
			}
		}
		for j, ld := range s.fe.InnerDofs() {
			d[ld] = s.inBase + k*s.nInner + j
		}
		s.dofs[k] = d
	}
}

// buildSurface collects the dofs of the vertices, edges and face of every
// boundary facet
func (s *H1) buildSurface() {
	m := s.mesh
	s.surface = make([][]int, len(m.Boundary))
	for b, bf := range m.Boundary {
		k, lf := bf.Side.Elem, bf.Side.Local
		fv := m.Geom.Facets()[lf]
		ed := s.dofs[k]
		var out []int
		for _, lv := range fv {
			out = append(out, ed[s.fe.VertexDofs()[lv][0]])
		}
		for le, e := range m.Geom.Edges() {
			if slices.Contains(fv, e[0]) && slices.Contains(fv, e[1]) {
				for _, ld := range s.fe.EdgeDofs()[le] {
					out = append(out, ed[ld])
				}
			}
		}
		if m.Dim == 3 {
			for _, ld := range s.fe.FaceDofs()[lf] {
				out = append(out, ed[ld])
			}
		}
		s.surface[b] = out
	}
}

func (s *H1) Mesh() *mesh.Mesh { return s.mesh }
func (s *H1) Order() int       { return s.order }
func (s *H1) NDof() int        { return s.ndof }

func (s *H1) DofNrs(elem int) []int       { return s.dofs[elem] }
func (s *H1) SurfaceDofNrs(bnd int) []int { return s.surface[bnd] }

func (s *H1) VertexDofNrs(v int) []int { return []int{v} }

func span(base, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = base + i
	}
	return out
}

func (s *H1) EdgeDofNrs(e int) []int     { return span(s.edgeBase+e*s.nEdge, s.nEdge) }
func (s *H1) FaceDofNrs(f int) []int     { return span(s.faceBase+f*s.nFace, s.nFace) }
func (s *H1) InnerDofNrs(elem int) []int { return span(s.inBase+elem*s.nInner, s.nInner) }

func (s *H1) CouplingType(dof int) CouplingType { return s.coupling[dof] }
func (s *H1) IsDirichlet(dof int) bool          { return s.dirichlet[dof] }

// FE returns the shared Lagrange element
func (s *H1) FE(int) element.ShapeEvaluator { return s.fe }

// Lagrange returns the concrete element
func (s *H1) Lagrange() *element.LagrangeElement { return s.fe }

// Interpolate returns the nodal interpolant of f
func (s *H1) Interpolate(f func(x []float64) float64) []float64 {
	out := make([]float64, s.ndof)
	x := make([]float64, s.mesh.Dim)
	for k, d := range s.dofs {
		mp := s.mesh.Mapping(k)
		for ld, gd := range d {
			mp.Map(s.fe.Node(ld), x)
			out[gd] = f(x)
		}
	}
	return out
}

// DofPoints returns the physical node of every dof
func (s *H1) DofPoints() [][]float64 {
	out := make([][]float64, s.ndof)
	for k, d := range s.dofs {
		mp := s.mesh.Mapping(k)
		for ld, gd := range d {
			if out[gd] == nil {
				out[gd] = make([]float64, s.mesh.Dim)
				mp.Map(s.fe.Node(ld), out[gd])
			}
		}
	}
	return out
}
