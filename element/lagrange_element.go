package element

import (
	"fmt"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element/library/gonudg"
	"gonum.org/v1/gonum/mat"
)

// LagrangeElement is the nodal Lagrange element on equispaced nodes of a
// reference simplex. The nodal basis is recovered from the orthonormal
// simplex polynomials through the inverse Vandermonde, shape = Vinvᵀψ.
type LagrangeElement struct {
	geom  ElementGeometry
	order int
	Np    int

	R, S, T []float64  // Node coordinates, entity ordered
	V, Vinv *mat.Dense // [Np × Np]

	vertexDofs [][]int
	edgeDofs   [][]int
	faceDofs   [][]int
	innerDofs  []int
}

var maxLagrangeOrder = map[ElementGeometry]int{Line: 6, Tri: 4, Tet: 3}

// NewLagrangeElement builds the order-p element on geom
func NewLagrangeElement(geom ElementGeometry, order int) (*LagrangeElement, error) {
	pmax, ok := maxLagrangeOrder[geom]
	if !ok || order < 1 || order > pmax {
		return nil, fmt.Errorf("lagrange element %s order %d: %w", geom, order, cuterr.ErrUnsupported)
	}
	le := &LagrangeElement{geom: geom, order: order}
	switch geom {
	case Line:
		le.R = gonudg.EquiNodes1D(order)
		le.V = gonudg.Vandermonde1D(order, le.R)
	case Tri:
		le.R, le.S = gonudg.EquiNodes2D(order)
		le.V = gonudg.Vandermonde2D(order, le.R, le.S)
	case Tet:
		le.R, le.S, le.T = gonudg.EquiNodes3D(order)
		le.V = gonudg.Vandermonde3D(order, le.R, le.S, le.T)
	}
	le.Np = len(le.R)
	le.Vinv = mat.NewDense(le.Np, le.Np, nil)
	if err := le.Vinv.Inverse(le.V); err != nil {
		return nil, fmt.Errorf("lagrange element %s order %d: %w", geom, order, err)
	}
	le.classifyNodes()
	return le, nil
}

// classifyNodes records which local dofs belong to each topological entity,
// following the entity order of the node generators
func (le *LagrangeElement) classifyNodes() {
	p := le.order
	n := 0
	take := func(k int) []int {
		d := make([]int, k)
		for i := range d {
			d[i] = n
			n++
		}
		return d
	}
	nv := le.geom.NumVertices()
	le.vertexDofs = make([][]int, nv)
	for v := range le.vertexDofs {
		le.vertexDofs[v] = take(1)
	}
	if le.geom == Line {
		le.innerDofs = take(p - 1)
		return
	}
	edges := le.geom.Edges()
	le.edgeDofs = make([][]int, len(edges))
	for e := range edges {
		le.edgeDofs[e] = take(p - 1)
	}
	if le.geom == Tet {
		le.faceDofs = make([][]int, 4)
		for f := range le.faceDofs {
			le.faceDofs[f] = take((p - 1) * (p - 2) / 2)
		}
	}
	le.innerDofs = take(le.Np - n)
}

func (le *LagrangeElement) Kind() FEKind              { return Standard }
func (le *LagrangeElement) Geometry() ElementGeometry { return le.geom }
func (le *LagrangeElement) NDof() int                 { return le.Np }
func (le *LagrangeElement) Order() int                { return le.order }

// VertexDofs returns the local dof of each vertex
func (le *LagrangeElement) VertexDofs() [][]int { return le.vertexDofs }

// EdgeDofs returns the local dofs of each edge, ordered from the edge's first
// to its second local vertex
func (le *LagrangeElement) EdgeDofs() [][]int { return le.edgeDofs }

// FaceDofs returns the interior dofs of each face of a Tet
func (le *LagrangeElement) FaceDofs() [][]int { return le.faceDofs }

func (le *LagrangeElement) InnerDofs() []int { return le.innerDofs }

func (le *LagrangeElement) modes(ref []float64) *mat.Dense {
	switch le.geom {
	case Line:
		return gonudg.Vandermonde1D(le.order, ref[:1])
	case Tri:
		return gonudg.Vandermonde2D(le.order, ref[:1], ref[1:2])
	default:
		return gonudg.Vandermonde3D(le.order, ref[:1], ref[1:2], ref[2:3])
	}
}

func (le *LagrangeElement) gradModes(ref []float64) []*mat.Dense {
	switch le.geom {
	case Line:
		return []*mat.Dense{gonudg.GradVandermonde1D(le.order, ref[:1])}
	case Tri:
		Vr, Vs := gonudg.GradVandermonde2D(le.order, ref[:1], ref[1:2])
		return []*mat.Dense{Vr, Vs}
	default:
		Vr, Vs, Vt := gonudg.GradVandermonde3D(le.order, ref[:1], ref[1:2], ref[2:3])
		return []*mat.Dense{Vr, Vs, Vt}
	}
}

func (le *LagrangeElement) CalcShape(ref []float64, shape []float64) {
	psi := le.modes(ref)
	for j := 0; j < le.Np; j++ {
		v := 0.
		for m := 0; m < le.Np; m++ {
			v += psi.At(0, m) * le.Vinv.At(m, j)
		}
		shape[j] = v
	}
}

func (le *LagrangeElement) CalcDShape(ref []float64, dshape *mat.Dense) {
	for d, dpsi := range le.gradModes(ref) {
		for j := 0; j < le.Np; j++ {
			v := 0.
			for m := 0; m < le.Np; m++ {
				v += dpsi.At(0, m) * le.Vinv.At(m, j)
			}
			dshape.Set(j, d, v)
		}
	}
}

// Node returns the reference coordinates of local dof i
func (le *LagrangeElement) Node(i int) []float64 {
	switch le.geom {
	case Line:
		return []float64{le.R[i]}
	case Tri:
		return []float64{le.R[i], le.S[i]}
	}
	return []float64{le.R[i], le.S[i], le.T[i]}
}
