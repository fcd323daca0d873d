package element

import (
	"fmt"
	"math"

	"github.com/notargets/CutFEM/cuterr"
	"gonum.org/v1/gonum/mat"
)

// Mapping maps the reference element of Geometry() into physical space
type Mapping interface {
	Geometry() ElementGeometry
	Dim() int
	Map(ref, x []float64)
	Jacobian(ref []float64, J *mat.Dense)
}

// AffineMapping is the simplex map x = v0 + J(ξ+1) with J[:,d] = (v_{d+1}-v0)/2
type AffineMapping struct {
	geom  ElementGeometry
	Verts [][]float64 // Physical vertices
	J     *mat.Dense  // [dim × dim]
	JInv  *mat.Dense
	Det   float64 // |det J|
}

// NewAffineMapping builds the map of a simplex from its physical vertices
func NewAffineMapping(geom ElementGeometry, verts [][]float64) (*AffineMapping, error) {
	if !geom.IsSimplex() || geom == Point {
		return nil, fmt.Errorf("affine mapping of %s: %w", geom, cuterr.ErrUnsupported)
	}
	dim := geom.Dim()
	if len(verts) != geom.NumVertices() {
		return nil, fmt.Errorf("%s needs %d vertices, got %d: %w",
			geom, geom.NumVertices(), len(verts), cuterr.ErrInvalidGeometry)
	}
	m := &AffineMapping{
		geom:  geom,
		Verts: verts,
		J:     mat.NewDense(dim, dim, nil),
		JInv:  mat.NewDense(dim, dim, nil),
	}
	for d := 0; d < dim; d++ {
		for i := 0; i < dim; i++ {
			m.J.Set(i, d, 0.5*(verts[d+1][i]-verts[0][i]))
		}
	}
	det := mat.Det(m.J)
	if math.Abs(det) < 1.e-300 {
		return nil, fmt.Errorf("degenerate %s: %w", geom, cuterr.ErrInvalidGeometry)
	}
	m.Det = math.Abs(det)
	if err := m.JInv.Inverse(m.J); err != nil {
		return nil, fmt.Errorf("degenerate %s: %w", geom, cuterr.ErrInvalidGeometry)
	}
	return m, nil
}

func (m *AffineMapping) Geometry() ElementGeometry { return m.geom }
func (m *AffineMapping) Dim() int                  { return m.geom.Dim() }

func (m *AffineMapping) Map(ref, x []float64) {
	dim := m.Dim()
	for i := 0; i < dim; i++ {
		v := m.Verts[0][i]
		for d := 0; d < dim; d++ {
			v += m.J.At(i, d) * (ref[d] + 1)
		}
		x[i] = v
	}
}

func (m *AffineMapping) Jacobian(_ []float64, J *mat.Dense) { J.Copy(m.J) }

// InverseMap returns the reference point of the physical point x
func (m *AffineMapping) InverseMap(x, ref []float64) {
	dim := m.Dim()
	for d := 0; d < dim; d++ {
		v := 0.
		for i := 0; i < dim; i++ {
			v += m.JInv.At(d, i) * (x[i] - m.Verts[0][i])
		}
		ref[d] = v - 1
	}
}

// Measure returns the physical length, area or volume of the element
func (m *AffineMapping) Measure() float64 { return m.Det * m.geom.ReferenceMeasure() }

// DeformedMapping composes an affine map with a displacement field
// x = A(ξ) + u(A(ξ)), so that the Jacobian varies over the element
type DeformedMapping struct {
	Base *AffineMapping
	Disp func(x, u []float64)            // Displacement at physical point x
	Grad func(x []float64, G *mat.Dense) // ∂u/∂x
}

func (m *DeformedMapping) Geometry() ElementGeometry { return m.Base.Geometry() }
func (m *DeformedMapping) Dim() int                  { return m.Base.Dim() }

func (m *DeformedMapping) Map(ref, x []float64) {
	dim := m.Dim()
	xa := make([]float64, dim)
	u := make([]float64, dim)
	m.Base.Map(ref, xa)
	m.Disp(xa, u)
	for i := range xa {
		x[i] = xa[i] + u[i]
	}
}

func (m *DeformedMapping) Jacobian(ref []float64, J *mat.Dense) {
	dim := m.Dim()
	xa := make([]float64, dim)
	m.Base.Map(ref, xa)
	G := mat.NewDense(dim, dim, nil)
	m.Grad(xa, G)
	for i := 0; i < dim; i++ {
		G.Set(i, i, G.At(i, i)+1)
	}
	J.Mul(G, m.Base.J)
}

// MappedPoint is a reference point together with its physical image and the
// local metric of the mapping
type MappedPoint struct {
	Ref    []float64
	X      []float64
	J      *mat.Dense
	JInv   *mat.Dense
	Det    float64   // |det J|
	Weight float64   // Reference weight times |det J|
	Normal []float64 // Physical unit normal, nil for volume points
}

// NewMappedPoint evaluates the mapping at ref with reference weight w
func NewMappedPoint(m Mapping, ref []float64, w float64) (*MappedPoint, error) {
	dim := m.Dim()
	mp := &MappedPoint{
		Ref:  append([]float64(nil), ref...),
		X:    make([]float64, dim),
		J:    mat.NewDense(dim, dim, nil),
		JInv: mat.NewDense(dim, dim, nil),
	}
	m.Map(ref, mp.X)
	m.Jacobian(ref, mp.J)
	det := mat.Det(mp.J)
	if math.Abs(det) < 1.e-300 {
		return nil, fmt.Errorf("singular Jacobian at %v: %w", ref, cuterr.ErrInvalidGeometry)
	}
	if err := mp.JInv.Inverse(mp.J); err != nil {
		return nil, fmt.Errorf("singular Jacobian at %v: %w", ref, cuterr.ErrInvalidGeometry)
	}
	mp.Det = math.Abs(det)
	mp.Weight = w * mp.Det
	return mp, nil
}

// MapNormal maps the reference normal nref through J⁻ᵀ. It returns the unit
// physical normal and the measure factor |det J|·|J⁻ᵀ nref|.
func MapNormal(mp *MappedPoint, nref []float64) (n []float64, factor float64) {
	dim := len(nref)
	n = make([]float64, dim)
	norm := 0.
	for i := 0; i < dim; i++ {
		v := 0.
		for d := 0; d < dim; d++ {
			v += mp.JInv.At(d, i) * nref[d]
		}
		n[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range n {
		n[i] /= norm
	}
	return n, mp.Det * norm
}

// FacetMap is the affine map from the reference element of a facet into the
// reference element of its parent
type FacetMap struct {
	Parent ElementGeometry
	Facet  int
	Geom   ElementGeometry // Facet geometry
	Origin []float64
	Jac    *mat.Dense // [dim × dim-1]
	Normal []float64  // Outward unit normal in parent reference coordinates
	Verts  [][]float64
}

// NewFacetMap builds the facet map of local facet lf of geom
func NewFacetMap(geom ElementGeometry, lf int) (*FacetMap, error) {
	facets := geom.Facets()
	if facets == nil || lf < 0 || lf >= len(facets) {
		return nil, fmt.Errorf("facet %d of %s: %w", lf, geom, cuterr.ErrUnsupported)
	}
	dim := geom.Dim()
	rv := geom.ReferenceVertices()
	fv := facets[lf]
	fm := &FacetMap{
		Parent: geom,
		Facet:  lf,
		Geom:   geom.FacetGeometry(),
		Origin: append([]float64(nil), rv[fv[0]]...),
		Jac:    mat.NewDense(dim, max(dim-1, 1), nil),
		Verts:  make([][]float64, len(fv)),
	}
	for i, v := range fv {
		fm.Verts[i] = rv[v]
	}
	for d := 1; d < len(fv); d++ {
		for i := 0; i < dim; i++ {
			fm.Jac.Set(i, d-1, 0.5*(rv[fv[d]][i]-rv[fv[0]][i]))
		}
	}
	fm.Normal = outwardNormal(rv, fv)
	return fm, nil
}

// Map sends the facet reference point fref into the parent reference element
func (fm *FacetMap) Map(fref, ref []float64) {
	dim := len(fm.Origin)
	for i := 0; i < dim; i++ {
		v := fm.Origin[i]
		for d := 0; d < len(fm.Verts)-1; d++ {
			v += fm.Jac.At(i, d) * (fref[d] + 1)
		}
		ref[i] = v
	}
}

// SurfaceMeasure returns sqrt(det(AᵀA)) for a dim × (dim-1) tangent matrix,
// the ratio of mapped to reference facet measure. Columns of A are tangents.
func SurfaceMeasure(A *mat.Dense) float64 {
	_, c := A.Dims()
	if c == 0 {
		return 1
	}
	var G mat.Dense
	G.Mul(A.T(), A)
	return math.Sqrt(math.Abs(mat.Det(&G)))
}

// outwardNormal returns the unit normal of the facet fv pointing away from
// the remaining vertex of the simplex
func outwardNormal(rv [][]float64, fv []int) []float64 {
	dim := len(rv[0])
	opp := -1
	for v := range rv {
		in := false
		for _, f := range fv {
			in = in || f == v
		}
		if !in {
			opp = v
			break
		}
	}
	w := make([]float64, dim)
	for i := range w {
		w[i] = rv[fv[0]][i] - rv[opp][i]
	}
	// Gram-Schmidt against the facet tangents
	var basis [][]float64
	for d := 1; d < len(fv); d++ {
		t := make([]float64, dim)
		for i := range t {
			t[i] = rv[fv[d]][i] - rv[fv[0]][i]
		}
		for _, b := range basis {
			p := dot(t, b)
			for i := range t {
				t[i] -= p * b[i]
			}
		}
		normalize(t)
		basis = append(basis, t)
	}
	for _, b := range basis {
		p := dot(w, b)
		for i := range w {
			w[i] -= p * b[i]
		}
	}
	normalize(w)
	return w
}

func dot(a, b []float64) (s float64) {
	for i := range a {
		s += a[i] * b[i]
	}
	return
}

func normalize(a []float64) {
	n := math.Sqrt(dot(a, a))
	for i := range a {
		a[i] /= n
	}
}
