package element

import "fmt"

type Dimensionality uint8

const (
	D1 Dimensionality = iota
	D2
	D3
)

// Int returns the dimension as an integer
func (d Dimensionality) Int() int { return int(d) + 1 }

type ElementGeometry uint8

const (
	Tet ElementGeometry = iota
	Hex
	Prism
	Pyramid
	Tri
	Rectangle
	Line
	Point
)

func (g ElementGeometry) String() string {
	switch g {
	case Tet:
		return "Tet"
	case Hex:
		return "Hex"
	case Prism:
		return "Prism"
	case Pyramid:
		return "Pyramid"
	case Tri:
		return "Tri"
	case Rectangle:
		return "Rectangle"
	case Line:
		return "Line"
	case Point:
		return "Point"
	}
	return fmt.Sprintf("ElementGeometry(%d)", uint8(g))
}

// Dim returns the topological dimension
func (g ElementGeometry) Dim() int {
	switch g {
	case Tet, Hex, Prism, Pyramid:
		return 3
	case Tri, Rectangle:
		return 2
	case Line:
		return 1
	}
	return 0
}

// IsSimplex reports whether cut rules and Lagrange elements exist for g
func (g ElementGeometry) IsSimplex() bool {
	return g == Point || g == Line || g == Tri || g == Tet
}

// NumVertices returns the vertex count of the reference element
func (g ElementGeometry) NumVertices() int {
	switch g {
	case Point:
		return 1
	case Line:
		return 2
	case Tri:
		return 3
	case Rectangle, Tet:
		return 4
	case Pyramid:
		return 5
	case Prism:
		return 6
	case Hex:
		return 8
	}
	return 0
}

// Bi-unit reference simplices, as used by the nodal DG operators
var (
	refPoint = [][]float64{{}}
	refLine  = [][]float64{{-1}, {1}}
	refTri   = [][]float64{{-1, -1}, {1, -1}, {-1, 1}}
	refTet   = [][]float64{{-1, -1, -1}, {1, -1, -1}, {-1, 1, -1}, {-1, -1, 1}}

	lineEdges = [][]int{{0, 1}}
	triEdges  = [][]int{{0, 1}, {1, 2}, {2, 0}}
	tetEdges  = [][]int{{0, 1}, {1, 2}, {2, 0}, {0, 3}, {1, 3}, {2, 3}}

	lineFacets = [][]int{{0}, {1}}
	triFacets  = triEdges
	tetFacets  = [][]int{
		{0, 1, 2}, // Face 0
		{0, 1, 3}, // Face 1
		{1, 2, 3}, // Face 2
		{0, 2, 3}, // Face 3
	}
)

// ReferenceVertices returns the vertices of the reference element. The
// returned slices must not be modified.
func (g ElementGeometry) ReferenceVertices() [][]float64 {
	switch g {
	case Point:
		return refPoint
	case Line:
		return refLine
	case Tri:
		return refTri
	case Tet:
		return refTet
	}
	return nil
}

// ReferenceMeasure returns the length, area or volume of the reference element
func (g ElementGeometry) ReferenceMeasure() float64 {
	switch g {
	case Point:
		return 1
	case Line:
		return 2
	case Tri:
		return 2
	case Tet:
		return 4. / 3.
	case Rectangle:
		return 4
	case Hex:
		return 8
	}
	return 0
}

// Edges returns the local vertex pairs of each edge
func (g ElementGeometry) Edges() [][]int {
	switch g {
	case Line:
		return lineEdges
	case Tri:
		return triEdges
	case Tet:
		return tetEdges
	}
	return nil
}

// Facets returns the local vertex lists of each codimension-1 entity
func (g ElementGeometry) Facets() [][]int {
	switch g {
	case Line:
		return lineFacets
	case Tri:
		return triFacets
	case Tet:
		return tetFacets
	}
	return nil
}

// FacetGeometry returns the geometry of the facets of g
func (g ElementGeometry) FacetGeometry() ElementGeometry {
	switch g {
	case Line:
		return Point
	case Tri:
		return Line
	case Tet:
		return Tri
	}
	return Point
}

// SimplexOfDim returns the simplex geometry of dimension d
func SimplexOfDim(d int) (ElementGeometry, error) {
	switch d {
	case 0:
		return Point, nil
	case 1:
		return Line, nil
	case 2:
		return Tri, nil
	case 3:
		return Tet, nil
	}
	return Point, fmt.Errorf("no simplex of dimension %d", d)
}

// DomainType labels a region relative to the zero level set
type DomainType uint8

const (
	NEG DomainType = iota
	POS
	IF
)

func (dt DomainType) String() string {
	switch dt {
	case NEG:
		return "NEG"
	case POS:
		return "POS"
	case IF:
		return "IF"
	}
	return fmt.Sprintf("DomainType(%d)", uint8(dt))
}

// Opposite swaps NEG and POS. IF is returned unchanged.
func (dt DomainType) Opposite() DomainType {
	switch dt {
	case NEG:
		return POS
	case POS:
		return NEG
	}
	return dt
}

// SignOf classifies a scalar value
func SignOf(v float64) DomainType {
	if v < 0 {
		return NEG
	}
	if v > 0 {
		return POS
	}
	return IF
}
