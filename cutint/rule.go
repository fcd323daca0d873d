// Package cutint builds quadrature rules restricted to the negative and
// positive parts of a cut reference element and to its interface.
package cutint

import (
	"log/slog"

	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/quadrature"
	"gonum.org/v1/gonum/floats"
)

var logger = slog.Default().With(slog.String("component", "cutint"))

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l.With(slog.String("component", "cutint")) }

// Options controls the resolution of the cut rules
type Options struct {
	Order        int        // Polynomial degree integrated exactly on every piece
	SubdivLvl    int        // 0: straight cut of the vertex values, >0: recursive subdivision depth
	RefLvlSpace  int        // Uniform refinements applied before cutting
	PerturbZeros bool       // Perturb exact-zero vertex values instead of failing
	ZeroTol      float64    // Relative size of the perturbation
	TimeInterval [2]float64 // Physical time slab for space-time rules
	RefLvlTime   int        // The slab is split into 2^RefLvlTime pieces
	TimeOrder    int
}

func DefaultOptions() Options {
	return Options{
		Order:        2,
		ZeroTol:      1.e-12,
		TimeInterval: [2]float64{0, 1},
		TimeOrder:    2,
	}
}

// InterfaceRule is a rule on the zero level set. Weights are in reference
// measure and Normals are the unit reference normals pointing from NEG to POS.
type InterfaceRule struct {
	Points  [][]float64
	Weights []float64
	Normals [][]float64
}

func (ir *InterfaceRule) Size() int    { return len(ir.Weights) }
func (ir *InterfaceRule) Sum() float64 { return floats.Sum(ir.Weights) }

// CutQuadratureRule is the composite rule of one element
type CutQuadratureRule struct {
	Geometry  element.ElementGeometry
	Type      element.DomainType
	Volume    [2]*quadrature.Rule // Indexed by NEG and POS
	Interface InterfaceRule
	Crossings [][]float64 // Edge crossings of the straight cuts

	// Facet is set for rules built on a facet of a parent element; the
	// points are then facet reference coordinates
	Facet *element.FacetMap
}

func newRule(geom element.ElementGeometry) *CutQuadratureRule {
	return &CutQuadratureRule{
		Geometry: geom,
		Volume:   [2]*quadrature.Rule{{}, {}},
	}
}

// Measure returns the reference measure of the region dt
func (r *CutQuadratureRule) Measure(dt element.DomainType) float64 {
	if dt == element.IF {
		return r.Interface.Sum()
	}
	return r.Volume[dt].Sum()
}

// Rule returns the volume rule of NEG or POS, or the interface points and
// weights for IF
func (r *CutQuadratureRule) Rule(dt element.DomainType) *quadrature.Rule {
	if dt == element.IF {
		return &quadrature.Rule{Points: r.Interface.Points, Weights: r.Interface.Weights}
	}
	return r.Volume[dt]
}

// MapInterface maps the interface rule through m. The returned weights are
// physical interface measure and the normals are physical unit normals.
func (r *CutQuadratureRule) MapInterface(m element.Mapping) ([]*element.MappedPoint, error) {
	out := make([]*element.MappedPoint, r.Interface.Size())
	for i, p := range r.Interface.Points {
		mp, err := element.NewMappedPoint(m, p, r.Interface.Weights[i])
		if err != nil {
			return nil, err
		}
		n, factor := element.MapNormal(mp, r.Interface.Normals[i])
		mp.Weight = r.Interface.Weights[i] * factor
		mp.Normal = n
		out[i] = mp
	}
	return out, nil
}
