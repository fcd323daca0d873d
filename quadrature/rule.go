// Package quadrature provides Gauss rules on the bi-unit reference simplices
package quadrature

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/element/library/gonudg"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate/quad"
)

// Rule is a set of reference points and weights
type Rule struct {
	Points  [][]float64
	Weights []float64
}

func (r *Rule) Size() int { return len(r.Weights) }

// Sum returns the total weight, the measure of the integrated region
func (r *Rule) Sum() float64 { return floats.Sum(r.Weights) }

// Append adds the points of o to r
func (r *Rule) Append(o *Rule) {
	r.Points = append(r.Points, o.Points...)
	r.Weights = append(r.Weights, o.Weights...)
}

// Clone returns a deep copy
func (r *Rule) Clone() *Rule {
	c := &Rule{Points: make([][]float64, len(r.Points)), Weights: append([]float64(nil), r.Weights...)}
	for i, p := range r.Points {
		c.Points[i] = append([]float64(nil), p...)
	}
	return c
}

type ruleKey struct {
	geom  element.ElementGeometry
	order int
}

var (
	mu    sync.RWMutex
	rules = make(map[ruleKey]*Rule)
)

// Select returns a rule on geom exact for polynomials of degree order. The
// returned rule is shared and must not be modified.
func Select(geom element.ElementGeometry, order int) (*Rule, error) {
	order = max(order, 0)
	key := ruleKey{geom, order}
	mu.RLock()
	r, ok := rules[key]
	mu.RUnlock()
	if ok {
		return r, nil
	}
	var err error
	switch geom {
	case element.Point:
		r = &Rule{Points: [][]float64{{}}, Weights: []float64{1}}
	case element.Line:
		r = Segment(order, -1, 1)
		for i, p := range r.Points {
			r.Points[i] = []float64{p[0]}
		}
	case element.Tri:
		r = collapsedTri(order/2 + 1)
	case element.Tet:
		r = collapsedTet(order/2 + 1)
	default:
		err = fmt.Errorf("quadrature on %s: %w", geom, cuterr.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}
	mu.Lock()
	rules[key] = r
	mu.Unlock()
	return r, nil
}

// Segment returns the Gauss-Legendre rule on [a,b] exact to degree order
func Segment(order int, a, b float64) *Rule {
	n := max(order, 0)/2 + 1
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, a, b)
	r := &Rule{Points: make([][]float64, n), Weights: w}
	for i := range x {
		r.Points[i] = []float64{x[i]}
	}
	return r
}

// collapsedTri is the Duffy-collapsed Gauss-Jacobi rule with n points per
// direction
func collapsedTri(n int) *Rule {
	xa, wa := gonudg.JacobiGQ(0, 0, n-1)
	xb, wb := gonudg.JacobiGQ(1, 0, n-1)
	r := &Rule{}
	for i := range xa {
		for j := range xb {
			a, b := xa[i], xb[j]
			r.Points = append(r.Points, []float64{(1+a)*(1-b)/2 - 1, b})
			r.Weights = append(r.Weights, wa[i]*wb[j]*0.5)
		}
	}
	return r
}

func collapsedTet(n int) *Rule {
	xa, wa := gonudg.JacobiGQ(0, 0, n-1)
	xb, wb := gonudg.JacobiGQ(1, 0, n-1)
	xc, wc := gonudg.JacobiGQ(2, 0, n-1)
	r := &Rule{}
	for i := range xa {
		for j := range xb {
			for k := range xc {
				a, b, c := xa[i], xb[j], xc[k]
				r.Points = append(r.Points, []float64{
					(1+a)*(1-b)*(1-c)/4 - 1,
					(1+b)*(1-c)/2 - 1,
					c,
				})
				r.Weights = append(r.Weights, wa[i]*wb[j]*wc[k]/8)
			}
		}
	}
	return r
}

// SimplexMap returns the affine map from the reference simplex onto the
// simplex with vertices verts (given in the coordinates of the parent
// reference element) and the ratio of their measures
func SimplexMap(verts [][]float64) (apply func(ref, x []float64), det float64) {
	d := len(verts) - 1
	n := len(verts[0])
	J := make([]float64, n*d) // row-major n × d
	for c := 0; c < d; c++ {
		for i := 0; i < n; i++ {
			J[i*d+c] = 0.5 * (verts[c+1][i] - verts[0][i])
		}
	}
	apply = func(ref, x []float64) {
		for i := 0; i < n; i++ {
			v := verts[0][i]
			for c := 0; c < d; c++ {
				v += J[i*d+c] * (ref[c] + 1)
			}
			x[i] = v
		}
	}
	switch {
	case d == 0:
		det = 1
	case d == n:
		det = math.Abs(detSquare(J, n))
	default:
		// Gram determinant of the tangents
		G := make([]float64, d*d)
		for a := 0; a < d; a++ {
			for b := 0; b < d; b++ {
				for i := 0; i < n; i++ {
					G[a*d+b] += J[i*d+a] * J[i*d+b]
				}
			}
		}
		det = math.Sqrt(math.Abs(detSquare(G, d)))
	}
	return
}

func detSquare(A []float64, n int) float64 {
	switch n {
	case 1:
		return A[0]
	case 2:
		return A[0]*A[3] - A[1]*A[2]
	case 3:
		return A[0]*(A[4]*A[8]-A[5]*A[7]) -
			A[1]*(A[3]*A[8]-A[5]*A[6]) +
			A[2]*(A[3]*A[7]-A[4]*A[6])
	}
	panic(fmt.Sprintf("determinant of %d×%d", n, n))
}

// MapToSimplex maps a reference rule onto the sub-simplex verts, scaling the
// weights by the measure ratio
func MapToSimplex(rule *Rule, verts [][]float64) *Rule {
	apply, det := SimplexMap(verts)
	out := &Rule{Points: make([][]float64, rule.Size()), Weights: make([]float64, rule.Size())}
	n := len(verts[0])
	for i, p := range rule.Points {
		x := make([]float64, n)
		apply(p, x)
		out.Points[i] = x
		out.Weights[i] = det * rule.Weights[i]
	}
	return out
}
