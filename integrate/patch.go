package integrate

import (
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/quadrature"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	patchMaxIter = 200
	patchTol     = 1.e-12 // Relative to the element size
)

// PatchMapResult is the reference point of a physical point on a
// neighbouring element. Weight is the reference weight that maps to the
// physical weight passed to MapPatchPoint.
type PatchMapResult struct {
	Ref        []float64
	Weight     float64
	Converged  bool
	Iterations int
}

// MapPatchPoint inverts m at x by Newton iteration from the affine guess.
// When the iteration does not reach |m(ξ)-x| < 1e-12·h the affine guess is
// returned with Converged false.
func MapPatchPoint(m element.Mapping, affine *element.AffineMapping, x []float64, h, weight float64) PatchMapResult {
	dim := m.Dim()
	guess := make([]float64, dim)
	affine.InverseMap(x, guess)
	res := PatchMapResult{Ref: append([]float64(nil), guess...)}

	y := make([]float64, dim)
	r := mat.NewVecDense(dim, nil)
	J := mat.NewDense(dim, dim, nil)
	var delta mat.VecDense
	for it := 0; it <= patchMaxIter; it++ {
		m.Map(res.Ref, y)
		floats.SubTo(r.RawVector().Data, y, x)
		if floats.Norm(r.RawVector().Data, 2) < patchTol*h {
			res.Converged = true
			res.Iterations = it
			break
		}
		if it == patchMaxIter {
			break
		}
		m.Jacobian(res.Ref, J)
		if err := delta.SolveVec(J, r); err != nil {
			break
		}
		floats.Sub(res.Ref, delta.RawVector().Data)
	}
	if !res.Converged {
		logger.Warn("patch point mapping did not converge", slog.Any("x", x))
		copy(res.Ref, guess)
		res.Iterations = patchMaxIter
	}
	m.Jacobian(res.Ref, J)
	res.Weight = weight / math.Abs(mat.Det(J))
	return res
}

// FacetPatchIntegrator integrates a two-element form over the union of the
// two volume rules. Each element is evaluated on the other one through its
// polynomial extension.
type FacetPatchIntegrator[S Scalar] struct {
	Integrand  Integrand[S]
	ForceOrder int
	Batch      bool

	noBatch atomic.Bool
}

func NewFacetPatchIntegrator[S Scalar](in Integrand[S]) *FacetPatchIntegrator[S] {
	return &FacetPatchIntegrator[S]{Integrand: in, Batch: true}
}

func (pi *FacetPatchIntegrator[S]) CalcPatchMatrix(pc *PatchContext, ar *arena.Arena) ([]S, error) {
	m := pc.Mesh
	order := pi.ForceOrder
	if order <= 0 {
		order = 2 * max(pc.FE[0].Order(), pc.FE[1].Order())
	}
	qr, err := quadrature.Select(m.Geom, order)
	if err != nil {
		return nil, err
	}
	var pts []qpoint
	for s := 0; s < 2; s++ {
		o := 1 - s
		ks, ko := pc.Elems[s], pc.Elems[o]
		ms, mo := m.Mapping(ks), m.Mapping(ko)
		for i, p := range qr.Points {
			mps, err := element.NewMappedPoint(ms, p, qr.Weights[i])
			if err != nil {
				return nil, err
			}
			res := MapPatchPoint(mo, m.Affine(ko), mps.X, m.ElementSize(ko), mps.Weight)
			mpo, err := element.NewMappedPoint(mo, res.Ref, res.Weight)
			if err != nil {
				return nil, err
			}
			var pt qpoint
			pt.mp[s], pt.mp[o] = mps, mpo
			// both images carry the physical weight of the point
			pt.mp[o].Weight = mps.Weight
			pts = append(pts, pt)
		}
	}
	sd := twoSides(pc.FE[0], pc.FE[1])
	n := sd.ndof(sd.trial)
	out := make([]S, n*n)
	sym := symmetric(pi.Integrand, true)
	bt := batcher[S]{enabled: pi.Batch, failed: &pi.noBatch}
	if err := accumulateMatrix(pi.Integrand, pts, sd, out, n, sym, bt, ar); err != nil {
		return nil, err
	}
	return out, nil
}
