package integrate

import (
	"sync/atomic"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/element"
	"gonum.org/v1/gonum/mat"
)

// CutBilinearIntegrator integrates a bilinear form over the Domain part of
// one element
type CutBilinearIntegrator[S Scalar] struct {
	Integrand  Integrand[S]
	Domain     element.DomainType
	ForceOrder int // Used when positive
	SubdivLvl  int // Subdivision depth of rules built from a level set
	Batch      bool

	noBatch atomic.Bool
}

func NewCutBilinearIntegrator[S Scalar](in Integrand[S], dt element.DomainType) *CutBilinearIntegrator[S] {
	return &CutBilinearIntegrator[S]{Integrand: in, Domain: dt, Batch: true}
}

// Batched reports whether the batched path is still in use
func (bi *CutBilinearIntegrator[S]) Batched() bool { return bi.Batch && !bi.noBatch.Load() }

// Order returns the rule order used for the pair of elements
func (bi *CutBilinearIntegrator[S]) Order(trial, test element.FiniteElement) int {
	if bi.ForceOrder > 0 {
		return bi.ForceOrder
	}
	o := trial.Order() + test.Order()
	if trial.Geometry().IsSimplex() {
		o -= maxDiffOrder(bi.Integrand.TrialProxies()) + maxDiffOrder(bi.Integrand.TestProxies())
	}
	return max(o, 0)
}

// CalcElementMatrix returns the [ntest × ntrial] element matrix row-major
func (bi *CutBilinearIntegrator[S]) CalcElementMatrix(ec *ElementContext, ar *arena.Arena) ([]S, error) {
	if err := ec.check(); err != nil {
		return nil, err
	}
	trial, test := ec.TrialFE, ec.testFE()
	pts, err := volumePoints(ec, bi.Order(trial, test), bi.SubdivLvl, bi.Domain)
	if err != nil {
		return nil, err
	}
	ntrial, ntest := trial.NDof(), test.NDof()
	out := make([]S, ntest*ntrial)
	sym := symmetric(bi.Integrand, trial == test)
	bt := batcher[S]{enabled: bi.Batch, failed: &bi.noBatch}
	if err := accumulateMatrix(bi.Integrand, pts, oneSide(trial, test), out, ntrial, sym, bt, ar); err != nil {
		return nil, err
	}
	return out, nil
}

func denseOf(vals []float64, r, c int) *mat.Dense {
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(r, c, vals)
}

// ElementMatrix is CalcElementMatrix as a gonum matrix
func ElementMatrix(bi *CutBilinearIntegrator[float64], ec *ElementContext, ar *arena.Arena) (*mat.Dense, error) {
	vals, err := bi.CalcElementMatrix(ec, ar)
	if err != nil {
		return nil, err
	}
	return denseOf(vals, ec.testFE().NDof(), ec.TrialFE.NDof()), nil
}

func ElementMatrixComplex(bi *CutBilinearIntegrator[complex128], ec *ElementContext, ar *arena.Arena) (*mat.CDense, error) {
	vals, err := bi.CalcElementMatrix(ec, ar)
	if err != nil {
		return nil, err
	}
	r, c := ec.testFE().NDof(), ec.TrialFE.NDof()
	if r == 0 || c == 0 {
		return &mat.CDense{}, nil
	}
	return mat.NewCDense(r, c, vals), nil
}

// CutLinearIntegrator integrates a linear form over the Domain part of one
// element
type CutLinearIntegrator[S Scalar] struct {
	Integrand  LinearIntegrand[S]
	Domain     element.DomainType
	ForceOrder int
	SubdivLvl  int
	Batch      bool

	noBatch atomic.Bool
}

func NewCutLinearIntegrator[S Scalar](in LinearIntegrand[S], dt element.DomainType) *CutLinearIntegrator[S] {
	return &CutLinearIntegrator[S]{Integrand: in, Domain: dt, Batch: true}
}

func (li *CutLinearIntegrator[S]) Batched() bool { return li.Batch && !li.noBatch.Load() }

func (li *CutLinearIntegrator[S]) Order(test element.FiniteElement) int {
	if li.ForceOrder > 0 {
		return li.ForceOrder
	}
	return 2 * test.Order()
}

// CalcElementVector returns the element vector of the test element
func (li *CutLinearIntegrator[S]) CalcElementVector(ec *ElementContext, ar *arena.Arena) ([]S, error) {
	if err := ec.check(); err != nil {
		return nil, err
	}
	test := ec.testFE()
	pts, err := volumePoints(ec, li.Order(test), li.SubdivLvl, li.Domain)
	if err != nil {
		return nil, err
	}
	out := make([]S, test.NDof())
	bt := batcher[S]{enabled: li.Batch, failed: &li.noBatch}
	if err := accumulateVector(li.Integrand, pts, oneSide(nil, test), out, bt, ar); err != nil {
		return nil, err
	}
	return out, nil
}
