package integrate

import (
	"errors"
	"sync/atomic"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"gonum.org/v1/gonum/mat"
)

// BlockSize is the number of quadrature points evaluated per batch
const BlockSize = 16

// qpoint is one quadrature point seen from each side. mp[0] carries the
// physical weight and normal.
type qpoint struct {
	mp [2]*element.MappedPoint
}

// sides holds the elements addressed by plain and Other proxies and the dof
// offset of each side
type sides struct {
	trial, test       [2]element.FiniteElement
	trialOff, testOff [2]int
}

func oneSide(trial, test element.FiniteElement) sides {
	return sides{trial: [2]element.FiniteElement{trial}, test: [2]element.FiniteElement{test}}
}

func twoSides(fe0, fe1 element.FiniteElement) sides {
	n0 := fe0.NDof()
	return sides{
		trial: [2]element.FiniteElement{fe0, fe1}, test: [2]element.FiniteElement{fe0, fe1},
		trialOff: [2]int{0, n0}, testOff: [2]int{0, n0},
	}
}

func (s sides) ndof(fes [2]element.FiniteElement) int {
	n := 0
	for _, fe := range fes {
		if fe != nil {
			n += fe.NDof()
		}
	}
	return n
}

// opBlock is the operator matrix of one proxy at one point, [dim × n] at
// dof offset lo
type opBlock[S Scalar] struct {
	vals   []S
	dim, n int
	lo     int
}

func evalProxy[S Scalar](p *Proxy, fes [2]element.FiniteElement, off [2]int,
	pt qpoint, ar *arena.Arena) (opBlock[S], error) {
	side := 0
	if p.Other {
		side = 1
	}
	ob := opBlock[S]{dim: p.Op.Dim()}
	fe := fes[side]
	if fe == nil || pt.mp[side] == nil {
		return ob, cuterr.ErrNoNeighbor
	}
	sub, lo, err := blockOf(p, fe)
	if err != nil {
		return ob, err
	}
	ob.lo = off[side] + lo
	ob.n = sub.NDof()
	if ob.n == 0 {
		return ob, nil
	}
	buf := alloc[float64](ar, ob.dim*ob.n)
	if err := p.Op.CalcMatrix(sub, pt.mp[side], mat.NewDense(ob.dim, ob.n, buf)); err != nil {
		return ob, err
	}
	ob.vals = alloc[S](ar, len(buf))
	for i, v := range buf {
		ob.vals[i] = fromReal[S](v)
	}
	return ob, nil
}

func mark(ar *arena.Arena) arena.Scope {
	if ar == nil {
		return arena.Scope{}
	}
	return ar.Mark()
}

func release(ar *arena.Arena, s arena.Scope) {
	if ar != nil {
		ar.Release(s)
	}
}

// batcher evaluates point values in blocks and switches to the scalar path
// for good after the first ErrNoBatch
type batcher[S Scalar] struct {
	enabled bool
	failed  *atomic.Bool
}

func (b batcher[S]) evaluate(mps []*element.MappedPoint, out []S, per int,
	batch func([]*element.MappedPoint, []S) error, point func(*element.MappedPoint, []S)) error {
	if b.enabled && !b.failed.Load() {
		err := batch(mps, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, cuterr.ErrNoBatch) {
			return err
		}
		b.failed.Store(true)
		logger.Debug("batched evaluation unavailable, using scalar path")
	}
	for i, mp := range mps {
		point(mp, out[i*per:(i+1)*per])
	}
	return nil
}

// symmetric reports whether the upper triangle of the element matrix of in
// determines the whole matrix
func symmetric[S Scalar](in Integrand[S], sameFE bool) bool {
	trial, test := in.TrialProxies(), in.TestProxies()
	if !sameFE || len(trial) != len(test) {
		return false
	}
	for i := range trial {
		if !trial[i].sameShape(test[i]) {
			return false
		}
	}
	d, ok := in.(interface{ Diagonal() bool })
	return ok && d.Diagonal()
}

// accumulateMatrix adds Σ_q w_q testᵀ D_q trial into out, [ntest × ntrial]
func accumulateMatrix[S Scalar](in Integrand[S], pts []qpoint, sd sides, out []S, ntrial int,
	sym bool, bt batcher[S], ar *arena.Arena) error {
	trial, test := in.TrialProxies(), in.TestProxies()
	ot, ov := offsets(trial), offsets(test)
	Dt := ot[len(trial)]
	per := Dt * ov[len(test)]
	nz := in.Nonzero()
	var zero S

	for start := 0; start < len(pts); start += BlockSize {
		end := min(start+BlockSize, len(pts))
		scope := mark(ar)
		mps := alloc[*element.MappedPoint](ar, end-start)
		for i := range mps {
			mps[i] = pts[start+i].mp[0]
		}
		D := alloc[S](ar, len(mps)*per)
		if err := bt.evaluate(mps, D, per, in.EvaluateBatch, in.EvaluatePoint); err != nil {
			release(ar, scope)
			return err
		}
		tb := make([]opBlock[S], len(test))
		rb := make([]opBlock[S], len(trial))
		for q := start; q < end; q++ {
			var err error
			for l, p := range test {
				if tb[l], err = evalProxy[S](p, sd.test, sd.testOff, pts[q], ar); err != nil {
					release(ar, scope)
					return err
				}
			}
			for k, p := range trial {
				if rb[k], err = evalProxy[S](p, sd.trial, sd.trialOff, pts[q], ar); err != nil {
					release(ar, scope)
					return err
				}
			}
			Dq := D[(q-start)*per : (q-start+1)*per]
			w := fromReal[S](pts[q].mp[0].Weight)
			for l, bl := range tb {
				for k, bk := range rb {
					if !nz[l][k] || bl.n == 0 || bk.n == 0 {
						continue
					}
					for a := 0; a < bl.dim; a++ {
						for b := 0; b < bk.dim; b++ {
							d := Dq[(ov[l]+a)*Dt+ot[k]+b]
							if d == zero {
								continue
							}
							d *= w
							for i := 0; i < bl.n; i++ {
								ci := d * bl.vals[a*bl.n+i]
								if ci == zero {
									continue
								}
								row := out[(bl.lo+i)*ntrial : (bl.lo+i+1)*ntrial]
								j0 := 0
								if sym {
									j0 = max(0, bl.lo+i-bk.lo)
								}
								bv := bk.vals[b*bk.n : (b+1)*bk.n]
								for j := j0; j < bk.n; j++ {
									row[bk.lo+j] += ci * bv[j]
								}
							}
						}
					}
				}
			}
		}
		release(ar, scope)
	}
	if sym {
		for i := 0; i < ntrial; i++ {
			for j := i + 1; j < ntrial; j++ {
				out[j*ntrial+i] = out[i*ntrial+j]
			}
		}
	}
	return nil
}

// accumulateVector adds Σ_q w_q testᵀ f_q into out
func accumulateVector[S Scalar](in LinearIntegrand[S], pts []qpoint, sd sides, out []S,
	bt batcher[S], ar *arena.Arena) error {
	test := in.TestProxies()
	ov := offsets(test)
	per := ov[len(test)]
	for start := 0; start < len(pts); start += BlockSize {
		end := min(start+BlockSize, len(pts))
		scope := mark(ar)
		mps := alloc[*element.MappedPoint](ar, end-start)
		for i := range mps {
			mps[i] = pts[start+i].mp[0]
		}
		F := alloc[S](ar, len(mps)*per)
		if err := bt.evaluate(mps, F, per, in.EvaluateBatch, in.EvaluatePoint); err != nil {
			release(ar, scope)
			return err
		}
		for q := start; q < end; q++ {
			w := fromReal[S](pts[q].mp[0].Weight)
			Fq := F[(q-start)*per : (q-start+1)*per]
			for l, p := range test {
				bl, err := evalProxy[S](p, sd.test, sd.testOff, pts[q], ar)
				if err != nil {
					release(ar, scope)
					return err
				}
				for a := 0; a < bl.dim; a++ {
					f := Fq[ov[l]+a] * w
					for i := 0; i < bl.n; i++ {
						out[bl.lo+i] += f * bl.vals[a*bl.n+i]
					}
				}
			}
		}
		release(ar, scope)
	}
	return nil
}
