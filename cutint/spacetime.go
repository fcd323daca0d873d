package cutint

import (
	"fmt"

	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/quadrature"
)

// SpaceTimeRule is a tensor rule on a time slab: every time point carries the
// spatial cut rule of the level set frozen at that time
type SpaceTimeRule struct {
	Interval [2]float64
	Times    []float64 // Reference times in [0,1]
	Weights  []float64 // Reference time weights, summing to 1
	Slices   []*CutQuadratureRule
}

// Type is IF when any slice is cut or the slices disagree
func (r *SpaceTimeRule) Type() element.DomainType {
	if len(r.Slices) == 0 {
		return element.IF
	}
	dt := r.Slices[0].Type
	for _, s := range r.Slices[1:] {
		if s.Type != dt {
			return element.IF
		}
	}
	return dt
}

// PhysicalTime maps a reference time in [0,1] into the slab
func (r *SpaceTimeRule) PhysicalTime(tau float64) float64 {
	return r.Interval[0] + tau*(r.Interval[1]-r.Interval[0])
}

// Measure returns the space-time reference measure of dt
func (r *SpaceTimeRule) Measure(dt element.DomainType) (m float64) {
	for i, s := range r.Slices {
		m += r.Weights[i] * s.Measure(dt)
	}
	return
}

// BuildSpaceTime builds the rule of geom over the time slab of the options
func (b *Builder) BuildSpaceTime(geom element.ElementGeometry, tl levelset.TimeLocal) (*SpaceTimeRule, error) {
	out := &SpaceTimeRule{Interval: b.TimeInterval}
	nslab := 1 << max(b.RefLvlTime, 0)
	for s := 0; s < nslab; s++ {
		seg := quadrature.Segment(b.TimeOrder, float64(s)/float64(nslab), float64(s+1)/float64(nslab))
		for i, p := range seg.Points {
			tau := p[0]
			slice, err := b.Build(geom, levelset.FrozenLocal(tl, out.PhysicalTime(tau)))
			if err != nil {
				return nil, fmt.Errorf("time slice %g: %w", tau, err)
			}
			out.Times = append(out.Times, tau)
			out.Weights = append(out.Weights, seg.Weights[i])
			out.Slices = append(out.Slices, slice)
		}
	}
	return out, nil
}
