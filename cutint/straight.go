package cutint

import (
	"math"

	"github.com/notargets/CutFEM/element"
	"gonum.org/v1/gonum/mat"
)

// pieces is the decomposition of one simplex cell by the linear interpolant
// of its vertex values
type pieces struct {
	vol       [2][][][]float64 // Sub-simplices per side
	iface     [][][]float64    // Interface simplices, one dimension lower
	normal    []float64
	crossings [][]float64
}

func side(v float64) element.DomainType {
	if v < 0 {
		return element.NEG
	}
	return element.POS
}

func crossing(a, b []float64, pa, pb float64) []float64 {
	t := pa / (pa - pb)
	p := make([]float64, len(a))
	for i := range a {
		p[i] = a[i] + t*(b[i]-a[i])
	}
	return p
}

// gradient returns the gradient of the linear interpolant of phi over verts
func gradient(verts [][]float64, phi []float64) []float64 {
	d := len(verts) - 1
	E := mat.NewDense(d, d, nil)
	rhs := mat.NewVecDense(d, nil)
	for i := 1; i <= d; i++ {
		for c := 0; c < d; c++ {
			E.Set(i-1, c, verts[i][c]-verts[0][c])
		}
		rhs.SetVec(i-1, phi[i]-phi[0])
	}
	var g mat.VecDense
	if err := g.SolveVec(E, rhs); err != nil {
		return make([]float64, d)
	}
	out := make([]float64, d)
	n := 0.
	for c := range out {
		out[c] = g.AtVec(c)
		n += out[c] * out[c]
	}
	n = math.Sqrt(n)
	for c := range out {
		out[c] /= n
	}
	return out
}

// straightCut decomposes the simplex verts with nonzero vertex values phi of
// both signs
func straightCut(verts [][]float64, phi []float64) *pieces {
	p := &pieces{normal: gradient(verts, phi)}
	cross := func(i, j int) []float64 {
		x := crossing(verts[i], verts[j], phi[i], phi[j])
		p.crossings = append(p.crossings, x)
		return x
	}
	nneg := 0
	for _, v := range phi {
		if v < 0 {
			nneg++
		}
	}
	switch len(verts) {
	case 2:
		x := cross(0, 1)
		p.vol[side(phi[0])] = append(p.vol[side(phi[0])], [][]float64{verts[0], x})
		p.vol[side(phi[1])] = append(p.vol[side(phi[1])], [][]float64{x, verts[1]})
		p.iface = append(p.iface, [][]float64{x})
	case 3:
		i := lone(phi, nneg == 1)
		j, k := others(3, i)
		pij, pik := cross(i, j), cross(i, k)
		si := side(phi[i])
		so := si.Opposite()
		p.vol[si] = append(p.vol[si], [][]float64{verts[i], pij, pik})
		p.vol[so] = append(p.vol[so],
			[][]float64{pij, verts[j], verts[k]},
			[][]float64{pij, verts[k], pik})
		p.iface = append(p.iface, [][]float64{pij, pik})
	case 4:
		if nneg == 2 {
			p.cut22(verts, phi, cross)
			break
		}
		i := lone(phi, nneg == 1)
		j, k, l := others3(i)
		pij, pik, pil := cross(i, j), cross(i, k), cross(i, l)
		si := side(phi[i])
		so := si.Opposite()
		p.vol[si] = append(p.vol[si], [][]float64{verts[i], pij, pik, pil})
		p.vol[so] = append(p.vol[so], prism(
			[3][]float64{pij, pik, pil},
			[3][]float64{verts[j], verts[k], verts[l]})...)
		p.iface = append(p.iface, [][]float64{pij, pik, pil})
	}
	return p
}

func (p *pieces) cut22(verts [][]float64, phi []float64, cross func(i, j int) []float64) {
	// i,j share a sign, k,l the other
	i := 0
	var j, k, l int
	var rest []int
	for n := 1; n < 4; n++ {
		if side(phi[n]) == side(phi[i]) {
			j = n
		} else {
			rest = append(rest, n)
		}
	}
	k, l = rest[0], rest[1]
	pik, pil := cross(i, k), cross(i, l)
	pjk, pjl := cross(j, k), cross(j, l)
	sij := side(phi[i])
	skl := sij.Opposite()
	p.vol[sij] = append(p.vol[sij], prism(
		[3][]float64{verts[i], pik, pil},
		[3][]float64{verts[j], pjk, pjl})...)
	p.vol[skl] = append(p.vol[skl], prism(
		[3][]float64{verts[k], pik, pjk},
		[3][]float64{verts[l], pil, pjl})...)
	p.iface = append(p.iface,
		[][]float64{pik, pil, pjl},
		[][]float64{pik, pjl, pjk})
}

// prism splits the prism with bottom a and top b, a[m] joined to b[m], into
// three tetrahedra
func prism(a, b [3][]float64) [][][]float64 {
	return [][][]float64{
		{a[0], a[1], a[2], b[0]},
		{a[1], a[2], b[0], b[1]},
		{a[2], b[0], b[1], b[2]},
	}
}

// lone returns the vertex whose sign differs from all others
func lone(phi []float64, negLone bool) int {
	for i, v := range phi {
		if (v < 0) == negLone {
			return i
		}
	}
	return 0
}

func others(n, i int) (j, k int) {
	var o []int
	for m := 0; m < n; m++ {
		if m != i {
			o = append(o, m)
		}
	}
	return o[0], o[1]
}

func others3(i int) (j, k, l int) {
	var o []int
	for m := 0; m < 4; m++ {
		if m != i {
			o = append(o, m)
		}
	}
	return o[0], o[1], o[2]
}
