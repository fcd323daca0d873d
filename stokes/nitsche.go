// Package stokes holds the Nitsche coupling of extended Stokes elements
// across the interface.
package stokes

import (
	"fmt"
	"math"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/xfem"
	"gonum.org/v1/gonum/mat"
)

// NitscheIntegrator builds the symmetric Nitsche terms of a two-phase Stokes
// problem with viscosities AlphaNeg and AlphaPos. Only the interface rule of
// the cut velocity element is used.
type NitscheIntegrator struct {
	AlphaNeg, AlphaPos func(x []float64) float64
	Lambda             float64
}

const kappaNeg, kappaPos = 0.5, 0.5

type blockRange struct {
	base, x int // Start of the base and extended dof ranges
	nb, nx  int
}

func rangesOf(fe *element.CompoundElement, dim int) ([]blockRange, []*xfem.XStdElement, error) {
	if fe.NBlocks() != dim+1 {
		return nil, nil, fmt.Errorf("%d blocks for a %d-D Stokes element: %w", fe.NBlocks(), dim, cuterr.ErrUnsupported)
	}
	ranges := make([]blockRange, dim+1)
	blocks := make([]*xfem.XStdElement, dim+1)
	for b := range blocks {
		xb, ok := fe.Block(b).(*xfem.XStdElement)
		if !ok {
			return nil, nil, fmt.Errorf("block %d is a %s element: %w", b, fe.Block(b).Kind(), cuterr.ErrUnsupported)
		}
		lo, _ := fe.Range(b)
		nb := xb.Base.NDof()
		ranges[b] = blockRange{base: lo, x: lo + nb, nb: nb, nx: xb.X.NDof()}
		blocks[b] = xb
	}
	return ranges, blocks, nil
}

// CalcElementMatrix returns the element matrix of fe, which holds dim
// velocity blocks followed by one pressure block, each base ⊕ extension.
func (ni *NitscheIntegrator) CalcElementMatrix(fe *element.CompoundElement, mapping element.Mapping,
	ar *arena.Arena) (*mat.Dense, error) {
	dim := mapping.Dim()
	ranges, blocks, err := rangesOf(fe, dim)
	if err != nil {
		return nil, err
	}
	if ar == nil {
		ar = arena.New()
	}
	N := fe.NDof()
	elmat := mat.NewDense(N, N, nil)
	ux := blocks[0].XFE()
	if ux == nil || ux.NDof() == 0 {
		return elmat, nil
	}
	if ux.Rule == nil {
		return nil, fmt.Errorf("x velocity without a cut rule: %w", cuterr.ErrUnsupported)
	}
	px := blocks[dim].XFE()
	ubase := blocks[0].Base
	pbase := blocks[dim].Base
	p := float64(ubase.Order())

	mps, err := ux.Rule.MapInterface(mapping)
	if err != nil {
		return nil, err
	}
	if len(mps) == 0 {
		return elmat, nil
	}
	h, err := elementSize(mapping)
	if err != nil {
		return nil, err
	}
	penalty := ni.Lambda * (p + 1) * p / h

	nu, np := ubase.NDof(), pbase.NDof()
	var nc, ns mat.Dense
	for _, mp := range mps {
		scope := ar.Mark()
		aNeg, aPos := ni.AlphaNeg(mp.X), ni.AlphaPos(mp.X)
		bmat := mat.NewDense(N, dim, arena.Alloc[float64](ar, N*dim))
		bjump := mat.NewDense(N, dim, arena.Alloc[float64](ar, N*dim))

		grad := mat.NewDense(dim, nu, arena.Alloc[float64](ar, dim*nu))
		if err := (xfem.Gradient{D: dim}).CalcMatrix(ubase, mp, grad); err != nil {
			ar.Release(scope)
			return nil, err
		}
		dn := arena.Alloc[float64](ar, nu)
		for i := range dn {
			for d := 0; d < dim; d++ {
				dn[i] += grad.At(d, i) * mp.Normal[d]
			}
		}
		shapeU := arena.Alloc[float64](ar, nu)
		ubase.CalcShape(mp.Ref, shapeU)
		shapeP := arena.Alloc[float64](ar, np)
		pbase.CalcShape(mp.Ref, shapeP)

		avg := aPos*kappaPos + aNeg*kappaNeg
		for d := 0; d < dim; d++ {
			r := ranges[d]
			for i := 0; i < nu; i++ {
				bmat.Set(r.base+i, d, avg*dn[i])
			}
			for i := 0; i < r.nx; i++ {
				scale, sign := kappaPos*aPos, 1.
				if ux.Signs[i] == element.NEG {
					scale, sign = kappaNeg*aNeg, -1.
				}
				bmat.Set(r.x+i, d, scale*dn[i])
				bjump.Set(r.x+i, d, sign*shapeU[i])
			}
			rp := ranges[dim]
			for i := 0; i < np; i++ {
				bmat.Set(rp.base+i, d, -mp.Normal[d]*shapeP[i])
			}
			for i := 0; i < rp.nx; i++ {
				scale := kappaPos * aPos
				if px.Signs[i] == element.NEG {
					scale = kappaNeg * aNeg
				}
				bmat.Set(rp.x+i, d, -scale*mp.Normal[d]*shapeP[i])
			}
		}

		w := mp.Weight
		nc.Mul(bjump, bmat.T())
		nc.Scale(-w, &nc)
		ns.Mul(bjump, bjump.T())
		ns.Scale(w*penalty, &ns)
		elmat.Add(elmat, &nc)
		elmat.Add(elmat, nc.T())
		elmat.Add(elmat, &ns)
		ar.Release(scope)
	}
	return elmat, nil
}

// elementSize is sqrt|T| in 2-D and cbrt|T| in 3-D, with |T| from the
// Jacobian at the reference centroid
func elementSize(mapping element.Mapping) (float64, error) {
	geom := mapping.Geometry()
	rv := geom.ReferenceVertices()
	c := make([]float64, mapping.Dim())
	for _, v := range rv {
		for d := range c {
			c[d] += v[d] / float64(len(rv))
		}
	}
	mp, err := element.NewMappedPoint(mapping, c, 1)
	if err != nil {
		return 0, err
	}
	measure := math.Abs(mp.Det) * geom.ReferenceMeasure()
	if mapping.Dim() == 3 {
		return math.Cbrt(measure), nil
	}
	return math.Sqrt(measure), nil
}
