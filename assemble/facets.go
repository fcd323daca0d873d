package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/integrate"
	"github.com/notargets/CutFEM/levelset"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/partitions"
	"gonum.org/v1/gonum/mat"
)

// FacetMatrixFunc returns the matrix of facet f over the dofs of the
// elements on both of its sides
type FacetMatrixFunc func(ctx context.Context, f int, ar *arena.Arena) (dofs []int, A *mat.Dense, err error)

// pairDofs concatenates the dofs of the two elements of an interior facet
func pairDofs(m *mesh.Mesh, dofs classify.DofSpace, f int) ([2]int, []int, bool) {
	sides := m.FacetElems[f]
	if len(sides) < 2 {
		return [2]int{}, nil, false
	}
	k := [2]int{sides[0].Elem, sides[1].Elem}
	d0, d1 := dofs.DofNrs(k[0]), dofs.DofNrs(k[1])
	out := make([]int, 0, len(d0)+len(d1))
	return k, append(append(out, d0...), d1...), true
}

func pairFE(fe FESource, k [2]int, ar *arena.Arena) (out [2]element.FiniteElement, err error) {
	for s := 0; s < 2; s++ {
		if out[s], err = fe(k[s], ar); err != nil {
			return out, err
		}
	}
	return out, nil
}

// CutFacetMatrix runs a two-sided cut facet integrator on interior facets.
// Boundary facets contribute nothing. Cut facets need Level.
type CutFacetMatrix struct {
	Mesh       *mesh.Mesh
	Dofs       classify.DofSpace
	FE         FESource
	CutInfo    *classify.CutInfo
	Level      levelset.Field
	Integrator *integrate.CutFacetIntegrator[float64]
}

func (cf *CutFacetMatrix) Facet(_ context.Context, f int, ar *arena.Arena) ([]int, *mat.Dense, error) {
	k, dofs, ok := pairDofs(cf.Mesh, cf.Dofs, f)
	if !ok {
		return nil, nil, nil
	}
	fes, err := pairFE(cf.FE, k, ar)
	if err != nil {
		return nil, nil, err
	}
	fc := &integrate.FacetContext{Mesh: cf.Mesh, Facet: f, FE: fes, CutInfo: cf.CutInfo}
	if cf.Level != nil {
		fc.Level = cf.Level.Local(cf.Mesh, k[0])
	}
	vals, err := cf.Integrator.CalcFacetMatrix(fc, ar)
	if err != nil {
		return nil, nil, err
	}
	if len(dofs) == 0 {
		return nil, nil, nil
	}
	return dofs, mat.NewDense(len(dofs), len(dofs), vals), nil
}

// GhostPatchMatrix runs a patch integrator on the element pair of every
// interior facet, the usual ghost penalty stabilization
type GhostPatchMatrix struct {
	Mesh       *mesh.Mesh
	Dofs       classify.DofSpace
	FE         FESource
	Integrator *integrate.FacetPatchIntegrator[float64]
}

func (gp *GhostPatchMatrix) Facet(_ context.Context, f int, ar *arena.Arena) ([]int, *mat.Dense, error) {
	k, dofs, ok := pairDofs(gp.Mesh, gp.Dofs, f)
	if !ok || len(dofs) == 0 {
		return nil, nil, nil
	}
	fes, err := pairFE(gp.FE, k, ar)
	if err != nil {
		return nil, nil, err
	}
	vals, err := gp.Integrator.CalcPatchMatrix(&integrate.PatchContext{Mesh: gp.Mesh, Elems: k, FE: fes}, ar)
	if err != nil {
		return nil, nil, err
	}
	return dofs, mat.NewDense(len(dofs), len(dofs), vals), nil
}

// AssembleFacets evaluates the integrators on the facets marked in facets,
// or on all facets when it is nil. Elements are scheduled as in
// AssembleMatrix and each facet is evaluated by the worker of its owner.
func AssembleFacets(ctx context.Context, space classify.DofSpace, m *mesh.Mesh, facets []bool,
	integrators []FacetMatrixFunc, opts Options) (*Global, error) {
	g, err := opts.global(space.NDof())
	if err != nil {
		return nil, err
	}
	nf := m.NumFacets()
	if facets != nil && len(facets) != nf {
		return nil, fmt.Errorf("facet mask of length %d for %d facets", len(facets), nf)
	}
	if nf == 0 || len(integrators) == 0 {
		return g, nil
	}
	layout, err := opts.layout(m.NumElements())
	if err != nil {
		return nil, err
	}
	results := make([]contribution, nf*len(integrators))
	err = partitions.RunElements(ctx, layout, opts.Workers, func(ctx context.Context, k int, ar *arena.Arena) error {
		for _, f := range m.ElemFacets[k] {
			if facets != nil && !facets[f] {
				continue
			}
			nb := k
			for _, s := range m.FacetElems[f] {
				if s.Elem != k {
					nb = s.Elem
				}
			}
			if !layout.OwnsFacet(k, nb) {
				continue
			}
			for i, fn := range integrators {
				dofs, A, err := fn(ctx, f, ar)
				if err != nil {
					return fmt.Errorf("facet %d, integrator %d: %w", f, i, err)
				}
				results[f*len(integrators)+i] = keep(dofs, A)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := g.merge(results, len(integrators), "facet"); err != nil {
		return nil, err
	}
	logger.Debug("assembled facets", slog.Int("ndof", g.n), slog.Int("nnz", g.NNZ()), slog.Int("facets", nf))
	return g, nil
}
