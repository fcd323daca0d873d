// Package assemble scatters element matrices into a global sparse matrix.
// It exists to check assembled operators; it never solves anything.
package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/james-bowman/sparse"
	"github.com/notargets/CutFEM/arena"
	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/integrate"
	"github.com/notargets/CutFEM/mesh"
	"github.com/notargets/CutFEM/partitions"
	"gonum.org/v1/gonum/mat"
)

var logger = slog.Default().With(slog.String("component", "assemble"))

// SetLogger replaces the package logger
func SetLogger(l *slog.Logger) { logger = l.With(slog.String("component", "assemble")) }

// Global accumulates element contributions. Entries with a negative dof
// number are dropped.
type Global struct {
	n   int
	dok *sparse.DOK
	rhs []float64
}

func NewGlobal(n int) *Global {
	return &Global{n: n, dok: sparse.NewDOK(n, n), rhs: make([]float64, n)}
}

func (g *Global) Size() int { return g.n }

func (g *Global) checkDofs(dofs []int) error {
	for _, d := range dofs {
		if d >= g.n {
			return fmt.Errorf("dof %d outside global system of size %d", d, g.n)
		}
	}
	return nil
}

// AddMatrix adds A at rows and columns dofs
func (g *Global) AddMatrix(dofs []int, A mat.Matrix) error {
	r, c := A.Dims()
	if r != len(dofs) || c != len(dofs) {
		return fmt.Errorf("element matrix %d×%d for %d dofs", r, c, len(dofs))
	}
	if err := g.checkDofs(dofs); err != nil {
		return err
	}
	for i, di := range dofs {
		if di < 0 {
			continue
		}
		for j, dj := range dofs {
			if v := A.At(i, j); dj >= 0 && v != 0 {
				g.dok.Set(di, dj, g.dok.At(di, dj)+v)
			}
		}
	}
	return nil
}

// AddVector adds v at dofs
func (g *Global) AddVector(dofs []int, v []float64) error {
	if len(v) != len(dofs) {
		return fmt.Errorf("element vector of length %d for %d dofs", len(v), len(dofs))
	}
	if err := g.checkDofs(dofs); err != nil {
		return err
	}
	for i, d := range dofs {
		if d >= 0 {
			g.rhs[d] += v[i]
		}
	}
	return nil
}

func (g *Global) NNZ() int           { return g.dok.NNZ() }
func (g *Global) Vector() []float64  { return g.rhs }
func (g *Global) ToCOO() *sparse.COO { return g.dok.ToCOO() }
func (g *Global) ToCSR() *sparse.CSR { return g.dok.ToCSR() }

// Apply returns A·x
func (g *Global) Apply(x []float64) ([]float64, error) {
	if len(x) != g.n {
		return nil, fmt.Errorf("vector of length %d for system of size %d", len(x), g.n)
	}
	if g.n == 0 {
		return nil, nil
	}
	var y mat.VecDense
	y.MulVec(g.ToCSR(), mat.NewVecDense(g.n, x))
	return y.RawVector().Data, nil
}

// ElementMatrixFunc returns the matrix of element k and the global dofs of
// its rows and columns. A nil matrix contributes nothing. The arena is
// released when the call returns.
type ElementMatrixFunc func(ctx context.Context, k int, ar *arena.Arena) (dofs []int, A *mat.Dense, err error)

// FESource returns the finite element of k
type FESource func(k int, ar *arena.Arena) (element.FiniteElement, error)

// CutMatrix runs a cut bilinear integrator on every element of a space
type CutMatrix struct {
	Mesh       *mesh.Mesh
	Dofs       classify.DofSpace
	FE         FESource
	CutInfo    *classify.CutInfo
	Integrator *integrate.CutBilinearIntegrator[float64]
}

func (cm *CutMatrix) Element(_ context.Context, k int, ar *arena.Arena) ([]int, *mat.Dense, error) {
	dofs := cm.Dofs.DofNrs(k)
	if len(dofs) == 0 {
		return nil, nil, nil
	}
	fe, err := cm.FE(k, ar)
	if err != nil {
		return nil, nil, err
	}
	ec := &integrate.ElementContext{Elem: k, TrialFE: fe, Mapping: cm.Mesh.Mapping(k), CutInfo: cm.CutInfo}
	A, err := integrate.ElementMatrix(cm.Integrator, ec, ar)
	if err != nil {
		return nil, nil, err
	}
	return dofs, A, nil
}

type contribution struct {
	dofs []int
	A    *mat.Dense
}

// Options controls element scheduling. Domains, one tag per element, lets
// the CutBalanced strategy spread the cut elements over the partitions.
type Options struct {
	Workers       int // <= 0: GOMAXPROCS
	PartitionSize int // <= 0: 64
	Strategy      partitions.PartitionStrategy
	Domains       []element.DomainType

	// Into adds to this system instead of a new one. After a merge error it
	// holds part of the contributions.
	Into *Global
}

func (o Options) global(n int) (*Global, error) {
	if o.Into == nil {
		return NewGlobal(n), nil
	}
	if o.Into.n != n {
		return nil, fmt.Errorf("target system of size %d for %d dofs", o.Into.n, n)
	}
	return o.Into, nil
}

func (o Options) layout(nElem int) (*partitions.PartitionLayout, error) {
	pb := &partitions.PartitionBuilder{
		NumElements:         nElem,
		Domains:             o.Domains,
		TargetPartitionSize: o.PartitionSize,
		Strategy:            o.Strategy,
	}
	return pb.BuildPartitions()
}

// merge adds the collected contributions in index order
func (g *Global) merge(results []contribution, per int, what string) error {
	for i, c := range results {
		if c.A == nil {
			continue
		}
		if err := g.AddMatrix(c.dofs, c.A); err != nil {
			return fmt.Errorf("%s %d: %w", what, i/per, err)
		}
	}
	return nil
}

// keep copies a contribution out of the worker arena
func keep(dofs []int, A *mat.Dense) contribution {
	if A == nil || A.IsEmpty() || len(dofs) == 0 {
		return contribution{}
	}
	return contribution{dofs: append([]int(nil), dofs...), A: mat.DenseCopyOf(A)}
}

// AssembleMatrix evaluates every integrator on every element of space in
// parallel, then merges the results serially in element order so the
// global matrix does not depend on scheduling
func AssembleMatrix(ctx context.Context, space classify.DofSpace, nElem int,
	integrators []ElementMatrixFunc, opts Options) (*Global, error) {
	g, err := opts.global(space.NDof())
	if err != nil {
		return nil, err
	}
	if nElem == 0 || len(integrators) == 0 {
		return g, nil
	}
	layout, err := opts.layout(nElem)
	if err != nil {
		return nil, err
	}
	results := make([]contribution, nElem*len(integrators))
	err = partitions.RunElements(ctx, layout, opts.Workers, func(ctx context.Context, k int, ar *arena.Arena) error {
		for i, fn := range integrators {
			dofs, A, err := fn(ctx, k, ar)
			if err != nil {
				return fmt.Errorf("integrator %d: %w", i, err)
			}
			results[k*len(integrators)+i] = keep(dofs, A)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := g.merge(results, len(integrators), "element"); err != nil {
		return nil, err
	}
	logger.Debug("assembled elements", slog.Int("ndof", g.n), slog.Int("nnz", g.NNZ()),
		slog.Int("elements", nElem), slog.Int("integrators", len(integrators)))
	return g, nil
}
