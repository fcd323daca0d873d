package partitions

import (
	"context"
	"fmt"
	"runtime"

	"github.com/notargets/CutFEM/arena"
	"golang.org/x/sync/errgroup"
)

// WorkFunc processes one partition. The arena belongs to the calling worker
// for the duration of the call and is reset before every partition.
type WorkFunc func(ctx context.Context, p *Partition, ar *arena.Arena) error

// Run calls fn for every partition of layout on at most workers goroutines.
// workers <= 0 uses GOMAXPROCS. The first error stops partitions that have
// not started yet and is returned.
func Run(ctx context.Context, layout *PartitionLayout, workers int, fn WorkFunc) error {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(min(workers, layout.NumPartitions), 1)

	arenas := make(chan *arena.Arena, workers)
	for i := 0; i < workers; i++ {
		arenas <- arena.New()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range layout.Partitions {
		p := &layout.Partitions[i]
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			ar := <-arenas
			defer func() { arenas <- ar }()
			ar.Reset()
			if err := fn(ctx, p, ar); err != nil {
				return fmt.Errorf("partition %d: %w", p.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunElements is Run with fn called once per element, in partition order
// within each partition
func RunElements(ctx context.Context, layout *PartitionLayout, workers int,
	fn func(ctx context.Context, k int, ar *arena.Arena) error) error {
	return Run(ctx, layout, workers, func(ctx context.Context, p *Partition, ar *arena.Arena) error {
		for _, k := range p.Elements {
			s := ar.Mark()
			err := fn(ctx, k, ar)
			ar.Release(s)
			if err != nil {
				return fmt.Errorf("element %d: %w", k, err)
			}
		}
		return nil
	})
}

// Layout builds a block layout over n elements, the common case of callers
// that do not configure partitioning
func Layout(n, size int) (*PartitionLayout, error) {
	pb := &PartitionBuilder{NumElements: n, TargetPartitionSize: size}
	return pb.BuildPartitions()
}
