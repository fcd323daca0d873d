package partitions

import (
	"fmt"

	"github.com/notargets/CutFEM/element"
)

// Partition is a group of elements processed by one worker task
type Partition struct {
	ID          int
	Elements    []int // Global element indices
	NumElements int
	MaxElements int // Largest partition size in the layout

	// With domain tags, Groups lists the elements of each domain type,
	// cut elements first
	Domains []element.DomainType
	Groups  []DomainGroup
}

// DomainGroup is a run of elements of one domain type within a partition
type DomainGroup struct {
	Domain   element.DomainType
	LocalIDs []int // Indices into Partition.Elements
}

// PartitionLayout is the complete element decomposition
type PartitionLayout struct {
	Partitions    []Partition
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int
	NumPartitions int
	EToP          []int // Element k belongs to partition EToP[k]
}

// GetPartition returns the partition of element k, or -1 if k is out of range
func (pl *PartitionLayout) GetPartition(k int) int {
	if k < 0 || k >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[k]
}

// CutElements counts the IF elements of partition p
func (p *Partition) CutElements() int {
	for _, g := range p.Groups {
		if g.Domain == element.IF {
			return len(g.LocalIDs)
		}
	}
	return 0
}

// ValidateLayout checks that every element belongs to exactly one partition
// and that the sizes agree with EToP
func (pl *PartitionLayout) ValidateLayout() error {
	kmax := 0
	for _, p := range pl.Partitions {
		kmax = max(kmax, p.NumElements)
		switch {
		case p.MaxElements != pl.KpartMax:
			return fmt.Errorf("partition %d: MaxElements %d != KpartMax %d", p.ID, p.MaxElements, pl.KpartMax)
		case p.NumElements != len(p.Elements):
			return fmt.Errorf("partition %d: NumElements %d != %d listed", p.ID, p.NumElements, len(p.Elements))
		}
	}
	if kmax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d", kmax, pl.KpartMax)
	}

	owner := make([]int, pl.TotalElements)
	for i := range owner {
		owner[i] = -1
	}
	for _, p := range pl.Partitions {
		for _, k := range p.Elements {
			switch {
			case k < 0 || k >= pl.TotalElements:
				return fmt.Errorf("partition %d: element %d out of range", p.ID, k)
			case owner[k] >= 0:
				return fmt.Errorf("element %d assigned to partitions %d and %d", k, owner[k], p.ID)
			case pl.EToP[k] != p.ID:
				return fmt.Errorf("element %d: EToP %d != partition %d", k, pl.EToP[k], p.ID)
			}
			owner[k] = p.ID
		}
	}
	for k, p := range owner {
		if p < 0 {
			return fmt.Errorf("element %d not assigned", k)
		}
	}
	return nil
}

// OwnsFacet reports whether the facet between elements k and nb is
// processed with k. An interior facet belongs to the side with the lower
// partition ID, or the lower element index within one partition. Boundary
// facets (nb == k) always belong to k.
func (pl *PartitionLayout) OwnsFacet(k, nb int) bool {
	if nb == k {
		return true
	}
	pk, pn := pl.GetPartition(k), pl.GetPartition(nb)
	if pk != pn {
		return pk < pn
	}
	return k < nb
}
