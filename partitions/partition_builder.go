package partitions

import (
	"fmt"

	"github.com/notargets/CutFEM/element"
)

// PartitionBuilder splits the elements of a mesh into work partitions
type PartitionBuilder struct {
	NumElements int
	Domains     []element.DomainType // Optional, one per element

	TargetPartitionSize int // <= 0: 64
	Strategy            PartitionStrategy
}

type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically
	CutBalanced                             // Cut elements cyclically, the rest in blocks
)

// ParseStrategy maps a configuration name onto a strategy
func ParseStrategy(name string) (PartitionStrategy, error) {
	switch name {
	case "", "block":
		return BlockPartition, nil
	case "roundrobin":
		return RoundRobin, nil
	case "cutbalanced":
		return CutBalanced, nil
	}
	return BlockPartition, fmt.Errorf("unknown partition strategy %q", name)
}

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "roundrobin"
	case CutBalanced:
		return "cutbalanced"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// BuildPartitions creates and validates a partition layout
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.NumElements < 0 {
		return nil, fmt.Errorf("negative element count %d", pb.NumElements)
	}
	if pb.Domains != nil && len(pb.Domains) != pb.NumElements {
		return nil, fmt.Errorf("%d domain tags for %d elements", len(pb.Domains), pb.NumElements)
	}
	np := pb.numPartitions()
	eToP := pb.assign(np)

	layout := &PartitionLayout{
		Partitions:    make([]Partition, np),
		TotalElements: pb.NumElements,
		NumPartitions: np,
		EToP:          eToP,
	}
	for i := range layout.Partitions {
		layout.Partitions[i].ID = i
	}
	for k, p := range eToP {
		part := &layout.Partitions[p]
		part.Elements = append(part.Elements, k)
		if pb.Domains != nil {
			part.Domains = append(part.Domains, pb.Domains[k])
		}
	}
	for i := range layout.Partitions {
		p := &layout.Partitions[i]
		p.NumElements = len(p.Elements)
		p.Groups = groupDomains(p.Domains)
		layout.KpartMax = max(layout.KpartMax, p.NumElements)
	}
	for i := range layout.Partitions {
		layout.Partitions[i].MaxElements = layout.KpartMax
	}
	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}
	return layout, nil
}

func (pb *PartitionBuilder) numPartitions() int {
	size := pb.TargetPartitionSize
	if size <= 0 {
		size = 64
	}
	return max((pb.NumElements+size-1)/size, 1)
}

func (pb *PartitionBuilder) assign(np int) []int {
	eToP := make([]int, pb.NumElements)
	per := max((pb.NumElements+np-1)/np, 1)
	block := func(i int) int { return min(i/per, np-1) }
	switch {
	case pb.Strategy == RoundRobin:
		for k := range eToP {
			eToP[k] = k % np
		}
	case pb.Strategy == CutBalanced && pb.Domains != nil:
		// Deal cut elements out first, then fill each partition up to per
		// with the uncut ones in element order
		load := make([]int, np)
		cut := 0
		for k, dt := range pb.Domains {
			if dt == element.IF {
				eToP[k] = cut % np
				load[eToP[k]]++
				cut++
			}
		}
		p := 0
		for k, dt := range pb.Domains {
			if dt == element.IF {
				continue
			}
			for p < np-1 && load[p] >= per {
				p++
			}
			eToP[k] = p
			load[p]++
		}
	default:
		for k := range eToP {
			eToP[k] = block(k)
		}
	}
	return eToP
}

// groupDomains lists the local indices of each domain type, IF first and
// then NEG and POS
func groupDomains(domains []element.DomainType) []DomainGroup {
	if len(domains) == 0 {
		return nil
	}
	var groups []DomainGroup
	for _, dt := range []element.DomainType{element.IF, element.NEG, element.POS} {
		var ids []int
		for i, d := range domains {
			if d == dt {
				ids = append(ids, i)
			}
		}
		if len(ids) > 0 {
			groups = append(groups, DomainGroup{Domain: dt, LocalIDs: ids})
		}
	}
	return groups
}
