// Package fespace provides the continuous Lagrange space that the extended
// spaces enrich.
package fespace

import (
	"fmt"

	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/mesh"
)

// CouplingType classifies a dof for static condensation and smoothers
type CouplingType uint8

const (
	Unused CouplingType = iota
	Local
	Interface
	NonWirebasket
	Wirebasket
)

func (c CouplingType) String() string {
	switch c {
	case Unused:
		return "UNUSED"
	case Local:
		return "LOCAL"
	case Interface:
		return "INTERFACE"
	case NonWirebasket:
		return "NONWIREBASKET"
	case Wirebasket:
		return "WIREBASKET"
	}
	return fmt.Sprintf("CouplingType(%d)", uint8(c))
}

// Space is a finite element space on a mesh
type Space interface {
	Mesh() *mesh.Mesh
	Order() int
	NDof() int

	// DofNrs returns the global dofs of elem, ordered as the local dofs of
	// its finite element
	DofNrs(elem int) []int
	// SurfaceDofNrs returns the dofs of boundary facet bnd, an index into
	// Mesh().Boundary
	SurfaceDofNrs(bnd int) []int

	VertexDofNrs(v int) []int
	EdgeDofNrs(e int) []int
	FaceDofNrs(f int) []int
	InnerDofNrs(elem int) []int

	CouplingType(dof int) CouplingType
	IsDirichlet(dof int) bool
	FE(elem int) element.ShapeEvaluator
}
