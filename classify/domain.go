// Package classify assigns every element, facet, edge and vertex of a mesh
// to NEG, POS or IF with respect to a level set.
package classify

import (
	"strings"

	"github.com/notargets/CutFEM/element"
)

// CombinedDomain is a bit set of domain types
type CombinedDomain uint8

const (
	CDomNeg    CombinedDomain = 1 << element.NEG
	CDomPos    CombinedDomain = 1 << element.POS
	CDomIF     CombinedDomain = 1 << element.IF
	CDomUncut                 = CDomNeg | CDomPos
	CDomHasNeg                = CDomNeg | CDomIF
	CDomHasPos                = CDomPos | CDomIF
	CDomAny                   = CDomNeg | CDomPos | CDomIF
)

// Mask returns the single-type set of dt
func Mask(dt element.DomainType) CombinedDomain { return 1 << dt }

// Has reports whether dt is in the set
func (c CombinedDomain) Has(dt element.DomainType) bool { return c&Mask(dt) != 0 }

func (c CombinedDomain) String() string {
	var parts []string
	for _, dt := range []element.DomainType{element.NEG, element.POS, element.IF} {
		if c.Has(dt) {
			parts = append(parts, dt.String())
		}
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}
