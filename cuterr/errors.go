// Package cuterr holds the sentinel errors shared by the cut-FEM packages.
// Callers wrap them with fmt.Errorf("...: %w", ...) and test with errors.Is.
package cuterr

import "errors"

var (
	// ErrInvalidGeometry marks fatal geometry input: an exact-zero level-set
	// value where a sign is required, a degenerate element, a malformed mesh.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrUnsupported marks an element shape, dimension or feature combination
	// that is not implemented.
	ErrUnsupported = errors.New("unsupported configuration")

	// ErrNoNeighbor is returned by two-sided facet terms on a boundary facet.
	ErrNoNeighbor = errors.New("facet has no neighbor element")

	// ErrNoBatch is returned by an integrand that cannot evaluate a block of
	// points at once. Assemblers retry on the scalar path.
	ErrNoBatch = errors.New("batched evaluation unavailable")

	// ErrNotUpdated is returned by queries issued before the first Update.
	ErrNotUpdated = errors.New("space not updated")
)
