package mesh

import (
	"fmt"

	"github.com/notargets/CutFEM/cuterr"
	gocfdmesh "github.com/notargets/gocfd/DG3D/mesh"
	"github.com/notargets/gocfd/DG3D/mesh/readers"
)

// FromGocfd converts a mesh read by the gocfd readers. Only pure simplex
// meshes are accepted; the dimension follows the vertex count per element.
func FromGocfd(gm *gocfdmesh.Mesh, labeler Labeler) (*Mesh, error) {
	if gm == nil || len(gm.EtoV) == 0 {
		return nil, fmt.Errorf("empty gocfd mesh: %w", cuterr.ErrInvalidGeometry)
	}
	nv := len(gm.EtoV[0])
	for k, ev := range gm.EtoV {
		if len(ev) != nv {
			return nil, fmt.Errorf("mixed element kinds at element %d: %w", k, cuterr.ErrUnsupported)
		}
	}
	var dim int
	switch nv {
	case 4:
		dim = 3
	case 3:
		dim = 2
	case 2:
		dim = 1
	default:
		return nil, fmt.Errorf("elements with %d vertices: %w", nv, cuterr.ErrUnsupported)
	}
	return NewMesh(dim, gm.Vertices, gm.EtoV, labeler)
}

// ReadMeshFile reads a Gambit or SU2 mesh file through gocfd
func ReadMeshFile(path string, labeler Labeler) (*Mesh, error) {
	gm, err := readers.ReadMeshFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return FromGocfd(gm, labeler)
}
