package xfem

import (
	"fmt"

	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/cuterr"
	"github.com/notargets/CutFEM/fespace"
	"github.com/notargets/CutFEM/mesh"
)

// SpaceConfig carries the construction parameters shared by all factories
type SpaceConfig struct {
	Order     int
	Dirichlet []int // Boundary labels
	Options   Options
}

// SpaceFactory builds a named space on a mesh
type SpaceFactory func(m *mesh.Mesh, cfg SpaceConfig) (classify.DofSpace, error)

var Factories = map[string]SpaceFactory{
	"h1ho": func(m *mesh.Mesh, cfg SpaceConfig) (classify.DofSpace, error) {
		s, err := fespace.NewH1(m, cfg.Order, cfg.Dirichlet...)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
	"xfespace": func(m *mesh.Mesh, cfg SpaceConfig) (classify.DofSpace, error) {
		x, err := newX(m, cfg)
		if err != nil {
			return nil, err
		}
		return x, nil
	},
	"xstdfespace": func(m *mesh.Mesh, cfg SpaceConfig) (classify.DofSpace, error) {
		x, err := newX(m, cfg)
		if err != nil {
			return nil, err
		}
		return NewXStdSpace(x), nil
	},
}

func newX(m *mesh.Mesh, cfg SpaceConfig) (*XFESpace, error) {
	base, err := fespace.NewH1(m, cfg.Order, cfg.Dirichlet...)
	if err != nil {
		return nil, err
	}
	return NewXFESpace(base, cfg.Options)
}

// NewSpace resolves name in Factories
func NewSpace(name string, m *mesh.Mesh, cfg SpaceConfig) (classify.DofSpace, error) {
	f, ok := Factories[name]
	if !ok {
		return nil, fmt.Errorf("space %q: %w", name, cuterr.ErrUnsupported)
	}
	return f(m, cfg)
}
