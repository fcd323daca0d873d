// Package config reads the YAML run configuration and maps it onto the
// option structs of the cut-FEM packages
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/notargets/CutFEM/assemble"
	"github.com/notargets/CutFEM/classify"
	"github.com/notargets/CutFEM/cutint"
	"github.com/notargets/CutFEM/element"
	"github.com/notargets/CutFEM/integrate"
	"github.com/notargets/CutFEM/partitions"
	"github.com/notargets/CutFEM/stokes"
	"github.com/notargets/CutFEM/xfem"
	"gopkg.in/yaml.v3"
)

type Cut struct {
	Order        int     `yaml:"order"`
	SubdivLvl    int     `yaml:"subdiv_lvl"`
	RefLvlSpace  int     `yaml:"ref_lvl_space"`
	RefLvlTime   int     `yaml:"ref_lvl_time"`
	PerturbZeros bool    `yaml:"perturb_zeros"`
	ZeroTol      float64 `yaml:"zero_tol"`
}

type Space struct {
	Order     int     `yaml:"order"`
	Dirichlet []int   `yaml:"dirichlet,omitempty"`
	Empty     bool    `yaml:"empty"`
	Trace     bool    `yaml:"trace"`
	T0        float64 `yaml:"t0"`
	T1        float64 `yaml:"t1"`
	VMax      float64 `yaml:"vmax"` // > 0 enables the distance threshold
}

type Assembly struct {
	Workers       int    `yaml:"workers"`
	PartitionSize int    `yaml:"partition_size"`
	Strategy      string `yaml:"strategy"`
	ForceIntOrder int    `yaml:"force_intorder"`
	Batch         bool   `yaml:"batch"`
}

type Nitsche struct {
	Lambda   float64 `yaml:"lambda"`
	AlphaNeg float64 `yaml:"alpha_neg"`
	AlphaPos float64 `yaml:"alpha_pos"`
}

type GhostPenalty struct {
	Gamma float64 `yaml:"gamma"`
}

// Config is one run configuration. Missing sections keep their defaults.
type Config struct {
	Cut          Cut          `yaml:"cut"`
	Space        Space        `yaml:"space"`
	Assembly     Assembly     `yaml:"assembly"`
	Nitsche      Nitsche      `yaml:"nitsche"`
	GhostPenalty GhostPenalty `yaml:"ghost_penalty"`
}

func Default() *Config {
	co := cutint.DefaultOptions()
	return &Config{
		Cut:          Cut{Order: co.Order, ZeroTol: co.ZeroTol},
		Space:        Space{Order: 1, T0: co.TimeInterval[0], T1: co.TimeInterval[1]},
		Assembly:     Assembly{PartitionSize: 64, Strategy: "block", Batch: true},
		Nitsche:      Nitsche{Lambda: 20, AlphaNeg: 1, AlphaPos: 1},
		GhostPenalty: GhostPenalty{Gamma: 0.1},
	}
}

// Load decodes a configuration on top of Default and validates it. Unknown
// keys are errors.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Write encodes cfg as YAML
func (cfg *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Validate reports every out-of-range value
func (cfg *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	c := cfg.Cut
	check(c.Order >= 0, "cut.order %d is negative", c.Order)
	check(c.SubdivLvl >= 0, "cut.subdiv_lvl %d is negative", c.SubdivLvl)
	check(c.RefLvlSpace >= 0, "cut.ref_lvl_space %d is negative", c.RefLvlSpace)
	check(c.RefLvlTime >= 0, "cut.ref_lvl_time %d is negative", c.RefLvlTime)
	check(!c.PerturbZeros || c.ZeroTol > 0, "cut.zero_tol must be positive with perturb_zeros")

	s := cfg.Space
	check(s.Order >= 1, "space.order %d must be at least 1", s.Order)
	check(s.T1 >= s.T0, "space.t1 %g before t0 %g", s.T1, s.T0)
	check(s.VMax >= 0, "space.vmax %g is negative", s.VMax)
	for _, l := range s.Dirichlet {
		check(l >= 0, "space.dirichlet label %d is negative", l)
	}

	a := cfg.Assembly
	check(a.Workers >= 0, "assembly.workers %d is negative", a.Workers)
	check(a.PartitionSize >= 0, "assembly.partition_size %d is negative", a.PartitionSize)
	check(a.ForceIntOrder >= 0, "assembly.force_intorder %d is negative", a.ForceIntOrder)
	if _, err := partitions.ParseStrategy(a.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("assembly.strategy: %w", err))
	}

	n := cfg.Nitsche
	check(n.Lambda > 0, "nitsche.lambda %g must be positive", n.Lambda)
	check(n.AlphaNeg > 0 && n.AlphaPos > 0, "nitsche.alpha_neg and alpha_pos must be positive")
	check(cfg.GhostPenalty.Gamma >= 0, "ghost_penalty.gamma %g is negative", cfg.GhostPenalty.Gamma)
	return errors.Join(errs...)
}

// CutOptions returns the geometry options
func (cfg *Config) CutOptions() cutint.Options {
	o := cutint.DefaultOptions()
	o.Order = cfg.Cut.Order
	o.SubdivLvl = cfg.Cut.SubdivLvl
	o.RefLvlSpace = cfg.Cut.RefLvlSpace
	o.RefLvlTime = cfg.Cut.RefLvlTime
	o.PerturbZeros = cfg.Cut.PerturbZeros
	o.ZeroTol = cfg.Cut.ZeroTol
	o.TimeInterval = [2]float64{cfg.Space.T0, cfg.Space.T1}
	return o
}

func (cfg *Config) strategy() partitions.PartitionStrategy {
	// Validate has already rejected unknown names
	st, _ := partitions.ParseStrategy(cfg.Assembly.Strategy)
	return st
}

func (cfg *Config) CutInfoOptions() classify.Options {
	return classify.Options{
		Cut:               cfg.CutOptions(),
		DistanceThreshold: cfg.Space.VMax > 0,
		VMax:              cfg.Space.VMax,
		T0:                cfg.Space.T0,
		T1:                cfg.Space.T1,
		Workers:           cfg.Assembly.Workers,
		PartitionSize:     cfg.Assembly.PartitionSize,
		Strategy:          cfg.strategy(),
	}
}

func (cfg *Config) XFEMOptions() xfem.Options {
	return xfem.Options{
		Empty:             cfg.Space.Empty,
		Trace:             cfg.Space.Trace,
		Cut:               cfg.CutOptions(),
		DistanceThreshold: cfg.Space.VMax > 0,
		VMax:              cfg.Space.VMax,
		T0:                cfg.Space.T0,
		T1:                cfg.Space.T1,
		Workers:           cfg.Assembly.Workers,
		PartitionSize:     cfg.Assembly.PartitionSize,
		Strategy:          cfg.strategy(),
	}
}

// SpaceConfig is the input of the xfem space factories
func (cfg *Config) SpaceConfig() xfem.SpaceConfig {
	return xfem.SpaceConfig{Order: cfg.Space.Order, Dirichlet: cfg.Space.Dirichlet, Options: cfg.XFEMOptions()}
}

func (cfg *Config) PartitionBuilder(numElements int) *partitions.PartitionBuilder {
	return &partitions.PartitionBuilder{
		NumElements:         numElements,
		TargetPartitionSize: cfg.Assembly.PartitionSize,
		Strategy:            cfg.strategy(),
	}
}

// NitscheIntegrator returns the interface coupling with constant
// coefficients on each side
func (cfg *Config) NitscheIntegrator() *stokes.NitscheIntegrator {
	an, ap := cfg.Nitsche.AlphaNeg, cfg.Nitsche.AlphaPos
	return &stokes.NitscheIntegrator{
		AlphaNeg: func([]float64) float64 { return an },
		AlphaPos: func([]float64) float64 { return ap },
		Lambda:   cfg.Nitsche.Lambda,
	}
}

// AssembleOptions schedules global assembly. domains may be nil; with
// the cutbalanced strategy it spreads the cut elements over the workers.
func (cfg *Config) AssembleOptions(domains []element.DomainType) assemble.Options {
	return assemble.Options{
		Workers:       cfg.Assembly.Workers,
		PartitionSize: cfg.Assembly.PartitionSize,
		Strategy:      cfg.strategy(),
		Domains:       domains,
	}
}

// GhostPenaltyIntegrator returns the patch penalty of op at mesh size h
func (cfg *Config) GhostPenaltyIntegrator(h float64, op integrate.DiffOp) *integrate.FacetPatchIntegrator[float64] {
	gp := integrate.NewFacetPatchIntegrator[float64](integrate.GhostPenalty[float64](cfg.GhostPenalty.Gamma, h, op))
	gp.ForceOrder = cfg.Assembly.ForceIntOrder
	gp.Batch = cfg.Assembly.Batch
	return gp
}
