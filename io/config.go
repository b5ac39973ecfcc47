/*package io reads study configuration and material tables and writes the
binary records consumed by downstream visualization tools.
*/
package io

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/mittens-cad/fieldsim/fdtd"
)

// StudyConfig is the parsed form of one study file: a [Study] section plus
// any number of named [Mesh], [Source], and [Probe] sections. All lengths
// are meters and all frequencies Hz.
type StudyConfig struct {
	Study  StudySection
	Mesh   map[string]*MeshConfig
	Source map[string]*SourceConfig
	Probe  map[string]*ProbeConfig
}

type StudySection struct {
	// Required
	CellSize float64
	Fcen     float64
	Fwidth   float64

	// Optional
	Name     string
	Duration float64
	Steps    int
	// Margin of empty space padded around the scene bounds. Defaults to
	// four cells.
	Margin   float64
	PMLCells int
	// MemoryBudgetGB caps the solver allocation; runs that would exceed
	// it are rejected before any field array is allocated.
	MemoryBudgetGB float64
	MaterialTable  string
	OutputDir      string
	Workers        int
}

func (s *StudySection) CheckInit() error {
	if s.CellSize <= 0 {
		return fmt.Errorf(
			"Need to specify a positive CellSize in [Study], but got %g.",
			s.CellSize,
		)
	}
	if s.Fcen <= 0 {
		return fmt.Errorf(
			"Need to specify a positive Fcen in [Study], but got %g.", s.Fcen,
		)
	}
	if s.Fwidth <= 0 {
		return fmt.Errorf(
			"Need to specify a positive Fwidth in [Study], but got %g.",
			s.Fwidth,
		)
	}
	if s.Duration < 0 {
		return fmt.Errorf("Duration in [Study] must not be negative.")
	}
	if s.Steps < 0 {
		return fmt.Errorf("Steps in [Study] must not be negative.")
	}
	if s.Duration > 0 && s.Steps > 0 {
		return fmt.Errorf(
			"[Study] specifies both Duration and Steps; choose one.",
		)
	}

	if s.Name == "" {
		s.Name = "study"
	}
	if s.Margin == 0 {
		s.Margin = 4 * s.CellSize
	} else if s.Margin < 0 {
		return fmt.Errorf("Margin in [Study] must not be negative.")
	}
	if s.PMLCells == 0 {
		s.PMLCells = 10
	} else if s.PMLCells < 0 {
		return fmt.Errorf("PMLCells in [Study] must not be negative.")
	}
	if s.MemoryBudgetGB == 0 {
		s.MemoryBudgetGB = 4
	} else if s.MemoryBudgetGB < 0 {
		return fmt.Errorf("MemoryBudgetGB in [Study] must not be negative.")
	}
	if s.OutputDir == "" {
		s.OutputDir = "output"
	}

	return nil
}

// MeshConfig describes one shape placed into the scene. Later meshes (by
// Order, then name) overwrite earlier ones where they overlap.
type MeshConfig struct {
	// Required
	Shape    string // "box" or "sphere"
	Material string

	// Box extent
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64

	// Sphere extent
	X, Y, Z  float64
	Radius   float64
	Segments int

	// Optional; used when Material = dielectric
	EpsRel, MuRel float64
	Sigma         float64

	// Optional
	Order int
	Name  string
}

func (m *MeshConfig) CheckInit(name string) error {
	m.Name = name

	switch strings.ToLower(m.Shape) {
	case "box":
		if m.MaxX <= m.MinX || m.MaxY <= m.MinY || m.MaxZ <= m.MinZ {
			return fmt.Errorf(
				"Box Mesh '%s' must have Max bounds above Min bounds.", name,
			)
		}
	case "sphere":
		if m.Radius <= 0 {
			return fmt.Errorf(
				"Need to specify a positive Radius for sphere Mesh '%s'.",
				name,
			)
		}
		if m.Segments == 0 {
			m.Segments = 32
		} else if m.Segments < 8 {
			return fmt.Errorf(
				"Mesh '%s' needs at least 8 Segments, but got %d.",
				name, m.Segments,
			)
		}
	case "":
		return fmt.Errorf("Need to specify a Shape for Mesh '%s'.", name)
	default:
		return fmt.Errorf(
			"Unrecognized Shape '%s' for Mesh '%s'. "+
				"Valid shapes are 'box' and 'sphere'.", m.Shape, name,
		)
	}

	if m.Material == "" {
		return fmt.Errorf("Need to specify a Material for Mesh '%s'.", name)
	}

	return nil
}

// SourceConfig describes one excitation point in physical coordinates.
type SourceConfig struct {
	// Required
	X, Y, Z float64

	// Optional
	Component string
	Amplitude float64
	Type      string // "gaussian" or "cw"
	Freq      float64
	Name      string
}

func (s *SourceConfig) CheckInit(name string) error {
	s.Name = name

	if s.Component == "" {
		s.Component = "Ey"
	}
	if _, ok := fdtd.ParseComponent(s.Component); !ok {
		return fmt.Errorf(
			"Unrecognized Component '%s' for Source '%s'. "+
				"Valid components are Ex, Ey, Ez, Hx, Hy, and Hz.",
			s.Component, name,
		)
	}

	if s.Amplitude == 0 {
		s.Amplitude = 1
	}

	switch strings.ToLower(s.Type) {
	case "", "gaussian":
		s.Type = "gaussian"
	case "cw":
		s.Type = "cw"
	default:
		return fmt.Errorf(
			"Unrecognized Type '%s' for Source '%s'. "+
				"Valid types are 'gaussian' and 'cw'.", s.Type, name,
		)
	}
	if s.Freq < 0 {
		return fmt.Errorf("Freq of Source '%s' must not be negative.", name)
	}

	return nil
}

// ProbeConfig describes one field monitor point in physical coordinates.
type ProbeConfig struct {
	// Required
	X, Y, Z float64

	// Optional
	Component string
	Name      string
}

func (p *ProbeConfig) CheckInit(name string) error {
	p.Name = name

	if p.Component == "" {
		p.Component = "Ey"
	}
	if _, ok := fdtd.ParseComponent(p.Component); !ok {
		return fmt.Errorf(
			"Unrecognized Component '%s' for Probe '%s'. "+
				"Valid components are Ex, Ey, Ez, Hx, Hy, and Hz.",
			p.Component, name,
		)
	}

	return nil
}

// ReadStudyConfig parses and validates a study file.
func ReadStudyConfig(fname string) (*StudyConfig, error) {
	cfg := &StudyConfig{}
	// Unrecognized variables are non-fatal; future tool versions may add
	// fields this one does not know.
	if err := gcfg.FatalOnly(gcfg.ReadFileInto(cfg, fname)); err != nil {
		return nil, err
	}
	if err := cfg.Study.CheckInit(); err != nil {
		return nil, err
	}

	for name, mesh := range cfg.Mesh {
		if err := mesh.CheckInit(name); err != nil {
			return nil, err
		}
	}
	if len(cfg.Mesh) == 0 {
		return nil, fmt.Errorf(
			"Study file '%s' does not contain any [Mesh] sections.", fname,
		)
	}
	for name, src := range cfg.Source {
		if err := src.CheckInit(name); err != nil {
			return nil, err
		}
	}
	if len(cfg.Source) == 0 {
		return nil, fmt.Errorf(
			"Study file '%s' does not contain any [Source] sections.", fname,
		)
	}
	for name, probe := range cfg.Probe {
		if err := probe.CheckInit(name); err != nil {
			return nil, err
		}
	}
	if len(cfg.Probe) == 0 {
		return nil, fmt.Errorf(
			"Study file '%s' does not contain any [Probe] sections.", fname,
		)
	}

	return cfg, nil
}

// Meshes returns the mesh sections in deterministic voxelization order:
// ascending Order, ties broken by name. Later entries overwrite earlier
// ones where shapes overlap.
func (c *StudyConfig) Meshes() []*MeshConfig {
	out := make([]*MeshConfig, 0, len(c.Mesh))
	for _, m := range c.Mesh {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Sources returns the source sections sorted by name.
func (c *StudyConfig) Sources() []*SourceConfig {
	out := make([]*SourceConfig, 0, len(c.Source))
	for _, s := range c.Source {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Probes returns the probe sections sorted by name.
func (c *StudyConfig) Probes() []*ProbeConfig {
	out := make([]*ProbeConfig, 0, len(c.Probe))
	for _, p := range c.Probe {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
