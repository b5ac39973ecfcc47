package fieldsim

import (
	"context"
	"fmt"
	"math"
	"os"
	"path"
	"runtime"

	log "github.com/sirupsen/logrus"

	"github.com/mittens-cad/fieldsim/fdtd"
	"github.com/mittens-cad/fieldsim/geom"
	"github.com/mittens-cad/fieldsim/io"
	"github.com/mittens-cad/fieldsim/spectrum"
	"github.com/mittens-cad/fieldsim/voxel"
)

// bytesPerCell is the solver's per-cell footprint: six field arrays, four
// coefficient arrays, and twelve CPML memory arrays of float64, plus the
// conductor mask byte.
const bytesPerCell = 22*8 + 1

// minCellsPerWavelength is the resolution below which dispersion error
// becomes noticeable. Coarser grids get a warning, never an error.
const minCellsPerWavelength = 10

// decayFrac stops an open-ended run once the first probe's envelope falls
// this far below its peak.
const decayFrac = 1e-4

// Study carries one configured simulation from scene to spectra.
type Study struct {
	cfg    *io.StudyConfig
	custom map[string]voxel.Material

	grid    *voxel.Grid
	report  *voxel.Report
	warning *MeshWarning

	sim    *fdtd.Simulation
	probes map[string]*fdtd.Probe
	// decayMonitor is the probe watched in open-ended runs; nil selects a
	// fixed-length run.
	decayMonitor *fdtd.Probe
	maxSteps     int

	log *log.Entry
}

// NewStudy wraps a parsed configuration, loading the custom material table
// if the study names one.
func NewStudy(cfg *io.StudyConfig) (*Study, error) {
	st := &Study{
		cfg:    cfg,
		probes: map[string]*fdtd.Probe{},
		log:    log.WithField("study", cfg.Study.Name),
	}

	if cfg.Study.MaterialTable != "" {
		custom, err := io.ReadMaterialTable(cfg.Study.MaterialTable)
		if err != nil {
			return nil, &ConfigError{
				Field:  "MaterialTable",
				Reason: err.Error(),
			}
		}
		st.custom = custom
	}
	return st, nil
}

// Grid returns the voxelized material grid, nil before Setup.
func (st *Study) Grid() *voxel.Grid { return st.grid }

// Simulation returns the configured solver, nil before Setup.
func (st *Study) Simulation() *fdtd.Simulation { return st.sim }

// Probe returns a named monitor, nil if the study has no such probe.
func (st *Study) Probe(name string) *fdtd.Probe { return st.probes[name] }

// Warning returns the voxelization warning, nil for a clean scene.
func (st *Study) Warning() *MeshWarning { return st.warning }

// Setup voxelizes the scene and builds the solver: materials resolved,
// memory budget enforced, sources and probes mapped from physical
// coordinates to grid cells. After Setup the study is ready to Run.
func (st *Study) Setup() error {
	sc := &st.cfg.Study

	regions, err := st.buildRegions()
	if err != nil {
		return err
	}

	grid, report, err := voxel.Voxelize(regions, sc.CellSize, sc.Margin)
	if err != nil {
		return &ConfigError{Field: "Mesh", Reason: err.Error()}
	}
	st.grid, st.report = grid, report

	st.log.WithFields(log.Fields{
		"cells":     fmt.Sprintf("%dx%dx%d", grid.Nx, grid.Ny, grid.Nz),
		"materials": len(grid.Palette),
	}).Info("scene voxelized")

	if report.Degraded() {
		st.warning = &MeshWarning{
			Mesh:             sc.Name,
			AmbiguousColumns: report.AmbiguousColumns,
			PerturbedColumns: report.PerturbedColumns,
		}
		st.log.Warn(st.warning.Error())
	}

	cfg := fdtd.NewConfig(
		grid.Nx+2*sc.PMLCells, grid.Ny+2*sc.PMLCells, grid.Nz+2*sc.PMLCells,
		sc.CellSize, 0,
	)
	cfg.PML.Thickness = sc.PMLCells

	requiredGB := float64(cfg.Nx) * float64(cfg.Ny) * float64(cfg.Nz) *
		bytesPerCell / (1 << 30)
	if requiredGB > sc.MemoryBudgetGB {
		return &ResourceError{
			Nx: cfg.Nx, Ny: cfg.Ny, Nz: cfg.Nz,
			RequiredGB: requiredGB, BudgetGB: sc.MemoryBudgetGB,
		}
	}

	st.checkResolution()

	switch {
	case sc.Steps > 0:
		cfg.Steps = sc.Steps
	case sc.Duration > 0:
		cfg.Steps = cfg.StepsFor(sc.Duration)
	default:
		// Open-ended: run until ring-down, capped well past the pulse.
		pulse := &fdtd.GaussianPulse{Fcen: sc.Fcen, Fwidth: sc.Fwidth}
		st.maxSteps = 20 * cfg.StepsFor(pulse.Tail(decayFrac))
		cfg.Steps = st.maxSteps
	}

	sim, err := fdtd.NewSimulation(cfg)
	if err != nil {
		return &ConfigError{Field: "Study", Reason: err.Error()}
	}
	if sc.Workers > 0 {
		sim.SetWorkers(sc.Workers)
	}
	if err := sim.LoadGrid(grid); err != nil {
		return err
	}
	st.sim = sim

	if err := st.placeSources(); err != nil {
		return err
	}
	if err := st.placeProbes(); err != nil {
		return err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	st.log.WithFields(log.Fields{
		"steps":    cfg.Steps,
		"dt":       cfg.Dt,
		"fieldsGB": fmt.Sprintf("%.2f", requiredGB),
		"allocMB":  ms.Alloc >> 20,
	}).Info("solver ready")

	return nil
}

func (st *Study) buildRegions() ([]voxel.Region, error) {
	var regions []voxel.Region
	for _, mc := range st.cfg.Meshes() {
		mat, err := io.ResolveMaterial(mc, st.custom)
		if err != nil {
			return nil, &ConfigError{Field: "Mesh." + mc.Name, Reason: err.Error()}
		}

		var mesh *geom.Mesh
		switch mc.Shape {
		case "box":
			mesh = geom.BoxMesh(
				geom.Vec{mc.MinX, mc.MinY, mc.MinZ},
				geom.Vec{mc.MaxX, mc.MaxY, mc.MaxZ},
			)
		case "sphere":
			mesh = geom.SphereMesh(
				geom.Vec{mc.X, mc.Y, mc.Z}, mc.Radius, mc.Segments,
			)
		}
		regions = append(regions, voxel.Region{Mesh: mesh, Material: mat})
	}
	return regions, nil
}

// checkResolution warns when the cell size cannot resolve the highest
// excited frequency in the densest dielectric.
func (st *Study) checkResolution() {
	sc := &st.cfg.Study

	epsMax, muMax := 1.0, 1.0
	for _, m := range st.grid.Palette {
		if m.PEC {
			continue
		}
		if m.EpsRel > epsMax {
			epsMax = m.EpsRel
		}
		if m.MuRel > muMax {
			muMax = m.MuRel
		}
	}

	fmax := sc.Fcen + sc.Fwidth
	lambdaMin := fdtd.C0 / (fmax * math.Sqrt(epsMax*muMax))
	cells := lambdaMin / sc.CellSize
	if cells < minCellsPerWavelength {
		st.log.WithFields(log.Fields{
			"cellsPerWavelength": fmt.Sprintf("%.1f", cells),
			"lambdaMin":          lambdaMin,
		}).Warn("grid resolves the shortest wavelength poorly; " +
			"expect dispersion error above a few percent")
	}
}

// cellFor maps a physical position to solver cell coordinates, requiring
// it to land inside the voxelized scene (the PML shell is off limits).
func (st *Study) cellFor(kind, name string, x, y, z float64) ([3]int, error) {
	i, j, k := st.grid.CellAt(geom.Vec{x, y, z})
	if !st.grid.BoundsCheck(i, j, k) {
		return [3]int{}, &ConfigError{
			Field: kind + "." + name,
			Reason: fmt.Sprintf(
				"position (%g, %g, %g) lies outside the scene bounds", x, y, z),
		}
	}
	off := st.cfg.Study.PMLCells
	return [3]int{i + off, j + off, k + off}, nil
}

func (st *Study) placeSources() error {
	sc := &st.cfg.Study
	for _, src := range st.cfg.Sources() {
		cell, err := st.cellFor("Source", src.Name, src.X, src.Y, src.Z)
		if err != nil {
			return err
		}
		comp, _ := fdtd.ParseComponent(src.Component)

		var s fdtd.Source
		if src.Type == "cw" {
			freq := src.Freq
			if freq == 0 {
				freq = sc.Fcen
			}
			s = &fdtd.ContinuousWave{
				Freq: freq, Amp: src.Amplitude, Pos: cell, Comp: comp,
			}
		} else {
			s = &fdtd.GaussianPulse{
				Fcen: sc.Fcen, Fwidth: sc.Fwidth,
				Amp: src.Amplitude, Pos: cell, Comp: comp,
			}
		}
		if err := st.sim.AddSource(s); err != nil {
			return &ConfigError{Field: "Source." + src.Name, Reason: err.Error()}
		}
	}
	return nil
}

func (st *Study) placeProbes() error {
	for _, pc := range st.cfg.Probes() {
		cell, err := st.cellFor("Probe", pc.Name, pc.X, pc.Y, pc.Z)
		if err != nil {
			return err
		}
		comp, _ := fdtd.ParseComponent(pc.Component)
		probe, err := st.sim.AddProbe(pc.Name, cell, comp)
		if err != nil {
			return &ConfigError{Field: "Probe." + pc.Name, Reason: err.Error()}
		}
		st.probes[pc.Name] = probe
		if st.decayMonitor == nil {
			st.decayMonitor = probe
		}
	}
	return nil
}

// Run drives the solver to completion, ring-down, divergence, or
// cancellation. The returned error is nil only for a full run.
func (st *Study) Run(ctx context.Context) error {
	if st.sim == nil {
		return &ConfigError{Field: "Study", Reason: "Run called before Setup"}
	}

	st.log.WithField("state", st.sim.State()).Info("run started")

	var err error
	if st.maxSteps > 0 {
		err = st.sim.RunUntilDecay(ctx, st.decayMonitor, decayFrac, st.maxSteps)
	} else {
		err = st.sim.Run(ctx)
	}

	st.log.WithFields(log.Fields{
		"state": st.sim.State(),
		"steps": st.sim.StepCount(),
		"time":  st.sim.Time(),
	}).Info("run finished")
	return err
}

// Spectrum transforms a named probe's series.
func (st *Study) Spectrum(probeName string) (*spectrum.Spectrum, error) {
	probe, ok := st.probes[probeName]
	if !ok {
		return nil, fmt.Errorf("study has no probe '%s'", probeName)
	}
	return spectrum.Compute(probe.Samples(), probe.Dt())
}

// WriteResults writes every probe's series and spectrum into the study's
// output directory as binary records.
func (st *Study) WriteResults() error {
	sc := &st.cfg.Study
	if err := os.MkdirAll(sc.OutputDir, 0755); err != nil {
		return err
	}

	for name, probe := range st.probes {
		if err := st.writeProbe(name, probe); err != nil {
			return err
		}
	}
	return nil
}

func (st *Study) writeProbe(name string, probe *fdtd.Probe) error {
	fname := path.Join(st.cfg.Study.OutputDir, name+".series")
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := io.WriteSeries(probe, f); err != nil {
		return err
	}

	s, err := spectrum.Compute(probe.Samples(), probe.Dt())
	if err != nil {
		// Too few samples to transform; the series alone is still useful.
		st.log.WithField("probe", name).Warn(err.Error())
		return nil
	}
	sf, err := os.Create(path.Join(st.cfg.Study.OutputDir, name+".spectrum"))
	if err != nil {
		return err
	}
	defer sf.Close()
	return io.WriteSpectrum(s, sf)
}

// RunStudyFile is the whole pipeline in one call: parse, set up, run, and
// write results. main uses it; tests and tools can drive the pieces.
func RunStudyFile(ctx context.Context, fname string) (*Study, error) {
	cfg, err := io.ReadStudyConfig(fname)
	if err != nil {
		return nil, &ConfigError{Field: "file", Reason: err.Error()}
	}

	st, err := NewStudy(cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Setup(); err != nil {
		return nil, err
	}
	if err := st.Run(ctx); err != nil {
		return st, err
	}
	return st, st.WriteResults()
}
