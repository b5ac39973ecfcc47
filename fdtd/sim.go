package fdtd

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/mittens-cad/fieldsim/voxel"
)

// State tracks a Simulation through its lifecycle. There are no retries
// inside a run: an unstable run lands in Diverged, a superseded one in
// Canceled, and both are terminal.
type State int

const (
	Uninitialized State = iota
	Ready
	Running
	Completed
	Diverged
	Canceled
)

var stateNames = []string{
	"Uninitialized", "Ready", "Running", "Completed", "Diverged", "Canceled",
}

func (s State) String() string {
	if s < Uninitialized || s > Canceled {
		return "invalid"
	}
	return stateNames[s]
}

const (
	// divergenceFactor scales the summed source amplitude into the field
	// magnitude treated as numerical divergence.
	divergenceFactor = 1e6
	// divergenceInterval is the number of steps between divergence scans.
	divergenceInterval = 8
)

// DivergenceError reports a run stopped by unbounded field growth, usually
// caused by a cell size/dt inconsistency or a PML misconfiguration.
type DivergenceError struct {
	Step  int
	Value float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf(
		"fields diverged at step %d (|field| reached %g); "+
			"partial probe data is retained but incomplete", e.Step, e.Value)
}

// Simulation is a 3D Yee-grid FDTD run with CPML absorbing boundaries.
//
// E components live on cell edges and H components on cell faces, each
// offset half a cell from the others. Material behavior is folded into
// per-cell update coefficients before stepping starts, so the hot loop
// carries no material branching; perfect conductors get zeroed
// coefficients, which forces their E components to exactly zero every step.
type Simulation struct {
	cfg Config

	nx, ny, nz   int
	area, volume int

	ex, ey, ez []float64
	hx, hy, hz []float64

	// E and H update coefficients, one per cell.
	ca, cb []float64
	da, db []float64
	pec    []bool

	cpmlX, cpmlY, cpmlZ cpmlProfile

	// CPML memory variables, non-zero only inside the absorbing shell.
	psiExY, psiExZ []float64
	psiEyX, psiEyZ []float64
	psiEzX, psiEzY []float64
	psiHxY, psiHxZ []float64
	psiHyX, psiHyZ []float64
	psiHzX, psiHzY []float64

	sources []Source
	probes  []*Probe

	step    int
	state   State
	workers int
	// Summed source amplitude, scaled into the divergence threshold.
	maxAmp float64
}

// NewSimulation allocates all field and auxiliary state for cfg. The
// returned simulation is Ready with every cell set to vacuum.
func NewSimulation(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		cfg: cfg,
		nx:  cfg.Nx, ny: cfg.Ny, nz: cfg.Nz,
		area:    cfg.Nx * cfg.Ny,
		volume:  cfg.Nx * cfg.Ny * cfg.Nz,
		state:   Ready,
		workers: runtime.NumCPU(),
	}

	n := s.volume
	s.ex, s.ey, s.ez = make([]float64, n), make([]float64, n), make([]float64, n)
	s.hx, s.hy, s.hz = make([]float64, n), make([]float64, n), make([]float64, n)

	s.ca = make([]float64, n)
	s.cb = make([]float64, n)
	s.da = make([]float64, n)
	s.db = make([]float64, n)
	s.pec = make([]bool, n)

	cbVac := cfg.Dt / (Eps0 * cfg.CellSize)
	dbVac := cfg.Dt / (Mu0 * cfg.CellSize)
	for i := 0; i < n; i++ {
		s.ca[i], s.cb[i] = 1, cbVac
		s.da[i], s.db[i] = 1, dbVac
	}

	s.cpmlX = newCPMLProfile(cfg.Nx, cfg.CellSize, cfg.Dt, cfg.PML)
	s.cpmlY = newCPMLProfile(cfg.Ny, cfg.CellSize, cfg.Dt, cfg.PML)
	s.cpmlZ = newCPMLProfile(cfg.Nz, cfg.CellSize, cfg.Dt, cfg.PML)

	s.psiExY, s.psiExZ = make([]float64, n), make([]float64, n)
	s.psiEyX, s.psiEyZ = make([]float64, n), make([]float64, n)
	s.psiEzX, s.psiEzY = make([]float64, n), make([]float64, n)
	s.psiHxY, s.psiHxZ = make([]float64, n), make([]float64, n)
	s.psiHyX, s.psiHyZ = make([]float64, n), make([]float64, n)
	s.psiHzX, s.psiHzY = make([]float64, n), make([]float64, n)

	return s, nil
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() Config { return s.cfg }

// State returns the current lifecycle state.
func (s *Simulation) State() State { return s.state }

// StepCount returns the number of completed leapfrog iterations.
func (s *Simulation) StepCount() int { return s.step }

// Time returns the current simulation time (s).
func (s *Simulation) Time() float64 { return float64(s.step) * s.cfg.Dt }

// SetWorkers bounds the number of goroutines sweeping the grid. Values
// below 1 select a serial sweep.
func (s *Simulation) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

func (s *Simulation) idx(i, j, k int) int {
	return i + j*s.nx + k*s.area
}

// SetMaterial folds mat into the update coefficients of cell (i, j, k).
// Perfect conductors zero the E coefficients outright so the update forces
// the field there to exactly zero regardless of its neighbors.
func (s *Simulation) SetMaterial(i, j, k int, mat voxel.Material) {
	idx := s.idx(i, j, k)

	if mat.PEC {
		s.pec[idx] = true
		s.ca[idx], s.cb[idx] = 0, 0
		s.da[idx] = 1
		s.db[idx] = s.cfg.Dt / (Mu0 * s.cfg.CellSize)
		return
	}
	s.pec[idx] = false

	// Standard exponential-decay discretization of the conductive loss:
	//   Ca = (1 - f) / (1 + f),  Cb = dt/(eps dx) / (1 + f),
	// with f = sigma dt / (2 eps).
	eps := Eps0 * mat.EpsRel
	f := mat.Conductivity * s.cfg.Dt / (2 * eps)
	s.ca[idx] = (1 - f) / (1 + f)
	s.cb[idx] = (s.cfg.Dt / (eps * s.cfg.CellSize)) / (1 + f)

	mu := Mu0 * mat.MuRel
	s.da[idx] = 1
	s.db[idx] = s.cfg.Dt / (mu * s.cfg.CellSize)
}

// SetMaterialRegion applies mat to every cell of the half-open box
// [i0,i1) x [j0,j1) x [k0,k1), clamped to the grid.
func (s *Simulation) SetMaterialRegion(i0, i1, j0, j1, k0, k1 int, mat voxel.Material) {
	for k := max(k0, 0); k < min(k1, s.nz); k++ {
		for j := max(j0, 0); j < min(j1, s.ny); j++ {
			for i := max(i0, 0); i < min(i1, s.nx); i++ {
				s.SetMaterial(i, j, k, mat)
			}
		}
	}
}

// LoadGrid folds a voxelized material grid into the update coefficients,
// offset so the PML shell surrounds it. The simulation dimensions must be
// the material grid's plus twice the PML thickness.
func (s *Simulation) LoadGrid(vg *voxel.Grid) error {
	off := s.cfg.PML.Thickness
	if vg.Nx+2*off != s.nx || vg.Ny+2*off != s.ny || vg.Nz+2*off != s.nz {
		return fmt.Errorf(
			"material grid %dx%dx%d plus 2x%d PML cells does not match the %dx%dx%d simulation",
			vg.Nx, vg.Ny, vg.Nz, off, s.nx, s.ny, s.nz)
	}

	for k := 0; k < vg.Nz; k++ {
		for j := 0; j < vg.Ny; j++ {
			for i := 0; i < vg.Nx; i++ {
				id := vg.Data[vg.Idx(i, j, k)]
				if id == 0 {
					continue // vacuum is the default
				}
				s.SetMaterial(i+off, j+off, k+off, vg.Palette[id])
			}
		}
	}
	return nil
}

// AddSource registers a source. Sources are applied additively after each
// E update; electric sources never write into perfect-conductor cells.
func (s *Simulation) AddSource(src Source) error {
	c := src.Cell()
	if !s.inBounds(c) {
		return fmt.Errorf("source cell %v outside %dx%dx%d grid",
			c, s.nx, s.ny, s.nz)
	}
	s.sources = append(s.sources, src)
	s.maxAmp += math.Abs(src.Amplitude())
	return nil
}

// AddProbe registers a passive probe and returns it.
func (s *Simulation) AddProbe(name string, pos [3]int, comp Component) (*Probe, error) {
	if !s.inBounds(pos) {
		return nil, fmt.Errorf("probe '%s' cell %v outside %dx%dx%d grid",
			name, pos, s.nx, s.ny, s.nz)
	}
	p := &Probe{Name: name, Pos: pos, Comp: comp, dt: s.cfg.Dt}
	p.samples = make([]float64, 0, s.cfg.Steps)
	s.probes = append(s.probes, p)
	return p, nil
}

// Probes returns all registered probes.
func (s *Simulation) Probes() []*Probe { return s.probes }

func (s *Simulation) inBounds(c [3]int) bool {
	return c[0] >= 0 && c[0] < s.nx &&
		c[1] >= 0 && c[1] < s.ny &&
		c[2] >= 0 && c[2] < s.nz
}

// Run advances the simulation by the configured number of steps, checking
// for cancellation between steps and for divergence at a fixed interval.
// Probe data accumulated before divergence or cancellation stays readable
// but is marked incomplete.
func (s *Simulation) Run(ctx context.Context) error {
	if s.state != Ready {
		return fmt.Errorf("cannot run a simulation in state %s", s.state)
	}
	s.state = Running

	for n := 0; n < s.cfg.Steps; n++ {
		select {
		case <-ctx.Done():
			s.state = Canceled
			return ctx.Err()
		default:
		}

		s.Step()

		if s.step%divergenceInterval == 0 {
			if v, diverged := s.scanDivergence(); diverged {
				s.state = Diverged
				return &DivergenceError{Step: s.step, Value: v}
			}
		}
	}

	s.state = Completed
	for _, p := range s.probes {
		p.complete = true
	}
	return nil
}

// decayWindow is the number of steps over which RunUntilDecay measures the
// probe envelope. It must span at least one carrier period so zero
// crossings of the waveform do not read as decay.
const decayWindow = 64

// RunUntilDecay steps until the monitored probe's envelope falls below
// frac of its running peak, or maxSteps is reached. It is used for
// free-decay resonance runs whose required duration is not known up front.
func (s *Simulation) RunUntilDecay(
	ctx context.Context, probe *Probe, frac float64, maxSteps int,
) error {
	if s.state != Ready {
		return fmt.Errorf("cannot run a simulation in state %s", s.state)
	}
	s.state = Running

	peak := 0.0
	for n := 0; n < maxSteps; n++ {
		select {
		case <-ctx.Done():
			s.state = Canceled
			return ctx.Err()
		default:
		}

		s.Step()

		if s.step%divergenceInterval == 0 {
			if v, diverged := s.scanDivergence(); diverged {
				s.state = Diverged
				return &DivergenceError{Step: s.step, Value: v}
			}
		}

		if s.step%decayWindow != 0 || len(probe.samples) < 2*decayWindow {
			continue
		}
		window := 0.0
		for _, v := range probe.samples[len(probe.samples)-decayWindow:] {
			if abs := math.Abs(v); abs > window {
				window = abs
			}
		}
		if window > peak {
			peak = window
		} else if peak > 0 && window < frac*peak {
			break
		}
	}

	s.state = Completed
	for _, p := range s.probes {
		p.complete = true
	}
	return nil
}

// Step performs one leapfrog iteration: H at t+dt/2, E at t+dt, then
// source injection and probe recording at the step's start time t, so
// sample i of every probe lands at i*dt exactly as Times labels it. Run
// drives it; callers may also step manually for diagnostics, skipping
// Run's divergence checks.
func (s *Simulation) Step() {
	s.parallel(s.updateH)
	s.parallel(s.updateE)

	t := s.Time()

	for _, src := range s.sources {
		c := src.Cell()
		idx := s.idx(c[0], c[1], c[2])
		comp := src.Component()
		if comp.IsElectric() && s.pec[idx] {
			continue
		}
		v := src.Value(t)
		switch comp {
		case Ex:
			s.ex[idx] += v
		case Ey:
			s.ey[idx] += v
		case Ez:
			s.ez[idx] += v
		case Hx:
			s.hx[idx] += v
		case Hy:
			s.hy[idx] += v
		case Hz:
			s.hz[idx] += v
		}
	}

	for _, p := range s.probes {
		p.record(s.FieldAt(p.Comp, p.Pos[0], p.Pos[1], p.Pos[2]))
	}

	s.step++
}

// parallel sweeps f over the grid partitioned into k-axis bands, joining at
// a barrier before returning. Each band touches only its own cells, so the
// two sweeps per step need no locks, only the barriers between them.
func (s *Simulation) parallel(f func(k0, k1 int)) {
	w := s.workers
	if w > s.nz {
		w = s.nz
	}
	if w <= 1 {
		f(0, s.nz)
		return
	}

	eg := &errgroup.Group{}
	for b := 0; b < w; b++ {
		k0 := s.nz * b / w
		k1 := s.nz * (b + 1) / w
		eg.Go(func() error {
			f(k0, k1)
			return nil
		})
	}
	eg.Wait()
}

// updateH advances the three H components for k in [k0, k1) from the curl
// of E, folding in the CPML recursive convolution inside the shell.
func (s *Simulation) updateH(k0, k1 int) {
	nx, ny, nz := s.nx, s.ny, s.nz
	th := s.cfg.PML.Thickness
	pml := th > 0

	// Hx: dHx/dt = -(dEz/dy - dEy/dz) / mu
	for k := k0; k < min(k1, nz-1); k++ {
		kShell := pml && inShell(k, nz, th)
		for j := 0; j < ny-1; j++ {
			jShell := pml && inShell(j, ny, th)
			row := j*nx + k*s.area
			for i := 0; i < nx; i++ {
				idx := row + i
				dezDy := s.ez[idx+nx] - s.ez[idx]
				deyDz := s.ey[idx+s.area] - s.ey[idx]

				if jShell {
					s.psiHxY[idx] = s.cpmlY.b[j]*s.psiHxY[idx] + s.cpmlY.c[j]*dezDy
					dezDy = dezDy*s.cpmlY.kInv[j] + s.psiHxY[idx]
				}
				if kShell {
					s.psiHxZ[idx] = s.cpmlZ.b[k]*s.psiHxZ[idx] + s.cpmlZ.c[k]*deyDz
					deyDz = deyDz*s.cpmlZ.kInv[k] + s.psiHxZ[idx]
				}

				s.hx[idx] = s.da[idx]*s.hx[idx] - s.db[idx]*(dezDy-deyDz)
			}
		}
	}

	// Hy: dHy/dt = -(dEx/dz - dEz/dx) / mu
	for k := k0; k < min(k1, nz-1); k++ {
		kShell := pml && inShell(k, nz, th)
		for j := 0; j < ny; j++ {
			row := j*nx + k*s.area
			for i := 0; i < nx-1; i++ {
				idx := row + i
				dexDz := s.ex[idx+s.area] - s.ex[idx]
				dezDx := s.ez[idx+1] - s.ez[idx]

				if kShell {
					s.psiHyZ[idx] = s.cpmlZ.b[k]*s.psiHyZ[idx] + s.cpmlZ.c[k]*dexDz
					dexDz = dexDz*s.cpmlZ.kInv[k] + s.psiHyZ[idx]
				}
				if pml && inShell(i, nx, th) {
					s.psiHyX[idx] = s.cpmlX.b[i]*s.psiHyX[idx] + s.cpmlX.c[i]*dezDx
					dezDx = dezDx*s.cpmlX.kInv[i] + s.psiHyX[idx]
				}

				s.hy[idx] = s.da[idx]*s.hy[idx] - s.db[idx]*(dexDz-dezDx)
			}
		}
	}

	// Hz: dHz/dt = -(dEy/dx - dEx/dy) / mu
	for k := k0; k < min(k1, nz); k++ {
		for j := 0; j < ny-1; j++ {
			jShell := pml && inShell(j, ny, th)
			row := j*nx + k*s.area
			for i := 0; i < nx-1; i++ {
				idx := row + i
				deyDx := s.ey[idx+1] - s.ey[idx]
				dexDy := s.ex[idx+nx] - s.ex[idx]

				if pml && inShell(i, nx, th) {
					s.psiHzX[idx] = s.cpmlX.b[i]*s.psiHzX[idx] + s.cpmlX.c[i]*deyDx
					deyDx = deyDx*s.cpmlX.kInv[i] + s.psiHzX[idx]
				}
				if jShell {
					s.psiHzY[idx] = s.cpmlY.b[j]*s.psiHzY[idx] + s.cpmlY.c[j]*dexDy
					dexDy = dexDy*s.cpmlY.kInv[j] + s.psiHzY[idx]
				}

				s.hz[idx] = s.da[idx]*s.hz[idx] - s.db[idx]*(deyDx-dexDy)
			}
		}
	}
}

// updateE advances the three E components for k in [k0, k1) from the curl
// of the just-updated H field. Tangential E on the outer boundary stays
// zero (PEC backing behind the PML).
func (s *Simulation) updateE(k0, k1 int) {
	nx, ny, nz := s.nx, s.ny, s.nz
	th := s.cfg.PML.Thickness
	pml := th > 0

	// Ex: dEx/dt = (dHz/dy - dHy/dz) / eps
	for k := max(k0, 1); k < min(k1, nz-1); k++ {
		kShell := pml && inShell(k, nz, th)
		for j := 1; j < ny-1; j++ {
			jShell := pml && inShell(j, ny, th)
			row := j*nx + k*s.area
			for i := 0; i < nx; i++ {
				idx := row + i
				dhzDy := s.hz[idx] - s.hz[idx-nx]
				dhyDz := s.hy[idx] - s.hy[idx-s.area]

				if jShell {
					s.psiExY[idx] = s.cpmlY.b[j]*s.psiExY[idx] + s.cpmlY.c[j]*dhzDy
					dhzDy = dhzDy*s.cpmlY.kInv[j] + s.psiExY[idx]
				}
				if kShell {
					s.psiExZ[idx] = s.cpmlZ.b[k]*s.psiExZ[idx] + s.cpmlZ.c[k]*dhyDz
					dhyDz = dhyDz*s.cpmlZ.kInv[k] + s.psiExZ[idx]
				}

				s.ex[idx] = s.ca[idx]*s.ex[idx] + s.cb[idx]*(dhzDy-dhyDz)
			}
		}
	}

	// Ey: dEy/dt = (dHx/dz - dHz/dx) / eps
	for k := max(k0, 1); k < min(k1, nz-1); k++ {
		kShell := pml && inShell(k, nz, th)
		for j := 0; j < ny; j++ {
			row := j*nx + k*s.area
			for i := 1; i < nx-1; i++ {
				idx := row + i
				dhxDz := s.hx[idx] - s.hx[idx-s.area]
				dhzDx := s.hz[idx] - s.hz[idx-1]

				if kShell {
					s.psiEyZ[idx] = s.cpmlZ.b[k]*s.psiEyZ[idx] + s.cpmlZ.c[k]*dhxDz
					dhxDz = dhxDz*s.cpmlZ.kInv[k] + s.psiEyZ[idx]
				}
				if pml && inShell(i, nx, th) {
					s.psiEyX[idx] = s.cpmlX.b[i]*s.psiEyX[idx] + s.cpmlX.c[i]*dhzDx
					dhzDx = dhzDx*s.cpmlX.kInv[i] + s.psiEyX[idx]
				}

				s.ey[idx] = s.ca[idx]*s.ey[idx] + s.cb[idx]*(dhxDz-dhzDx)
			}
		}
	}

	// Ez: dEz/dt = (dHy/dx - dHx/dy) / eps
	for k := k0; k < min(k1, nz); k++ {
		for j := 1; j < ny-1; j++ {
			jShell := pml && inShell(j, ny, th)
			row := j*nx + k*s.area
			for i := 1; i < nx-1; i++ {
				idx := row + i
				dhyDx := s.hy[idx] - s.hy[idx-1]
				dhxDy := s.hx[idx] - s.hx[idx-nx]

				if pml && inShell(i, nx, th) {
					s.psiEzX[idx] = s.cpmlX.b[i]*s.psiEzX[idx] + s.cpmlX.c[i]*dhyDx
					dhyDx = dhyDx*s.cpmlX.kInv[i] + s.psiEzX[idx]
				}
				if jShell {
					s.psiEzY[idx] = s.cpmlY.b[j]*s.psiEzY[idx] + s.cpmlY.c[j]*dhxDy
					dhxDy = dhxDy*s.cpmlY.kInv[j] + s.psiEzY[idx]
				}

				s.ez[idx] = s.ca[idx]*s.ez[idx] + s.cb[idx]*(dhyDx-dhxDy)
			}
		}
	}
}

// scanDivergence reports the largest field magnitude when it exceeds the
// divergence threshold or has become non-finite.
func (s *Simulation) scanDivergence() (worst float64, diverged bool) {
	threshold := math.Inf(1)
	if s.maxAmp > 0 {
		threshold = divergenceFactor * s.maxAmp
	}

	for _, arr := range [][]float64{s.ex, s.ey, s.ez, s.hx, s.hy, s.hz} {
		for _, v := range arr {
			abs := math.Abs(v)
			if abs > worst || math.IsNaN(v) {
				worst = abs
			}
			if abs > threshold || math.IsNaN(v) {
				return worst, true
			}
		}
	}
	return worst, false
}

// FieldAt returns the value of one field component at a cell.
func (s *Simulation) FieldAt(comp Component, i, j, k int) float64 {
	idx := s.idx(i, j, k)
	switch comp {
	case Ex:
		return s.ex[idx]
	case Ey:
		return s.ey[idx]
	case Ez:
		return s.ez[idx]
	case Hx:
		return s.hx[idx]
	case Hy:
		return s.hy[idx]
	case Hz:
		return s.hz[idx]
	}
	return 0
}

// Energy returns the sum of squared field values over the whole grid. It
// is a relative measure used for decay and absorption checks, not a
// physical energy in joules.
func (s *Simulation) Energy() float64 {
	total := 0.0
	for _, arr := range [][]float64{s.ex, s.ey, s.ez, s.hx, s.hy, s.hz} {
		for _, v := range arr {
			total += v * v
		}
	}
	return total
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
