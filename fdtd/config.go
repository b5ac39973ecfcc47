/*package fdtd implements a 3D finite-difference time-domain electromagnetic
solver on a staggered Yee grid, with convolutional PML absorbing boundaries,
broadband Gaussian-pulse excitation, and passive field probes.

References:
  - Yee, "Numerical solution of initial boundary value problems" (1966)
  - Taflove & Hagness, "Computational Electrodynamics" (2005)
  - Roden & Gedney, "Convolutional PML (CPML)" (2000)
*/
package fdtd

import (
	"fmt"
	"math"
)

const (
	// C0 is the speed of light in vacuum (m/s).
	C0 = 299_792_458.0
	// Eps0 is the permittivity of free space (F/m).
	Eps0 = 8.854_187_817e-12
	// Mu0 is the permeability of free space (H/m).
	Mu0 = 1.256_637_062e-6
)

// PMLConfig controls the convolutional PML absorbing boundary.
type PMLConfig struct {
	// Thickness of the absorbing shell in cells on every face.
	Thickness int
	// SigmaMax is the peak conductivity of the grading profile. Zero
	// selects the standard optimum for the cell size.
	SigmaMax float64
	// Order of the polynomial grading profile.
	Order float64
	// KappaMax is the peak coordinate-stretching factor.
	KappaMax float64
	// AlphaMax is the peak CFS shift frequency term.
	AlphaMax float64
}

// DefaultPML returns the PML settings used when the caller does not override
// them: a 10-cell cubic-graded shell with no stretching.
func DefaultPML() PMLConfig {
	return PMLConfig{Thickness: 10, Order: 3, KappaMax: 1}
}

// OptimalSigmaMax returns the peak PML conductivity giving roughly -40 dB
// reflection for typical shell thicknesses.
func OptimalSigmaMax(cellSize, order float64) float64 {
	return (order + 1) / (150 * math.Pi * cellSize)
}

// Config describes one FDTD run. Grid dimensions include the PML shell.
type Config struct {
	Nx, Ny, Nz int
	// Edge length of one cubic cell (m).
	CellSize float64
	// Dt is the time step (s). It is always derived from the cell size by
	// CourantStep, never set directly by callers.
	Dt float64
	// CourantFactor is the safety margin applied below the CFL bound.
	CourantFactor float64
	PML           PMLConfig
	// Steps is the number of leapfrog iterations to run.
	Steps int
}

// NewConfig returns a Config with a CFL-stable vacuum time step and default
// PML settings. maxWaveSpeed is the fastest phase velocity of any material
// in the grid; pass 0 for the vacuum speed of light.
func NewConfig(nx, ny, nz int, cellSize float64, maxWaveSpeed float64) Config {
	cfg := Config{
		Nx: nx, Ny: ny, Nz: nz,
		CellSize:      cellSize,
		CourantFactor: 0.99,
		PML:           DefaultPML(),
	}
	cfg.Dt = CourantStep(cellSize, maxWaveSpeed, cfg.CourantFactor)
	return cfg
}

// CourantStep returns the largest stable time step for a cubic 3D grid:
// dt = factor * dx / (v * sqrt(3)). An inconsistent user-chosen dt would
// either destabilize the run or silently waste precision, so dt is always
// computed here from the cell size.
func CourantStep(cellSize, maxWaveSpeed, factor float64) float64 {
	if maxWaveSpeed <= 0 {
		maxWaveSpeed = C0
	}
	if factor <= 0 || factor > 1 {
		factor = 0.99
	}
	return factor * cellSize / (maxWaveSpeed * math.Sqrt(3))
}

// StepsFor returns the number of leapfrog iterations covering the given
// physical duration.
func (c *Config) StepsFor(duration float64) int {
	return int(math.Ceil(duration / c.Dt))
}

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	switch {
	case c.Nx < 1 || c.Ny < 1 || c.Nz < 1:
		return fmt.Errorf("grid dimensions %dx%dx%d must be positive",
			c.Nx, c.Ny, c.Nz)
	case c.CellSize <= 0:
		return fmt.Errorf("cell size %g must be positive", c.CellSize)
	case c.Dt <= 0:
		return fmt.Errorf("time step %g must be positive (derive it with CourantStep)", c.Dt)
	case c.PML.Thickness < 0:
		return fmt.Errorf("PML thickness %d must be non-negative", c.PML.Thickness)
	case c.PML.Thickness*2 >= minDim(c.Nx, c.Ny, c.Nz):
		return fmt.Errorf(
			"PML shells (2x%d cells) leave no interior in a %dx%dx%d grid",
			c.PML.Thickness, c.Nx, c.Ny, c.Nz)
	}
	return nil
}

func minDim(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
