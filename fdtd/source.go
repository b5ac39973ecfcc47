package fdtd

import (
	"math"
)

// Component identifies one of the six Yee field components.
type Component int

const (
	Ex Component = iota
	Ey
	Ez
	Hx
	Hy
	Hz
)

var componentNames = []string{"Ex", "Ey", "Ez", "Hx", "Hy", "Hz"}

func (c Component) String() string {
	if c < Ex || c > Hz {
		return "invalid"
	}
	return componentNames[c]
}

// IsElectric returns true for Ex, Ey, and Ez.
func (c Component) IsElectric() bool { return c <= Ez }

// ParseComponent maps a component name ("Ex" ... "Hz") to its Component.
func ParseComponent(name string) (Component, bool) {
	for i, n := range componentNames {
		if n == name {
			return Component(i), true
		}
	}
	return 0, false
}

// Source produces the excitation waveform injected additively ("soft"
// source) into one field component at one cell every step.
type Source interface {
	// Value returns the waveform sample at simulation time t.
	Value(t float64) float64
	// Cell returns the grid coordinates of the injection point.
	Cell() [3]int
	// Component returns the excited field component.
	Component() Component
	// Amplitude returns the peak amplitude, used to scale the solver's
	// divergence threshold.
	Amplitude() float64
}

// GaussianPulse is a Gaussian-envelope sinusoid: a carrier at Fcen
// multiplied by a pulse whose temporal width is 1/(pi*Fwidth). A narrower
// stated bandwidth therefore yields a longer pulse, and vice versa; the
// envelope starts near zero, peaks at the delay 4/(pi*Fwidth), and decays
// to negligible amplitude well before a correctly sized run ends.
type GaussianPulse struct {
	Fcen, Fwidth float64
	Amp          float64
	Pos          [3]int
	Comp         Component
}

func (s *GaussianPulse) Value(t float64) float64 {
	tau := 1 / (math.Pi * s.Fwidth)
	t0 := 4 * tau
	arg := (t - t0) / tau
	return s.Amp * math.Exp(-arg*arg) * math.Sin(2*math.Pi*s.Fcen*(t-t0))
}

// Tail returns the time after which the envelope has fallen below frac of
// the peak amplitude. Runs intended for resonance extraction should last
// well past this point.
func (s *GaussianPulse) Tail(frac float64) float64 {
	if frac <= 0 || frac >= 1 {
		frac = 1e-6
	}
	tau := 1 / (math.Pi * s.Fwidth)
	return 4*tau + tau*math.Sqrt(-math.Log(frac))
}

func (s *GaussianPulse) Cell() [3]int         { return s.Pos }
func (s *GaussianPulse) Component() Component { return s.Comp }
func (s *GaussianPulse) Amplitude() float64   { return s.Amp }

// ContinuousWave is a steady sinusoidal drive at a single frequency.
type ContinuousWave struct {
	Freq float64
	Amp  float64
	Pos  [3]int
	Comp Component
}

func (s *ContinuousWave) Value(t float64) float64 {
	return s.Amp * math.Sin(2*math.Pi*s.Freq*t)
}

func (s *ContinuousWave) Cell() [3]int         { return s.Pos }
func (s *ContinuousWave) Component() Component { return s.Comp }
func (s *ContinuousWave) Amplitude() float64   { return s.Amp }
