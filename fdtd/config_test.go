package fdtd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCourantStep(t *testing.T) {
	dt := CourantStep(0.01, 0, 0.99)
	want := 0.99 * 0.01 / (C0 * math.Sqrt(3))
	assert.InEpsilon(t, want, dt, 1e-12)

	// Slower media allow a larger step.
	slow := CourantStep(0.01, C0/2, 0.99)
	assert.InEpsilon(t, 2*dt, slow, 1e-12)

	// Out-of-range factors fall back to the default.
	assert.Equal(t, dt, CourantStep(0.01, 0, -1))
	assert.Equal(t, dt, CourantStep(0.01, 0, 1.5))
}

func TestConfigValidate(t *testing.T) {
	valid := NewConfig(32, 32, 32, 0.01, 0)
	valid.Steps = 100

	table := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"no PML", func(c *Config) { c.PML.Thickness = 0 }, true},
		{"zero dim", func(c *Config) { c.Ny = 0 }, false},
		{"negative dim", func(c *Config) { c.Nz = -4 }, false},
		{"zero cell size", func(c *Config) { c.CellSize = 0 }, false},
		{"zero dt", func(c *Config) { c.Dt = 0 }, false},
		{"negative PML", func(c *Config) { c.PML.Thickness = -1 }, false},
		{"PML swallows grid", func(c *Config) { c.PML.Thickness = 16 }, false},
	}

	for _, test := range table {
		cfg := valid
		test.mutate(&cfg)
		err := cfg.Validate()
		if test.ok {
			assert.NoError(t, err, test.name)
		} else {
			assert.Error(t, err, test.name)
		}
	}
}

func TestStepsFor(t *testing.T) {
	cfg := NewConfig(16, 16, 16, 0.01, 0)
	assert.Equal(t, 100, cfg.StepsFor(99.5*cfg.Dt))
	assert.Equal(t, 1, cfg.StepsFor(0.5*cfg.Dt))
	assert.Equal(t, 0, cfg.StepsFor(0))
}

func TestGaussianPulseWaveform(t *testing.T) {
	src := &GaussianPulse{Fcen: 1e9, Fwidth: 0.5e9, Amp: 2}
	tau := 1 / (math.Pi * src.Fwidth)
	t0 := 4 * tau

	// The envelope starts and ends near zero.
	assert.Less(t, math.Abs(src.Value(0)), 1e-5*src.Amp)
	assert.Less(t, math.Abs(src.Value(3*t0)), 1e-5*src.Amp)

	// The peak sits near the envelope delay and reaches a good fraction
	// of the stated amplitude.
	peak, peakT := 0.0, 0.0
	for i := 0; i <= 4000; i++ {
		tt := float64(i) * t0 / 2000
		if v := math.Abs(src.Value(tt)); v > peak {
			peak, peakT = v, tt
		}
	}
	assert.Greater(t, peak, 0.5*src.Amp)
	assert.LessOrEqual(t, peak, src.Amp)
	assert.InDelta(t, t0, peakT, tau)

	// A narrower bandwidth means a longer pulse.
	narrow := &GaussianPulse{Fcen: 1e9, Fwidth: 0.1e9, Amp: 2}
	assert.Greater(t, narrow.Tail(1e-6), src.Tail(1e-6))

	// Past the tail the envelope really is below the requested fraction.
	assert.Less(t, math.Abs(src.Value(src.Tail(1e-6))), 2e-6*src.Amp)
}

func TestContinuousWave(t *testing.T) {
	src := &ContinuousWave{Freq: 1e9, Amp: 3}
	assert.Equal(t, 0.0, src.Value(0))
	quarter := 1 / (4 * src.Freq)
	assert.InEpsilon(t, src.Amp, src.Value(quarter), 1e-9)
}

func TestParseComponent(t *testing.T) {
	for _, name := range []string{"Ex", "Ey", "Ez", "Hx", "Hy", "Hz"} {
		c, ok := ParseComponent(name)
		assert.True(t, ok)
		assert.Equal(t, name, c.String())
	}
	_, ok := ParseComponent("Et")
	assert.False(t, ok)

	assert.True(t, Ey.IsElectric())
	assert.False(t, Hz.IsElectric())
}
