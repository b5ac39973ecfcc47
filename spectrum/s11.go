package spectrum

import (
	"fmt"
	"math"
)

// Reflection holds a frequency-swept reflection coefficient. DB is
// 20*log10 of the reflected-to-incident amplitude ratio; bins where the
// incident signal carries no usable energy hold NaN.
type Reflection struct {
	Freqs []float64
	DB    []float64
	Phase []float64
	Df    float64
}

// incidentFloor is the fraction of the peak incident amplitude below which
// a bin is treated as outside the excitation band.
const incidentFloor = 1e-9

// S11 computes the reflection coefficient from two time series recorded at
// the same port: the incident waveform and the reflected one. Both must be
// aligned sample for sample, so they are required to share length and
// sample interval; recordings from different runs or probes with different
// step counts are rejected rather than silently misaligned.
func S11(incident, reflected []float64, dt float64) (*Reflection, error) {
	if len(incident) != len(reflected) {
		return nil, fmt.Errorf(
			"incident (%d samples) and reflected (%d samples) series are not aligned",
			len(incident), len(reflected))
	}

	inc, err := Compute(incident, dt)
	if err != nil {
		return nil, fmt.Errorf("incident series: %w", err)
	}
	ref, err := Compute(reflected, dt)
	if err != nil {
		return nil, fmt.Errorf("reflected series: %w", err)
	}

	peak := 0.0
	for _, m := range inc.Mag {
		if m > peak {
			peak = m
		}
	}
	if peak == 0 {
		return nil, fmt.Errorf("incident series carries no energy")
	}

	out := &Reflection{
		Freqs: inc.Freqs,
		DB:    make([]float64, len(inc.Mag)),
		Phase: make([]float64, len(inc.Mag)),
		Df:    inc.Df,
	}
	for i := range inc.Mag {
		if inc.Mag[i] < incidentFloor*peak {
			out.DB[i] = math.NaN()
			out.Phase[i] = math.NaN()
			continue
		}
		out.DB[i] = 20 * math.Log10(ref.Mag[i]/inc.Mag[i])
		out.Phase[i] = wrapPhase(ref.Phase[i] - inc.Phase[i])
	}
	return out, nil
}

// MinDB returns the frequency and depth of the deepest reflection dip in
// [fmin, fmax], the usual way a resonant match shows up in an S11 sweep.
func (r *Reflection) MinDB(fmin, fmax float64) (freq, db float64, err error) {
	if fmax <= 0 {
		fmax = r.Freqs[len(r.Freqs)-1]
	}
	db = math.Inf(1)
	for i, f := range r.Freqs {
		if f < fmin || f > fmax || math.IsNaN(r.DB[i]) {
			continue
		}
		if r.DB[i] < db {
			freq, db = f, r.DB[i]
		}
	}
	if math.IsInf(db, 1) {
		return 0, 0, fmt.Errorf("no usable reflection bins in [%g, %g] Hz", fmin, fmax)
	}
	return freq, db, nil
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}
