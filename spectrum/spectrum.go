/*package spectrum turns probe time series into frequency-domain data:
amplitude spectra, resonance peaks with quality factors, and reflection
coefficients. It exists so the solver package never needs to know about
Fourier transforms and the analysis never needs to know about grids.
*/
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Spectrum is the one-sided frequency-domain view of a real time series.
// All three slices share indexing; Freqs runs from DC to the Nyquist
// frequency of the recording.
type Spectrum struct {
	Freqs []float64
	Mag   []float64
	Phase []float64
	// Df is the bin spacing (Hz) after zero padding.
	Df float64
}

// Resonance is one spectral peak.
type Resonance struct {
	// Freq is the peak frequency (Hz).
	Freq float64
	Mag  float64
	// Q is the quality factor Freq/bandwidth from the half-power points.
	// Zero means the bandwidth could not be resolved at this record length.
	Q float64
}

// Compute transforms a real time series recorded at interval dt. The series
// is Hann-windowed against leakage from truncated ringing and zero-padded
// to a power of two before the FFT.
func Compute(samples []float64, dt float64) (*Spectrum, error) {
	n := len(samples)
	if n < 4 {
		return nil, fmt.Errorf("cannot transform %d samples", n)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("invalid sample interval %g", dt)
	}

	padded := make([]float64, nextPow2(n))
	for i, v := range samples {
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		padded[i] = v * w
	}

	fft := fourier.NewFFT(len(padded))
	coeffs := fft.Coefficients(nil, padded)

	s := &Spectrum{
		Freqs: make([]float64, len(coeffs)),
		Mag:   make([]float64, len(coeffs)),
		Phase: make([]float64, len(coeffs)),
		Df:    1 / (float64(len(padded)) * dt),
	}
	for i, c := range coeffs {
		s.Freqs[i] = fft.Freq(i) / dt
		s.Mag[i] = cmplx.Abs(c)
		s.Phase[i] = cmplx.Phase(c)
	}
	return s, nil
}

// Peak returns the strongest resonance with fmin <= f <= fmax. Passing
// fmax <= 0 searches the whole band above fmin.
func (s *Spectrum) Peak(fmin, fmax float64) (Resonance, error) {
	if fmax <= 0 {
		fmax = s.Freqs[len(s.Freqs)-1]
	}

	best, found := 0, false
	for i, f := range s.Freqs {
		if f < fmin || f > fmax {
			continue
		}
		if !found || s.Mag[i] > s.Mag[best] {
			best, found = i, true
		}
	}
	if !found {
		return Resonance{}, fmt.Errorf(
			"no spectrum bins in [%g, %g] Hz (bin spacing %g Hz)",
			fmin, fmax, s.Df)
	}
	return s.resonanceAt(best), nil
}

// Resonances returns every local maximum whose magnitude exceeds frac of
// the global peak, in ascending frequency order. DC and Nyquist bins are
// never reported.
func (s *Spectrum) Resonances(frac float64) []Resonance {
	global := 0.0
	for _, m := range s.Mag {
		if m > global {
			global = m
		}
	}

	var out []Resonance
	for i := 1; i < len(s.Mag)-1; i++ {
		if s.Mag[i] < frac*global {
			continue
		}
		if s.Mag[i] > s.Mag[i-1] && s.Mag[i] >= s.Mag[i+1] {
			out = append(out, s.resonanceAt(i))
		}
	}
	return out
}

// resonanceAt builds a Resonance for bin i, estimating Q from the
// half-power bandwidth with linear interpolation between bins.
func (s *Spectrum) resonanceAt(i int) Resonance {
	r := Resonance{Freq: s.Freqs[i], Mag: s.Mag[i]}

	half := s.Mag[i] / math.Sqrt2
	lo, hi := math.NaN(), math.NaN()

	for j := i; j > 0; j-- {
		if s.Mag[j-1] < half {
			lo = crossing(s.Freqs[j-1], s.Freqs[j], s.Mag[j-1], s.Mag[j], half)
			break
		}
	}
	for j := i; j < len(s.Mag)-1; j++ {
		if s.Mag[j+1] < half {
			hi = crossing(s.Freqs[j], s.Freqs[j+1], s.Mag[j], s.Mag[j+1], half)
			break
		}
	}

	if !math.IsNaN(lo) && !math.IsNaN(hi) && hi > lo {
		r.Q = r.Freq / (hi - lo)
	}
	return r
}

// crossing linearly interpolates the frequency where the magnitude passes
// through level between two adjacent bins.
func crossing(f0, f1, m0, m1, level float64) float64 {
	if m1 == m0 {
		return (f0 + f1) / 2
	}
	return f0 + (f1-f0)*(level-m0)/(m1-m0)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
