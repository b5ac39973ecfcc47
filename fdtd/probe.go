package fdtd

// Probe passively samples one field component at one fixed cell every step.
// Probes never mutate simulation state; their accumulated series is the
// only way field-over-time data leaves the solver.
type Probe struct {
	Name string
	Pos  [3]int
	Comp Component

	samples []float64
	dt      float64
	// complete is set when the run producing the series finished all its
	// steps; divergence or cancellation leaves it false.
	complete bool
}

// Samples returns the accumulated time series, one value per completed
// step. The returned slice is owned by the probe; callers must not modify
// it while a run is in flight.
func (p *Probe) Samples() []float64 { return p.samples }

// Dt returns the step interval of the recorded series.
func (p *Probe) Dt() float64 { return p.dt }

// Times returns the time axis matching Samples.
func (p *Probe) Times() []float64 {
	ts := make([]float64, len(p.samples))
	for i := range ts {
		ts[i] = float64(i) * p.dt
	}
	return ts
}

// Complete reports whether the recorded series covers a full run. Partial
// data from a diverged or cancelled run is still readable but marked
// incomplete so downstream consumers can flag it.
func (p *Probe) Complete() bool { return p.complete }

func (p *Probe) record(v float64) { p.samples = append(p.samples, v) }
