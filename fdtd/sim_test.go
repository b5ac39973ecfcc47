package fdtd

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittens-cad/fieldsim/geom"
	"github.com/mittens-cad/fieldsim/voxel"
)

func smallConfig(n, pml, steps int) Config {
	cfg := NewConfig(n, n, n, 0.01, 0)
	cfg.PML.Thickness = pml
	cfg.Steps = steps
	return cfg
}

func TestVacuumStaysZero(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 50))
	require.NoError(t, err)
	p, err := sim.AddProbe("center", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))

	assert.Equal(t, Completed, sim.State())
	assert.Equal(t, 50, sim.StepCount())
	assert.Equal(t, 0.0, sim.Energy())
	assert.True(t, p.Complete())
	assert.Len(t, p.Samples(), 50)
	for _, v := range p.Samples() {
		assert.Equal(t, 0.0, v)
	}
}

func TestProbeSamplesTakenAtLabeledTimes(t *testing.T) {
	cfg := smallConfig(12, 0, 4)
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	src := &GaussianPulse{
		Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
		Pos: [3]int{6, 6, 6}, Comp: Ey,
	}
	require.NoError(t, sim.AddSource(src))
	p, err := sim.AddProbe("at source", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	// The vacuum field is still zero after the first sweep, so the first
	// sample is exactly the excitation at the time Times assigns it.
	sim.Step()
	require.Len(t, p.Samples(), 1)
	assert.Equal(t, src.Value(0), p.Samples()[0])
	assert.Equal(t, 0.0, p.Times()[0])
	assert.Equal(t, cfg.Dt, sim.Time())
	assert.NotEqual(t, src.Value(cfg.Dt), p.Samples()[0],
		"sample must not lag its label by a step")
}

func TestSourceReachesProbe(t *testing.T) {
	cfg := smallConfig(16, 3, 250)
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	src := &GaussianPulse{
		Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
		Pos: [3]int{8, 8, 8}, Comp: Ey,
	}
	require.NoError(t, sim.AddSource(src))
	p, err := sim.AddProbe("near", [3]int{10, 8, 8}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))

	assert.Equal(t, Completed, sim.State())
	require.Len(t, p.Samples(), cfg.Steps)
	peak := 0.0
	for _, v := range p.Samples() {
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}
	assert.Greater(t, peak, 0.0, "pulse never reached the probe")
	assert.Greater(t, sim.Energy(), 0.0)

	// Probe time axis follows the configured step.
	ts := p.Times()
	assert.Equal(t, 0.0, ts[0])
	assert.InEpsilon(t, cfg.Dt, ts[1], 1e-12)
}

func TestOutOfBoundsSourceAndProbe(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 10))
	require.NoError(t, err)

	err = sim.AddSource(&GaussianPulse{
		Fcen: 1e9, Fwidth: 1e9, Amp: 1, Pos: [3]int{12, 0, 0}, Comp: Ez,
	})
	assert.Error(t, err)

	_, err = sim.AddProbe("out", [3]int{0, -1, 0}, Ex)
	assert.Error(t, err)
}

func TestPECCellStaysZero(t *testing.T) {
	cfg := smallConfig(16, 3, 300)
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	sim.SetMaterialRegion(4, 7, 7, 10, 7, 10, voxel.PEC())

	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
		Pos: [3]int{11, 8, 8}, Comp: Ey,
	}))
	inside, err := sim.AddProbe("metal", [3]int{5, 8, 8}, Ey)
	require.NoError(t, err)
	outside, err := sim.AddProbe("air", [3]int{9, 8, 8}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))

	for i, v := range inside.Samples() {
		assert.Equal(t, 0.0, v, "step %d", i)
	}
	peak := 0.0
	for _, v := range outside.Samples() {
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
	}
	assert.Greater(t, peak, 0.0)
}

func TestElectricSourceSkipsPECCell(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 100))
	require.NoError(t, err)

	sim.SetMaterial(6, 6, 6, voxel.PEC())
	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
		Pos: [3]int{6, 6, 6}, Comp: Ey,
	}))
	p, err := sim.AddProbe("metal", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	for _, v := range p.Samples() {
		assert.Equal(t, 0.0, v)
	}
}

func TestDivergenceDetected(t *testing.T) {
	cfg := smallConfig(12, 2, 4000)
	cfg.Dt *= 2.2 // violates the CFL bound
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
		Pos: [3]int{6, 6, 6}, Comp: Ey,
	}))
	p, err := sim.AddProbe("center", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	err = sim.Run(context.Background())
	require.Error(t, err)

	var derr *DivergenceError
	require.True(t, errors.As(err, &derr))
	assert.Greater(t, derr.Step, 0)
	assert.Less(t, derr.Step, cfg.Steps)

	assert.Equal(t, Diverged, sim.State())
	assert.NotEmpty(t, p.Samples(), "partial probe data should survive")
	assert.False(t, p.Complete())
}

func TestRunCancellation(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 100))
	require.NoError(t, err)
	p, err := sim.AddProbe("center", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = sim.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Canceled, sim.State())
	assert.False(t, p.Complete())
}

func TestRunIsSingleShot(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 10))
	require.NoError(t, err)
	require.NoError(t, sim.Run(context.Background()))

	err = sim.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Completed")
}

func TestCPMLAbsorbsPulse(t *testing.T) {
	if testing.Short() {
		t.Skip("long absorption run")
	}

	cfg := NewConfig(40, 40, 40, 0.01, 0)
	cfg.PML.Thickness = 8
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 1.5e9, Fwidth: 1e9, Amp: 1,
		Pos: [3]int{20, 20, 20}, Comp: Ey,
	}))

	peak := 0.0
	for n := 0; n < 1000; n++ {
		sim.Step()
		if n%10 == 0 {
			if e := sim.Energy(); e > peak {
				peak = e
			}
		}
	}
	require.Greater(t, peak, 0.0)

	final := sim.Energy()
	assert.Less(t, final, 0.01*peak,
		"PML retained %.2g of peak energy", final/peak)
}

func TestRunUntilDecay(t *testing.T) {
	if testing.Short() {
		t.Skip("long decay run")
	}

	cfg := smallConfig(24, 4, 0)
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)

	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 1.5e9, Fwidth: 1e9, Amp: 1,
		Pos: [3]int{12, 12, 12}, Comp: Ey,
	}))
	p, err := sim.AddProbe("center", [3]int{12, 12, 12}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.RunUntilDecay(context.Background(), p, 1e-3, 20000))

	assert.Equal(t, Completed, sim.State())
	assert.Less(t, sim.StepCount(), 20000, "decay never triggered")
	assert.True(t, p.Complete())
}

func TestLoadGrid(t *testing.T) {
	box := geom.BoxMesh(geom.Vec{0, 0, 0}, geom.Vec{0.1, 0.1, 0.1})
	vg, report, err := voxel.Voxelize(
		[]voxel.Region{{Mesh: box, Material: voxel.PEC()}}, 0.02, 0.04)
	require.NoError(t, err)
	require.False(t, report.Degraded())
	require.Equal(t, 9, vg.Nx)

	cfg := NewConfig(vg.Nx+4, vg.Ny+4, vg.Nz+4, 0.02, 0)
	cfg.PML.Thickness = 2
	cfg.Steps = 300
	sim, err := NewSimulation(cfg)
	require.NoError(t, err)
	require.NoError(t, sim.LoadGrid(vg))

	require.NoError(t, sim.AddSource(&GaussianPulse{
		Fcen: 2e9, Fwidth: 2e9, Amp: 1,
		Pos: [3]int{2, 6, 6}, Comp: Ey,
	}))
	inside, err := sim.AddProbe("metal", [3]int{6, 6, 6}, Ey)
	require.NoError(t, err)

	require.NoError(t, sim.Run(context.Background()))
	for _, v := range inside.Samples() {
		assert.Equal(t, 0.0, v)
	}
}

func TestLoadGridDimensionMismatch(t *testing.T) {
	box := geom.BoxMesh(geom.Vec{0, 0, 0}, geom.Vec{0.1, 0.1, 0.1})
	vg, _, err := voxel.Voxelize(
		[]voxel.Region{{Mesh: box, Material: voxel.PEC()}}, 0.02, 0.04)
	require.NoError(t, err)

	sim, err := NewSimulation(smallConfig(12, 2, 10))
	require.NoError(t, err)
	assert.Error(t, sim.LoadGrid(vg))
}

func TestSerialAndParallelSweepsAgree(t *testing.T) {
	run := func(workers int) []float64 {
		sim, err := NewSimulation(smallConfig(16, 3, 120))
		require.NoError(t, err)
		sim.SetWorkers(workers)
		require.NoError(t, sim.AddSource(&GaussianPulse{
			Fcen: 2e9, Fwidth: 1.5e9, Amp: 1,
			Pos: [3]int{8, 8, 8}, Comp: Ey,
		}))
		p, err := sim.AddProbe("near", [3]int{10, 8, 8}, Ey)
		require.NoError(t, err)
		require.NoError(t, sim.Run(context.Background()))
		return p.Samples()
	}

	serial := run(1)
	parallel := run(4)
	require.Equal(t, len(serial), len(parallel))
	for i := range serial {
		assert.Equal(t, serial[i], parallel[i], "step %d", i)
	}
}

func TestSlice(t *testing.T) {
	sim, err := NewSimulation(smallConfig(12, 2, 0))
	require.NoError(t, err)
	sim.Step()

	fs, err := sim.Slice(PlaneXZ, 6, Ey)
	require.NoError(t, err)
	assert.Equal(t, 12, fs.Nu)
	assert.Equal(t, 12, fs.Nv)
	assert.Len(t, fs.Data, 144)
	assert.Equal(t, sim.Time(), fs.Time)
	assert.Equal(t, sim.FieldAt(Ey, 3, 6, 5), fs.Data[3+5*12])

	_, err = sim.Slice(PlaneXY, 12, Ey)
	assert.Error(t, err)
	_, err = sim.Slice(Plane(9), 0, Ey)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Ready", Ready.String())
	assert.Equal(t, "Diverged", Diverged.String())
	assert.Equal(t, "invalid", State(99).String())
}
