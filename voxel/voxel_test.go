package voxel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mittens-cad/fieldsim/geom"
)

func countMaterial(g *Grid, id uint8) int {
	n := 0
	for _, v := range g.Data {
		if v == id {
			n++
		}
	}
	return n
}

func TestVoxelizeBoxExact(t *testing.T) {
	mesh := geom.BoxMesh(geom.Vec{0, 0, 0}, geom.Vec{1, 1, 1})
	grid, report, err := Voxelize(
		[]Region{{Mesh: mesh, Material: PEC()}}, 0.1, 0.2,
	)
	if err != nil {
		t.Fatal(err)
	}

	assert.False(t, report.Degraded())
	assert.Equal(t, 14, grid.Nx)
	assert.Equal(t, 14, grid.Ny)
	assert.Equal(t, 14, grid.Nz)

	// Cell centers land at -0.15 + 0.1 i; exactly ten per axis fall
	// strictly inside the unit box.
	assert.Equal(t, 10*10*10, countMaterial(grid, 1))

	// The cell containing the centroid must be inside.
	x, y, z := grid.CellAt(geom.Vec{0.5, 0.5, 0.5})
	assert.Equal(t, uint8(1), grid.Data[grid.Idx(x, y, z)])
	assert.True(t, grid.MaterialAt(x, y, z).PEC)
}

func TestVoxelizeSphereVolume(t *testing.T) {
	center := geom.Vec{0, 0, 0}
	radius := 0.5
	mesh := geom.SphereMesh(center, radius, 32)
	analytic := 4.0 / 3.0 * math.Pi * radius * radius * radius

	table := []struct {
		cellSize, tol float64
	}{
		{0.05, 0.15},
		{0.025, 0.05},
	}

	for i, test := range table {
		grid, report, err := Voxelize(
			[]Region{{Mesh: mesh, Material: Dielectric("glass", 4)}},
			test.cellSize, 0.1,
		)
		if err != nil {
			t.Fatal(err)
		}
		if report.Degraded() {
			t.Errorf("%d) sphere voxelization degraded: %+v", i, report)
		}

		cellVol := test.cellSize * test.cellSize * test.cellSize
		vol := float64(countMaterial(grid, 1)) * cellVol
		relErr := math.Abs(vol-analytic) / analytic
		if relErr > test.tol {
			t.Errorf("%d) volume %g vs analytic %g: relative error %g > %g",
				i, vol, analytic, relErr, test.tol)
		}

		// Centroid cell always classifies inside.
		x, y, z := grid.CellAt(center)
		if grid.Data[grid.Idx(x, y, z)] != 1 {
			t.Errorf("%d) centroid cell not inside", i)
		}
	}
}

func TestVoxelizeLaterRegionOverrides(t *testing.T) {
	outer := geom.BoxMesh(geom.Vec{0, 0, 0}, geom.Vec{1, 1, 1})
	inner := geom.BoxMesh(geom.Vec{0.25, 0.25, 0.25}, geom.Vec{0.75, 0.75, 0.75})

	grid, _, err := Voxelize([]Region{
		{Mesh: outer, Material: Dielectric("glass", 4)},
		{Mesh: inner, Material: PEC()},
	}, 0.1, 0.2)
	if err != nil {
		t.Fatal(err)
	}

	x, y, z := grid.CellAt(geom.Vec{0.5, 0.5, 0.5})
	assert.True(t, grid.MaterialAt(x, y, z).PEC, "inner region should win")

	x, y, z = grid.CellAt(geom.Vec{0.1, 0.1, 0.1})
	assert.Equal(t, "glass", grid.MaterialAt(x, y, z).Name)

	x, y, z = grid.CellAt(geom.Vec{-0.1, -0.1, -0.1})
	assert.Equal(t, "air", grid.MaterialAt(x, y, z).Name)
}

func TestVoxelizeOpenMeshDoesNotCrash(t *testing.T) {
	mesh := geom.BoxMesh(geom.Vec{0, 0, 0}, geom.Vec{1, 1, 1})
	// Drop the +x face to make the surface non-watertight.
	mesh.Triangles = mesh.Triangles[:10]

	_, _, err := Voxelize(
		[]Region{{Mesh: mesh, Material: PEC()}}, 0.1, 0.2,
	)
	assert.NoError(t, err)
}

func TestAddMaterialReusesByName(t *testing.T) {
	grid := NewGrid(2, 2, 2, geom.Vec{0, 0, 0}, 1)

	id1, err := grid.AddMaterial(PEC())
	assert.NoError(t, err)
	id2, err := grid.AddMaterial(PEC())
	assert.NoError(t, err)
	assert.Equal(t, id1, id2)

	id3, err := grid.AddMaterial(Copper())
	assert.NoError(t, err)
	assert.NotEqual(t, id1, id3)
}

func BenchmarkVoxelizeSphere(b *testing.B) {
	mesh := geom.SphereMesh(geom.Vec{0, 0, 0}, 0.5, 32)
	regions := []Region{{Mesh: mesh, Material: PEC()}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Voxelize(regions, 0.025, 0.1); err != nil {
			b.Fatal(err)
		}
	}
}
