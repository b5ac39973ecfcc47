package voxel

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/mittens-cad/fieldsim/geom"
)

// Region pairs a closed mesh with the material filling it. When regions
// overlap, later regions override earlier ones, so nested solids should be
// listed outermost first.
type Region struct {
	Mesh     *geom.Mesh
	Material Material
}

// Grid is a 3D grid of material identifiers with its material palette.
// Identifier 0 is always air.
type Grid struct {
	geom.Grid
	// Material identifier per cell, indexed by Grid.Idx.
	Data []uint8
	// Palette maps identifiers to materials.
	Palette []Material
}

// Report describes non-fatal degradations encountered while voxelizing.
type Report struct {
	// AmbiguousColumns counts ray columns whose parity could not be
	// resolved even after perturbation. Their cells were classified by
	// copying the nearest resolved column.
	AmbiguousColumns int
	// PerturbedColumns counts columns that needed a perturbed re-cast.
	PerturbedColumns int
}

// Degraded returns true if any part of the grid was classified by the
// non-manifold fallback rather than a clean parity test.
func (r *Report) Degraded() bool { return r.AmbiguousColumns > 0 }

// NewGrid returns a grid of the given dimensions filled with air.
func NewGrid(nx, ny, nz int, origin geom.Vec, cellSize float64) *Grid {
	g := &Grid{Palette: []Material{Air()}}
	g.Init(nx, ny, nz, origin, cellSize)
	g.Data = make([]uint8, g.Volume)
	return g
}

// AddMaterial adds mat to the palette, reusing an existing entry with the
// same name, and returns its identifier.
func (g *Grid) AddMaterial(mat Material) (uint8, error) {
	for i, existing := range g.Palette {
		if existing.Name == mat.Name {
			return uint8(i), nil
		}
	}
	if len(g.Palette) >= 256 {
		return 0, fmt.Errorf("material palette full: cannot add '%s'", mat.Name)
	}
	g.Palette = append(g.Palette, mat)
	return uint8(len(g.Palette) - 1), nil
}

// MaterialAt returns the material filling cell (x, y, z).
func (g *Grid) MaterialAt(x, y, z int) Material {
	return g.Palette[g.Data[g.Idx(x, y, z)]]
}

// Voxelize builds a material grid covering the bounding box of all regions
// padded by margin on every face. Cells whose centers fall inside a region
// take that region's material; everything else stays air.
//
// The returned Report flags columns that required the non-manifold
// fallback. It is a warning outcome, never an error.
func Voxelize(regions []Region, cellSize, margin float64) (*Grid, *Report, error) {
	if cellSize <= 0 {
		return nil, nil, fmt.Errorf("non-positive cell size %g", cellSize)
	}
	if len(regions) == 0 {
		return nil, nil, fmt.Errorf("no regions to voxelize")
	}

	bounds := geom.EmptyBounds()
	for _, r := range regions {
		if len(r.Mesh.Vertices) == 0 {
			return nil, nil, fmt.Errorf("region '%s' has an empty mesh", r.Material.Name)
		}
		bounds.Union(r.Mesh.Bounds())
	}
	bounds = bounds.Pad(margin)

	span := bounds.Span()
	nx := cellCount(span[0], cellSize)
	ny := cellCount(span[1], cellSize)
	nz := cellCount(span[2], cellSize)

	grid := NewGrid(nx, ny, nz, bounds.Min, cellSize)
	report := &Report{}

	for _, r := range regions {
		id, err := grid.AddMaterial(r.Material)
		if err != nil {
			return nil, nil, err
		}
		rep, err := grid.fillRegion(r.Mesh, id)
		if err != nil {
			return nil, nil, err
		}
		report.AmbiguousColumns += rep.AmbiguousColumns
		report.PerturbedColumns += rep.PerturbedColumns
	}

	return grid, report, nil
}

func cellCount(span, cellSize float64) int {
	n := int(span/cellSize + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}

// columnIndex bins triangles by the (y, z) grid columns their bounding
// boxes overlap, so each +x parity ray only tests nearby triangles. The
// whole pipeline is unusable without this bound at realistic resolutions.
type columnIndex struct {
	y0, z0, ny, nz int
	tris           [][]int32
}

func newColumnIndex(m *geom.Mesh, g *geom.Grid, y0, y1, z0, z1 int) *columnIndex {
	ci := &columnIndex{
		y0: y0, z0: z0,
		ny: y1 - y0, nz: z1 - z0,
	}
	ci.tris = make([][]int32, ci.ny*ci.nz)

	for t := range m.Triangles {
		tb := m.TriangleBounds(t)

		// Column (y, z) is crossed when its center line lies inside the
		// triangle's yz extent, grown by half a cell for safety.
		cy0 := clamp(centerFloor(tb.Min[1], g.Origin[1], g.CellSize), y0, y1)
		cy1 := clamp(centerCeil(tb.Max[1], g.Origin[1], g.CellSize), y0, y1)
		cz0 := clamp(centerFloor(tb.Min[2], g.Origin[2], g.CellSize), z0, z1)
		cz1 := clamp(centerCeil(tb.Max[2], g.Origin[2], g.CellSize), z0, z1)

		for z := cz0; z < cz1; z++ {
			for y := cy0; y < cy1; y++ {
				bin := (z-z0)*ci.ny + (y - y0)
				ci.tris[bin] = append(ci.tris[bin], int32(t))
			}
		}
	}

	return ci
}

func (ci *columnIndex) candidates(y, z int) []int32 {
	return ci.tris[(z-ci.z0)*ci.ny+(y-ci.y0)]
}

func centerFloor(v, origin, cellSize float64) int {
	return int((v-origin)/cellSize - 1)
}

func centerCeil(v, origin, cellSize float64) int {
	return int((v-origin)/cellSize+1) + 1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fillRegion classifies every cell whose center lies inside mesh and writes
// id there. Work is partitioned across z rows.
func (g *Grid) fillRegion(mesh *geom.Mesh, id uint8) (*Report, error) {
	mb := mesh.Bounds()

	// Cell range overlapping the mesh bounds.
	x0, y0, z0 := g.CellAt(mb.Min)
	x1, y1, z1 := g.CellAt(mb.Max)
	x0, y0, z0 = clamp(x0, 0, g.Nx), clamp(y0, 0, g.Ny), clamp(z0, 0, g.Nz)
	x1, y1, z1 = clamp(x1+1, 0, g.Nx), clamp(y1+1, 0, g.Ny), clamp(z1+1, 0, g.Nz)
	if x0 >= x1 || y0 >= y1 || z0 >= z1 {
		return &Report{}, nil
	}

	index := newColumnIndex(mesh, &g.Grid, y0, y1, z0, z1)

	workers := runtime.NumCPU()
	if rows := z1 - z0; workers > rows {
		workers = rows
	}

	reports := make([]Report, workers)
	eg := &errgroup.Group{}
	for w := 0; w < workers; w++ {
		w := w
		zLow := z0 + (z1-z0)*w/workers
		zHigh := z0 + (z1-z0)*(w+1)/workers
		eg.Go(func() error {
			g.fillRows(mesh, index, id, x0, x1, y0, y1, zLow, zHigh, &reports[w])
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := &Report{}
	for i := range reports {
		total.AmbiguousColumns += reports[i].AmbiguousColumns
		total.PerturbedColumns += reports[i].PerturbedColumns
	}
	return total, nil
}

func (g *Grid) fillRows(
	mesh *geom.Mesh, index *columnIndex, id uint8,
	x0, x1, y0, y1, zLow, zHigh int, rep *Report,
) {
	dir := geom.Vec{1, 0, 0}
	rayStartX := g.Origin[0] - g.CellSize

	// Crossing distances along the current column's ray.
	crossings := make([]float64, 0, 16)
	inside := make([]bool, x1-x0)
	prev := make([]bool, x1-x0)

	for z := zLow; z < zHigh; z++ {
		prevValid := false
		for y := y0; y < y1; y++ {
			cands := index.candidates(y, z)
			if len(cands) == 0 {
				prevValid = false
				continue
			}

			center := g.CellCenter(x0, y, z)
			orig := geom.Vec{rayStartX, center[1], center[2]}

			ok := castColumn(mesh, cands, orig, dir, &crossings)
			if !ok {
				// Ambiguous crossing: retry with the ray origin nudged
				// off the offending edge.
				rep.PerturbedColumns++
				delta := g.CellSize * 1e-4
				for try := 0; try < 2 && !ok; try++ {
					p := orig
					p[1] += delta
					p[2] += delta * 0.5
					ok = castColumn(mesh, cands, p, dir, &crossings)
					delta = -delta * 1.7
				}
			}

			if !ok {
				// Non-manifold fallback: reuse the nearest resolved
				// column, or leave the cells as they are.
				rep.AmbiguousColumns++
				if prevValid {
					g.writeColumn(prev, id, x0, y, z)
				}
				continue
			}

			sort.Float64s(crossings)
			g.classifyColumn(crossings, inside, x0, x1, rayStartX)
			g.writeColumn(inside, id, x0, y, z)
			copy(prev, inside)
			prevValid = true
		}
	}
}

// castColumn collects crossing distances for one ray. It returns false when
// any crossing is too close to a triangle edge to trust the parity count.
func castColumn(
	mesh *geom.Mesh, cands []int32, orig, dir geom.Vec, crossings *[]float64,
) bool {
	*crossings = (*crossings)[:0]
	for _, t := range cands {
		v0, v1, v2 := mesh.Triangle(int(t))
		hit, ok := geom.IntersectTriangle(orig, dir, v0, v1, v2)
		if !ok {
			continue
		}
		if hit.Ambiguous {
			return false
		}
		*crossings = append(*crossings, hit.T)
	}
	return true
}

// classifyColumn walks cell centers along +x, toggling parity at each
// crossing. crossings must be sorted.
func (g *Grid) classifyColumn(
	crossings []float64, inside []bool, x0, x1 int, rayStartX float64,
) {
	ci := 0
	parity := false
	for x := x0; x < x1; x++ {
		t := g.Origin[0] + (float64(x)+0.5)*g.CellSize - rayStartX
		for ci < len(crossings) && crossings[ci] < t {
			parity = !parity
			ci++
		}
		inside[x-x0] = parity
	}
}

func (g *Grid) writeColumn(inside []bool, id uint8, x0, y, z int) {
	base := g.Idx(x0, y, z)
	for i, in := range inside {
		if in {
			g.Data[base+i] = id
		}
	}
}
