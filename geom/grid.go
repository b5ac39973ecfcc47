package geom

import (
	"math"
)

// Grid provides an interface for reasoning over a 1D slice as if it were a
// 3D grid of cubic cells embedded in simulation space.
type Grid struct {
	Nx, Ny, Nz int
	// Physical position of the (0, 0, 0) cell's low corner.
	Origin Vec
	// Edge length of one cubic cell.
	CellSize float64

	Length, Area, Volume int
}

// NewGrid returns a new Grid instance.
func NewGrid(nx, ny, nz int, origin Vec, cellSize float64) *Grid {
	g := &Grid{}
	g.Init(nx, ny, nz, origin, cellSize)
	return g
}

// Init initializes a Grid instance.
func (g *Grid) Init(nx, ny, nz int, origin Vec, cellSize float64) {
	g.Nx, g.Ny, g.Nz = nx, ny, nz
	g.Origin = origin
	g.CellSize = cellSize

	g.Length = nx
	g.Area = nx * ny
	g.Volume = nx * ny * nz
}

// Idx returns the flat index corresponding to a set of cell coordinates.
func (g *Grid) Idx(x, y, z int) int {
	return x + y*g.Length + z*g.Area
}

// IdxCheck returns an index and true if the given coordinates are valid and
// false otherwise.
func (g *Grid) IdxCheck(x, y, z int) (idx int, ok bool) {
	if !g.BoundsCheck(x, y, z) {
		return -1, false
	}
	return g.Idx(x, y, z), true
}

// BoundsCheck returns true if the given coordinates are within the Grid and
// false otherwise.
func (g *Grid) BoundsCheck(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Nx && y < g.Ny && z < g.Nz
}

// Coords returns the x, y, z coordinates of a cell from its flat index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx % g.Length
	y = (idx % g.Area) / g.Length
	z = idx / g.Area
	return x, y, z
}

// CellCenter returns the physical position of the center of cell (x, y, z).
func (g *Grid) CellCenter(x, y, z int) Vec {
	return Vec{
		g.Origin[0] + (float64(x)+0.5)*g.CellSize,
		g.Origin[1] + (float64(y)+0.5)*g.CellSize,
		g.Origin[2] + (float64(z)+0.5)*g.CellSize,
	}
}

// CellAt returns the cell coordinates containing the physical position pos.
// The coordinates may be out of bounds; callers needing validity must follow
// up with BoundsCheck.
func (g *Grid) CellAt(pos Vec) (x, y, z int) {
	x = int(math.Floor((pos[0] - g.Origin[0]) / g.CellSize))
	y = int(math.Floor((pos[1] - g.Origin[1]) / g.CellSize))
	z = int(math.Floor((pos[2] - g.Origin[2]) / g.CellSize))
	return x, y, z
}
