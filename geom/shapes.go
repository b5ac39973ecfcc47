package geom

import (
	"math"
)

// BoxMesh returns a closed triangle mesh covering the axis-aligned box
// [min, max]. Faces wind outward.
func BoxMesh(min, max Vec) *Mesh {
	x0, y0, z0 := float32(min[0]), float32(min[1]), float32(min[2])
	x1, y1, z1 := float32(max[0]), float32(max[1]), float32(max[2])

	return &Mesh{
		Vertices: [][3]float32{
			{x0, y0, z0}, {x1, y0, z0}, {x1, y1, z0}, {x0, y1, z0},
			{x0, y0, z1}, {x1, y0, z1}, {x1, y1, z1}, {x0, y1, z1},
		},
		Triangles: [][3]int32{
			{0, 2, 1}, {0, 3, 2}, // z = z0
			{4, 5, 6}, {4, 6, 7}, // z = z1
			{0, 1, 5}, {0, 5, 4}, // y = y0
			{3, 7, 6}, {3, 6, 2}, // y = y1
			{0, 4, 7}, {0, 7, 3}, // x = x0
			{1, 2, 6}, {1, 6, 5}, // x = x1
		},
	}
}

// SphereMesh returns a closed UV-sphere mesh with the given center and
// radius. segments controls the longitudinal resolution; the latitudinal
// resolution is half that. segments must be at least 4.
func SphereMesh(center Vec, radius float64, segments int) *Mesh {
	if segments < 4 {
		segments = 4
	}
	rings := segments / 2

	m := &Mesh{}

	// Interior ring vertices plus two poles.
	for ring := 1; ring < rings; ring++ {
		theta := math.Pi * float64(ring) / float64(rings)
		for seg := 0; seg < segments; seg++ {
			phi := 2 * math.Pi * float64(seg) / float64(segments)
			m.Vertices = append(m.Vertices, [3]float32{
				float32(center[0] + radius*math.Sin(theta)*math.Cos(phi)),
				float32(center[1] + radius*math.Sin(theta)*math.Sin(phi)),
				float32(center[2] + radius*math.Cos(theta)),
			})
		}
	}
	top := int32(len(m.Vertices))
	m.Vertices = append(m.Vertices, [3]float32{
		float32(center[0]), float32(center[1]), float32(center[2] + radius),
	})
	bottom := top + 1
	m.Vertices = append(m.Vertices, [3]float32{
		float32(center[0]), float32(center[1]), float32(center[2] - radius),
	})

	ringIdx := func(ring, seg int) int32 {
		return int32((ring-1)*segments + seg%segments)
	}

	// Pole caps.
	for seg := 0; seg < segments; seg++ {
		m.Triangles = append(m.Triangles,
			[3]int32{top, ringIdx(1, seg), ringIdx(1, seg+1)},
			[3]int32{bottom, ringIdx(rings-1, seg+1), ringIdx(rings-1, seg)},
		)
	}

	// Quads between adjacent rings.
	for ring := 1; ring < rings-1; ring++ {
		for seg := 0; seg < segments; seg++ {
			a := ringIdx(ring, seg)
			b := ringIdx(ring, seg+1)
			c := ringIdx(ring+1, seg+1)
			d := ringIdx(ring+1, seg)
			m.Triangles = append(m.Triangles, [3]int32{a, d, c}, [3]int32{a, c, b})
		}
	}

	return m
}
