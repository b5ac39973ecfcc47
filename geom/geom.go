/*package geom provides the vector, triangle mesh, and grid primitives shared
by the voxelizer and the FDTD solver.
*/
package geom

import (
	"math"
)

// Vec is a point or direction in simulation space.
type Vec [3]float64

// Add returns u + v.
func (u Vec) Add(v Vec) Vec { return Vec{u[0] + v[0], u[1] + v[1], u[2] + v[2]} }

// Sub returns u - v.
func (u Vec) Sub(v Vec) Vec { return Vec{u[0] - v[0], u[1] - v[1], u[2] - v[2]} }

// Scale returns u * s.
func (u Vec) Scale(s float64) Vec { return Vec{u[0] * s, u[1] * s, u[2] * s} }

// Dot returns the inner product of u and v.
func (u Vec) Dot(v Vec) float64 { return u[0]*v[0] + u[1]*v[1] + u[2]*v[2] }

// Cross returns the cross product of u and v.
func (u Vec) Cross(v Vec) Vec {
	return Vec{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
}

// Norm returns the Euclidean length of u.
func (u Vec) Norm() float64 { return math.Sqrt(u.Dot(u)) }

// Mesh is an indexed triangle mesh. The solid-modeling layer guarantees that
// triangles form a closed, oriented surface; the voxelizer degrades
// gracefully when they do not.
//
// Vertices are stored in single precision, matching the upstream mesh
// contract. All geometric queries promote to float64.
type Mesh struct {
	Vertices  [][3]float32
	Triangles [][3]int32
}

// Triangle returns the corners of triangle i in double precision.
func (m *Mesh) Triangle(i int) (v0, v1, v2 Vec) {
	t := m.Triangles[i]
	return vec64(m.Vertices[t[0]]), vec64(m.Vertices[t[1]]), vec64(m.Vertices[t[2]])
}

func vec64(v [3]float32) Vec {
	return Vec{float64(v[0]), float64(v[1]), float64(v[2])}
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min, Max Vec
}

// EmptyBounds returns a Bounds which any Extend call will overwrite.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{Vec{inf, inf, inf}, Vec{-inf, -inf, -inf}}
}

// Extend grows b to contain the point v.
func (b *Bounds) Extend(v Vec) {
	for d := 0; d < 3; d++ {
		if v[d] < b.Min[d] {
			b.Min[d] = v[d]
		}
		if v[d] > b.Max[d] {
			b.Max[d] = v[d]
		}
	}
}

// Union grows b to contain other.
func (b *Bounds) Union(other Bounds) {
	b.Extend(other.Min)
	b.Extend(other.Max)
}

// Pad returns b grown by margin on every face.
func (b Bounds) Pad(margin float64) Bounds {
	m := Vec{margin, margin, margin}
	return Bounds{b.Min.Sub(m), b.Max.Add(m)}
}

// Span returns the edge lengths of b.
func (b Bounds) Span() Vec { return b.Max.Sub(b.Min) }

// Bounds computes the bounding box of all mesh vertices.
func (m *Mesh) Bounds() Bounds {
	b := EmptyBounds()
	for _, v := range m.Vertices {
		b.Extend(vec64(v))
	}
	return b
}

// TriangleBounds computes the bounding box of triangle i.
func (m *Mesh) TriangleBounds(i int) Bounds {
	v0, v1, v2 := m.Triangle(i)
	b := EmptyBounds()
	b.Extend(v0)
	b.Extend(v1)
	b.Extend(v2)
	return b
}
