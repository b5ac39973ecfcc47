package geom

const (
	// Rays closer than rayEps to parallel never register a crossing.
	rayEps = 1e-9
	// Crossings within edgeEps of a triangle edge or vertex are flagged
	// ambiguous. Sized for single-precision input vertices.
	edgeEps = 1e-7
)

// RayHit describes one ray/triangle crossing.
type RayHit struct {
	// Distance along the ray direction to the crossing point.
	T float64
	// Ambiguous is set when the crossing lies within tolerance of a
	// triangle edge or vertex, so the parity count cannot be trusted.
	Ambiguous bool
}

// IntersectTriangle performs the Möller-Trumbore ray/triangle test. It
// returns the crossing, if any, in front of the ray origin.
func IntersectTriangle(orig, dir, v0, v1, v2 Vec) (hit RayHit, ok bool) {
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)

	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if a > -rayEps && a < rayEps {
		return RayHit{}, false // ray parallel to triangle
	}

	f := 1.0 / a
	s := orig.Sub(v0)
	u := f * s.Dot(h)
	if u < -rayEps || u > 1+rayEps {
		return RayHit{}, false
	}

	q := s.Cross(edge1)
	v := f * dir.Dot(q)
	if v < -rayEps || u+v > 1+rayEps {
		return RayHit{}, false
	}

	t := f * edge2.Dot(q)
	if t <= rayEps {
		return RayHit{}, false
	}

	ambiguous := u < edgeEps || v < edgeEps || u+v > 1-edgeEps
	return RayHit{T: t, Ambiguous: ambiguous}, true
}
