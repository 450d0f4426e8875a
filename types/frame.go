package types

import "math"

// An orthonormal coordinate frame. N is the surface normal; S and T span the
// tangent plane.
type Frame struct {
	S, T, N Vec3
}

// Build a frame around a normalized vector.
func NewFrame(n Vec3) Frame {
	var c Vec3
	if abs32(n[0]) > abs32(n[1]) {
		invLen := float32(1.0 / math.Sqrt(float64(n[0]*n[0]+n[2]*n[2])))
		c = Vec3{n[2] * invLen, 0, -n[0] * invLen}
	} else {
		invLen := float32(1.0 / math.Sqrt(float64(n[1]*n[1]+n[2]*n[2])))
		c = Vec3{0, n[2] * invLen, -n[1] * invLen}
	}

	return Frame{
		S: c.Cross(n),
		T: c,
		N: n,
	}
}

// Convert a world space vector to local coordinates.
func (f Frame) ToLocal(v Vec3) Vec3 {
	return Vec3{v.Dot(f.S), v.Dot(f.T), v.Dot(f.N)}
}

// Convert a local vector to world coordinates.
func (f Frame) ToWorld(v Vec3) Vec3 {
	return f.S.Mul(v[0]).Add(f.T.Mul(v[1])).Add(f.N.Mul(v[2]))
}
