package types

import "math"

// The default lower bound of a ray segment. It avoids self intersections
// when rays are spawned from surfaces.
const Epsilon float32 = 1e-4

// A ray segment with a precomputed reciprocal direction.
//
// Call Update after changing Dir so that DirRcp stays in sync; the bounding box
// slab test relies on it.
type Ray struct {
	Origin Vec3
	Dir    Vec3
	DirRcp Vec3

	// The covered segment [MinT, MaxT]. Entries may be infinite.
	MinT float32
	MaxT float32
}

// Create a ray covering the segment [Epsilon, +Inf).
func NewRay(origin, dir Vec3) Ray {
	return NewRaySegment(origin, dir, Epsilon, float32(math.Inf(1)))
}

// Create a ray covering the segment [minT, maxT].
func NewRaySegment(origin, dir Vec3, minT, maxT float32) Ray {
	r := Ray{
		Origin: origin,
		Dir:    dir,
		MinT:   minT,
		MaxT:   maxT,
	}
	r.Update()
	return r
}

// Recalculate the reciprocal ray direction.
func (r *Ray) Update() {
	r.DirRcp = r.Dir.Inv()
}

// Get the point at distance t along the ray.
func (r *Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}
