package types

import (
	"fmt"
	"math"
)

// An axis-aligned bounding box.
//
// An empty box has Min set to +Inf and Max set to -Inf. It does not cover any
// space and acts as the identity element for MergeBBox.
type BBox struct {
	Min Vec3
	Max Vec3
}

// Create an empty bounding box.
func EmptyBBox() BBox {
	inf := float32(math.Inf(1))
	return BBox{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Create a bounding box that tightly encloses the given points.
func BBoxFromPoints(points ...Vec3) BBox {
	b := EmptyBBox()
	for _, p := range points {
		b.ExpandBy(p)
	}
	return b
}

// Merge two bounding boxes.
func MergeBBox(b1, b2 BBox) BBox {
	return BBox{
		Min: MinVec3(b1.Min, b2.Min),
		Max: MaxVec3(b1.Max, b2.Max),
	}
}

// Mark the bounding box as empty.
func (b *BBox) Reset() {
	*b = EmptyBBox()
}

// Expand the bounding box to contain a point.
func (b *BBox) ExpandBy(p Vec3) {
	b.Min = MinVec3(b.Min, p)
	b.Max = MaxVec3(b.Max, p)
}

// Expand the bounding box to contain another bounding box.
func (b *BBox) ExpandByBox(other BBox) {
	b.Min = MinVec3(b.Min, other.Min)
	b.Max = MaxVec3(b.Max, other.Max)
}

// Clip to another bounding box.
func (b *BBox) Clip(other BBox) {
	b.Min = MaxVec3(b.Min, other.Min)
	b.Max = MinVec3(b.Max, other.Max)
}

// Check that min <= max holds along every axis.
func (b BBox) IsValid() bool {
	return b.Max[0] >= b.Min[0] && b.Max[1] >= b.Min[1] && b.Max[2] >= b.Min[2]
}

// Check whether the bounding box has collapsed to a single point.
func (b BBox) IsPoint() bool {
	return b.Max == b.Min
}

// Get the box side lengths.
func (b BBox) Extents() Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the box center.
func (b BBox) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Calculate the box surface area. Empty boxes have zero area.
func (b BBox) SurfaceArea() float32 {
	if !b.IsValid() {
		return 0
	}
	d := b.Extents()
	return 2.0 * (d[0]*d[1] + d[1]*d[2] + d[0]*d[2])
}

// Get the index of the axis with the largest extent. Ties resolve to the
// lower axis index.
func (b BBox) LargestAxis() int {
	d := b.Extents()
	switch {
	case d[0] >= d[1] && d[0] >= d[2]:
		return XAxis
	case d[1] >= d[2]:
		return YAxis
	default:
		return ZAxis
	}
}

// Check whether a point lies on or inside the bounding box.
func (b BBox) Contains(p Vec3) bool {
	return p[0] >= b.Min[0] && p[1] >= b.Min[1] && p[2] >= b.Min[2] &&
		p[0] <= b.Max[0] && p[1] <= b.Max[1] && p[2] <= b.Max[2]
}

// Check whether another bounding box lies on or inside this one. Empty boxes
// are contained in every box.
func (b BBox) ContainsBox(other BBox) bool {
	if !other.IsValid() {
		return true
	}
	return b.Contains(other.Min) && b.Contains(other.Max)
}

// Check whether the ray segment [ray.MinT, ray.MaxT] overlaps the box.
func (b BBox) RayIntersect(ray *Ray) bool {
	nearT, farT, ok := b.RayIntersectRange(ray)
	return ok && ray.MinT <= farT && nearT <= ray.MaxT
}

// Calculate the overlap between the unbounded ray line and the box using the
// slab method. Axes with a zero direction component are handled separately
// since their reciprocal is infinite.
func (b BBox) RayIntersectRange(ray *Ray) (nearT, farT float32, ok bool) {
	nearT = float32(math.Inf(-1))
	farT = float32(math.Inf(1))

	for axis := 0; axis < 3; axis++ {
		origin := ray.Origin[axis]
		minVal, maxVal := b.Min[axis], b.Max[axis]

		if ray.Dir[axis] == 0 {
			if origin < minVal || origin > maxVal {
				return 0, 0, false
			}
			continue
		}

		t1 := (minVal - origin) * ray.DirRcp[axis]
		t2 := (maxVal - origin) * ray.DirRcp[axis]
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		if t1 > nearT {
			nearT = t1
		}
		if t2 < farT {
			farT = t2
		}

		if !(nearT <= farT) {
			return 0, 0, false
		}
	}

	return nearT, farT, true
}

func (b BBox) String() string {
	if !b.IsValid() {
		return "BBox[invalid]"
	}
	return fmt.Sprintf("BBox[min=%v, max=%v]", b.Min, b.Max)
}
