package types

import (
	"math"
	"testing"
)

func TestEmptyBBoxIsMergeIdentity(t *testing.T) {
	empty := EmptyBBox()
	if empty.IsValid() {
		t.Fatal("expected empty bbox to be invalid")
	}

	b := BBox{Min: Vec3{-1, 2, 0}, Max: Vec3{3, 4, 5}}
	if got := MergeBBox(empty, b); got != b {
		t.Fatalf("expected merge(empty, b) to be %v; got %v", b, got)
	}
	if got := MergeBBox(b, empty); got != b {
		t.Fatalf("expected merge(b, empty) to be %v; got %v", b, got)
	}
	if empty.SurfaceArea() != 0 {
		t.Fatalf("expected empty bbox surface area to be 0; got %f", empty.SurfaceArea())
	}
}

func TestBBoxExpand(t *testing.T) {
	b := EmptyBBox()
	b.ExpandBy(Vec3{1, 1, 1})
	if !b.IsPoint() {
		t.Fatalf("expected single point bbox; got %v", b)
	}

	b.ExpandBy(Vec3{-1, 2, 0})
	exp := BBox{Min: Vec3{-1, 1, 0}, Max: Vec3{1, 2, 1}}
	if b != exp {
		t.Fatalf("expected %v; got %v", exp, b)
	}

	b.ExpandByBox(BBox{Min: Vec3{0, 0, 0}, Max: Vec3{0, 0, 3}})
	exp = BBox{Min: Vec3{-1, 0, 0}, Max: Vec3{1, 2, 3}}
	if b != exp {
		t.Fatalf("expected %v; got %v", exp, b)
	}

	b.Clip(BBox{Min: Vec3{0, 0, 0}, Max: Vec3{10, 10, 1}})
	exp = BBox{Min: Vec3{0, 0, 0}, Max: Vec3{1, 2, 1}}
	if b != exp {
		t.Fatalf("expected clipped bbox %v; got %v", exp, b)
	}
}

func TestBBoxSurfaceAreaAndAxis(t *testing.T) {
	type spec struct {
		b       BBox
		expArea float32
		expAxis int
	}
	specs := []spec{
		{BBox{Vec3{0, 0, 0}, Vec3{1, 1, 1}}, 6, XAxis},
		{BBox{Vec3{0, 0, 0}, Vec3{1, 2, 3}}, 22, ZAxis},
		{BBox{Vec3{0, 0, 0}, Vec3{1, 3, 3}}, 30, YAxis},
		{BBox{Vec3{0, 0, 0}, Vec3{4, 0, 0}}, 0, XAxis},
	}

	for index, s := range specs {
		if area := s.b.SurfaceArea(); area != s.expArea {
			t.Fatalf("[spec %d] expected surface area %f; got %f", index, s.expArea, area)
		}
		if axis := s.b.LargestAxis(); axis != s.expAxis {
			t.Fatalf("[spec %d] expected largest axis %d; got %d", index, s.expAxis, axis)
		}
	}
}

func TestBBoxContains(t *testing.T) {
	b := BBox{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	if !b.Contains(Vec3{1, 0, -1}) {
		t.Fatal("expected boundary point to be contained")
	}
	if b.Contains(Vec3{1.01, 0, 0}) {
		t.Fatal("expected outside point to not be contained")
	}
	if !b.ContainsBox(EmptyBBox()) {
		t.Fatal("expected empty bbox to be contained in every bbox")
	}
	if b.ContainsBox(BBox{Min: Vec3{0, 0, 0}, Max: Vec3{2, 0, 0}}) {
		t.Fatal("expected overlapping bbox to not be contained")
	}
}

func TestBBoxRayIntersect(t *testing.T) {
	b := BBox{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	inf := float32(math.Inf(1))

	type spec struct {
		ray    Ray
		expHit bool
	}
	specs := []spec{
		// Head-on along -Z
		{NewRay(Vec3{0, 0, 5}, Vec3{0, 0, -1}), true},
		// Axis aligned ray outside the slab on X and Y
		{NewRay(Vec3{10, 10, 10}, Vec3{0, 0, -1}), false},
		// Axis aligned ray grazing the box face
		{NewRay(Vec3{1, 1, 5}, Vec3{0, 0, -1}), true},
		// Pointing away from the box
		{NewRay(Vec3{0, 0, 5}, Vec3{0, 0, 1}), false},
		// Segment ends before the box
		{NewRaySegment(Vec3{0, 0, 5}, Vec3{0, 0, -1}, 0, 3.9), false},
		// Origin inside the box
		{NewRaySegment(Vec3{0, 0, 0}, Vec3{1, 1, 1}.Normalize(), 0, inf), true},
		// Diagonal miss
		{NewRay(Vec3{-5, 3, 0}, Vec3{1, 0, 0}), false},
	}

	for index, s := range specs {
		if got := b.RayIntersect(&s.ray); got != s.expHit {
			t.Fatalf("[spec %d] expected hit = %t; got %t", index, s.expHit, got)
		}
	}
}

func TestBBoxRayIntersectRange(t *testing.T) {
	b := BBox{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	ray := NewRay(Vec3{0, 0, 5}, Vec3{0, 0, -1})

	near, far, ok := b.RayIntersectRange(&ray)
	if !ok {
		t.Fatal("expected ray to overlap bbox")
	}
	if near != 4 || far != 6 {
		t.Fatalf("expected overlap [4, 6]; got [%f, %f]", near, far)
	}
}
