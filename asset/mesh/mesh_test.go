package mesh

import (
	"testing"

	"github.com/achilleasa/polaris-bvh/types"
)

func unitTriangle(t *testing.T) *TriangleMesh {
	m, err := NewTriangleMesh(
		"tri",
		[]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		nil,
		nil,
		[][3]uint32{{0, 1, 2}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewTriangleMeshValidation(t *testing.T) {
	positions := []types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}

	type spec struct {
		normals   []types.Vec3
		texCoords []types.Vec2
		faces     [][3]uint32
		expError  string
	}
	specs := []spec{
		{nil, nil, [][3]uint32{{0, 1, 3}}, `mesh "m": face 0 references vertex 3; mesh has 3 vertices`},
		{[]types.Vec3{{0, 0, 1}}, nil, [][3]uint32{{0, 1, 2}}, `mesh "m": expected 3 normals; got 1`},
		{nil, []types.Vec2{{0, 0}}, [][3]uint32{{0, 1, 2}}, `mesh "m": expected 3 texture coordinates; got 1`},
		{nil, nil, [][3]uint32{{0, 1, 2}}, ""},
	}

	for index, s := range specs {
		_, err := NewTriangleMesh("m", positions, s.normals, s.texCoords, s.faces)
		if s.expError == "" {
			if err != nil {
				t.Fatalf("[spec %d] unexpected error: %v", index, err)
			}
			continue
		}
		if err == nil || err.Error() != s.expError {
			t.Fatalf("[spec %d] expected error %q; got %v", index, s.expError, err)
		}
	}
}

func TestTriangleBounds(t *testing.T) {
	m := unitTriangle(t)

	if m.TriangleCount() != 1 {
		t.Fatalf("expected 1 triangle; got %d", m.TriangleCount())
	}

	expBBox := types.BBox{Min: types.Vec3{0, 0, 0}, Max: types.Vec3{1, 1, 0}}
	if got := m.BBox(); got != expBBox {
		t.Fatalf("expected mesh bbox %v; got %v", expBBox, got)
	}
	if got := m.TriangleBBox(0); got != expBBox {
		t.Fatalf("expected triangle bbox %v; got %v", expBBox, got)
	}
	if got := m.Centroid(0); !got.ApproxEqual(types.Vec3{1.0 / 3.0, 1.0 / 3.0, 0}, 1e-6) {
		t.Fatalf("expected centroid (1/3, 1/3, 0); got %v", got)
	}
	if got := m.SurfaceArea(0); got != 0.5 {
		t.Fatalf("expected area 0.5; got %f", got)
	}
}

func TestTriangleRayIntersect(t *testing.T) {
	m := unitTriangle(t)

	type spec struct {
		origin types.Vec3
		dir    types.Vec3
		expHit bool
		expT   float32
		expU   float32
		expV   float32
	}
	specs := []spec{
		// Straight hit from above
		{types.Vec3{0.25, 0.25, 1}, types.Vec3{0, 0, -1}, true, 1, 0.25, 0.25},
		// Hit from below
		{types.Vec3{0.5, 0.25, -2}, types.Vec3{0, 0, 1}, true, 2, 0.5, 0.25},
		// Outside the u+v <= 1 region
		{types.Vec3{0.75, 0.75, 1}, types.Vec3{0, 0, -1}, false, 0, 0, 0},
		// Negative u
		{types.Vec3{-0.1, 0.5, 1}, types.Vec3{0, 0, -1}, false, 0, 0, 0},
		// Parallel to the triangle plane
		{types.Vec3{0.25, 0.25, 0}, types.Vec3{1, 0, 0}, false, 0, 0, 0},
		// Triangle behind the origin reports a negative t
		{types.Vec3{0.25, 0.25, 1}, types.Vec3{0, 0, 1}, true, -1, 0.25, 0.25},
	}

	for index, s := range specs {
		ray := types.NewRay(s.origin, s.dir)
		u, v, tHit, hit := m.RayIntersect(0, &ray)
		if hit != s.expHit {
			t.Fatalf("[spec %d] expected hit to be %t; got %t", index, s.expHit, hit)
		}
		if !hit {
			continue
		}
		if abs(tHit-s.expT) > 1e-5 || abs(u-s.expU) > 1e-5 || abs(v-s.expV) > 1e-5 {
			t.Fatalf("[spec %d] expected (u, v, t) = (%f, %f, %f); got (%f, %f, %f)", index, s.expU, s.expV, s.expT, u, v, tHit)
		}
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
