package accel

import (
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/achilleasa/polaris-bvh/asset/mesh"
	"github.com/achilleasa/polaris-bvh/types"
)

// Wraps a mesh and counts ray/triangle tests.
type countingMesh struct {
	*mesh.TriangleMesh

	calls atomic.Int32

	// Tests that produced a hit inside the ray segment.
	hits atomic.Int32
}

func (m *countingMesh) RayIntersect(index uint32, ray *types.Ray) (u, v, t float32, ok bool) {
	m.calls.Add(1)
	u, v, t, ok = m.TriangleMesh.RayIntersect(index, ray)
	if ok && t >= ray.MinT && t <= ray.MaxT {
		m.hits.Add(1)
	}
	return u, v, t, ok
}

func mustMesh(t *testing.T, name string, positions []types.Vec3, faces [][3]uint32) *mesh.TriangleMesh {
	m, err := mesh.NewTriangleMesh(name, positions, nil, nil, faces)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// An axis aligned cube with side length 2 centered at the given point.
// Triangles wind counter-clockwise when viewed from outside.
func cubeMesh(t *testing.T, name string, center types.Vec3) *mesh.TriangleMesh {
	positions := make([]types.Vec3, 8)
	for i := range positions {
		p := types.Vec3{-1, -1, -1}
		if i&1 != 0 {
			p[0] = 1
		}
		if i&2 != 0 {
			p[1] = 1
		}
		if i&4 != 0 {
			p[2] = 1
		}
		positions[i] = p.Add(center)
	}

	faces := [][3]uint32{
		{4, 5, 7}, {4, 7, 6}, // +z
		{0, 2, 3}, {0, 3, 1}, // -z
		{1, 3, 7}, {1, 7, 5}, // +x
		{0, 4, 6}, {0, 6, 2}, // -x
		{2, 6, 7}, {2, 7, 3}, // +y
		{0, 1, 5}, {0, 5, 4}, // -y
	}
	return mustMesh(t, name, positions, faces)
}

// Small triangles scattered inside [-10, 10]^3.
func randomMesh(t *testing.T, rng *rand.Rand, count int) *mesh.TriangleMesh {
	positions := make([]types.Vec3, 0, 3*count)
	faces := make([][3]uint32, 0, count)
	for i := 0; i < count; i++ {
		center := types.Vec3{rng.Float32()*20 - 10, rng.Float32()*20 - 10, rng.Float32()*20 - 10}
		for k := 0; k < 3; k++ {
			positions = append(positions, center.Add(types.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}))
		}
		base := uint32(3 * i)
		faces = append(faces, [3]uint32{base, base + 1, base + 2})
	}
	return mustMesh(t, "random", positions, faces)
}

func randomRay(rng *rand.Rand) types.Ray {
	origin := types.Vec3{rng.Float32()*30 - 15, rng.Float32()*30 - 15, rng.Float32()*30 - 15}
	target := types.Vec3{rng.Float32()*20 - 10, rng.Float32()*20 - 10, rng.Float32()*20 - 10}
	return types.NewRay(origin, target.Sub(origin).Normalize())
}

func buildBVH(t *testing.T, cfg Config, meshes ...Mesh) *BVH {
	bvh, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range meshes {
		if err := bvh.AddMesh(m); err != nil {
			t.Fatal(err)
		}
	}
	if err := bvh.Build(); err != nil {
		t.Fatal(err)
	}
	return bvh
}

// Find the closest hit by testing every triangle.
func bruteForce(meshes []Mesh, ray types.Ray) (float32, bool) {
	if ray.MinT == types.Epsilon {
		ray.MinT = max(ray.MinT, ray.MinT*ray.Origin.Abs().MaxComponent())
	}

	bestT := float32(math.Inf(1))
	found := false
	for _, m := range meshes {
		for tri := uint32(0); tri < m.TriangleCount(); tri++ {
			_, _, t, ok := m.RayIntersect(tri, &ray)
			if ok && t >= ray.MinT && t <= ray.MaxT && t < bestT {
				bestT = t
				found = true
			}
		}
	}
	return bestT, found
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// A triangle in the z = 0 plane whose texture coordinates match its xy
// coordinates and whose normals tilt towards the vertex position.
func attributedTriangle(t *testing.T) *mesh.TriangleMesh {
	m, err := mesh.NewTriangleMesh(
		"attributed",
		[]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[]types.Vec3{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
		[]types.Vec2{{0, 0}, {1, 0}, {0, 1}},
		[][3]uint32{{0, 1, 2}},
	)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
