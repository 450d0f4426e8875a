package accel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/achilleasa/polaris-bvh/types"
)

func TestRayIntersectMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	meshes := []Mesh{randomMesh(t, rng, 3000), randomMesh(t, rng, 1000)}

	for _, policy := range []TraversalPolicy{LeftFirst, NearestFirst} {
		cfg := DefaultConfig()
		cfg.Traversal = policy
		bvh := buildBVH(t, cfg, meshes...)

		var hits int
		for i := 0; i < 2000; i++ {
			ray := randomRay(rng)
			if i%4 == 0 {
				ray.MaxT = rng.Float32() * 20
			}

			expT, expHit := bruteForce(meshes, ray)

			var its Intersection
			hit := bvh.RayIntersect(ray, &its, false)
			if hit != expHit {
				t.Fatalf("[%s, ray %d] expected hit to be %t; got %t", policy, i, expHit, hit)
			}
			if !hit {
				continue
			}
			hits++

			if abs32(its.T-expT) > 1e-4*max(1, expT) {
				t.Fatalf("[%s, ray %d] expected t = %f; got %f", policy, i, expT, its.T)
			}
			if p := ray.At(its.T); !p.ApproxEqual(its.P, 1e-3) {
				t.Fatalf("[%s, ray %d] expected hit point %v; got %v", policy, i, p, its.P)
			}

			// The shadow query must agree with the nearest hit query.
			if !bvh.Occluded(ray) {
				t.Fatalf("[%s, ray %d] expected ray to be occluded", policy, i)
			}
		}

		if hits == 0 {
			t.Fatalf("[%s] expected at least some rays to hit", policy)
		}
	}
}

func TestCubeIntersection(t *testing.T) {
	for _, policy := range []TraversalPolicy{LeftFirst, NearestFirst} {
		bvh := buildBVH(t, Config{Traversal: policy}, cubeMesh(t, "cube", types.Vec3{}))

		var its Intersection
		ray := types.NewRay(types.Vec3{0.3, -0.2, 5}, types.Vec3{0, 0, -1})
		if !bvh.RayIntersect(ray, &its, false) {
			t.Fatalf("[%s] expected ray to hit the cube", policy)
		}
		if abs32(its.T-4) > 1e-5 {
			t.Fatalf("[%s] expected t = 4; got %f", policy, its.T)
		}
		if !its.GeoFrame.N.ApproxEqual(types.Vec3{0, 0, 1}, 1e-5) {
			t.Fatalf("[%s] expected geometric normal (0, 0, 1); got %v", policy, its.GeoFrame.N)
		}
		if its.ShFrame != its.GeoFrame {
			t.Fatalf("[%s] expected shading frame to match geometric frame for a mesh without normals", policy)
		}
		if !its.P.ApproxEqual(types.Vec3{0.3, -0.2, 1}, 1e-5) {
			t.Fatalf("[%s] expected hit point (0.3, -0.2, 1); got %v", policy, its.P)
		}
		if its.MeshIndex != 0 || its.Mesh == nil || its.Triangle > 1 {
			t.Fatalf("[%s] expected a hit on one of the +z triangles of mesh 0; got mesh %d triangle %d", policy, its.MeshIndex, its.Triangle)
		}

		// Ray parallel to the top face, above the cube.
		miss := types.NewRay(types.Vec3{0, 0, 5}, types.Vec3{1, 0, 0})
		if bvh.RayIntersect(miss, &its, false) {
			t.Fatalf("[%s] expected parallel ray to miss", policy)
		}
		if !math.IsInf(float64(its.T), 1) {
			t.Fatalf("[%s] expected t to be reset to +Inf on a miss; got %f", policy, its.T)
		}

		// Segments that end before or after the top face.
		short := types.NewRaySegment(types.Vec3{0.3, -0.2, 5}, types.Vec3{0, 0, -1}, types.Epsilon, 3.9)
		if bvh.Occluded(short) {
			t.Fatalf("[%s] expected short segment not to be occluded", policy)
		}
		long := types.NewRaySegment(types.Vec3{0.3, -0.2, 5}, types.Vec3{0, 0, -1}, types.Epsilon, 4.1)
		if !bvh.Occluded(long) {
			t.Fatalf("[%s] expected long segment to be occluded", policy)
		}

		// Inverted segment.
		inverted := types.NewRaySegment(types.Vec3{0.3, -0.2, 5}, types.Vec3{0, 0, -1}, 10, 1)
		if bvh.RayIntersect(inverted, &its, false) {
			t.Fatalf("[%s] expected inverted segment to miss", policy)
		}

		// A ray starting inside the cube hits the far side.
		inside := types.NewRay(types.Vec3{0.3, -0.2, 0}, types.Vec3{0, 0, -1})
		if !bvh.RayIntersect(inside, &its, false) || abs32(its.T-1) > 1e-5 {
			t.Fatalf("[%s] expected ray from the cube center to hit at t = 1; got %f", policy, its.T)
		}
		if !its.GeoFrame.N.ApproxEqual(types.Vec3{0, 0, -1}, 1e-5) {
			t.Fatalf("[%s] expected geometric normal (0, 0, -1); got %v", policy, its.GeoFrame.N)
		}
	}
}

func TestTwoCubes(t *testing.T) {
	bvh := buildBVH(t, DefaultConfig(),
		cubeMesh(t, "left", types.Vec3{-5, 0, 0}),
		cubeMesh(t, "right", types.Vec3{5, 0, 0}),
	)

	type spec struct {
		origin  types.Vec3
		dir     types.Vec3
		expMesh int
		expT    float32
		expN    types.Vec3
	}
	specs := []spec{
		{types.Vec3{-10, 0.3, -0.2}, types.Vec3{1, 0, 0}, 0, 4, types.Vec3{-1, 0, 0}},
		{types.Vec3{10, 0.3, -0.2}, types.Vec3{-1, 0, 0}, 1, 4, types.Vec3{1, 0, 0}},
		// Starts between the cubes.
		{types.Vec3{0, 0.3, -0.2}, types.Vec3{1, 0, 0}, 1, 4, types.Vec3{-1, 0, 0}},
		{types.Vec3{0, 0.3, -0.2}, types.Vec3{-1, 0, 0}, 0, 4, types.Vec3{1, 0, 0}},
	}

	for index, s := range specs {
		var its Intersection
		if !bvh.RayIntersect(types.NewRay(s.origin, s.dir), &its, false) {
			t.Fatalf("[spec %d] expected a hit", index)
		}
		if its.MeshIndex != s.expMesh || its.Mesh != bvh.Mesh(s.expMesh) {
			t.Fatalf("[spec %d] expected hit on mesh %d; got %d", index, s.expMesh, its.MeshIndex)
		}
		if abs32(its.T-s.expT) > 1e-5 {
			t.Fatalf("[spec %d] expected t = %f; got %f", index, s.expT, its.T)
		}
		if !its.GeoFrame.N.ApproxEqual(s.expN, 1e-5) {
			t.Fatalf("[spec %d] expected normal %v; got %v", index, s.expN, its.GeoFrame.N)
		}
	}

	// Passes between the cubes.
	if bvh.Occluded(types.NewRay(types.Vec3{0, -10, 0}, types.Vec3{0, 1, 0})) {
		t.Fatal("expected ray between the cubes to miss")
	}
}

func TestShadowRayStopsAtFirstHit(t *testing.T) {
	// A stack of 50 unit quads along +z.
	var positions []types.Vec3
	var faces [][3]uint32
	for z := 1; z <= 50; z++ {
		base := uint32(len(positions))
		zf := float32(z)
		positions = append(positions,
			types.Vec3{-1, -1, zf}, types.Vec3{1, -1, zf}, types.Vec3{1, 1, zf}, types.Vec3{-1, 1, zf},
		)
		faces = append(faces, [3]uint32{base, base + 1, base + 2}, [3]uint32{base, base + 2, base + 3})
	}

	m := &countingMesh{TriangleMesh: mustMesh(t, "stack", positions, faces)}
	bvh := buildBVH(t, DefaultConfig(), m)

	ray := types.NewRay(types.Vec3{0.3, -0.2, 0}, types.Vec3{0, 0, 1})
	if !bvh.RayIntersect(ray, nil, true) {
		t.Fatal("expected shadow ray to be occluded")
	}
	if got := m.hits.Load(); got != 1 {
		t.Fatalf("expected shadow query to stop after the first hit; got %d hits", got)
	}

	m.hits.Store(0)
	var its Intersection
	if !bvh.RayIntersect(ray, &its, false) {
		t.Fatal("expected nearest hit query to hit")
	}
	if abs32(its.T-1) > 1e-5 {
		t.Fatalf("expected nearest hit at t = 1; got %f", its.T)
	}
}

func TestRepeatedQueriesAreIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	bvh := buildBVH(t, DefaultConfig(), randomMesh(t, rng, 2000))

	for i := 0; i < 200; i++ {
		ray := randomRay(rng)

		var its1, its2 Intersection
		hit1 := bvh.RayIntersect(ray, &its1, false)
		hit2 := bvh.RayIntersect(ray, &its2, false)
		if hit1 != hit2 || its1 != its2 {
			t.Fatalf("[ray %d] expected repeated queries to return identical results", i)
		}
	}
}

func TestAdaptiveEpsilon(t *testing.T) {
	// A triangle very close to a far away origin; the scaled lower bound hides it.
	positions := []types.Vec3{{1000, -1, -1}, {1000, 1, -1}, {1000, 0, 1}}
	bvh := buildBVH(t, DefaultConfig(), mustMesh(t, "tri", positions, [][3]uint32{{0, 1, 2}}))

	origin := types.Vec3{1000 - 0.01, 0, 0}
	if bvh.Occluded(types.NewRay(origin, types.Vec3{1, 0, 0})) {
		t.Fatal("expected hit closer than the scaled epsilon to be ignored")
	}

	// An explicit lower bound is used as is.
	if !bvh.Occluded(types.NewRaySegment(origin, types.Vec3{1, 0, 0}, 1e-3, 1)) {
		t.Fatal("expected hit with an explicit lower bound to be reported")
	}
}

func TestTextureAndNormalInterpolation(t *testing.T) {
	m := attributedTriangle(t)
	bvh := buildBVH(t, DefaultConfig(), m)

	var its Intersection
	ray := types.NewRay(types.Vec3{0.25, 0.25, 5}, types.Vec3{0, 0, -1})
	if !bvh.RayIntersect(ray, &its, false) {
		t.Fatal("expected a hit")
	}

	if !(types.Vec3{its.UV[0], its.UV[1], 0}).ApproxEqual(types.Vec3{0.25, 0.25, 0}, 1e-5) {
		t.Fatalf("expected interpolated uv (0.25, 0.25); got %v", its.UV)
	}
	expN := types.Vec3{0.25, 0.25, 1}.Normalize()
	if !its.ShFrame.N.ApproxEqual(expN, 1e-5) {
		t.Fatalf("expected shading normal %v; got %v", expN, its.ShFrame.N)
	}
	if !its.GeoFrame.N.ApproxEqual(types.Vec3{0, 0, 1}, 1e-5) {
		t.Fatalf("expected geometric normal (0, 0, 1); got %v", its.GeoFrame.N)
	}
}
