package scene

import (
	"testing"

	"github.com/achilleasa/polaris-bvh/types"
)

func TestCameraFrustrum(t *testing.T) {
	c := NewCamera(90)

	type spec struct {
		corner int
		exp    types.Vec3
	}
	specs := []spec{
		{0, types.Vec3{-1, 1, -1}},
		{1, types.Vec3{1, 1, -1}},
		{2, types.Vec3{-1, -1, -1}},
		{3, types.Vec3{1, -1, -1}},
	}
	for index, s := range specs {
		if !c.Frustrum[s.corner].ApproxEqual(s.exp, 1e-5) {
			t.Fatalf("[spec %d] expected corner %d to be %v; got %v", index, s.corner, s.exp, c.Frustrum[s.corner])
		}
	}

	c.SetupProjection(2)
	if !c.Frustrum[1].ApproxEqual(types.Vec3{2, 1, -1}, 1e-5) {
		t.Fatalf("expected TR corner to be scaled by the aspect ratio; got %v", c.Frustrum[1])
	}

	c.InvertY = true
	c.Update()
	if !c.Frustrum[0].ApproxEqual(types.Vec3{-2, -1, -1}, 1e-5) {
		t.Fatalf("expected TL corner to be flipped; got %v", c.Frustrum[0])
	}
}

func TestCameraRays(t *testing.T) {
	c := NewCamera(90)
	c.Position = types.Vec3{1, 2, 3}
	c.LookAt = types.Vec3{1, 2, 0}
	c.Update()

	ray := c.Ray(0, 0, 1, 1)
	if ray.Origin != c.Position {
		t.Fatalf("expected ray origin %v; got %v", c.Position, ray.Origin)
	}
	if !ray.Dir.ApproxEqual(types.Vec3{0, 0, -1}, 1e-5) {
		t.Fatalf("expected center ray direction (0, 0, -1); got %v", ray.Dir)
	}

	// Pixel (0, 0) of a 2x2 frame points to the upper left quadrant.
	ray = c.Ray(0, 0, 2, 2)
	exp := types.Vec3{-0.5, 0.5, -1}.Normalize()
	if !ray.Dir.ApproxEqual(exp, 1e-5) {
		t.Fatalf("expected ray direction %v; got %v", exp, ray.Dir)
	}
}

func TestCameraPitchYaw(t *testing.T) {
	c := NewCameraFromConfig(CameraConfig{
		FOV:  45,
		Eye:  types.Vec3{0, 0, 0},
		Look: types.Vec3{0, 0, -1},
		Yaw:  90,
	})

	if c.Pitch != 0 || c.Yaw != 0 {
		t.Fatalf("expected pending rotation to be cleared; got pitch %f yaw %f", c.Pitch, c.Yaw)
	}

	dir := c.LookAt.Sub(c.Position)
	if abs32(dir.Len()-1) > 1e-5 {
		t.Fatalf("expected unit view direction; got length %f", dir.Len())
	}
	if abs32(dir.Dot(types.Vec3{0, 0, -1})) > 1e-5 || abs32(dir[1]) > 1e-5 {
		t.Fatalf("expected view direction to rotate 90 degrees around the up axis; got %v", dir)
	}
}

func TestCameraConfigIsSet(t *testing.T) {
	if (CameraConfig{}).IsSet() {
		t.Fatal("expected empty config not to define a camera")
	}
	if !(CameraConfig{Eye: types.Vec3{0, 0, 1}}).IsSet() {
		t.Fatal("expected config with an eye position to define a camera")
	}
}
