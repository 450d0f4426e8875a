package scene

import (
	"fmt"
	"math"

	"github.com/achilleasa/polaris-bvh/types"
)

// Stores the ray directions at the four corners of the camera frustrum. It is
// used as a shortcut for generating per pixel rays via interpolation of the
// corner rays. Corners are stored in TL, TR, BL, BR order.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Camera settings loaded from the config file. Angles are specified in degrees.
type CameraConfig struct {
	FOV   float32    `toml:"fov"`
	Eye   types.Vec3 `toml:"eye"`
	Look  types.Vec3 `toml:"look"`
	Up    types.Vec3 `toml:"up"`
	Pitch float32    `toml:"pitch"`
	Yaw   float32    `toml:"yaw"`
}

// Check whether the config defines a camera placement.
func (cc CameraConfig) IsSet() bool {
	return cc.Eye != cc.Look
}

// The camera type controls the scene camera.
type Camera struct {
	Position types.Vec3
	LookAt   types.Vec3
	Up       types.Vec3

	// Rotation angles in radians that are applied to the view direction
	// by the next call to Update.
	Pitch float32
	Yaw   float32

	Frustrum Frustrum

	// Camera vertical FOV in degrees.
	FOV float32

	// Width / height ratio of the image plane.
	Aspect float32

	// Adjust the frustrum so that Y is inverted
	InvertY bool
}

func NewCamera(fov float32) *Camera {
	c := &Camera{
		Position: types.Vec3{0, 0, 0},
		LookAt:   types.Vec3{0, 0, -1},
		Up:       types.Vec3{0, 1, 0},
		FOV:      fov,
		Aspect:   1,
	}
	c.Update()
	return c
}

// Create a camera from config settings.
func NewCameraFromConfig(cc CameraConfig) *Camera {
	c := NewCamera(cc.FOV)
	c.Position = cc.Eye
	c.LookAt = cc.Look
	if cc.Up != (types.Vec3{}) {
		c.Up = cc.Up
	}
	c.Pitch = cc.Pitch * math.Pi / 180
	c.Yaw = cc.Yaw * math.Pi / 180
	c.Update()
	return c
}

// Set the image plane aspect ratio and recalculate the frustrum.
func (c *Camera) SetupProjection(aspect float32) {
	c.Aspect = aspect
	c.Update()
}

// Apply any pending pitch/yaw rotation to the view direction and recalculate
// the frustrum corner rays.
func (c *Camera) Update() {
	dir := c.LookAt.Sub(c.Position).Normalize()
	if c.Pitch != 0 || c.Yaw != 0 {
		pitchAxis := dir.Cross(c.Up).Normalize()
		pitchQuat := types.QuatFromAxisAngle(pitchAxis, c.Pitch)
		yawQuat := types.QuatFromAxisAngle(c.Up.Normalize(), c.Yaw)

		orientQuat := pitchQuat.Mul(yawQuat).Normalize()

		// Update direction
		dir = orientQuat.Rotate(dir)
		c.LookAt = c.Position.Add(dir)
		c.Pitch, c.Yaw = 0, 0
	}

	c.updateFrustrum(dir)
}

// Generate a ray vector for each corner of the camera frustrum from the
// camera basis and the image plane extents at unit distance.
func (c *Camera) updateFrustrum(dir types.Vec3) {
	right := dir.Cross(c.Up).Normalize()
	up := right.Cross(dir)

	halfHeight := float32(math.Tan(float64(c.FOV) * math.Pi / 360))
	halfWidth := halfHeight * c.Aspect

	var yUp float32 = 1.0
	if c.InvertY {
		yUp = -1.0
	}

	r := right.Mul(halfWidth)
	u := up.Mul(halfHeight * yUp)

	c.Frustrum[0] = dir.Sub(r).Add(u)
	c.Frustrum[1] = dir.Add(r).Add(u)
	c.Frustrum[2] = dir.Sub(r).Sub(u)
	c.Frustrum[3] = dir.Add(r).Sub(u)
}

// Generate the primary ray through the center of pixel (x, y) of a
// width x height frame. Pixel (0, 0) is the top-left corner.
func (c *Camera) Ray(x, y, width, height uint32) types.Ray {
	fx := (float32(x) + 0.5) / float32(width)
	fy := (float32(y) + 0.5) / float32(height)

	top := lerp(c.Frustrum[0], c.Frustrum[1], fx)
	bottom := lerp(c.Frustrum[2], c.Frustrum[3], fx)
	dir := lerp(top, bottom, fy).Normalize()

	return types.NewRay(c.Position, dir)
}

func lerp(a, b types.Vec3, t float32) types.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}
