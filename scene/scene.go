package scene

import (
	"fmt"
	"math"
	"strings"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/asset/mesh"
	"github.com/achilleasa/polaris-bvh/asset/snapshot"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/types"
)

// The default vertical FOV used when neither the config nor the scene file
// define a camera.
const defaultFOV float32 = 45

// A scene groups the meshes, their acceleration structure and a camera.
type Scene struct {
	logger log.Logger

	Meshes []*mesh.TriangleMesh
	Accel  *accel.BVH
	Camera *Camera

	// Camera settings found in the loaded scene files.
	fileCamera mesh.CameraDef
}

// Create an empty scene.
func NewScene(cfg accel.Config) (*Scene, error) {
	bvh, err := accel.New(cfg)
	if err != nil {
		return nil, err
	}

	return &Scene{
		logger: log.New("scene"),
		Accel:  bvh,
	}, nil
}

// Load meshes from one or more Wavefront OBJ files or a single snapshot
// archive and build (or restore) the BVH.
func Load(paths []string, cfg accel.Config) (*Scene, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("scene: no input files specified")
	}

	sc, err := NewScene(cfg)
	if err != nil {
		return nil, err
	}

	if len(paths) == 1 && strings.HasSuffix(paths[0], snapshot.Extension) {
		archive, err := snapshot.ReadFile(paths[0])
		if err != nil {
			return nil, err
		}
		for _, m := range archive.Meshes {
			if err = sc.AddMesh(m); err != nil {
				return nil, err
			}
		}
		sc.fileCamera = archive.Camera
		if err = sc.Accel.Restore(archive.BVH); err != nil {
			return nil, err
		}
		return sc, nil
	}

	for _, path := range paths {
		if strings.HasSuffix(path, snapshot.Extension) {
			return nil, fmt.Errorf("scene: snapshot %s cannot be combined with other inputs", path)
		}

		model, err := mesh.ReadFile(path)
		if err != nil {
			return nil, err
		}
		for _, m := range model.Meshes {
			if err = sc.AddMesh(m); err != nil {
				return nil, err
			}
		}
		if model.Camera.Defined && !sc.fileCamera.Defined {
			sc.fileCamera = model.Camera
		}
	}

	if err = sc.Accel.Build(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Add a mesh to the scene.
func (s *Scene) AddMesh(m *mesh.TriangleMesh) error {
	for _, existing := range s.Meshes {
		if existing == m {
			return fmt.Errorf("scene: mesh %q already added", m.Name)
		}
	}
	if err := s.Accel.AddMesh(m); err != nil {
		return err
	}
	s.Meshes = append(s.Meshes, m)
	return nil
}

// Build the scene BVH.
func (s *Scene) Build() error {
	return s.Accel.Build()
}

// Find the closest intersection along a ray.
func (s *Scene) RayIntersect(ray types.Ray, its *accel.Intersection) bool {
	return s.Accel.RayIntersect(ray, its, false)
}

// Check whether a ray segment is blocked by any scene geometry.
func (s *Scene) Occluded(ray types.Ray) bool {
	return s.Accel.Occluded(ray)
}

// Attach a camera to the scene.
func (s *Scene) SetCamera(camera *Camera) {
	s.Camera = camera
}

// Select the scene camera. Settings from the config take precedence over the
// ones found in the scene files; if neither is available the camera is
// placed in front of the scene bounding box looking at its center.
func (s *Scene) SetupCamera(cc CameraConfig, aspect float32) *Camera {
	fov := cc.FOV

	var camera *Camera
	switch {
	case cc.IsSet():
		if fov == 0 {
			fov = defaultFOV
		}
		cc.FOV = fov
		camera = NewCameraFromConfig(cc)
	case s.fileCamera.Defined:
		if fov == 0 {
			fov = s.fileCamera.FOV
		}
		if fov == 0 {
			fov = defaultFOV
		}
		camera = NewCameraFromConfig(CameraConfig{
			FOV:   fov,
			Eye:   s.fileCamera.Eye,
			Look:  s.fileCamera.Look,
			Up:    s.fileCamera.Up,
			Pitch: cc.Pitch,
			Yaw:   cc.Yaw,
		})
	default:
		if fov == 0 {
			fov = defaultFOV
		}
		camera = s.fitCamera(fov)
	}

	camera.SetupProjection(aspect)
	s.logger.Debugf("camera at %v looking at %v\n%s", camera.Position, camera.LookAt, camera.Frustrum)
	s.Camera = camera
	return camera
}

// Place a camera on the +z side of the scene bounding box so that the whole
// box fits inside the vertical FOV.
func (s *Scene) fitCamera(fov float32) *Camera {
	bbox := s.Accel.BBox()
	camera := NewCamera(fov)
	if !bbox.IsValid() {
		return camera
	}

	center := bbox.Center()
	radius := bbox.Extents().Len() * 0.5
	dist := radius / float32(math.Tan(float64(fov)*math.Pi/360))

	camera.Position = center.Add(types.Vec3{0, 0, bbox.Extents()[2]*0.5 + dist})
	camera.LookAt = center
	camera.Update()
	return camera
}

// Export the scene meshes, camera and BVH.
func (s *Scene) Archive() (*snapshot.Archive, error) {
	snap, err := s.Accel.Snapshot()
	if err != nil {
		return nil, err
	}

	archive := &snapshot.Archive{
		Meshes: s.Meshes,
		BVH:    snap,
		Camera: s.fileCamera,
	}
	if s.Camera != nil {
		archive.Camera = mesh.CameraDef{
			FOV:     s.Camera.FOV,
			Eye:     s.Camera.Position,
			Look:    s.Camera.LookAt,
			Up:      s.Camera.Up,
			Defined: true,
		}
	}
	return archive, nil
}
