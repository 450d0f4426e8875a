package cpu

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/scene"
	"github.com/achilleasa/polaris-bvh/tracer"
	"github.com/achilleasa/polaris-bvh/types"
	"golang.org/x/sync/errgroup"
)

// Ambient term applied to surfaces that face away from the light or are in shadow.
const ambient float32 = 0.1

var (
	ErrNotSetup         = errors.New("cpu tracer: tracer has not been set up")
	ErrSceneNotDefined  = errors.New("cpu tracer: no scene defined")
	ErrCameraNotDefined = errors.New("cpu tracer: no camera defined")
	ErrBlockOutOfBounds = errors.New("cpu tracer: block exceeds frame bounds")
)

type cpuTracer struct {
	logger log.Logger

	sync.Mutex

	// The tracer id.
	id string

	// Number of goroutines used for tracing rows of a block.
	workers int

	// A buffer for queuing updates. Updates are grouped by type and
	// latest updates always overwrite the previous ones.
	updateBuffer map[tracer.ChangeType]interface{}

	// A channel for receiving block requests from the renderer.
	blockReqChan chan tracer.BlockRequest

	// A channel for signaling the worker to exit.
	closeChan chan struct{}

	// Statistics for last rendered block.
	stats *tracer.Stats

	frame  *tracer.FrameBuffer
	scene  *scene.Scene
	camera *scene.Camera

	light    types.Vec3
	hasLight bool
}

// Create a new tracer that runs on the CPU. Rows of each block are traced by
// up to workers goroutines; if workers is not positive GOMAXPROCS is used.
func NewTracer(id string, workers int) tracer.Tracer {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &cpuTracer{
		logger:       log.New(fmt.Sprintf("cpu tracer (%s)", id)),
		id:           id,
		workers:      workers,
		blockReqChan: make(chan tracer.BlockRequest, 1),
		updateBuffer: make(map[tracer.ChangeType]interface{}),
		stats:        &tracer.Stats{},
	}
}

// Get tracer id.
func (tr *cpuTracer) Id() string {
	return tr.id
}

// Get the computation speed estimate.
func (tr *cpuTracer) SpeedEstimate() float32 {
	return float32(tr.workers)
}

// Attach the frame buffer and start the worker.
func (tr *cpuTracer) Setup(frame *tracer.FrameBuffer) error {
	if frame == nil {
		return fmt.Errorf("cpu tracer: nil frame buffer")
	}

	tr.Lock()
	defer tr.Unlock()

	tr.frame = frame

	// Start worker
	if tr.closeChan == nil {
		tr.startWorker()
	}

	return nil
}

// Shutdown and cleanup tracer.
func (tr *cpuTracer) Close() {
	tr.Lock()
	closeChan := tr.closeChan
	tr.closeChan = nil
	tr.Unlock()

	// If the worker is running shut it down
	if closeChan != nil {
		closeChan <- struct{}{}

		// wait for worker to ack close and shutdown channel
		<-closeChan
		close(closeChan)
	}

	tr.Lock()
	tr.frame = nil
	tr.scene = nil
	tr.camera = nil
	tr.Unlock()
}

// Enqueue block request.
func (tr *cpuTracer) Enqueue(blockReq tracer.BlockRequest) {
	tr.Lock()
	running := tr.closeChan != nil
	tr.Unlock()

	if !running {
		blockReq.ErrChan <- ErrNotSetup
		return
	}

	select {
	case tr.blockReqChan <- blockReq:
	default:
		// drop the request if worker is busy
		tr.logger.Error("request processor did not receive block request")
		blockReq.ErrChan <- fmt.Errorf("cpu tracer: %s is busy", tr.id)
	}
}

// Append a change to the tracer's update buffer.
func (tr *cpuTracer) AppendChange(changeType tracer.ChangeType, data interface{}) {
	tr.Lock()
	defer tr.Unlock()

	tr.updateBuffer[changeType] = data
}

// Apply all pending changes from the update buffer.
func (tr *cpuTracer) ApplyPendingChanges() error {
	tr.Lock()
	defer tr.Unlock()

	updates := tr.updateBuffer
	tr.updateBuffer = make(map[tracer.ChangeType]interface{})

	for changeType, data := range updates {
		switch changeType {
		case tracer.UpdateScene:
			sc, ok := data.(*scene.Scene)
			if !ok || sc == nil {
				return fmt.Errorf("cpu tracer: invalid scene update payload %T", data)
			}
			if !sc.Accel.Built() {
				return fmt.Errorf("cpu tracer: scene BVH has not been built")
			}
			tr.scene = sc
		case tracer.UpdateCamera:
			camera, ok := data.(*scene.Camera)
			if !ok || camera == nil {
				return fmt.Errorf("cpu tracer: invalid camera update payload %T", data)
			}
			tr.camera = camera
		case tracer.UpdateLight:
			light, ok := data.(types.Vec3)
			if !ok {
				return fmt.Errorf("cpu tracer: invalid light update payload %T", data)
			}
			tr.light = light
			tr.hasLight = true
		default:
			return fmt.Errorf("cpu tracer: unsupported change type %d", changeType)
		}
	}

	return nil
}

// Retrieve last frame statistics.
func (tr *cpuTracer) Stats() *tracer.Stats {
	return tr.stats
}

func (tr *cpuTracer) startWorker() {
	closeChan := make(chan struct{})
	tr.closeChan = closeChan
	go func() {
		for {
			select {
			case blockReq := <-tr.blockReqChan:
				start := time.Now()
				stats, err := tr.process(blockReq)
				if err != nil {
					blockReq.ErrChan <- err
					continue
				}
				stats.BlockTime = time.Since(start)
				tr.stats = stats
				blockReq.DoneChan <- blockReq.BlockH
			case <-closeChan:
				// Ack close request
				closeChan <- struct{}{}
				return
			}
		}
	}()
}

// Trace one primary ray for each pixel of the block rows and optionally a
// shadow ray towards the point light.
func (tr *cpuTracer) process(blockReq tracer.BlockRequest) (*tracer.Stats, error) {
	tr.Lock()
	sc, camera, frame := tr.scene, tr.camera, tr.frame
	lt := lighting{pos: tr.light, enabled: tr.hasLight, shadows: blockReq.Shadows && tr.hasLight}
	tr.Unlock()

	switch {
	case frame == nil:
		return nil, ErrNotSetup
	case sc == nil:
		return nil, ErrSceneNotDefined
	case camera == nil:
		return nil, ErrCameraNotDefined
	case blockReq.BlockY+blockReq.BlockH > frame.Height:
		return nil, ErrBlockOutOfBounds
	}

	if blockReq.Shadows && !lt.enabled {
		tr.logger.Warning("shadow rays requested but no light is defined; skipping shadow rays")
	}

	var primaryRays, shadowRays, hits atomic.Uint64

	var g errgroup.Group
	g.SetLimit(tr.workers)
	for y := blockReq.BlockY; y < blockReq.BlockY+blockReq.BlockH; y++ {
		y := y
		g.Go(func() error {
			var its accel.Intersection
			var rowShadowRays, rowHits uint64
			for x := uint32(0); x < frame.Width; x++ {
				ray := camera.Ray(x, y, frame.Width, frame.Height)
				if !sc.RayIntersect(ray, &its) {
					frame.SetMiss(x, y)
					continue
				}
				rowHits++

				shade, shadowCast := lt.shade(sc, &ray, &its)
				if shadowCast {
					rowShadowRays++
				}
				frame.SetHit(x, y, its.T, shade, its.MeshIndex)
			}

			primaryRays.Add(uint64(frame.Width))
			shadowRays.Add(rowShadowRays)
			hits.Add(rowHits)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &tracer.Stats{
		BlockH:      blockReq.BlockH,
		PrimaryRays: primaryRays.Load(),
		ShadowRays:  shadowRays.Load(),
		Hits:        hits.Load(),
	}, nil
}

// Point light settings used while tracing a block.
type lighting struct {
	pos     types.Vec3
	enabled bool
	shadows bool
}

// Calculate the shading intensity at a hit point. Without a light the surface
// is lit from the viewer. The second return value reports whether a shadow
// ray was cast.
func (lt lighting) shade(sc *scene.Scene, ray *types.Ray, its *accel.Intersection) (float32, bool) {
	n := its.ShFrame.N
	if n.Dot(ray.Dir) > 0 {
		n = n.Neg()
	}

	if !lt.enabled {
		return ambient + (1-ambient)*float32(math.Abs(float64(n.Dot(ray.Dir)))), false
	}

	toLight := lt.pos.Sub(its.P)
	dist := toLight.Len()
	if dist == 0 {
		return 1, false
	}
	toLight = toLight.Mul(1 / dist)

	cosTheta := n.Dot(toLight)
	if cosTheta <= 0 {
		return ambient, false
	}

	if lt.shadows {
		shadowRay := types.NewRaySegment(its.P, toLight, types.Epsilon, dist*(1-types.Epsilon))
		if sc.Occluded(shadowRay) {
			return ambient, true
		}
		return ambient + (1-ambient)*cosTheta, true
	}

	return ambient + (1-ambient)*cosTheta, false
}
