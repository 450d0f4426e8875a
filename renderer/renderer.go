package renderer

import (
	"fmt"
	"math"
	"time"

	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/scene"
	"github.com/achilleasa/polaris-bvh/tracer"
	"github.com/achilleasa/polaris-bvh/types"
)

type Renderer interface {
	// Render frame.
	Render() error

	// Get the frame buffer with the last rendered frame.
	Frame() *tracer.FrameBuffer

	// Shutdown renderer and any attached tracer.
	Close()

	// Get render statistics.
	Stats() FrameStats
}

// A renderer that splits each frame into row blocks and hands them to a set
// of tracers that run concurrently.
type defaultRenderer struct {
	logger log.Logger

	scene     *scene.Scene
	scheduler tracer.BlockScheduler
	tracers   []tracer.Tracer
	options   Options

	frame            *tracer.FrameBuffer
	blockAssignments []uint32
	stats            FrameStats

	// Tracers signal block completion and errors on these channels.
	doneChan chan uint32
	errChan  chan error
}

// Create a new renderer for the supplied scene. The renderer takes ownership
// of the tracers and closes them when it is closed.
func NewDefault(sc *scene.Scene, scheduler tracer.BlockScheduler, tracers []tracer.Tracer, opts Options) (Renderer, error) {
	switch {
	case sc == nil:
		return nil, ErrSceneNotDefined
	case sc.Camera == nil:
		return nil, ErrCameraNotDefined
	case len(tracers) == 0:
		return nil, ErrNoTracers
	case opts.FrameW == 0 || opts.FrameH == 0:
		return nil, ErrInvalidFrameSize
	}

	r := &defaultRenderer{
		logger:    log.New("renderer"),
		scene:     sc,
		scheduler: scheduler,
		tracers:   tracers,
		options:   opts,
		frame:     tracer.NewFrameBuffer(opts.FrameW, opts.FrameH),
		doneChan:  make(chan uint32, len(tracers)),
		errChan:   make(chan error, len(tracers)),
	}

	light := r.lightPosition()
	for _, tr := range tracers {
		if err := tr.Setup(r.frame); err != nil {
			r.Close()
			return nil, fmt.Errorf("renderer: could not setup tracer %s: %s", tr.Id(), err.Error())
		}

		tr.AppendChange(tracer.UpdateScene, sc)
		tr.AppendChange(tracer.UpdateCamera, sc.Camera)
		if light != nil {
			tr.AppendChange(tracer.UpdateLight, *light)
		}
		if err := tr.ApplyPendingChanges(); err != nil {
			r.Close()
			return nil, fmt.Errorf("renderer: could not update tracer %s: %s", tr.Id(), err.Error())
		}
	}

	return r, nil
}

// Get the point light position used for shadow rays. When no position is
// configured, the light is placed above and in front of the scene bounding box.
func (r *defaultRenderer) lightPosition() *types.Vec3 {
	if r.options.Light != nil {
		light := *r.options.Light
		return &light
	}
	if !r.options.Shadows {
		return nil
	}

	bbox := r.scene.Accel.BBox()
	if !bbox.IsValid() {
		return nil
	}

	radius := float32(math.Max(1, float64(bbox.Extents().Len())))
	light := bbox.Center().Add(types.Vec3{radius, 2 * radius, radius})
	r.logger.Infof("placing point light at %v", light)
	return &light
}

// Shutdown renderer and any attached tracer.
func (r *defaultRenderer) Close() {
	for _, tr := range r.tracers {
		tr.Close()
	}
	r.tracers = nil
}

// Get the frame buffer with the last rendered frame.
func (r *defaultRenderer) Frame() *tracer.FrameBuffer {
	return r.frame
}

// Get render statistics.
func (r *defaultRenderer) Stats() FrameStats {
	return r.stats
}

// Render a frame. Each tracer is assigned a block of rows; the call blocks
// until all tracers report back.
func (r *defaultRenderer) Render() error {
	if len(r.tracers) == 0 {
		return ErrNoTracers
	}

	r.blockAssignments = r.scheduler.Schedule(r.tracers, r.options.FrameH)
	r.frame.Clear()

	start := time.Now()
	var blockY uint32
	var pending int
	for idx, tr := range r.tracers {
		blockH := r.blockAssignments[idx]
		if blockH == 0 {
			continue
		}

		tr.Enqueue(tracer.BlockRequest{
			BlockY:   blockY,
			BlockH:   blockH,
			Shadows:  r.options.Shadows,
			DoneChan: r.doneChan,
			ErrChan:  r.errChan,
		})
		blockY += blockH
		pending++
	}

	// Wait for all tracers so that no signal leaks into the next frame.
	var err error
	for ; pending > 0; pending-- {
		select {
		case <-r.doneChan:
		case tracerErr := <-r.errChan:
			if err == nil {
				err = tracerErr
			}
		}
	}
	if err != nil {
		return err
	}

	r.updateStats(time.Since(start))
	return nil
}

func (r *defaultRenderer) updateStats(renderTime time.Duration) {
	r.stats = FrameStats{
		Tracers:    make([]TracerStat, len(r.tracers)),
		RenderTime: renderTime,
	}

	for idx, tr := range r.tracers {
		blockH := r.blockAssignments[idx]
		stat := TracerStat{
			Id:           tr.Id(),
			BlockH:       blockH,
			FramePercent: 100.0 * float32(blockH) / float32(r.options.FrameH),
		}

		// Tracers without rows keep the stats of an older block.
		if blockH != 0 {
			trStats := tr.Stats()
			stat.RenderTime = trStats.BlockTime
			stat.Rays = trStats.Rays()
			stat.Hits = trStats.Hits

			r.stats.PrimaryRays += trStats.PrimaryRays
			r.stats.ShadowRays += trStats.ShadowRays
			r.stats.Hits += trStats.Hits
		}
		r.stats.Tracers[idx] = stat
	}

	r.logger.Debugf("rendered frame in %d ms", renderTime.Nanoseconds()/1e6)
}
