package renderer

import (
	"fmt"
	"strings"

	"github.com/achilleasa/polaris-bvh/tracer"
	"github.com/achilleasa/polaris-bvh/types"
)

type Options struct {
	// Frame dims.
	FrameW uint32 `toml:"width"`
	FrameH uint32 `toml:"height"`

	// Number of CPU tracers and goroutines per tracer. A zero worker
	// count uses GOMAXPROCS.
	Tracers          int `toml:"tracers"`
	WorkersPerTracer int `toml:"workers_per_tracer"`

	// Block scheduler selection ("naive" or "perfect").
	Scheduler string `toml:"scheduler"`

	// Number of frames to render. Frames after the first one let the
	// perfect scheduler rebalance the blocks.
	Frames int `toml:"frames"`

	// Cast shadow rays towards a point light. If no light position is
	// specified, the light is placed above the scene bounding box.
	Shadows bool        `toml:"shadows"`
	Light   *types.Vec3 `toml:"light"`
}

// Get the default render options.
func DefaultOptions() Options {
	return Options{
		FrameW:    512,
		FrameH:    512,
		Tracers:   1,
		Scheduler: "perfect",
		Frames:    1,
	}
}

// Validate the options.
func (opts Options) Validate() error {
	switch {
	case opts.FrameW == 0 || opts.FrameH == 0:
		return ErrInvalidFrameSize
	case opts.Tracers < 1:
		return fmt.Errorf("renderer: at least one tracer is required; got %d", opts.Tracers)
	case opts.WorkersPerTracer < 0:
		return fmt.Errorf("renderer: invalid worker count %d", opts.WorkersPerTracer)
	case opts.Frames < 1:
		return fmt.Errorf("renderer: at least one frame must be rendered; got %d", opts.Frames)
	}

	_, err := opts.BlockScheduler()
	return err
}

// Create the block scheduler selected by the options.
func (opts Options) BlockScheduler() (tracer.BlockScheduler, error) {
	switch strings.ToLower(opts.Scheduler) {
	case "", "perfect":
		return tracer.PerfectScheduler(), nil
	case "naive":
		return tracer.NaiveScheduler(), nil
	}
	return nil, fmt.Errorf("renderer: unknown block scheduler %q", opts.Scheduler)
}
