package cmd

import (
	"errors"
	"fmt"

	"github.com/achilleasa/polaris-bvh/renderer"
	"github.com/achilleasa/polaris-bvh/scene"
	"github.com/achilleasa/polaris-bvh/tracer"
	"github.com/achilleasa/polaris-bvh/tracer/cpu"
	"github.com/urfave/cli"
)

// Trace primary (and optionally shadow) rays for each pixel of a frame and
// display the frame statistics.
func TraceFrame(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing scene file argument(s)")
	}

	sc, err := scene.Load(ctx.Args(), cfg.Accel)
	if err != nil {
		return err
	}

	opts := cfg.Render
	sc.SetupCamera(cfg.Camera, float32(opts.FrameW)/float32(opts.FrameH))

	scheduler, err := opts.BlockScheduler()
	if err != nil {
		return err
	}

	tracers := make([]tracer.Tracer, opts.Tracers)
	for idx := range tracers {
		tracers[idx] = cpu.NewTracer(fmt.Sprintf("cpu-%d", idx), opts.WorkersPerTracer)
	}

	r, err := renderer.NewDefault(sc, scheduler, tracers, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	for frame := 0; frame < opts.Frames; frame++ {
		if err = r.Render(); err != nil {
			return err
		}
		stats := r.Stats()
		logger.Infof("rendered frame %d/%d in %s (%s)", frame+1, opts.Frames, stats.RenderTime, stats.Throughput())
	}

	// Display stats
	displayFrameStats(r.Stats())

	if outFile := ctx.String("out"); outFile != "" {
		if err = r.Frame().Save(outFile, ctx.Bool("depth")); err != nil {
			return err
		}
		logger.Noticef("wrote frame to %s", outFile)
	}

	return nil
}
