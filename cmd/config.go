package cmd

import (
	"github.com/achilleasa/polaris-bvh/config"
	"github.com/urfave/cli"
)

// Load the config file selected by the global --config flag, apply any
// command line overrides and setup logging.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return cfg, err
	}

	if err = setupLogging(ctx, &cfg.Logging); err != nil {
		return cfg, err
	}

	// [accel] overrides
	if ctx.IsSet("workers") {
		cfg.Accel.Workers = ctx.Int("workers")
	}
	if ctx.IsSet("bins") {
		cfg.Accel.Bins = ctx.Int("bins")
	}
	if ctx.IsSet("serial-threshold") {
		cfg.Accel.SerialThreshold = ctx.Int("serial-threshold")
	}
	if ctx.IsSet("grain-size") {
		cfg.Accel.GrainSize = ctx.Int("grain-size")
	}
	if ctx.IsSet("traversal") {
		if err = cfg.Accel.Traversal.UnmarshalText([]byte(ctx.String("traversal"))); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet("split") {
		if err = cfg.Accel.Split.UnmarshalText([]byte(ctx.String("split"))); err != nil {
			return cfg, err
		}
	}
	if ctx.IsSet("max-leaf-size") {
		cfg.Accel.MaxLeafSize = ctx.Int("max-leaf-size")
	}

	// [render] overrides
	if ctx.IsSet("width") {
		cfg.Render.FrameW = uint32(ctx.Int("width"))
	}
	if ctx.IsSet("height") {
		cfg.Render.FrameH = uint32(ctx.Int("height"))
	}
	if ctx.IsSet("tracers") {
		cfg.Render.Tracers = ctx.Int("tracers")
	}
	if ctx.IsSet("tracer-workers") {
		cfg.Render.WorkersPerTracer = ctx.Int("tracer-workers")
	}
	if ctx.IsSet("scheduler") {
		cfg.Render.Scheduler = ctx.String("scheduler")
	}
	if ctx.IsSet("frames") {
		cfg.Render.Frames = ctx.Int("frames")
	}
	if ctx.IsSet("shadows") {
		cfg.Render.Shadows = ctx.Bool("shadows")
	}

	return cfg, cfg.Validate()
}
