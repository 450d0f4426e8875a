package main

import (
	"fmt"
	"os"

	"github.com/achilleasa/polaris-bvh/cmd"
	"github.com/urfave/cli"
)

var accelFlags = []cli.Flag{
	cli.IntFlag{
		Name:  "workers",
		Usage: "max number of concurrent subtree builds (default: GOMAXPROCS)",
	},
	cli.IntFlag{
		Name:  "bins",
		Usage: "number of SAH bins per axis",
	},
	cli.IntFlag{
		Name:  "serial-threshold",
		Usage: "triangle count below which subtrees are built with an exact SAH sweep",
	},
	cli.IntFlag{
		Name:  "grain-size",
		Usage: "triangles processed by each worker during binning and partitioning",
	},
	cli.StringFlag{
		Name:  "traversal",
		Usage: "child visiting order (left-first or nearest-first)",
	},
	cli.StringFlag{
		Name:  "split",
		Usage: "split method (sah, middle or equal-counts)",
	},
	cli.IntFlag{
		Name:  "max-leaf-size",
		Usage: "leaf size limit for the middle and equal-counts split methods",
	},
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "polaris-bvh"
	app.Usage = "build bounding volume hierarchies for triangle meshes and trace rays against them"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "load settings from a TOML config file",
		},
		cli.StringFlag{
			Name:  "log-file",
			Usage: "write log output to a rotating log file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "build",
			Usage: "build a BVH for a set of meshes and display its statistics",
			Description: `
Parse one or more wavefront obj files (optionally gzip or zstd compressed),
build a BVH over all their triangles and display build statistics.

If an output file is specified, the meshes, the camera settings and the BVH
are written to a snapshot archive that can be supplied to the trace and
verify commands instead of the obj files.`,
			ArgsUsage: "mesh_file1.obj mesh_file2.obj ...",
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "out, o",
					Usage: "write a snapshot archive (.bvhz) to this file",
				},
			}, accelFlags...),
			Action: cmd.BuildBVH,
		},
		{
			Name:  "trace",
			Usage: "trace a frame of primary rays and display tracer statistics",
			Description: `
Load a scene, split each frame into row blocks that are traced concurrently by
a pool of CPU tracers and display per tracer statistics. Shadow rays towards a
point light can optionally be cast for each primary ray hit.`,
			ArgsUsage: "scene_file.obj|scene_file.bvhz ...",
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 512,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 512,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "tracers",
					Value: 1,
					Usage: "number of CPU tracers",
				},
				cli.IntFlag{
					Name:  "tracer-workers",
					Usage: "goroutines per tracer (default: GOMAXPROCS)",
				},
				cli.StringFlag{
					Name:  "scheduler",
					Value: "perfect",
					Usage: "block scheduler (naive or perfect)",
				},
				cli.IntFlag{
					Name:  "frames",
					Value: 1,
					Usage: "number of frames to render",
				},
				cli.BoolFlag{
					Name:  "shadows",
					Usage: "cast shadow rays towards a point light",
				},
				cli.StringFlag{
					Name:  "out, o",
					Usage: "image filename (.png, .bmp or .tiff) for the traced frame",
				},
				cli.BoolFlag{
					Name:  "depth",
					Usage: "write the depth buffer instead of the shaded frame",
				},
			}, accelFlags...),
			Action: cmd.TraceFrame,
		},
		{
			Name:  "verify",
			Usage: "compare BVH ray queries against a brute force search",
			Description: `
Cast random rays through the scene bounds and check that the closest hit and
occlusion queries answered by the BVH match a brute force search over all
triangles. The command fails if any query disagrees.`,
			ArgsUsage: "scene_file.obj|scene_file.bvhz ...",
			Flags: append([]cli.Flag{
				cli.IntFlag{
					Name:  "rays",
					Value: 10000,
					Usage: "number of random rays",
				},
				cli.Int64Flag{
					Name:  "seed",
					Value: 1,
					Usage: "random number generator seed",
				},
			}, accelFlags...),
			Action: cmd.Verify,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}
