package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/achilleasa/polaris-bvh/asset/snapshot"
	"github.com/achilleasa/polaris-bvh/scene"
	"github.com/urfave/cli"
)

// Load meshes, build the BVH and display its statistics. If an output file
// is specified, the meshes and the BVH are stored to a snapshot archive.
func BuildBVH(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if ctx.NArg() == 0 {
		return errors.New("missing mesh file argument(s)")
	}

	outFile := ctx.String("out")
	if outFile != "" && !strings.HasSuffix(outFile, snapshot.Extension) {
		return fmt.Errorf("snapshot files must use the %s extension", snapshot.Extension)
	}

	sc, err := scene.Load(ctx.Args(), cfg.Accel)
	if err != nil {
		return err
	}

	displayMeshStats(sc.Meshes)
	displayBuildStats(sc.Accel.Stats())

	if outFile == "" {
		return nil
	}

	// Store the configured camera with the snapshot.
	if cfg.Camera.IsSet() {
		sc.SetupCamera(cfg.Camera, 1)
	}

	archive, err := sc.Archive()
	if err != nil {
		return err
	}
	return snapshot.Write(outFile, archive)
}
