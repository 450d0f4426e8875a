package cmd

import (
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/urfave/cli"
)

var logger = log.New("polaris-bvh")

func setupLogging(ctx *cli.Context, cfg *log.FileConfig) error {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	if logFile := ctx.GlobalString("log-file"); logFile != "" {
		cfg.Logfile = logFile
	}

	return log.SetLogFile(cfg)
}
