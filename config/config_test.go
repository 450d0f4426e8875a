package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/types"
)

const testConfig = `
[accel]
bins = 32
serial_threshold = 8
workers = 2
traversal = "nearest-first"
split = "equal-counts"

[camera]
fov = 60.0
eye = [0.0, 1.0, 5.0]
look = [0.0, 0.0, 0.0]

[logging]
logfile = "logs/bvh.log"
max_log_size = 10

[render]
width = 320
height = 200
tracers = 2
scheduler = "naive"
shadows = true
light = [1.0, 10.0, 2.0]
`

func writeConfig(t *testing.T, payload string) string {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(payload), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("expected default config; got %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, testConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	def := accel.DefaultConfig()
	if cfg.Accel.Bins != 32 || cfg.Accel.SerialThreshold != 8 || cfg.Accel.Workers != 2 {
		t.Fatalf("unexpected accel settings %+v", cfg.Accel)
	}
	if cfg.Accel.Traversal != accel.NearestFirst {
		t.Fatalf("expected traversal policy %s; got %s", accel.NearestFirst, cfg.Accel.Traversal)
	}
	if cfg.Accel.Split != accel.SplitEqualCounts {
		t.Fatalf("expected split method %s; got %s", accel.SplitEqualCounts, cfg.Accel.Split)
	}
	if cfg.Accel.GrainSize != def.GrainSize || cfg.Accel.IntersectionCost != def.IntersectionCost {
		t.Fatalf("expected missing accel settings to keep their defaults; got %+v", cfg.Accel)
	}

	if cfg.Camera.FOV != 60 || cfg.Camera.Eye != (types.Vec3{0, 1, 5}) || !cfg.Camera.IsSet() {
		t.Fatalf("unexpected camera settings %+v", cfg.Camera)
	}

	expLog := filepath.Join(filepath.Dir(path), "logs", "bvh.log")
	if cfg.Logging.Logfile != expLog || cfg.Logging.MaxSize != 10 {
		t.Fatalf("expected log file %s; got %+v", expLog, cfg.Logging)
	}

	if cfg.Render.FrameW != 320 || cfg.Render.FrameH != 200 || cfg.Render.Tracers != 2 || !cfg.Render.Shadows {
		t.Fatalf("unexpected render settings %+v", cfg.Render)
	}
	if cfg.Render.Light == nil || *cfg.Render.Light != (types.Vec3{1, 10, 2}) {
		t.Fatalf("expected light position (1, 10, 2); got %v", cfg.Render.Light)
	}
	if cfg.Render.Frames != 1 {
		t.Fatalf("expected frame count to keep its default; got %d", cfg.Render.Frames)
	}
}

func TestAbsoluteLogPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "bvh.log")
	cfg, err := Load(writeConfig(t, "[logging]\nlogfile = \""+filepath.ToSlash(abs)+"\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logging.Logfile != filepath.ToSlash(abs) {
		t.Fatalf("expected absolute log path to be kept; got %s", cfg.Logging.Logfile)
	}
}

func TestLoadErrors(t *testing.T) {
	type spec struct {
		payload  string
		expError string
	}
	specs := []spec{
		{"[accel\nbins = 3", "could not decode TOML config"},
		{"[accel]\nbins = 1000\n", "bin count"},
		{"[accel]\ntraversal = \"random\"\n", "traversal policy"},
		{"[accel]\nsplit = \"random\"\n", "split method"},
		{"[render]\nscheduler = \"random\"\n", "block scheduler"},
		{"[render]\nwidth = 0\n", "frame dimensions"},
		{"[accel]\nbinz = 4\n", "accel.binz"},
	}

	for index, s := range specs {
		_, err := Load(writeConfig(t, s.payload))
		if err == nil || !strings.Contains(err.Error(), s.expError) {
			t.Fatalf("[spec %d] expected error containing %q; got %v", index, s.expError, err)
		}
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
