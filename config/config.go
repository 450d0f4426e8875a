package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/achilleasa/polaris-bvh/accel"
	"github.com/achilleasa/polaris-bvh/log"
	"github.com/achilleasa/polaris-bvh/renderer"
	"github.com/achilleasa/polaris-bvh/scene"
)

// The tool configuration. Each table of the TOML file maps to one section.
type Config struct {
	Accel   accel.Config       `toml:"accel"`
	Camera  scene.CameraConfig `toml:"camera"`
	Logging log.FileConfig     `toml:"logging"`
	Render  renderer.Options   `toml:"render"`
}

// Get the default configuration.
func Default() Config {
	return Config{
		Accel:  accel.DefaultConfig(),
		Render: renderer.DefaultOptions(),
	}
}

// Load the configuration from a TOML file. Settings missing from the file
// keep their default values. Loading an empty filename returns the defaults.
func Load(filename string) (Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(filename, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("could not decode TOML config: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return cfg, fmt.Errorf("unknown setting(s) in TOML config %s: %s", filename, strings.Join(keys, ", "))
	}

	if err = cfg.convertPathsToAbsolute(filename); err != nil {
		return cfg, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}

	if err = cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Check all configuration sections.
func (c *Config) Validate() error {
	if err := c.Accel.Validate(); err != nil {
		return err
	}
	return c.Render.Validate()
}

// Paths in the config are relative to the config file location.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return err
	}

	// [logging].logfile
	if c.Logging.Logfile != "" && !filepath.IsAbs(c.Logging.Logfile) {
		c.Logging.Logfile = filepath.Join(configDir, c.Logging.Logfile)
	}
	return nil
}
