// Package config loads xeblock.toml, the optional per-project settings file.
//
// Every key is optional; a missing file yields Default(). Command-line flags
// override whatever the file sets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"xeblock/internal/blocking"
	"xeblock/internal/trace"
)

// FileName is the settings file looked up by Find.
const FileName = "xeblock.toml"

// Config mirrors the sections of xeblock.toml.
type Config struct {
	Pass   PassConfig   `toml:"pass"`
	Driver DriverConfig `toml:"driver"`
	Trace  TraceConfig  `toml:"trace"`

	// Path is the file the config was read from, empty for Default().
	Path string `toml:"-"`
}

type PassConfig struct {
	MaxRewrites    int  `toml:"max_rewrites"`
	Verify         bool `toml:"verify"`
	MaxDiagnostics int  `toml:"max_diagnostics"`
}

type DriverConfig struct {
	Jobs    int  `toml:"jobs"`
	Cache   bool `toml:"cache"`
	Timings bool `toml:"timings"`
}

type TraceConfig struct {
	Level     string   `toml:"level"`
	Mode      string   `toml:"mode"`
	Format    string   `toml:"format"`
	Output    string   `toml:"output"`
	RingSize  int      `toml:"ring_size"`
	Heartbeat Duration `toml:"heartbeat"`
}

// Duration decodes TOML strings such as "500ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the settings used when no file is present.
func Default() Config {
	def := blocking.DefaultOptions()
	return Config{
		Pass: PassConfig{
			MaxRewrites:    def.MaxRewrites,
			Verify:         def.Verify,
			MaxDiagnostics: 256,
		},
		Trace: TraceConfig{
			Level:    "off",
			Mode:     "ring",
			Format:   "auto",
			Output:   "-",
			RingSize: trace.DefaultRingSize,
		},
	}
}

// Find walks up from startDir looking for xeblock.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load decodes path on top of Default(). Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads the nearest xeblock.toml above startDir, or Default().
func Discover(startDir string) (Config, error) {
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return Load(path)
}

// Validate rejects values no run could use.
func (c Config) Validate() error {
	if c.Pass.MaxRewrites < 0 {
		return fmt.Errorf("[pass].max_rewrites must not be negative, got %d", c.Pass.MaxRewrites)
	}
	if c.Driver.Jobs < 0 {
		return fmt.Errorf("[driver].jobs must not be negative, got %d", c.Driver.Jobs)
	}
	if _, err := c.TracerConfig(); err != nil {
		return fmt.Errorf("[trace]: %w", err)
	}
	return nil
}

// PassOptions converts the [pass] section.
func (c Config) PassOptions() blocking.Options {
	return blocking.Options{
		MaxRewrites:    c.Pass.MaxRewrites,
		Verify:         c.Pass.Verify,
		MaxDiagnostics: c.Pass.MaxDiagnostics,
	}
}

// TracerConfig converts the [trace] section.
func (c Config) TracerConfig() (trace.Config, error) {
	level, err := trace.ParseLevel(c.Trace.Level)
	if err != nil {
		return trace.Config{}, err
	}
	mode, err := trace.ParseMode(c.Trace.Mode)
	if err != nil {
		return trace.Config{}, err
	}
	format, err := trace.ParseFormat(c.Trace.Format)
	if err != nil {
		return trace.Config{}, err
	}
	return trace.Config{
		Level:      level,
		Mode:       mode,
		Format:     format,
		OutputPath: c.Trace.Output,
		RingSize:   c.Trace.RingSize,
		Heartbeat:  c.Trace.Heartbeat.Duration,
	}, nil
}
