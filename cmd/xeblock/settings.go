package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xeblock/internal/config"
)

// loadSettings reads xeblock.toml and applies every root flag the user set
// explicitly on top of it.
func loadSettings(cmd *cobra.Command) (config.Config, error) {
	flags := cmd.Root().PersistentFlags()
	path, err := flags.GetString("config")
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	var cfg config.Config
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return config.Config{}, err
	}

	if flags.Changed("max-diagnostics") {
		cfg.Pass.MaxDiagnostics, _ = flags.GetInt("max-diagnostics")
	}
	if flags.Changed("timings") {
		cfg.Driver.Timings, _ = flags.GetBool("timings")
	}
	if flags.Changed("trace") {
		cfg.Trace.Output, _ = flags.GetString("trace")
		if !flags.Changed("trace-level") && cfg.Trace.Level == "off" {
			// an explicit output implies phase tracing
			cfg.Trace.Level = "phase"
		}
		if !flags.Changed("trace-mode") {
			cfg.Trace.Mode = "stream"
		}
	}
	if flags.Changed("trace-level") {
		cfg.Trace.Level, _ = flags.GetString("trace-level")
	}
	if flags.Changed("trace-mode") {
		cfg.Trace.Mode, _ = flags.GetString("trace-mode")
	}
	if flags.Changed("trace-format") {
		cfg.Trace.Format, _ = flags.GetString("trace-format")
	}
	if flags.Changed("trace-ring-size") {
		cfg.Trace.RingSize, _ = flags.GetInt("trace-ring-size")
	}
	if flags.Changed("trace-heartbeat") {
		cfg.Trace.Heartbeat.Duration, _ = flags.GetDuration("trace-heartbeat")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// useColor resolves --color against the terminal state of f and configures
// fatih/color accordingly.
func useColor(cmd *cobra.Command, f *os.File) (bool, error) {
	mode, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return false, fmt.Errorf("failed to get color flag: %w", err)
	}
	var on bool
	switch strings.ToLower(mode) {
	case "auto":
		on = isTerminal(f) && os.Getenv("NO_COLOR") == ""
	case "on":
		on = true
	case "off":
		on = false
	default:
		return false, fmt.Errorf("invalid color mode %q (expected: auto|on|off)", mode)
	}
	color.NoColor = !on
	return on, nil
}
