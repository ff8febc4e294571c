package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"xeblock/internal/trace"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
[pass]
max_rewrites = 500
verify = false

[driver]
jobs = 4
cache = true

[trace]
level = "phase"
mode = "stream"
output = "trace.ndjson"
heartbeat = "250ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	want.Path = path
	want.Pass.MaxRewrites = 500
	want.Pass.Verify = false
	want.Driver = DriverConfig{Jobs: 4, Cache: true}
	want.Trace.Level = "phase"
	want.Trace.Mode = "stream"
	want.Trace.Output = "trace.ndjson"
	want.Trace.Heartbeat = Duration{250 * time.Millisecond}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}

	tc, err := cfg.TracerConfig()
	if err != nil {
		t.Fatalf("TracerConfig: %v", err)
	}
	if tc.Level != trace.LevelPhase || tc.Mode != trace.ModeStream || tc.Heartbeat != 250*time.Millisecond {
		t.Fatalf("unexpected tracer config %+v", tc)
	}
	if opts := cfg.PassOptions(); opts.MaxRewrites != 500 || opts.Verify {
		t.Fatalf("unexpected pass options %+v", opts)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, t.TempDir(), "[pass]\nmax_rewrite = 3\n")
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "pass.max_rewrite") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"negative jobs": "[driver]\njobs = -1\n",
		"trace level":   "[trace]\nlevel = \"loud\"\n",
		"duration":      "[trace]\nheartbeat = \"soon\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeFile(t, t.TempDir(), body)); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestDiscoverWalksUp(t *testing.T) {
	root := t.TempDir()
	path := writeFile(t, root, "[driver]\njobs = 2\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover(nested)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Path != path || cfg.Driver.Jobs != 2 {
		t.Fatalf("found %q jobs=%d", cfg.Path, cfg.Driver.Jobs)
	}
}

func TestDiscoverWithoutFile(t *testing.T) {
	cfg, err := Discover(t.TempDir())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("want defaults (-want +got):\n%s", diff)
	}
}
