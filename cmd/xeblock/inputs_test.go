package main

import (
	"path/filepath"
	"strings"
	"testing"

	"xeblock/internal/fixtures"
)

func TestSnapshotRoundTripThroughFiles(t *testing.T) {
	dir := t.TempDir()
	u := fixtures.GEMM()
	path := filepath.Join(dir, "nested", u.Name+".mp")
	if err := writeSnapshot(path, u); err != nil {
		t.Fatalf("writeSnapshot: %v", err)
	}
	units, err := loadUnits([]string{path}, []string{"add"})
	if err != nil {
		t.Fatalf("loadUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d units", len(units))
	}
	if got, want := units[0].String(), u.String(); got != want {
		t.Fatalf("snapshot changed the unit:\n--- want\n%s\n--- got\n%s", want, got)
	}
}

func TestLoadUnitsRejectsBadInput(t *testing.T) {
	if _, err := loadUnits(nil, []string{"nope"}); err == nil || !strings.Contains(err.Error(), "unknown fixture") {
		t.Fatalf("expected unknown fixture error, got %v", err)
	}
	if _, err := loadUnits(nil, []string{"gemm", "gemm"}); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if _, err := loadUnits([]string{filepath.Join(t.TempDir(), "missing.mp")}, nil); err == nil {
		t.Fatalf("expected a missing file error")
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "ON": uiModeOn, " off ": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Errorf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Errorf("expected an error")
	}
}
