package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"xeblock/internal/fixtures"
	"xeblock/internal/ir"
)

// loadUnits decodes every snapshot path and builds every named fixture, in
// that order. Unit names must be unique so results can be told apart.
func loadUnits(paths, fixtureNames []string) ([]*ir.Unit, error) {
	var units []*ir.Unit
	for _, p := range paths {
		u, err := readSnapshot(p)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	for _, name := range fixtureNames {
		build, ok := fixtures.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown fixture %q (known: %s)", name, strings.Join(fixtures.Names(), ", "))
		}
		units = append(units, build())
	}
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.Name] {
			return nil, fmt.Errorf("duplicate unit name %q", u.Name)
		}
		seen[u.Name] = true
	}
	return units, nil
}

func readSnapshot(path string) (*ir.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	u, err := ir.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func writeSnapshot(path string, u *ir.Unit) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return ir.Encode(f, u)
}
