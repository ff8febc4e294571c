package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"xeblock/internal/driver"
	"xeblock/internal/ir"
	"xeblock/internal/ui"
)

type uiMode string

const (
	uiModeAuto uiMode = "auto"
	uiModeOn   uiMode = "on"
	uiModeOff  uiMode = "off"
)

func readUIMode(value string) (uiMode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return uiModeAuto, nil
	case "on":
		return uiModeOn, nil
	case "off":
		return uiModeOff, nil
	default:
		return "", fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

func shouldUseTUI(mode uiMode) bool {
	switch mode {
	case uiModeOn:
		return true
	case uiModeOff:
		return false
	default:
		return isTerminal(os.Stdout)
	}
}

type runOutcome struct {
	results []driver.UnitResult
	err     error
}

// runUnitsWithUI runs the driver in the background and renders its phase
// events until every unit finished.
func runUnitsWithUI(ctx context.Context, title string, units []*ir.Unit, opts driver.Options) ([]driver.UnitResult, error) {
	events := make(chan driver.PhaseEvent, 2*len(units)+1)
	outcomeCh := make(chan runOutcome, 1)

	go func() {
		optsCopy := opts
		prev := opts.Observer
		optsCopy.Observer = func(ev driver.PhaseEvent) {
			if prev != nil {
				prev(ev)
			}
			events <- ev
		}
		res, err := driver.RunUnits(ctx, units, optsCopy)
		outcomeCh <- runOutcome{results: res, err: err}
		close(events)
	}()

	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.Name
	}
	model := ui.NewProgressModel(title, names, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
