package driver

import (
	"encoding/json"
	"fmt"

	"xeblock/internal/diag"
	"xeblock/internal/observ"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Unit    string               `json:"unit,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

func appendTimingDiagnostic(bag *diag.Bag, unit string, report observ.Report) {
	if bag == nil {
		return
	}
	payload := timingPayload{Kind: "blocking", Unit: unit, TotalMS: report.TotalMS, Phases: report.Phases}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.New(diag.SevInfo, diag.PipeTimings, diag.UnitLoc(unit), msg).
		WithNote(diag.UnitLoc(unit), string(data))

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
