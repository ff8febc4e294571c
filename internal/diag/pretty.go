package diag

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Pretty writes one coloured block per diagnostic:
//
//	warning[BLK1002]: Contraction tile shapes do not agree
//	  --> @gemm:op12(xegpu.dpas)
//	  = A tile 8x16 does not chain with B tile 24x32
func Pretty(w io.Writer, diags []Diagnostic, useColor bool) error {
	sevColor := map[Severity]*color.Color{
		SevError:   color.New(color.FgRed, color.Bold),
		SevWarning: color.New(color.FgYellow, color.Bold),
		SevInfo:    color.New(color.FgCyan),
	}
	arrow := color.New(color.FgBlue)
	for _, c := range sevColor {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	if useColor {
		arrow.EnableColor()
	} else {
		arrow.DisableColor()
	}

	for i := range diags {
		d := &diags[i]
		head := sevColor[d.Severity].Sprintf("%s[%s]", severityLabel(d.Severity), d.Code.ID())
		if _, err := fmt.Fprintf(w, "%s: %s\n  %s %s\n", head, d.Code.Title(), arrow.Sprint("-->"), d.Primary); err != nil {
			return err
		}
		if msg := sanitizeMessage(d.Message); msg != "" {
			if _, err := fmt.Fprintf(w, "  = %s\n", msg); err != nil {
				return err
			}
		}
		for _, n := range d.Notes {
			if _, err := fmt.Fprintf(w, "  note: %s (%s)\n", sanitizeMessage(n.Msg), n.Loc); err != nil {
				return err
			}
		}
	}
	return nil
}
