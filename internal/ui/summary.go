package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"xeblock/internal/driver"
)

// Summary renders one row per unit: status, rewrites, glue resolution and
// diagnostic count. Columns are padded by display width so wide unit names
// stay aligned.
func Summary(w io.Writer, results []driver.UnitResult, width int) error {
	header := []string{"unit", "status", "rewrites", "assembled", "decomposed", "remaining", "diags"}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "done"
		switch {
		case r.Err != nil:
			status = "error"
		case r.Cached:
			status = "cached"
		}
		rows = append(rows, []string{
			r.Name,
			status,
			strconv.Itoa(r.Report.Rewrite.Total()),
			strconv.Itoa(r.Report.Glue.Assembled),
			strconv.Itoa(r.Report.Glue.Decomposed),
			strconv.Itoa(r.Report.Remaining),
			strconv.Itoa(r.Bag.Len()),
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	// the unit column absorbs any overflow
	if width > 0 {
		rest := 0
		for _, cw := range widths[1:] {
			rest += cw + 2
		}
		widths[0] = max(min(widths[0], width-rest), 8)
	}

	headStyle := lipgloss.NewStyle().Bold(true)
	var b strings.Builder
	b.WriteString(headStyle.Render(strings.Join(padRow(header, widths), "  ")))
	b.WriteString("\n")
	for _, row := range rows {
		status := row[1]
		row[0] = truncate(row[0], widths[0])
		cells := padRow(row, widths)
		cells[1] = styleStatus(status).Render(cells[1])
		b.WriteString(strings.Join(cells, "  "))
		b.WriteString("\n")
	}
	_, err := fmt.Fprint(w, b.String())
	return err
}

func padRow(cells []string, widths []int) []string {
	parts := make([]string, len(cells))
	for i, cell := range cells {
		if i == 0 {
			parts[i] = runewidth.FillRight(cell, widths[i])
		} else {
			parts[i] = runewidth.FillLeft(cell, widths[i])
		}
	}
	return parts
}
