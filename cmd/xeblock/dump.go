package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"xeblock/internal/ir"
	"xeblock/internal/xegpu"
)

var dumpLanes bool

func init() {
	dumpCmd.Flags().BoolVar(&dumpLanes, "lanes", false, "also list the per-lane vector type of every tensor descriptor")
}

var dumpCmd = &cobra.Command{
	Use:   "dump <snapshot.mp>",
	Short: "Print a snapshot as textual IR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := useColor(cmd, os.Stdout); err != nil {
			return err
		}
		u, err := readSnapshot(args[0])
		if err != nil {
			return err
		}
		if err := ir.Verify(u); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s does not verify: %v\n", args[0], err)
		}
		if err := ir.Dump(cmd.OutOrStdout(), u); err != nil {
			return err
		}
		if dumpLanes {
			return printLanes(cmd.OutOrStdout(), u)
		}
		return nil
	},
}

// printLanes lists every distinct descriptor type of u with the vector one
// lane holds, or the reason it cannot be distributed.
func printLanes(w io.Writer, u *ir.Unit) error {
	type row struct{ desc, lane string }
	var rows []row
	seen := make(map[ir.TypeID]bool)
	visit := func(v ir.ValueID) {
		id := u.Value(v).Type
		if seen[id] || u.TypeOf(v).Kind != ir.TypeTensorDesc {
			return
		}
		seen[id] = true
		var lane string
		if vt, err := xegpu.DistributedVectorType(u.Types, id); err == nil {
			lane = u.Types.MustLookup(vt).String()
		} else {
			lane = "not distributable: " + err.Error()
		}
		rows = append(rows, row{desc: u.TypeOf(v).String(), lane: lane})
	}
	u.Walk(func(op ir.OpID) ir.WalkResult {
		for _, r := range u.Op(op).Results {
			visit(r)
		}
		return ir.WalkAdvance
	})
	if len(rows) == 0 {
		return nil
	}

	width := runewidth.StringWidth("descriptor")
	for _, r := range rows {
		width = max(width, runewidth.StringWidth(r.desc))
	}
	head := lipgloss.NewStyle().Bold(true)
	if _, err := fmt.Fprintf(w, "\n%s  %s\n", head.Render(runewidth.FillRight("descriptor", width)), head.Render("per-lane")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%s  %s\n", runewidth.FillRight(r.desc, width), r.lane); err != nil {
			return err
		}
	}
	return nil
}
