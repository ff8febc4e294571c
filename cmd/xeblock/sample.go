package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"xeblock/internal/fixtures"
)

var (
	sampleList   bool
	sampleOutDir string
)

func init() {
	sampleCmd.Flags().BoolVar(&sampleList, "list", false, "list the built-in fixtures")
	sampleCmd.Flags().StringVarP(&sampleOutDir, "out", "o", ".", "directory the snapshots are written to")
}

var sampleCmd = &cobra.Command{
	Use:   "sample [fixture ...]",
	Short: "Write built-in fixtures as input snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sampleList || len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(fixtures.Names(), "\n"))
			return nil
		}
		for _, name := range args {
			build, ok := fixtures.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown fixture %q", name)
			}
			u := build()
			path := filepath.Join(sampleOutDir, u.Name+".mp")
			if err := writeSnapshot(path, u); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
		return nil
	},
}
