package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"xeblock/internal/diag"
	"xeblock/internal/driver"
	"xeblock/internal/fixtures"
	"xeblock/internal/ir"
	"xeblock/internal/prof"
	"xeblock/internal/ui"
)

var (
	runFixtures    []string
	runAllFixtures bool
	runOutDir      string
	runDump        bool
	runCache       bool
	runJobs        int
	runMaxRewrites int
	runNoVerify    bool
	runUI          string
	runDiagFormat  string
	runSummary     bool
	runProfiles    prof.Paths
)

func init() {
	runCmd.Flags().StringSliceVar(&runFixtures, "fixture", nil, "block a built-in fixture (repeatable; see `xeblock sample --list`)")
	runCmd.Flags().BoolVar(&runAllFixtures, "all-fixtures", false, "block every built-in fixture")
	runCmd.Flags().StringVarP(&runOutDir, "out", "o", "", "write blocked snapshots to this directory")
	runCmd.Flags().BoolVar(&runDump, "dump", false, "print the blocked IR")
	runCmd.Flags().BoolVar(&runCache, "cache", false, "reuse results from the on-disk cache")
	runCmd.Flags().IntVarP(&runJobs, "jobs", "j", 0, "units blocked in parallel (0 = GOMAXPROCS)")
	runCmd.Flags().IntVar(&runMaxRewrites, "max-rewrites", 0, "rewrite budget per unit (0 = config value)")
	runCmd.Flags().BoolVar(&runNoVerify, "no-verify", false, "skip IR verification after the pass")
	runCmd.Flags().StringVar(&runUI, "ui", "off", "progress UI (auto|on|off)")
	runCmd.Flags().StringVar(&runDiagFormat, "diag-format", "pretty", "diagnostic format (pretty|short)")
	runCmd.Flags().BoolVar(&runSummary, "summary", true, "print a per-unit summary table")
	runCmd.Flags().StringVar(&runProfiles.CPU, "cpu-profile", "", "write a CPU profile to this file")
	runCmd.Flags().StringVar(&runProfiles.Mem, "mem-profile", "", "write a heap profile to this file")
	runCmd.Flags().StringVar(&runProfiles.ExecTrace, "exec-trace", "", "write a runtime execution trace to this file")
}

var runCmd = &cobra.Command{
	Use:   "run [snapshot.mp ...]",
	Short: "Block units read from snapshots or built-in fixtures",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		switch runDiagFormat {
		case "pretty", "short":
		default:
			return fmt.Errorf("unsupported diagnostic format %q (must be pretty or short)", runDiagFormat)
		}
		mode, err := readUIMode(runUI)
		if err != nil {
			return err
		}
		colored, err := useColor(cmd, os.Stderr)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")

		names := runFixtures
		if runAllFixtures {
			names = fixtures.Names()
		}
		units, err := loadUnits(args, names)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return errors.New("nothing to block: pass snapshot files, --fixture or --all-fixtures")
		}

		cleanup, err := setupTracing(cmd, cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		opts := driver.Options{
			Pass:           cfg.PassOptions(),
			Jobs:           cfg.Driver.Jobs,
			MaxDiagnostics: cfg.Pass.MaxDiagnostics,
			Timings:        cfg.Driver.Timings,
		}
		if cmd.Flags().Changed("jobs") {
			opts.Jobs = runJobs
		}
		if runMaxRewrites > 0 {
			opts.Pass.MaxRewrites = runMaxRewrites
		}
		if runNoVerify {
			opts.Pass.Verify = false
		}
		if runCache || cfg.Driver.Cache {
			if opts.Cache, err = driver.OpenDiskCache("xeblock"); err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
		}

		profiles, err := prof.Start(runProfiles)
		if err != nil {
			return err
		}
		var results []driver.UnitResult
		if shouldUseTUI(mode) {
			results, err = runUnitsWithUI(cmd.Context(), "blocking", units, opts)
		} else {
			results, err = driver.RunUnits(cmd.Context(), units, opts)
		}
		if perr := profiles.Stop(); perr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "profile: %v\n", perr)
		}
		if err != nil {
			return err
		}

		dumpFailedTraces(cmd, results)
		if err := reportResults(cmd, results, colored, quiet); err != nil {
			return err
		}
		if opts.Timings {
			fmt.Fprint(cmd.ErrOrStderr(), driver.MergeTimings(results).Summary())
		}

		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
				continue
			}
			if runDump {
				if err := ir.Dump(cmd.OutOrStdout(), r.Unit); err != nil {
					return err
				}
			}
			if runOutDir != "" {
				if err := writeSnapshot(filepath.Join(runOutDir, r.Name+".mp"), r.Unit); err != nil {
					return fmt.Errorf("write %s: %w", r.Name, err)
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d units failed", failed, len(results))
		}
		return nil
	},
}

func reportResults(cmd *cobra.Command, results []driver.UnitResult, colored, quiet bool) error {
	all := diag.NewBag(0)
	for _, r := range results {
		all.Merge(r.Bag)
	}
	all.Sort()
	items := all.Items()
	if quiet {
		kept := items[:0:0]
		for _, d := range items {
			if d.Severity > diag.SevInfo {
				kept = append(kept, d)
			}
		}
		items = kept
	}
	var err error
	if runDiagFormat == "short" {
		_, err = io.WriteString(cmd.ErrOrStderr(), diag.FormatGoldenDiagnostics(items, !quiet))
	} else {
		err = diag.Pretty(cmd.ErrOrStderr(), items, colored)
	}
	if err != nil {
		return err
	}
	if runSummary {
		return ui.Summary(cmd.OutOrStdout(), results, terminalWidth(os.Stdout))
	}
	return nil
}
