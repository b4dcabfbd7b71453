package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Conversia-AI/craftable-projection/harness"
	"github.com/Conversia-AI/craftable-projection/logx"
)

func newCheckCommand(flags *rootFlags) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "check [scenario...]",
		Short: "Seed the backend and run the regression scenarios",
		RunE: run(flags, func(ctx context.Context, cmd *cobra.Command, cfg harness.Config, args []string) error {
			if list {
				for _, s := range harness.Scenarios() {
					fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", s.Name, s.Description)
				}
				return nil
			}

			env, err := openEnv(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := env.Close(context.Background()); err != nil {
					logx.Warn("projectx: closing %s backend: %v", cfg.Backend, err)
				}
			}()

			report, err := harness.Run(ctx, env, harness.WithTimeout(cfg.Timeout), harness.WithScenarios(args...))
			if err != nil {
				return err
			}

			printReport(cmd.OutOrStdout(), report)
			return report.Err()
		}),
	}

	cmd.Flags().BoolVar(&list, "list", false, "list the scenarios and exit")
	return cmd
}

func printReport(w io.Writer, report harness.Report) {
	pass := color.New(color.FgHiGreen, color.Bold)
	fail := color.New(color.FgHiRed, color.Bold)
	dim := color.New(color.FgHiBlack)

	dim.Fprintf(w, "run %s on %s\n", report.RunID, report.Backend)
	for _, r := range report.Results {
		if r.Passed {
			pass.Fprint(w, " PASS ")
		} else {
			fail.Fprint(w, " FAIL ")
		}
		fmt.Fprintf(w, "%-20s %3d docs  %s\n", r.Scenario, r.Count, r.Duration.Round(time.Microsecond))
		if !r.Passed {
			dim.Fprintf(w, "      %s\n", r.Error)
		}
	}

	failed := len(report.Failed())
	summary := pass
	if failed > 0 {
		summary = fail
	}
	summary.Fprintf(w, "%d passed, %d failed\n", len(report.Results)-failed, failed)
}
