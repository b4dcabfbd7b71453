package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Conversia-AI/craftable-projection/errx/errxcobra"
	"github.com/Conversia-AI/craftable-projection/harness"
	"github.com/Conversia-AI/craftable-projection/logx"
)

type rootFlags struct {
	backend    string
	verbose    int
	jsonErrors bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "projectx",
		Short:         "Check that manual, registry and pipeline projections agree",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.logLevel != "" {
				logx.SetLevel(logx.ParseLevel(flags.logLevel))
			}
		},
	}

	cmd.PersistentFlags().StringVar(&flags.backend, "backend", "", "memory, mongo or ephemeral (overrides PROJECTX_BACKEND)")
	cmd.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "increase error verbosity")
	cmd.PersistentFlags().BoolVar(&flags.jsonErrors, "json", false, "print errors as JSON")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "TRACE, DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")

	cmd.AddCommand(
		newCheckCommand(flags),
		newStageCommand(flags),
		newSeedCommand(flags),
		newServeCommand(flags),
	)
	return cmd
}

// run wraps a command body with config loading and errx rendering
func run(flags *rootFlags, fn func(ctx context.Context, cmd *cobra.Command, cfg harness.Config, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cli := errxcobra.NewCLI(errxcobra.OptionsForVerbosity(flags.verbose, flags.jsonErrors))

		cfg, err := harness.LoadConfig()
		if err == nil && flags.backend != "" {
			cfg.Backend = flags.backend
			err = cfg.Validate()
		}
		if err != nil {
			cli.HandleError(err)
			return err
		}

		if err := fn(cmd.Context(), cmd, cfg, args); err != nil {
			cli.HandleError(err)
			return err
		}
		return nil
	}
}

// openEnv opens the configured backend bounded by the configured timeout
func openEnv(ctx context.Context, cfg harness.Config) (*harness.Env, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	return harness.Open(ctx, cfg)
}
