package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Conversia-AI/craftable-projection/harness"
	"github.com/Conversia-AI/craftable-projection/stagex"
)

func newSeedCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the configured backend and print the stored posts",
		RunE: run(flags, func(ctx context.Context, cmd *cobra.Command, cfg harness.Config, _ []string) error {
			env, err := openEnv(ctx, cfg)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			for _, p := range env.Seeded {
				js, err := stagex.ExtJSON(p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), js)
			}
			return nil
		}),
	}
}
