package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/harness"
	"github.com/Conversia-AI/craftable-projection/stagex"
)

func newStageCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stage",
		Short: "Print the derived and the hand-written $project stages as Extended JSON",
		RunE: run(flags, func(_ context.Context, cmd *cobra.Command, _ harness.Config, _ []string) error {
			stages, err := renderStages()
			if err != nil {
				return err
			}
			for _, s := range stages {
				fmt.Fprintf(cmd.OutOrStdout(), "// %s\n%s\n\n", s.name, s.json)
			}
			return nil
		}),
	}
}

type renderedStage struct {
	name string
	json string
}

func renderStages() ([]renderedStage, error) {
	reg, err := harness.NewRegistry()
	if err != nil {
		return nil, err
	}

	dto, err := stagex.For[entity.Post, entity.PostDto](reg)
	if err != nil {
		return nil, err
	}
	comments, err := stagex.For[entity.Post, entity.PostComments](reg)
	if err != nil {
		return nil, err
	}
	hand, err := stagex.ParseProjection(harness.PostDtoJSON)
	if err != nil {
		return nil, err
	}

	projections := []struct {
		name string
		p    stagex.Projection
	}{
		{"PostDto derived from the registry", dto},
		{"PostDto written by hand", hand},
		{"PostComments containing \"" + harness.CommentFilter + "\"", comments},
		{"PostComments verbatim", harness.AllComments()},
	}

	out := make([]renderedStage, 0, len(projections))
	for _, p := range projections {
		stage, err := p.p.Stage()
		if err != nil {
			return nil, err
		}
		js, err := stagex.ExtJSON(stage)
		if err != nil {
			return nil, err
		}
		out = append(out, renderedStage{name: p.name, json: js})
	}
	return out, nil
}
