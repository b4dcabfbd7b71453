package main

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/errx/errxfiber"
	"github.com/Conversia-AI/craftable-projection/harness"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/projectx"
	"github.com/Conversia-AI/craftable-projection/queryx"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve projections and scenario reports over HTTP",
		RunE: run(flags, func(ctx context.Context, _ *cobra.Command, cfg harness.Config, _ []string) error {
			env, err := openEnv(ctx, cfg)
			if err != nil {
				return err
			}
			defer env.Close(context.Background())

			app := newServer(env, cfg)

			go func() {
				<-ctx.Done()
				if err := app.Shutdown(); err != nil {
					logx.Warn("projectx: shutdown: %v", err)
				}
			}()

			logx.Info("projectx: listening on %s (%s backend)", cfg.HTTPAddr, cfg.Backend)
			return app.Listen(cfg.HTTPAddr)
		}),
	}
}

func newServer(env *harness.Env, cfg harness.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "projectx",
		ErrorHandler:          errxfiber.FiberErrorHandler(),
		DisableStartupMessage: true,
	})

	app.Get("/projections/:strategy", func(c *fiber.Ctx) error {
		kind, err := projectx.ParseKind(c.Params("strategy"))
		if err != nil {
			return err
		}

		where, err := excludeFilter(c.Query("exclude"))
		if err != nil {
			return err
		}

		strategies, err := harness.PostDtoStrategies(env)
		if err != nil {
			return err
		}

		strategy, _ := lo.Find(strategies, func(s projectx.Strategy[entity.Post, entity.PostDto]) bool {
			return s.Kind() == kind
		})
		dtos, err := strategy.Project(c.UserContext(), projectx.Stored(env.Posts, where))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"strategy": kind.String(), "items": dtos})
	})

	app.Get("/stage", func(c *fiber.Ctx) error {
		stages, err := renderStages()
		if err != nil {
			return err
		}
		out := fiber.Map{}
		for _, s := range stages {
			out[s.name] = s.json
		}
		return c.JSON(out)
	})

	app.Get("/check", func(c *fiber.Ctx) error {
		var scenarios []string
		if q := c.Query("scenario"); q != "" {
			scenarios = strings.Split(q, ",")
		}

		report, err := harness.Run(c.UserContext(), env, harness.WithTimeout(cfg.Timeout), harness.WithScenarios(scenarios...))
		if err != nil {
			return err
		}

		status := fiber.StatusOK
		if !report.Passed() {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(report)
	})

	return app
}

// excludeFilter turns ?exclude=id1,id2 into a negated membership test.
// An empty value still yields the predicate over an empty set.
func excludeFilter(raw string) (queryx.Predicate, error) {
	ids := []primitive.ObjectID{}
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, cliErrors.NewWithCause(ErrInvalidExclude, err).WithDetail("value", s)
		}
		ids = append(ids, id)
	}
	return queryx.Negate(queryx.FieldIn("_id", ids...)), nil
}
