package harness

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/projectx"
	"github.com/Conversia-AI/craftable-projection/queryx"
	"github.com/Conversia-AI/craftable-projection/stagex"
)

// Scenario is one regression check against a seeded Env. Run returns the
// number of projected documents.
type Scenario struct {
	Name        string
	Description string
	Run         func(ctx context.Context, env *Env) (int, error)
}

// Scenarios lists every check in execution order
func Scenarios() []Scenario {
	return []Scenario{
		{"negated-membership", "NOT IN over an unmatched and an empty id set returns every post", negatedMembership},
		{"registry-projection", "PostDto through the mapping registry", registryProjection},
		{"manual-projection", "PostDto through a field-by-field expression", manualProjection},
		{"json-projection", "PostDto through a hand-written $project document", jsonProjection},
		{"embedded-contains", "comments filtered by text contains", embeddedContains},
		{"embedded-tolist", "id with comments copied verbatim", embeddedToList},
		{"equivalence", "manual, registry and pipeline PostDto projections agree", equivalence},
	}
}

// Lookup finds a scenario by name
func Lookup(name string) (Scenario, error) {
	s, ok := lo.Find(Scenarios(), func(s Scenario) bool { return s.Name == name })
	if !ok {
		return Scenario{}, ErrorRegistry.New(ErrUnknownScenario).
			WithDetail("scenario", name).
			WithDetail("known", lo.Map(Scenarios(), func(s Scenario, _ int) string { return s.Name }))
	}
	return s, nil
}

// PostDtoStrategies returns the three PostDto strategies bound to env
func PostDtoStrategies(env *Env) ([]projectx.Strategy[entity.Post, entity.PostDto], error) {
	projection, err := stagex.For[entity.Post, entity.PostDto](env.Registry)
	if err != nil {
		return nil, err
	}
	return []projectx.Strategy[entity.Post, entity.PostDto]{
		projectx.Manual(ManualPostDto),
		projectx.RegistryDriven[entity.Post, entity.PostDto](env.Registry),
		projectx.PipelineDeclarative[entity.Post, entity.PostDto](env.Engine, projection),
	}, nil
}

func negatedMembership(ctx context.Context, env *Env) (int, error) {
	sets := map[string]queryx.Predicate{
		"unmatched": queryx.Negate(queryx.FieldIn("_id", primitive.NewObjectID())),
		"empty":     queryx.Negate(queryx.FieldIn[primitive.ObjectID]("_id")),
	}

	strategies, err := PostDtoStrategies(env)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, name := range []string{"unmatched", "empty"} {
		outcome, err := projectx.CheckEquivalence(ctx, projectx.Stored(env.Posts, sets[name]), strategies...)
		if err != nil {
			return 0, err
		}
		if got := len(outcome.Items()); got != len(env.Seeded) {
			return 0, ErrorRegistry.New(ErrUnexpectedShape).
				WithDetail("set", name).
				WithDetail("want", len(env.Seeded)).
				WithDetail("got", got)
		}
		total += len(outcome.Items())
	}
	return total, nil
}

func registryProjection(ctx context.Context, env *Env) (int, error) {
	dtos, err := projectx.ProjectViaRegistry[entity.Post, entity.PostDto](ctx, projectx.Stored(env.Posts, nil), env.Registry)
	if err != nil {
		return 0, err
	}
	return len(dtos), expectSeedShapes(env, projectx.KindRegistryDriven, dtos)
}

func manualProjection(ctx context.Context, env *Env) (int, error) {
	dtos, err := projectx.ProjectManually(ctx, projectx.Stored(env.Posts, nil), ManualPostDto)
	if err != nil {
		return 0, err
	}
	return len(dtos), expectSeedShapes(env, projectx.KindManual, dtos)
}

func jsonProjection(ctx context.Context, env *Env) (int, error) {
	projection, err := stagex.ParseProjection(PostDtoJSON)
	if err != nil {
		return 0, err
	}
	dtos, err := projectx.ProjectViaPipeline[entity.Post, entity.PostDto](ctx, projectx.Stored(env.Posts, nil), env.Engine, projection)
	if err != nil {
		return 0, err
	}
	return len(dtos), expectSeedShapes(env, projectx.KindPipelineDeclarative, dtos)
}

func embeddedContains(ctx context.Context, env *Env) (int, error) {
	projection, err := stagex.For[entity.Post, entity.PostComments](env.Registry)
	if err != nil {
		return 0, err
	}

	outcome, err := projectx.CheckEquivalence(ctx, projectx.Stored(env.Posts, nil),
		projectx.Manual(ManualMatchingComments),
		projectx.RegistryDriven[entity.Post, entity.PostComments](env.Registry),
		projectx.PipelineDeclarative[entity.Post, entity.PostComments](env.Engine, projection),
	)
	if err != nil {
		return 0, err
	}
	return len(outcome.Items()), expectComments(env, outcome.Items(), ManualMatchingComments)
}

func embeddedToList(ctx context.Context, env *Env) (int, error) {
	outcome, err := projectx.CheckEquivalence(ctx, projectx.Stored(env.Posts, nil),
		projectx.Manual(ManualAllComments),
		projectx.PipelineDeclarative[entity.Post, entity.PostComments](env.Engine, AllComments()),
	)
	if err != nil {
		return 0, err
	}
	return len(outcome.Items()), expectComments(env, outcome.Items(), ManualAllComments)
}

func equivalence(ctx context.Context, env *Env) (int, error) {
	strategies, err := PostDtoStrategies(env)
	if err != nil {
		return 0, err
	}
	outcome, err := projectx.CheckEquivalence(ctx, projectx.Stored(env.Posts, nil), strategies...)
	if err != nil {
		return 0, err
	}
	return len(outcome.Items()), expectSeedShapes(env, projectx.KindManual, outcome.Items())
}

// expectSeedShapes checks the seed posts came out as post1 and post2 were written
func expectSeedShapes(env *Env, kind projectx.Kind, dtos []entity.PostDto) error {
	if len(dtos) != len(env.Seeded) {
		return unexpected("count", len(env.Seeded), len(dtos))
	}

	byTitle := lo.KeyBy(dtos, func(d entity.PostDto) string { return d.Title })

	if post1, ok := byTitle["post1"]; ok {
		if post1.Category == nil || post1.Category.Name != "category1" {
			return unexpected("post1.Category", "category1", fmt.Sprintf("%+v", post1.Category))
		}
		texts := lo.Map(post1.Comments, func(c entity.CommentDto, _ int) string { return c.Text })
		if len(texts) != 1 || texts[0] != "test" {
			return unexpected("post1.Comments", []string{"test"}, texts)
		}
	}
	if post2, ok := byTitle["post2"]; ok {
		if post2.Comments == nil || len(post2.Comments) != 0 {
			return unexpected("post2.Comments", "empty", post2.Comments)
		}
	}

	for _, seeded := range env.Seeded {
		want := ManualPostDto(seeded)
		got, ok := lo.Find(dtos, func(d entity.PostDto) bool { return d.ID == seeded.ID })
		if !ok {
			return unexpected("Id", seeded.ID.Hex(), "missing")
		}
		if err := projectx.Compare(projectx.KindManual, want, kind, got); err != nil {
			return err
		}
	}
	return nil
}

func expectComments(env *Env, got []entity.PostComments, fn func(entity.Post) entity.PostComments) error {
	want := lo.Map(env.Seeded, func(p entity.Post, _ int) entity.PostComments { return fn(p) })
	if len(got) != len(want) {
		return unexpected("count", len(want), len(got))
	}
	return projectx.Compare(projectx.KindManual, want, projectx.KindPipelineDeclarative, got)
}

func unexpected(field string, want, got any) error {
	return ErrorRegistry.New(ErrUnexpectedShape).
		WithDetail("field", field).
		WithDetail("want", fmt.Sprintf("%v", want)).
		WithDetail("got", fmt.Sprintf("%v", got))
}
