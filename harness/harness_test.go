package harness

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversia-AI/craftable-projection/configx"
	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/errx"
	"github.com/Conversia-AI/craftable-projection/projectx"
	"github.com/Conversia-AI/craftable-projection/stagex"
)

func memoryEnv(t *testing.T) *Env {
	t.Helper()

	env, err := Open(context.Background(), Config{Backend: BackendMemory, Collection: "posts"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env
}

func TestLoadConfigFrom(t *testing.T) {
	c, err := LoadConfigFrom(configx.NewBuilder().WithEnvironment(map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
	assert.Equal(t, BackendMemory, c.Backend)
	assert.Equal(t, "MongoTestDb", c.Database)
	assert.Equal(t, 2*time.Minute, c.Timeout)

	c, err = LoadConfigFrom(configx.NewBuilder().WithEnvironment(map[string]string{
		"PROJECTX_BACKEND":    BackendMongo,
		"PROJECTX_MONGO_URI":  "mongodb://db:27017",
		"PROJECTX_TIMEOUT":    "30s",
		"PROJECTX_HTTP_ADDR":  ":9090",
		"OTHER_COLLECTION":    "ignored",
		"PROJECTX_COLLECTION": "articles",
	}))
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, c.Backend)
	assert.Equal(t, "mongodb://db:27017", c.MongoURI)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, ":9090", c.HTTPAddr)
	assert.Equal(t, "articles", c.Collection)
	assert.Equal(t, "MongoTestDb", c.Database)

	_, err = LoadConfigFrom(configx.NewBuilder().WithEnvironment(map[string]string{"PROJECTX_BACKEND": "sqlite"}))
	assert.True(t, errx.IsCode(err, ErrUnknownBackend))

	_, err = LoadConfigFrom(configx.NewBuilder().WithEnvironment(map[string]string{"PROJECTX_TIMEOUT": "soon"}))
	assert.True(t, errx.IsCode(err, configx.ErrInvalidValue))

	noURI := Defaults()
	noURI.Backend, noURI.MongoURI = BackendMongo, ""
	assert.True(t, errx.IsCode(noURI.Validate(), ErrUnknownBackend))
}

func TestOpen_SeedsMemoryBackend(t *testing.T) {
	env := memoryEnv(t)

	require.Len(t, env.Seeded, 2)
	assert.Equal(t, "post1", env.Seeded[0].Title)
	assert.Equal(t, "post2", env.Seeded[1].Title)
	assert.Len(t, env.Registry.Pairs(), 4)
	assert.Contains(t, env.Registry.Pairs(), dtox.PairOf[entity.Post, entity.PostComments]())
}

func TestRun_AllScenariosPass(t *testing.T) {
	env := memoryEnv(t)

	report, err := Run(context.Background(), env, WithTimeout(time.Minute))
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, report.Backend)
	require.Len(t, report.Results, len(Scenarios()))

	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: %s", r.Scenario, r.Error)
	}
	assert.True(t, report.Passed())
	assert.Empty(t, report.Failed())
	assert.NoError(t, report.Err())

	counts := map[string]int{}
	for _, r := range report.Results {
		counts[r.Scenario] = r.Count
	}
	assert.Equal(t, 4, counts["negated-membership"])
	assert.Equal(t, 2, counts["equivalence"])
}

func TestRun_SelectedScenarios(t *testing.T) {
	env := memoryEnv(t)

	report, err := Run(context.Background(), env, WithScenarios("embedded-contains", "json-projection"))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, "embedded-contains", report.Results[0].Scenario)

	_, err = Run(context.Background(), env, WithScenarios("nope"))
	assert.True(t, IsUnknownScenario(err))
}

func TestRun_RecordsFailure(t *testing.T) {
	env := memoryEnv(t)
	env.Seeded = env.Seeded[:1]

	report, err := Run(context.Background(), env, WithScenarios("registry-projection"))
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.False(t, res.Passed)
	assert.Equal(t, string(ErrUnexpectedShape), res.Code)
	assert.Equal(t, "count", res.Details["field"])
	assert.False(t, report.Passed())
	assert.True(t, errx.IsCode(report.Err(), ErrRunFailed))
}

func TestPostDtoJSON_MatchesDerivedProjection(t *testing.T) {
	env := memoryEnv(t)
	ctx := context.Background()

	hand, err := stagex.ParseProjection(PostDtoJSON)
	require.NoError(t, err)

	strategies, err := PostDtoStrategies(env)
	require.NoError(t, err)
	strategies = append(strategies, projectx.PipelineDeclarative[entity.Post, entity.PostDto](env.Engine, hand))

	src := projectx.Items(env.Seeded...)
	_, err = projectx.CheckEquivalence(ctx, src, strategies...)
	require.NoError(t, err)
}
