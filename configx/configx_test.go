package configx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversia-AI/craftable-projection/errx"
)

func builderWithEnv(env map[string]string) *Builder {
	return NewBuilder().WithEnvironment(env)
}

func TestBuild_EnvOverridesDefaults(t *testing.T) {
	cfg, err := builderWithEnv(map[string]string{
		"PROJECTX_MONGO_URI": "mongodb://db:27017",
		"PROJECTX_TIMEOUT":   "5s",
		"OTHER_VALUE":        "ignored",
	}).
		WithDefaults(map[string]any{
			"mongo":    map[string]any{"uri": "mongodb://localhost:27017"},
			"database": "MongoTestDb",
		}).
		FromEnv("PROJECTX_").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", cfg.Get("mongo.uri").AsString())
	assert.Equal(t, "MongoTestDb", cfg.Get("database").AsString())
	assert.Equal(t, 5*time.Second, cfg.Get("timeout").AsDuration())
	assert.False(t, cfg.Get("other.value").IsSet())
}

func TestBuild_RequireEnv(t *testing.T) {
	_, err := builderWithEnv(map[string]string{"PROJECTX_A": "1", "PROJECTX_B": ""}).
		RequireEnv("PROJECTX_A", "PROJECTX_B", "PROJECTX_C").
		Build()

	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrMissingEnv))
	v, ok := errx.Detail(err, "variables")
	require.True(t, ok)
	assert.Equal(t, "PROJECTX_B, PROJECTX_C", v)
}

func TestValue_TypedAccessors(t *testing.T) {
	cfg, err := NewBuilder().
		WithDefaults(map[string]any{"port": 8080, "debug": "true", "bad": "x"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Get("port").AsInt())
	assert.True(t, cfg.Get("debug").AsBool())
	assert.Equal(t, "fallback", cfg.Get("missing").AsStringOr("fallback"))

	_, err = cfg.Get("bad").Int()
	assert.True(t, errx.IsCode(err, ErrInvalidValue))
}

func TestAllSettings_Nests(t *testing.T) {
	cfg, err := NewBuilder().
		With("mongo.uri", "u").
		With("mongo.image", "mongo:7").
		With("backend", "memory").
		Build()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"backend": "memory",
		"mongo":   map[string]any{"uri": "u", "image": "mongo:7"},
	}, cfg.AllSettings())
}

type decoded struct {
	URI     string        `env:"MONGO_URI"`
	Timeout time.Duration `env:"TIMEOUT"`
	Retries int           `env:"RETRIES"`
	Name    string        `env:"NAME"`
}

func TestDecode(t *testing.T) {
	target := decoded{URI: "mongodb://localhost:27017", Name: "default"}
	err := builderWithEnv(map[string]string{
		"PROJECTX_MONGO_URI": "mongodb://db:27017",
		"PROJECTX_TIMEOUT":   "5s",
		"PROJECTX_RETRIES":   "3",
		"NAME":               "unprefixed",
	}).FromEnv("PROJECTX_").Decode(&target)
	require.NoError(t, err)

	assert.Equal(t, decoded{URI: "mongodb://db:27017", Timeout: 5 * time.Second, Retries: 3, Name: "default"}, target)

	err = builderWithEnv(map[string]string{"PROJECTX_RETRIES": "many"}).FromEnv("PROJECTX_").Decode(&target)
	require.Error(t, err)
	assert.True(t, errx.IsCode(err, ErrInvalidValue))
	prefix, _ := errx.Detail(err, "prefix")
	assert.Equal(t, "PROJECTX_", prefix)

	err = builderWithEnv(map[string]string{}).RequireEnv("PROJECTX_MONGO_URI").Decode(&target)
	assert.True(t, errx.IsCode(err, ErrMissingEnv))
}
