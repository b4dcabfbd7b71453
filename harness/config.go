package harness

import (
	"slices"
	"time"

	"github.com/Conversia-AI/craftable-projection/configx"
	"github.com/Conversia-AI/craftable-projection/fixture"
)

const EnvPrefix = "PROJECTX_"

const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendEphemeral = "ephemeral"
)

// Config selects where the scenarios run. Each field reads PROJECTX_<tag>.
type Config struct {
	Backend    string        `env:"BACKEND"`
	MongoURI   string        `env:"MONGO_URI"`
	MongoImage string        `env:"MONGO_IMAGE"`
	Database   string        `env:"DATABASE"`
	Collection string        `env:"COLLECTION"`
	HTTPAddr   string        `env:"HTTP_ADDR"`
	Timeout    time.Duration `env:"TIMEOUT"`
}

// Defaults is the configuration used when nothing is overridden
func Defaults() Config {
	return Config{
		Backend:    BackendMemory,
		MongoURI:   "mongodb://localhost:27017",
		MongoImage: fixture.DefaultImage,
		Database:   "MongoTestDb",
		Collection: "posts",
		HTTPAddr:   ":8080",
		Timeout:    2 * time.Minute,
	}
}

// LoadConfig reads the defaults overridden by PROJECTX_* variables
func LoadConfig() (Config, error) {
	return LoadConfigFrom(configx.NewBuilder())
}

// LoadConfigFrom decodes the PROJECTX_* variables of b's environment over
// Defaults and validates the result
func LoadConfigFrom(b *configx.Builder) (Config, error) {
	cfg := Defaults()
	if err := b.FromEnv(EnvPrefix).Decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the backend selection
func (c Config) Validate() error {
	if !slices.Contains(Backends(), c.Backend) {
		return ErrorRegistry.New(ErrUnknownBackend).
			WithDetail("backend", c.Backend).
			WithDetail("supported", Backends())
	}
	if c.Backend == BackendMongo && c.MongoURI == "" {
		return ErrorRegistry.New(ErrUnknownBackend).
			WithDetail("backend", c.Backend).
			WithDetail("reason", "mongo.uri is empty")
	}
	return nil
}

func Backends() []string {
	return []string{BackendMemory, BackendMongo, BackendEphemeral}
}
