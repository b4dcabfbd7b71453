package harness

import (
	"context"

	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/fixture"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/queryx"
	"github.com/Conversia-AI/craftable-projection/storex"
	"github.com/Conversia-AI/craftable-projection/storex/providers/storexinmemory"
)

// Env is a seeded collection with the registry and engine the scenarios use
type Env struct {
	Backend  string
	Posts    storex.Collection[entity.Post]
	Engine   storex.Pipeline
	Registry *dtox.Registry
	Seeded   []entity.Post

	close func(context.Context) error
}

// NewRegistry registers every pair the scenarios project through
func NewRegistry() (*dtox.Registry, error) {
	reg := dtox.NewRegistry()

	if _, err := dtox.Register[entity.Post, entity.PostDto](reg); err != nil {
		return nil, err
	}
	if _, err := dtox.Register[entity.EmbeddedCategory, entity.CategoryDto](reg); err != nil {
		return nil, err
	}
	if _, err := dtox.Register[entity.EmbeddedComment, entity.CommentDto](reg); err != nil {
		return nil, err
	}
	if _, err := dtox.Register[entity.Post, entity.PostComments](reg,
		dtox.WithElementFilter("Comments", queryx.TextContains("Text", CommentFilter)),
	); err != nil {
		return nil, err
	}

	return reg, reg.Validate()
}

// Open prepares the configured backend and seeds it
func Open(ctx context.Context, cfg Config) (*Env, error) {
	reg, err := NewRegistry()
	if err != nil {
		return nil, err
	}

	env := &Env{Backend: cfg.Backend, Registry: reg}

	switch cfg.Backend {
	case BackendMemory:
		env.Posts = storexinmemory.NewMemoryCollection[entity.Post](cfg.Collection)
		env.Engine = storexinmemory.NewEngine()

	case BackendMongo, BackendEphemeral:
		var m *fixture.Mongo
		if cfg.Backend == BackendMongo {
			m, err = fixture.Open(ctx, cfg.MongoURI, cfg.Database, cfg.Collection)
		} else {
			m, err = fixture.StartMongo(ctx, cfg.MongoImage, cfg.Database, cfg.Collection)
		}
		if err != nil {
			return nil, err
		}
		env.Posts = m.Posts
		env.Engine = m.Pipeline()
		env.close = m.Close

	default:
		return nil, ErrorRegistry.New(ErrUnknownBackend).WithDetail("backend", cfg.Backend)
	}

	env.Seeded, err = fixture.Seed(ctx, env.Posts)
	if err != nil {
		_ = env.Close(ctx)
		return nil, err
	}

	logx.Info("harness: %s backend ready with %d posts", cfg.Backend, len(env.Seeded))
	return env, nil
}

// Close releases the backend; it is safe to call on any Env
func (e *Env) Close(ctx context.Context) error {
	if e == nil || e.close == nil {
		return nil
	}
	err := e.close(ctx)
	e.close = nil
	return err
}
