// Package projectx projects source entities into target shapes with three
// interchangeable strategies and checks that they agree.
//
//	manual   := projectx.Manual(func(p entity.Post) entity.PostDto { ... })
//	registry := projectx.RegistryDriven[entity.Post, entity.PostDto](reg)
//	pipeline := projectx.PipelineDeclarative[entity.Post, entity.PostDto](engine, projection)
//
//	outcome, err := projectx.CheckEquivalence(ctx, projectx.Stored(posts, nil), manual, registry, pipeline)
//
// Manual and registry-driven strategies filter in process. The pipeline
// strategy translates the source predicate into a $match stage and fails
// with queryx.ErrTranslationUnsupported when it cannot.
package projectx

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/dtox"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/stagex"
	"github.com/Conversia-AI/craftable-projection/storex"
)

// Kind tags a strategy
type Kind int

const (
	KindManual Kind = iota
	KindRegistryDriven
	KindPipelineDeclarative
)

func (k Kind) String() string {
	switch k {
	case KindManual:
		return "manual"
	case KindRegistryDriven:
		return "registry"
	case KindPipelineDeclarative:
		return "pipeline"
	}
	return "unknown"
}

// Kinds lists every strategy kind in a stable order
func Kinds() []Kind {
	return []Kind{KindManual, KindRegistryDriven, KindPipelineDeclarative}
}

// ParseKind accepts the names returned by Kind.String
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, ErrorRegistry.New(ErrUnknownKind).WithDetail("kind", s)
}

// Strategy projects every item of a source into T
type Strategy[S, T any] interface {
	Kind() Kind
	Project(ctx context.Context, src Source[S]) ([]T, error)
}

type manualStrategy[S, T any] struct {
	fn func(S) T
}

// Manual projects with a caller-supplied expression
func Manual[S, T any](fn func(S) T) Strategy[S, T] {
	return manualStrategy[S, T]{fn: fn}
}

func (manualStrategy[S, T]) Kind() Kind { return KindManual }

func (m manualStrategy[S, T]) Project(ctx context.Context, src Source[S]) ([]T, error) {
	items, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, m.fn(item))
	}

	logx.Debug("projectx: manual projected %d items", len(out))
	return out, nil
}

type registryStrategy[S, T any] struct {
	registry *dtox.Registry
}

// RegistryDriven projects through the (S, T) table of registry. The pair is
// resolved on every call.
func RegistryDriven[S, T any](registry *dtox.Registry) Strategy[S, T] {
	return registryStrategy[S, T]{registry: registry}
}

func (registryStrategy[S, T]) Kind() Kind { return KindRegistryDriven }

func (r registryStrategy[S, T]) Project(ctx context.Context, src Source[S]) ([]T, error) {
	if _, err := dtox.Resolve[S, T](r.registry); err != nil {
		return nil, err
	}

	items, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}

	out, err := dtox.MapAll[S, T](r.registry, items)
	if err != nil {
		return nil, err
	}

	logx.Debug("projectx: registry projected %d items", len(out))
	return out, nil
}

type pipelineStrategy[S, T any] struct {
	engine     storex.Pipeline
	projection stagex.Projection
}

// PipelineDeclarative projects with a $project stage. Stored sources run on
// their collection; in-process items are shipped to engine in $documents.
func PipelineDeclarative[S, T any](engine storex.Pipeline, projection stagex.Projection) Strategy[S, T] {
	return pipelineStrategy[S, T]{engine: engine, projection: projection}
}

func (pipelineStrategy[S, T]) Kind() Kind { return KindPipelineDeclarative }

func (p pipelineStrategy[S, T]) Project(ctx context.Context, src Source[S]) ([]T, error) {
	pipeline, target, err := BuildPipeline(src, p.engine, p.projection)
	if err != nil {
		return nil, err
	}

	raws, err := target.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}

	out, err := storex.Decode[T](raws)
	if err != nil {
		return nil, err
	}

	logx.Debug("projectx: pipeline projected %d items", len(out))
	return out, nil
}

// BuildPipeline renders [$documents] [$match] $project for src and returns
// where the stages run: the source's collection, or engine for in-process items
func BuildPipeline[S any](src Source[S], engine storex.Pipeline, projection stagex.Projection) (mongo.Pipeline, storex.Pipeline, error) {
	var (
		pipeline mongo.Pipeline
		target   storex.Pipeline
	)

	if coll := src.Collection(); coll != nil {
		target = coll
	} else {
		if engine == nil {
			return nil, nil, ErrorRegistry.New(ErrMissingEngine)
		}
		docs := make([]bson.M, 0, len(src.items))
		for _, item := range src.items {
			doc, err := bsonx.ToDocument(item)
			if err != nil {
				return nil, nil, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err)
			}
			docs = append(docs, doc)
		}
		pipeline = append(pipeline, stagex.Documents(docs))
		target = engine
	}

	match, err := stagex.Match(src.Predicate())
	if err != nil {
		return nil, nil, err
	}
	if match != nil {
		pipeline = append(pipeline, match)
	}

	project, err := projection.Stage()
	if err != nil {
		return nil, nil, err
	}
	pipeline = append(pipeline, project)

	return pipeline, target, nil
}

// ProjectManually projects src with fn
func ProjectManually[S, T any](ctx context.Context, src Source[S], fn func(S) T) ([]T, error) {
	return Manual(fn).Project(ctx, src)
}

// ProjectViaRegistry projects src through the registered (S, T) table
func ProjectViaRegistry[S, T any](ctx context.Context, src Source[S], registry *dtox.Registry) ([]T, error) {
	return RegistryDriven[S, T](registry).Project(ctx, src)
}

// ProjectViaPipeline projects src with a declarative $project stage
func ProjectViaPipeline[S, T any](ctx context.Context, src Source[S], engine storex.Pipeline, projection stagex.Projection) ([]T, error) {
	return PipelineDeclarative[S, T](engine, projection).Project(ctx, src)
}

// ProjectOne projects a single item
func ProjectOne[S, T any](ctx context.Context, strategy Strategy[S, T], item S) (T, error) {
	var zero T

	out, err := strategy.Project(ctx, Items(item))
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, ErrorRegistry.New(ErrUnexpectedCount).
			WithDetail("strategy", strategy.Kind().String()).
			WithDetail("count", len(out))
	}
	return out[0], nil
}
