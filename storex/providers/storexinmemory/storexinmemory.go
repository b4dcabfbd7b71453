// Package storexinmemory is an in-process storex.Collection. Documents are
// kept in their BSON document form in insertion order, and find filters and
// aggregation pipelines are interpreted with the server's semantics for the
// operators the projection engine emits.
package storexinmemory

import (
	"context"
	"iter"
	"reflect"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Conversia-AI/craftable-projection/bsonx"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/storex"
)

// MemoryCollection is an in-memory implementation of storex.Collection
type MemoryCollection[T any] struct {
	name        string
	docs        []bson.M
	mu          sync.RWMutex
	idGenerator func() primitive.ObjectID
}

// MemoryCollectionOption defines a functional option for configuring MemoryCollection
type MemoryCollectionOption[T any] func(*MemoryCollection[T])

// WithIDGenerator configures the function that generates new IDs
func WithIDGenerator[T any](generator func() primitive.ObjectID) MemoryCollectionOption[T] {
	return func(mc *MemoryCollection[T]) {
		mc.idGenerator = generator
	}
}

// NewMemoryCollection creates an empty collection
func NewMemoryCollection[T any](name string, options ...MemoryCollectionOption[T]) *MemoryCollection[T] {
	mc := &MemoryCollection[T]{
		name:        name,
		idGenerator: primitive.NewObjectID,
	}

	for _, option := range options {
		option(mc)
	}

	return mc
}

func (mc *MemoryCollection[T]) Name() string {
	return mc.name
}

// InsertOne adds a new document. A zero ObjectID _id is replaced by a
// generated one, both in the stored document and in the returned item.
func (mc *MemoryCollection[T]) InsertOne(ctx context.Context, item T) (T, error) {
	var zero T

	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.assignID(&item)

	doc, err := bsonx.ToDocument(item)
	if err != nil {
		return zero, storex.StoreErrors.NewWithCause(storex.ErrCreateFailed, err)
	}

	id, hasID := doc["_id"]
	if !hasID {
		id = mc.idGenerator()
		doc["_id"] = id
	}
	for _, existing := range mc.docs {
		if bsonx.Equal(existing["_id"], id) {
			return zero, storex.StoreErrors.New(storex.ErrDuplicateID).WithDetail("id", id)
		}
	}

	mc.docs = append(mc.docs, doc)
	return item, nil
}

// Sequence yields a snapshot of the collection taken when iteration starts
func (mc *MemoryCollection[T]) Sequence(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		for _, doc := range mc.snapshot() {
			if err := ctx.Err(); err != nil {
				yield(zero, storex.StoreErrors.NewWithCause(storex.ErrFindFailed, err).WithDetail("collection", mc.name))
				return
			}
			item, err := decode[T](doc)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (mc *MemoryCollection[T]) All(ctx context.Context) ([]T, error) {
	return storex.Collect(mc.Sequence(ctx))
}

// Find retrieves the documents matching filter
func (mc *MemoryCollection[T]) Find(ctx context.Context, filter bson.D) ([]T, error) {
	out := []T{}
	for _, doc := range mc.snapshot() {
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		item, err := decode[T](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (mc *MemoryCollection[T]) Any(ctx context.Context, filter bson.D) (bool, error) {
	n, err := mc.count(filter, 1)
	return n > 0, err
}

func (mc *MemoryCollection[T]) Count(ctx context.Context, filter bson.D) (int64, error) {
	return mc.count(filter, 0)
}

func (mc *MemoryCollection[T]) count(filter bson.D, limit int64) (int64, error) {
	var n int64
	for _, doc := range mc.snapshot() {
		ok, err := Match(doc, filter)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			if limit > 0 && n >= limit {
				break
			}
		}
	}
	return n, nil
}

// Aggregate runs pipeline over the stored documents
func (mc *MemoryCollection[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	logx.Debug("storexinmemory: aggregate on %s (%d stages)", mc.name, len(pipeline))

	docs, err := run(ctx, mc.snapshot(), pipeline, false)
	if err != nil {
		return nil, err
	}
	return toRaw(docs)
}

// Clear removes all documents
func (mc *MemoryCollection[T]) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.docs = nil
}

func (mc *MemoryCollection[T]) snapshot() []bson.M {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]bson.M, len(mc.docs))
	copy(out, mc.docs)
	return out
}

func (mc *MemoryCollection[T]) assignID(item *T) {
	v := reflect.ValueOf(item).Elem()
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("bson")
		if tag != "_id" && !strings.HasPrefix(tag, "_id,") {
			continue
		}
		f := v.Field(i)
		if f.CanSet() && f.Type() == reflect.TypeOf(primitive.ObjectID{}) && f.IsZero() {
			f.Set(reflect.ValueOf(mc.idGenerator()))
		}
		return
	}
}

// Engine runs collection-less pipelines whose first stage is $documents
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	if len(pipeline) == 0 || len(pipeline[0]) != 1 || pipeline[0][0].Key != "$documents" {
		return nil, storex.StoreErrors.NewWithMessage(storex.ErrInvalidQuery, "pipeline must start with $documents")
	}

	docs, err := run(ctx, nil, pipeline, true)
	if err != nil {
		return nil, err
	}
	return toRaw(docs)
}

func decode[T any](doc bson.M) (T, error) {
	var out T
	raw, err := bson.Marshal(doc)
	if err != nil {
		return out, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err)
	}
	if err := bson.Unmarshal(raw, &out); err != nil {
		return out, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err)
	}
	return out, nil
}

func toRaw(docs []bson.M) ([]bson.Raw, error) {
	out := make([]bson.Raw, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, storex.StoreErrors.NewWithCause(storex.ErrAggregateFailed, err)
		}
		out = append(out, raw)
	}
	return out, nil
}
