package storex

import (
	"context"
	"iter"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Pipeline executes aggregation stages and returns the raw output documents
type Pipeline interface {
	Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.Raw, error)
}

// Collection is a typed document collection
type Collection[T any] interface {
	Pipeline

	// Name returns the collection name
	Name() string

	// InsertOne stores item, assigning a fresh ObjectID when its _id is zero
	InsertOne(ctx context.Context, item T) (T, error)

	// Sequence lazily yields every stored document in insertion order
	Sequence(ctx context.Context) iter.Seq2[T, error]

	All(ctx context.Context) ([]T, error)

	// Find returns the documents matching a query filter
	Find(ctx context.Context, filter bson.D) ([]T, error)

	Any(ctx context.Context, filter bson.D) (bool, error)

	Count(ctx context.Context, filter bson.D) (int64, error)
}

// Decode unmarshals raw documents into T. The result is never nil.
func Decode[T any](raws []bson.Raw) ([]T, error) {
	out := make([]T, 0, len(raws))
	for i, raw := range raws {
		var item T
		if err := bson.Unmarshal(raw, &item); err != nil {
			return nil, StoreErrors.NewWithCause(ErrDecodeFailed, err).WithDetail("index", i)
		}
		out = append(out, item)
	}
	return out, nil
}

// Collect drains a sequence, stopping at the first error
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	out := []T{}
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
