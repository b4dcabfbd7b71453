package storexmongo

import (
	"context"
	"iter"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/storex"
)

// Connect opens a client and verifies the server is reachable
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrConnectionFailed, err).WithDetail("uri", redact(uri))
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, storex.StoreErrors.NewWithCause(storex.ErrConnectionFailed, err).WithDetail("uri", redact(uri))
	}
	return client, nil
}

// MongoCollection is a MongoDB implementation of storex.Collection
type MongoCollection[T any] struct {
	collection *mongo.Collection
}

// NewMongoCollection wraps a driver collection
func NewMongoCollection[T any](collection *mongo.Collection) *MongoCollection[T] {
	return &MongoCollection[T]{collection: collection}
}

func (r *MongoCollection[T]) Name() string {
	return r.collection.Name()
}

// InsertOne adds a new document, generating its ObjectID when zero
func (r *MongoCollection[T]) InsertOne(ctx context.Context, item T) (T, error) {
	var empty T

	assignObjectID(&item)

	if _, err := r.collection.InsertOne(ctx, item); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return empty, storex.StoreErrors.NewWithCause(storex.ErrDuplicateID, err)
		}
		return empty, storex.StoreErrors.NewWithCause(storex.ErrCreateFailed, err)
	}

	return item, nil
}

// Sequence streams the collection in natural order
func (r *MongoCollection[T]) Sequence(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var empty T

		cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}}))
		if err != nil {
			yield(empty, storex.StoreErrors.NewWithCause(storex.ErrFindFailed, err))
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var item T
			if err := cursor.Decode(&item); err != nil {
				yield(empty, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(empty, storex.StoreErrors.NewWithCause(storex.ErrFindFailed, err))
		}
	}
}

func (r *MongoCollection[T]) All(ctx context.Context) ([]T, error) {
	return storex.Collect(r.Sequence(ctx))
}

// Find retrieves the documents matching filter
func (r *MongoCollection[T]) Find(ctx context.Context, filter bson.D) ([]T, error) {
	if filter == nil {
		filter = bson.D{}
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrFindFailed, err)
	}
	defer cursor.Close(ctx)

	items := []T{}
	if err = cursor.All(ctx, &items); err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrDecodeFailed, err)
	}

	return items, nil
}

func (r *MongoCollection[T]) Any(ctx context.Context, filter bson.D) (bool, error) {
	if filter == nil {
		filter = bson.D{}
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, storex.StoreErrors.NewWithCause(storex.ErrCountFailed, err)
	}
	return n > 0, nil
}

func (r *MongoCollection[T]) Count(ctx context.Context, filter bson.D) (int64, error) {
	if filter == nil {
		filter = bson.D{}
	}
	n, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, storex.StoreErrors.NewWithCause(storex.ErrCountFailed, err)
	}
	return n, nil
}

// Aggregate runs pipeline against the collection
func (r *MongoCollection[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	logx.Debug("storexmongo: aggregate on %s (%d stages)", r.collection.Name(), len(pipeline))

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrAggregateFailed, err).WithDetail("collection", r.collection.Name())
	}
	return drain(ctx, cursor)
}

// DatabasePipeline runs collection-less pipelines that start with $documents
type DatabasePipeline struct {
	db *mongo.Database
}

func NewDatabasePipeline(db *mongo.Database) *DatabasePipeline {
	return &DatabasePipeline{db: db}
}

func (p *DatabasePipeline) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.Raw, error) {
	logx.Debug("storexmongo: database aggregate on %s (%d stages)", p.db.Name(), len(pipeline))

	cursor, err := p.db.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrAggregateFailed, err).WithDetail("database", p.db.Name())
	}
	return drain(ctx, cursor)
}

func drain(ctx context.Context, cursor *mongo.Cursor) ([]bson.Raw, error) {
	defer cursor.Close(ctx)

	out := []bson.Raw{}
	for cursor.Next(ctx) {
		// Current is reused by the next batch
		out = append(out, append(bson.Raw(nil), cursor.Current...))
	}
	if err := cursor.Err(); err != nil {
		return nil, storex.StoreErrors.NewWithCause(storex.ErrAggregateFailed, err)
	}
	return out, nil
}

// assignObjectID sets a fresh ObjectID on the _id field when it is zero
func assignObjectID(item any) {
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
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("bson")
		if tag != "_id" && !strings.HasPrefix(tag, "_id,") {
			continue
		}
		f := v.Field(i)
		if f.CanSet() && f.Type() == reflect.TypeOf(primitive.ObjectID{}) && f.IsZero() {
			f.Set(reflect.ValueOf(primitive.NewObjectID()))
		}
		return
	}
}

func redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***@" + rest[at+1:]
	}
	return uri
}
