package fixture

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/logx"
	"github.com/Conversia-AI/craftable-projection/storex/providers/storexmongo"
)

const DefaultImage = "mongo:7"

// Mongo is a running database with the post collection opened
type Mongo struct {
	URI      string
	Client   *mongo.Client
	Database *mongo.Database
	Posts    *storexmongo.MongoCollection[entity.Post]

	close func(context.Context) error
}

// Close disconnects and terminates the container when there is one
func (m *Mongo) Close(ctx context.Context) error {
	if m == nil || m.close == nil {
		return nil
	}
	return m.close(ctx)
}

// Pipeline returns the database-level engine for $documents pipelines
func (m *Mongo) Pipeline() *storexmongo.DatabasePipeline {
	return storexmongo.NewDatabasePipeline(m.Database)
}

// Open connects to an existing server
func Open(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	client, err := storexmongo.Connect(ctx, uri)
	if err != nil {
		return nil, err
	}

	db := client.Database(database)
	return &Mongo{
		URI:      uri,
		Client:   client,
		Database: db,
		Posts:    storexmongo.NewMongoCollection[entity.Post](db.Collection(collection)),
		close:    client.Disconnect,
	}, nil
}

// StartMongo runs an ephemeral MongoDB container and opens it. Close
// releases both the client and the container.
func StartMongo(ctx context.Context, image, database, collection string) (*Mongo, error) {
	if image == "" {
		image = DefaultImage
	}

	started := time.Now()
	container, err := mongodb.Run(ctx, image)
	if err != nil {
		return nil, ErrorRegistry.NewWithCause(ErrContainerFailed, err).WithDetail("image", image)
	}

	terminate := func(ctx context.Context) error {
		return container.Terminate(ctx)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = terminate(ctx)
		return nil, ErrorRegistry.NewWithCause(ErrContainerFailed, err).WithDetail("image", image)
	}

	m, err := Open(ctx, uri, database, collection)
	if err != nil {
		_ = terminate(ctx)
		return nil, err
	}
	logx.Info("fixture: %s ready in %s", image, time.Since(started).Round(time.Millisecond))

	disconnect := m.close
	m.close = func(ctx context.Context) error {
		derr := disconnect(ctx)
		if err := terminate(ctx); err != nil {
			return ErrorRegistry.NewWithCause(ErrContainerFailed, err).WithDetail("image", image)
		}
		return derr
	}
	return m, nil
}
