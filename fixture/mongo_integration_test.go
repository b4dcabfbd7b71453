//go:build integration

package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func TestStartMongo_Seed(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	m, err := StartMongo(ctx, DefaultImage, "MongoTestDb", "posts")
	require.NoError(t, err)
	defer func() {
		if err := m.Close(context.Background()); err != nil {
			t.Errorf("failed to close mongo: %v", err)
		}
	}()

	stored, err := Seed(ctx, m.Posts)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	again, err := Seed(ctx, m.Posts)
	require.NoError(t, err)
	assert.Equal(t, stored, again)

	n, err := m.Posts.Count(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
