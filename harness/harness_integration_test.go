//go:build integration

package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"

	"github.com/Conversia-AI/craftable-projection/fixture"
)

func TestRun_EphemeralMongo(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env, err := Open(ctx, Config{
		Backend:    BackendEphemeral,
		MongoImage: fixture.DefaultImage,
		Database:   "MongoTestDb",
		Collection: "posts",
	})
	require.NoError(t, err)
	defer func() {
		if err := env.Close(context.Background()); err != nil {
			t.Errorf("failed to close env: %v", err)
		}
	}()

	report, err := Run(ctx, env, WithTimeout(time.Minute))
	require.NoError(t, err)
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: %s %v", r.Scenario, r.Error, r.Details)
	}
}
