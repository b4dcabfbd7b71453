package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversia-AI/craftable-projection/entity"
	"github.com/Conversia-AI/craftable-projection/harness"
)

func memoryServer(t *testing.T) (*harness.Env, func(path string) (int, []byte)) {
	t.Helper()

	cfg := harness.Config{Backend: harness.BackendMemory, Collection: "posts"}
	env, err := harness.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })

	app := newServer(env, cfg)
	get := func(path string) (int, []byte) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, buf.Bytes()
	}
	return env, get
}

func TestServer_Projections(t *testing.T) {
	env, get := memoryServer(t)

	for _, strategy := range []string{"manual", "registry", "pipeline"} {
		t.Run(strategy, func(t *testing.T) {
			status, body := get("/projections/" + strategy)
			require.Equal(t, http.StatusOK, status, string(body))

			var out struct {
				Strategy string           `json:"strategy"`
				Items    []entity.PostDto `json:"items"`
			}
			require.NoError(t, json.Unmarshal(body, &out))
			assert.Equal(t, strategy, out.Strategy)
			require.Len(t, out.Items, 2)
			assert.Equal(t, "post1", out.Items[0].Title)
			assert.Equal(t, "category1", out.Items[0].Category.Name)
		})
	}

	status, body := get("/projections/pipeline?exclude=" + env.Seeded[0].ID.Hex())
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, string(body), `"post1"`)
	assert.Contains(t, string(body), `"post2"`)
}

func TestServer_Errors(t *testing.T) {
	_, get := memoryServer(t)

	status, body := get("/projections/reflection")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "PROJECTX_UNKNOWN_KIND")

	status, body = get("/projections/manual?exclude=not-an-id")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "CLI_INVALID_EXCLUDE")
}

func TestServer_Check(t *testing.T) {
	_, get := memoryServer(t)

	status, body := get("/check")
	require.Equal(t, http.StatusOK, status, string(body))

	var report harness.Report
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Passed())
	assert.Len(t, report.Results, len(harness.Scenarios()))

	status, _ = get("/check?scenario=missing")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Stage(t *testing.T) {
	_, get := memoryServer(t)

	status, body := get("/stage")
	require.Equal(t, http.StatusOK, status)

	var stages map[string]string
	require.NoError(t, json.Unmarshal(body, &stages))
	assert.Len(t, stages, 4)
	assert.Contains(t, stages["PostDto derived from the registry"], "$cond")
}

func TestStageCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"stage"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "// PostDto written by hand")
	assert.Contains(t, out.String(), "dtoEmbeddedComment")
}

func TestCheckCommand_List(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--list"})

	require.NoError(t, cmd.Execute())
	for _, s := range harness.Scenarios() {
		assert.Contains(t, out.String(), s.Name)
	}
}

func TestCheckCommand_Memory(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"check", "--backend", "memory", "equivalence"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "1 passed, 0 failed")
}
