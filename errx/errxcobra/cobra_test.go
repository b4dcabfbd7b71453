package errxcobra

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Conversia-AI/craftable-projection/errx"
)

var testErrors = errx.NewRegistry("TEST")

var errMismatch = testErrors.Register("MISMATCH", errx.TypeConflict, http.StatusConflict, "Strategies disagree")

func capture(options CLIOptions) (*CLI, *bytes.Buffer, *int) {
	var out bytes.Buffer
	code := -1
	options.Output = &out
	options.UseColors = false
	options.ExitFunc = func(c int) { code = c }
	return NewCLI(options), &out, &code
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
	assert.Equal(t, 6, ExitCode(testErrors.New(errMismatch)))
	assert.Equal(t, 2, ExitCode(errx.New("bad", errx.TypeValidation)))
	assert.Equal(t, 7, ExitCode(errx.New("nope", errx.TypeUnsupported)))
}

func TestHandleError_DetailedText(t *testing.T) {
	cli, out, code := capture(OptionsForVerbosity(2, false))

	err := testErrors.NewWithCause(errMismatch, errors.New("root cause")).
		WithDetail("path", "[0].Category.ID").
		WithDetail("mismatches", []string{"a", "b"})
	cli.HandleError(err)

	text := out.String()
	assert.Contains(t, text, "Strategies disagree")
	assert.Contains(t, text, "TEST_MISMATCH")
	assert.Contains(t, text, "[0].Category.ID")
	assert.Contains(t, text, "     - b")
	assert.Contains(t, text, "root cause")
	assert.Equal(t, 6, *code)
}

func TestHandleError_SimpleJSON(t *testing.T) {
	options := OptionsForVerbosity(0, true)
	options.ExitOnError = false
	cli, out, code := capture(options)

	cli.HandleError(errors.New("boom"))

	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "boom", body["error"]["message"])
	assert.NotContains(t, body["error"], "code")
	assert.Equal(t, -1, *code)
}

func TestWithCLI(t *testing.T) {
	options := DefaultCLIOptions()
	options.DisplayMode = DisplayModeSimple
	cli, out, code := capture(options)

	cmd := &cobra.Command{
		Use:  "fail",
		RunE: func(*cobra.Command, []string) error { return testErrors.New(errMismatch) },
	}
	cmd.RunE = cli.HandleCommandError(cmd.RunE)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Error: Strategies disagree\n", out.String())
	assert.Equal(t, 6, *code)
}
