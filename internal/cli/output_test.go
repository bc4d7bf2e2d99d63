package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/brewlog/internal/brew"
	"github.com/roach88/brewlog/internal/engine"
	"github.com/roach88/brewlog/internal/recipe"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("NOT_FOUND", "batch 7 not found", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "batch 7 not found", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Recipe imported")
	require.NoError(t, err)
	assert.Equal(t, "Recipe imported\n", buf.String())
}

type fixedText string

func (s fixedText) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "<%s>\n", string(s))
	return err
}

func TestOutputFormatter_TextWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(fixedText("table")))
	assert.Equal(t, "<table>\n", buf.String())
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	err := formatter.Error("MALFORMED_SCHEDULE", "stage 2 has no days_from_start", map[string]int{"recipe": 3})
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [MALFORMED_SCHEDULE]")
	assert.Contains(t, errOut.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loading %s", "samyangju.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loading samyangju.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
	}{
		{"not found", fmt.Errorf("load batch 3: %w", brew.ErrNotFound), ErrCodeNotFound, ExitCommandError},
		{"recipe file", &recipe.LoadError{Field: "recipe.name", Message: "empty"}, ErrCodeInvalidRecipe, ExitCommandError},
		{"batch name", engine.ErrBatchName, ErrCodeInvalidInput, ExitCommandError},
		{"malformed", brew.MalformedSchedule("gap"), "MALFORMED_SCHEDULE", ExitCommandError},
		{"immutable", brew.ImmutableSchedule(4, brew.AlarmFilter), "IMMUTABLE_SCHEDULE", ExitCommandError},
		{"store", brew.StoreUnavailable("insert", errors.New("locked")), "STORE_UNAVAILABLE", ExitFailure},
		{"registration", brew.RegistrationFailed(2, errors.New("down")), "REGISTRATION_FAILED", ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad format"), ErrCodeGeneric, ExitCommandError},
		{"plain", errors.New("boom"), ErrCodeGeneric, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantExit, exit)
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "open", errors.New("x"))))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
}
