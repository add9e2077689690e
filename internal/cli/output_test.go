package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warranty/internal/apperr"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]int{"removed": 2})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]interface{}{"removed": float64(2)}, resp.Data)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Error("E_NOT_FOUND", "warranty not found", map[string]int{"id": 9}))
	assert.Equal(t, "Error [E_NOT_FOUND]: warranty not found\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E_NOT_FOUND", "warranty not found", "id=9"))
	assert.Contains(t, buf.String(), "Details: id=9")
}

func TestOutputFormatter_Fail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		exit     int
		message  string
		hideRoot bool
	}{
		{"validation", apperr.Validation("op", "product name is required"), "E_VALIDATION", ExitFailure, "product name is required", false},
		{"duplicate", apperr.Duplicate("op", "already exists"), "E_DUPLICATE", ExitFailure, "already exists", false},
		{"not found", apperr.NotFound("op", "warranty not found"), "E_NOT_FOUND", ExitFailure, "warranty not found", false},
		{"unauthorized", apperr.Unauthorized("op", "invalid credentials"), "E_UNAUTHORIZED", ExitFailure, "invalid credentials", false},
		{"persistence", apperr.Persistence("op", errors.New("disk I/O error")), "E_PERSISTENCE", ExitCommandError, "an internal error occurred", true},
		{"untyped", errors.New("boom"), "E_PERSISTENCE", ExitCommandError, "an internal error occurred", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: buf}

			err := formatter.Fail(tt.err)
			require.Error(t, err)
			assert.Equal(t, tt.exit, GetExitCode(err))
			assert.True(t, IsReported(err))
			assert.ErrorIs(t, err, tt.err)

			var resp CLIResponse
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			if tt.hideRoot {
				assert.NotContains(t, buf.String(), "disk")
				assert.NotContains(t, buf.String(), "boom")
			}
		})
	}
}

func TestOutputFormatter_FailPassesExitErrorThrough(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	orig := WrapExitError(ExitCommandError, "failed to open database", errors.New("locked"))
	err := formatter.Fail(orig)
	assert.Same(t, orig, err)
	assert.Empty(t, buf.String())
	assert.False(t, IsReported(err))
	assert.Nil(t, formatter.Fail(nil))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
}

func TestVerboseLog_UsesErrWriter(t *testing.T) {
	out, diag := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: diag, Verbose: true}

	formatter.VerboseLog("opened %s", "warranty.db")
	assert.Empty(t, out.String())
	assert.Equal(t, "opened warranty.db\n", diag.String())
	assert.Equal(t, diag, formatter.GetErrWriter())
}
