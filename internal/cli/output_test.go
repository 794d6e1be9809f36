package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain error", err: errors.New("boom"), want: ExitFailure},
		{name: "exit error", err: NewExitError(ExitCommandError, "bad flags"), want: ExitCommandError},
		{name: "wrapped exit error", err: fmt.Errorf("outer: %w", NewExitError(ExitFailure, "inner")), want: ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitErrorMessage(t *testing.T) {
	bare := NewExitError(ExitFailure, "query failed")
	assert.Equal(t, "query failed", bare.Error())

	cause := errors.New("no such catalog")
	wrapped := WrapExitError(ExitCommandError, "build source", cause)
	assert.Equal(t, "build source: no such catalog", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestFormatterErrorText(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Error(ErrCodeSource, "fetch failed", nil))
	assert.Equal(t, "Error [source]: fetch failed\n", buf.String())
}

func TestFormatterErrorJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}
	require.NoError(t, f.Error(ErrCodeCompile, "name is required", map[string]any{"field": "name"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompile, resp.Error.Code)
	assert.Equal(t, "name is required", resp.Error.Message)
}

func TestFormatterVerboseLog(t *testing.T) {
	var out, errOut bytes.Buffer

	quiet := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut}
	quiet.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	verbose := &OutputFormatter{Format: "text", Writer: &out, ErrWriter: &errOut, Verbose: true}
	verbose.VerboseLog("run %s", "abc")
	assert.Equal(t, "run abc\n", errOut.String())
	assert.Empty(t, out.String())
}
