package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysamlan/trello-to-zulip/internal/bridge"
)

func TestOutputFormatter_JSON(t *testing.T) {
	var buf bytes.Buffer
	f := &OutputFormatter{Format: "json", Writer: &buf}

	require.NoError(t, f.Success(bridge.Summary{Seen: 3, Posted: 2, Suppressed: 1}))
	assert.JSONEq(t,
		`{"status":"ok","data":{"batches":0,"seen":3,"posted":2,"suppressed":1,"duplicates":0,"failed":0}}`,
		buf.String())

	buf.Reset()
	require.NoError(t, f.Error(ErrCodeMissingSetting, "setting not present in config: ZULIP_KEY", map[string]string{"setting": "ZULIP_KEY"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
	assert.Equal(t, "setting not present in config: ZULIP_KEY", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    string
	}{
		{"quiet", false, "Error [E006]: database is locked\n"},
		{"verbose", true, "Error [E006]: database is locked\nDetails: state.db\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := &OutputFormatter{Format: "text", Writer: &buf, Verbose: tt.verbose}
			require.NoError(t, f.Error(ErrCodeStore, "database is locked", "state.db"))
			assert.Equal(t, tt.want, buf.String())
		})
	}

	var buf bytes.Buffer
	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Success("8 passed, 0 failed"))
	assert.Equal(t, "8 passed, 0 failed\n", buf.String())
}

func TestExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "read export.json", cause)

	assert.Equal(t, "read export.json: no such file", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "3 of 4 actions failed", NewExitError(ExitFailure, "3 of 4 actions failed").Error())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("run: %w", NewExitError(ExitFailure, "1 of 1 actions failed")), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}
