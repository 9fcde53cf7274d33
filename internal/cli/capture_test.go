package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelware/keel/internal/capture"
)

func seedCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.db")
	st, err := capture.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	for frame := uint64(1); frame <= 3; frame++ {
		require.NoError(t, st.RecordFrame(ctx, capture.FrameStats{
			Session:  "sess-a",
			Frame:    frame,
			Commands: frame * 2,
			Batches:  1,
			Duration: time.Millisecond,
		}))
	}
	require.NoError(t, st.RecordFrame(ctx, capture.FrameStats{Session: "sess-b", Frame: 1}))
	return path
}

func TestCaptureSessions(t *testing.T) {
	path := seedCapture(t)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"capture", "sessions", "--db", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "sess-a")
	assert.Contains(t, out.String(), "sess-b")
}

func TestCaptureSessionsJSON(t *testing.T) {
	path := seedCapture(t)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--format", "json", "capture", "sessions", "--db", path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCaptureFrames(t *testing.T) {
	path := seedCapture(t)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"capture", "frames", "--db", path, "--session", "sess-a"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "FRAME")
	assert.Contains(t, out.String(), "COMMANDS")
}

func TestCaptureFrames_EmptySession(t *testing.T) {
	path := seedCapture(t)

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"capture", "frames", "--db", path, "--session", "missing"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "No frames")
}

func TestCapture_MissingDatabase(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"capture", "sessions", "--db", filepath.Join(t.TempDir(), "nope.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
