package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnwatch/application"
	"vulnwatch/domain/audits"
)

// sseFrame is one parsed event from an SSE stream.
type sseFrame struct {
	event string
	data  string
}

// readFrames reads n event frames from an SSE body, skipping comments.
func readFrames(t *testing.T, reader *bufio.Reader, n int) []sseFrame {
	t.Helper()

	var frames []sseFrame
	var current sseFrame
	deadline := time.Now().Add(5 * time.Second)

	for len(frames) < n {
		require.True(t, time.Now().Before(deadline), "timed out reading SSE frames")

		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "event: "):
			current.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.event != "" {
				frames = append(frames, current)
				current = sseFrame{}
			}
		}
	}
	return frames
}

func TestSSEGateway_StreamAuditEvents_FetchingThenSnapshotThenLive(t *testing.T) {
	stack := newTestStack(t)
	auditID := stack.createAudit(t)

	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/audits/"+auditID+"/events?client_id=obs-1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)

	// Attach sequence: FETCHING first, then the STARTED snapshot.
	frames := readFrames(t, reader, 2)
	assert.Equal(t, "progress", frames[0].event)
	assert.Contains(t, frames[0].data, `"status":"FETCHING"`)
	assert.Equal(t, "progress", frames[1].event)
	assert.Contains(t, frames[1].data, `"status":"STARTED"`)

	// A live transition streams through.
	_, err = stack.orchestrator.Advance(context.Background(), auditID, application.StageUpdate{
		Status:   audits.StatusAnalyzing,
		Progress: 25,
		Message:  "Static analysis running",
	})
	require.NoError(t, err)

	frames = readFrames(t, reader, 1)
	assert.Equal(t, "progress", frames[0].event)

	var payload struct {
		AuditID  string `json:"auditId"`
		Status   string `json:"status"`
		Progress int    `json:"progress"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[0].data), &payload))
	assert.Equal(t, auditID, payload.AuditID)
	assert.Equal(t, "ANALYZING", payload.Status)
	assert.Equal(t, 25, payload.Progress)
}

func TestSSEGateway_StreamAuditEvents_CompletionEvent(t *testing.T) {
	stack := newTestStack(t)
	auditID := stack.createAudit(t)

	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/audits/"+auditID+"/events?client_id=obs-1", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readFrames(t, reader, 2) // FETCHING + snapshot

	driveToCompletion(t, stack, auditID)

	frames := readFrames(t, reader, 4)
	assert.Equal(t, "progress", frames[0].event)
	assert.Equal(t, "progress", frames[1].event)
	assert.Equal(t, "progress", frames[2].event)
	assert.Equal(t, "completed", frames[3].event)
	assert.Contains(t, frames[3].data, `"overallScore":100`)
}

func TestSSEGateway_StreamAuditEvents_UnknownAudit(t *testing.T) {
	stack := newTestStack(t)

	server := httptest.NewServer(stack.router)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/audits/no-such-audit/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSSEGateway_StreamAuditEvents_LateJoinGetsTerminalSnapshot(t *testing.T) {
	stack := newTestStack(t)
	auditID := stack.createAudit(t)
	driveToCompletion(t, stack, auditID)

	server := httptest.NewServer(stack.router)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		server.URL+"/api/audits/"+auditID+"/events?client_id=late-obs", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	frames := readFrames(t, reader, 2)
	assert.Equal(t, "progress", frames[0].event, "FETCHING comes first")
	assert.Equal(t, "completed", frames[1].event, "snapshot reflects the terminal state")
}
