package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/app/apptest"
	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/discord"
	"tools.zach/dev/cordpush/internal/settings"
)

// testSetup wires handlers over an in-memory presence transport.
func testSetup(t *testing.T) (*Handlers, *apptest.Presence) {
	t.Helper()
	store := settings.Load(filepath.Join(t.TempDir(), "settings.json"), settings.Defaults())
	p := &apptest.Presence{}
	sess := app.NewSession(p, store, config.DefaultConfig())
	return NewHandlers(sess), p
}

// testSetupClock is testSetup with a settable clock.
func testSetupClock(t *testing.T) (*Handlers, *apptest.Presence, *time.Time) {
	t.Helper()
	store := settings.Load(filepath.Join(t.TempDir(), "settings.json"), settings.Defaults())
	p := &apptest.Presence{}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	sess := app.NewSession(p, store, config.DefaultConfig(), app.WithClock(func() time.Time { return now }))
	return NewHandlers(sess), p, &now
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	return r.Content[0].(mcp.TextContent).Text
}

func decodeOutcome(t *testing.T, r *mcp.CallToolResult) app.Outcome {
	t.Helper()
	require.False(t, r.IsError, resultText(t, r))
	var out app.Outcome
	require.NoError(t, json.Unmarshal([]byte(resultText(t, r)), &out))
	return out
}

func errorCode(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, r.IsError)
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, r)), &payload))
	return payload.Error.Code
}

func TestHandleConnect(t *testing.T) {
	ctx := context.Background()

	t.Run("explicit identity", func(t *testing.T) {
		h, p := testSetup(t)
		r, err := h.HandleConnect(ctx, makeRequest(map[string]any{"identity": "123"}))
		require.NoError(t, err)
		out := decodeOutcome(t, r)
		require.True(t, out.Connected)
		require.Equal(t, "123", out.Identity)
		require.Equal(t, []string{"connect:123"}, p.CallLog())
	})

	t.Run("blank identity without saved default", func(t *testing.T) {
		h, p := testSetup(t)
		r, err := h.HandleConnect(ctx, makeRequest(nil))
		require.NoError(t, err)
		require.Equal(t, CodeInvalidRequest, errorCode(t, r))
		require.Empty(t, p.CallLog())
	})

	t.Run("blank identity uses saved default", func(t *testing.T) {
		h, p := testSetup(t)
		_, err := h.HandleConnect(ctx, makeRequest(map[string]any{"identity": "saved"}))
		require.NoError(t, err)
		h.HandleDisconnect(ctx, makeRequest(nil))

		r, err := h.HandleConnect(ctx, makeRequest(map[string]any{"identity": " "}))
		require.NoError(t, err)
		require.Equal(t, "saved", decodeOutcome(t, r).Identity)
		require.Equal(t, "connect:saved", p.CallLog()[len(p.CallLog())-1])
	})

	t.Run("transport failure", func(t *testing.T) {
		h, p := testSetup(t)
		p.ConnectErr = discord.ErrIPCNotAvailable
		r, err := h.HandleConnect(ctx, makeRequest(map[string]any{"identity": "123"}))
		require.NoError(t, err)
		require.Equal(t, CodeConnectionFailed, errorCode(t, r))
	})
}

func TestHandleUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("connects and publishes", func(t *testing.T) {
		h, p := testSetup(t)
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{
			"identity": "123",
			"state":    "Coding",
			"details":  "cordpush",
			"minutes":  float64(2),
			"seconds":  float64(5),
		}))
		require.NoError(t, err)
		out := decodeOutcome(t, r)
		require.Equal(t, app.StatusUpdated, out.Status)
		require.Equal(t, "00:02:05", out.Timer.Display)
		require.Equal(t, []string{"Coding"}, out.StateHistory)
		require.Equal(t, "cordpush", p.Last().Details)
	})

	t.Run("omitted timing keeps counting in manual mode", func(t *testing.T) {
		h, _, now := testSetupClock(t)
		var displays []string
		for range 4 {
			r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "A", "state": "coding"}))
			require.NoError(t, err)
			displays = append(displays, decodeOutcome(t, r).Timer.Display)
			*now = now.Add(30 * time.Second)
		}
		require.Equal(t, []string{"00:00:00", "00:00:30", "00:01:00", "00:01:30"}, displays)
	})

	t.Run("explicit timing is an edit", func(t *testing.T) {
		h, _, now := testSetupClock(t)
		_, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "A", "minutes": float64(10)}))
		require.NoError(t, err)
		*now = now.Add(30 * time.Second)

		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "A", "seconds": float64(0)}))
		require.NoError(t, err)
		require.Equal(t, "00:00:00", decodeOutcome(t, r).Timer.Display)
	})

	t.Run("elapsed string", func(t *testing.T) {
		h, _ := testSetup(t)
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{
			"identity": "123",
			"elapsed":  "100:00:01",
			"hours":    float64(5),
		}))
		require.NoError(t, err)
		require.Equal(t, "100:00:01", decodeOutcome(t, r).Timer.Display)
	})

	t.Run("invalid elapsed", func(t *testing.T) {
		h, p := testSetup(t)
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "123", "elapsed": "1:xx"}))
		require.NoError(t, err)
		require.Equal(t, CodeInvalidRequest, errorCode(t, r))
		require.Empty(t, p.CallLog())
	})

	t.Run("wrong argument type", func(t *testing.T) {
		h, _ := testSetup(t)
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"hours": "two"}))
		require.NoError(t, err)
		require.Equal(t, CodeInvalidRequest, errorCode(t, r))
	})

	t.Run("not connected", func(t *testing.T) {
		h, _ := testSetup(t)
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"state": "x"}))
		require.NoError(t, err)
		require.Equal(t, CodeNotConnected, errorCode(t, r))
	})

	t.Run("push failure", func(t *testing.T) {
		h, p := testSetup(t)
		p.SetErr = errors.New("pipe closed")
		r, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "123", "state": "x"}))
		require.NoError(t, err)
		require.Equal(t, CodeConnectionFailed, errorCode(t, r))
	})
}

func TestHandleResetTimer(t *testing.T) {
	ctx := context.Background()
	h, _ := testSetup(t)

	r, err := h.HandleResetTimer(ctx, makeRequest(map[string]any{"elapsed": "01:30"}))
	require.NoError(t, err)
	out := decodeOutcome(t, r)
	require.Equal(t, app.StatusTimerSet, out.Status)
	require.Equal(t, "00:01:30", out.Timer.Display)

	r, err = h.HandleResetTimer(ctx, makeRequest(nil))
	require.NoError(t, err)
	out = decodeOutcome(t, r)
	require.Equal(t, app.StatusTimerReset, out.Status)
	require.Equal(t, "00:00:00", out.Timer.Display)

	r, err = h.HandleResetTimer(ctx, makeRequest(map[string]any{"elapsed": "-1"}))
	require.NoError(t, err)
	require.Equal(t, CodeInvalidRequest, errorCode(t, r))
}

func TestHandleClear(t *testing.T) {
	ctx := context.Background()
	h, _ := testSetup(t)

	r, err := h.HandleClear(ctx, makeRequest(nil))
	require.NoError(t, err)
	require.Equal(t, CodeNotConnected, errorCode(t, r))

	_, err = h.HandleConnect(ctx, makeRequest(map[string]any{"identity": "123"}))
	require.NoError(t, err)
	r, err = h.HandleClear(ctx, makeRequest(nil))
	require.NoError(t, err)
	out := decodeOutcome(t, r)
	require.Equal(t, app.StatusCleared, out.Status)
	require.True(t, out.Connected)
}

func TestHandleDisconnect(t *testing.T) {
	ctx := context.Background()
	h, p := testSetup(t)
	_, err := h.HandleConnect(ctx, makeRequest(map[string]any{"identity": "123"}))
	require.NoError(t, err)

	r, err := h.HandleDisconnect(ctx, makeRequest(nil))
	require.NoError(t, err)
	out := decodeOutcome(t, r)
	require.False(t, out.Connected)
	require.Equal(t, app.StatusDisconnected, out.Status)
	require.False(t, p.Connected())
}

func TestHandleHistory(t *testing.T) {
	ctx := context.Background()
	h, _ := testSetup(t)
	for _, s := range []string{"one", "two"} {
		_, err := h.HandleUpdate(ctx, makeRequest(map[string]any{"identity": "123", "state": s, "details": "d-" + s}))
		require.NoError(t, err)
	}

	decode := func(r *mcp.CallToolResult) HistoryResponse {
		require.False(t, r.IsError, resultText(t, r))
		var resp HistoryResponse
		require.NoError(t, json.Unmarshal([]byte(resultText(t, r)), &resp))
		return resp
	}

	r, err := h.HandleHistory(ctx, makeRequest(nil))
	require.NoError(t, err)
	resp := decode(r)
	require.Equal(t, []string{"two", "one"}, resp.State)
	require.Equal(t, []string{"d-two", "d-one"}, resp.Details)

	r, err = h.HandleHistory(ctx, makeRequest(map[string]any{"field": "details"}))
	require.NoError(t, err)
	resp = decode(r)
	require.Nil(t, resp.State)
	require.Len(t, resp.Details, 2)

	r, err = h.HandleHistory(ctx, makeRequest(map[string]any{"field": "state", "action": "clear"}))
	require.NoError(t, err)
	require.Empty(t, decode(r).State)

	r, err = h.HandleHistory(ctx, makeRequest(nil))
	require.NoError(t, err)
	require.Len(t, decode(r).Details, 2)

	r, err = h.HandleHistory(ctx, makeRequest(map[string]any{"field": "title"}))
	require.NoError(t, err)
	require.Equal(t, CodeInvalidRequest, errorCode(t, r))

	r, err = h.HandleHistory(ctx, makeRequest(map[string]any{"action": "purge"}))
	require.NoError(t, err)
	require.Equal(t, CodeInvalidRequest, errorCode(t, r))
}

func TestServerRegistration(t *testing.T) {
	h, _ := testSetup(t)
	s := NewServer(h.sess, "test")
	tools := s.ListTools()
	require.Len(t, tools, len(toolRegistry))
	for _, name := range AllToolNames() {
		require.Contains(t, tools, name)
	}
	require.Equal(t, []string{
		"presence_clear",
		"presence_connect",
		"presence_disconnect",
		"presence_history",
		"presence_reset_timer",
		"presence_update",
	}, AllToolNames())
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.New("open /secret/path: permission denied"), "")
	require.Equal(t, CodeInternal, errorCode(t, r))
	require.NotContains(t, resultText(t, r), "/secret/path")
}
