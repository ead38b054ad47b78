// Tests for the [Client] type covering the handshake, nonce-matched command
// replies, PING handling, CLOSE frames, timeouts and connection lifecycle.
package discord

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"testing"
	"time"
)

// ///////////////////////////////////////////////
// Test Helpers
// ///////////////////////////////////////////////

// readFrame reads a single frame from the fake Discord side of the pipe.
func readFrame(t *testing.T, conn net.Conn) (Opcode, map[string]any) {
	t.Helper()
	opcode, payload, err := DecodeFrame(conn)
	if err != nil {
		t.Errorf("failed to read frame: %v", err)
		return 0, nil
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Errorf("failed to parse frame payload: %v", err)
		return 0, nil
	}
	return opcode, m
}

// writeJSON writes v as a frame with the given opcode.
func writeJSON(t *testing.T, conn net.Conn, op Opcode, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Errorf("marshal: %v", err)
		return
	}
	if err := WriteFrame(conn, op, data); err != nil {
		t.Errorf("write frame: %v", err)
	}
}

// reply answers the command m with a matching-nonce response.
func reply(t *testing.T, conn net.Conn, m map[string]any) {
	t.Helper()
	writeJSON(t, conn, OpFrame, map[string]any{
		"cmd":   m["cmd"],
		"evt":   nil,
		"nonce": m["nonce"],
		"data":  map[string]any{},
	})
}

// pipeClient returns a client whose dialer hands out the client end of a
// fresh net.Pipe, plus the server end.
func pipeClient(t *testing.T, opts ...Option) (*Client, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	dial := WithDialer(func(time.Duration) (net.Conn, error) { return client, nil })
	return NewClient(append([]Option{dial}, opts...)...), server
}

// connected returns a client that has completed a handshake for "app-1".
func connected(t *testing.T, opts ...Option) (*Client, net.Conn) {
	t.Helper()
	c, server := pipeClient(t, opts...)
	done := make(chan error, 1)
	go func() { done <- c.Connect("app-1") }()

	readFrame(t, server)
	writeJSON(t, server, OpFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"})
	if err := <-done; err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c, server
}

// async runs fn in a goroutine and returns a channel with its error.
func async(fn func() error) <-chan error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	return done
}

// ///////////////////////////////////////////////
// Connect
// ///////////////////////////////////////////////

func TestClient_Connect_Handshake(t *testing.T) {
	c, server := pipeClient(t)
	done := async(func() error { return c.Connect("test-app-id") })

	opcode, m := readFrame(t, server)
	if opcode != OpHandshake {
		t.Fatalf("expected HANDSHAKE, got %s", opcode)
	}
	if v, _ := m["v"].(float64); v != 1 {
		t.Errorf("expected v=1, got %v", m["v"])
	}
	if m["client_id"] != "test-app-id" {
		t.Errorf("expected client_id=test-app-id, got %v", m["client_id"])
	}
	writeJSON(t, server, OpFrame, map[string]any{"cmd": "DISPATCH", "evt": "READY"})

	if err := <-done; err != nil {
		t.Fatalf("Connect returned error: %v", err)
	}
	if !c.Connected() {
		t.Error("expected Connected() after handshake")
	}
	if c.AppID() != "test-app-id" {
		t.Errorf("AppID() = %q", c.AppID())
	}
}

func TestClient_Connect_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		respond func(t *testing.T, server net.Conn)
		check   func(t *testing.T, err error)
	}{
		{
			name: "error event",
			respond: func(t *testing.T, server net.Conn) {
				writeJSON(t, server, OpFrame, map[string]any{
					"evt":  "ERROR",
					"data": map[string]any{"code": 4000, "message": "invalid client_id"},
				})
			},
			check: func(t *testing.T, err error) {
				var ce *CommandError
				if !errors.As(err, &ce) || ce.Code != 4000 || ce.Message != "invalid client_id" {
					t.Errorf("expected CommandError 4000, got %v", err)
				}
			},
		},
		{
			name: "close frame",
			respond: func(t *testing.T, server net.Conn) {
				writeJSON(t, server, OpClose, map[string]any{"code": 4000, "message": "Invalid Client ID"})
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrClosedByPeer) {
					t.Errorf("expected ErrClosedByPeer, got %v", err)
				}
			},
		},
		{
			name: "peer hangs up",
			respond: func(t *testing.T, server net.Conn) {
				server.Close()
			},
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, server := pipeClient(t)
			done := async(func() error { return c.Connect("bad") })

			readFrame(t, server)
			tt.respond(t, server)

			err := <-done
			if err == nil {
				t.Fatal("expected handshake to fail")
			}
			tt.check(t, err)
			if c.Connected() {
				t.Error("failed handshake must leave the client disconnected")
			}
			if c.AppID() != "" {
				t.Errorf("AppID() = %q, want empty", c.AppID())
			}
		})
	}
}

func TestClient_Connect_DialError(t *testing.T) {
	c := NewClient(WithDialer(func(time.Duration) (net.Conn, error) { return nil, ErrIPCNotAvailable }))
	if err := c.Connect("x"); !errors.Is(err, ErrIPCNotAvailable) {
		t.Fatalf("expected ErrIPCNotAvailable, got %v", err)
	}
	if c.Connected() {
		t.Error("expected disconnected after dial failure")
	}
}

func TestClient_Connect_ClosesOldConnection(t *testing.T) {
	c, _ := connected(t)
	old := c.conn

	c.dial = func(time.Duration) (net.Conn, error) { return nil, ErrIPCNotAvailable }
	_ = c.Connect("app-2")

	if _, err := old.Write([]byte("x")); err == nil {
		t.Error("expected old connection to be closed, but write succeeded")
	}
	if c.Connected() {
		t.Error("expected disconnected after failed reconnect")
	}
}

// ///////////////////////////////////////////////
// SetActivity
// ///////////////////////////////////////////////

func TestClient_SetActivity(t *testing.T) {
	c, server := connected(t)

	activity := &Activity{
		Details:    "Testing",
		State:      "Running tests",
		Timestamps: &Timestamps{Start: 1000000},
		Assets:     &Assets{LargeImage: "large-img", LargeText: "Large Text"},
		Buttons: []Button{
			{Label: "GitHub", URL: "https://github.com"},
			{Label: "Website", URL: "https://example.com"},
		},
	}
	done := async(func() error { return c.SetActivity(activity) })

	opcode, m := readFrame(t, server)
	if opcode != OpFrame {
		t.Fatalf("expected FRAME, got %s", opcode)
	}
	if m["cmd"] != "SET_ACTIVITY" {
		t.Errorf("expected cmd=SET_ACTIVITY, got %v", m["cmd"])
	}
	if nonce, _ := m["nonce"].(string); nonce == "" {
		t.Errorf("expected non-empty nonce, got %v", m["nonce"])
	}

	args := m["args"].(map[string]any)
	if pid, _ := args["pid"].(float64); int(pid) != os.Getpid() {
		t.Errorf("expected pid=%d, got %v", os.Getpid(), args["pid"])
	}
	act := args["activity"].(map[string]any)
	if act["details"] != "Testing" || act["state"] != "Running tests" {
		t.Errorf("activity text mismatch: %v", act)
	}
	if ts := act["timestamps"].(map[string]any); ts["start"].(float64) != 1000000 {
		t.Errorf("timestamps mismatch: %v", ts)
	}
	if buttons := act["buttons"].([]any); len(buttons) != 2 {
		t.Errorf("expected 2 buttons, got %d", len(buttons))
	}

	reply(t, server, m)
	if err := <-done; err != nil {
		t.Fatalf("SetActivity returned error: %v", err)
	}
}

func TestClient_SetActivity_PingAndUnrelatedEvents(t *testing.T) {
	c, server := connected(t)
	done := async(func() error { return c.SetActivity(&Activity{State: "hi"}) })

	_, m := readFrame(t, server)

	writeJSON(t, server, OpPing, map[string]any{"t": 1})
	opcode, pong := readFrame(t, server)
	if opcode != OpPong || pong["t"].(float64) != 1 {
		t.Fatalf("expected PONG echoing payload, got %s %v", opcode, pong)
	}

	writeJSON(t, server, OpFrame, map[string]any{"cmd": "DISPATCH", "evt": "ACTIVITY_JOIN", "nonce": "other"})
	reply(t, server, m)

	if err := <-done; err != nil {
		t.Fatalf("SetActivity returned error: %v", err)
	}
	if !c.Connected() {
		t.Error("expected connection to survive ping")
	}
}

func TestClient_SetActivity_ErrorEvent(t *testing.T) {
	c, server := connected(t)
	done := async(func() error { return c.SetActivity(&Activity{State: "x"}) })

	_, m := readFrame(t, server)
	writeJSON(t, server, OpFrame, map[string]any{
		"cmd":   "SET_ACTIVITY",
		"evt":   "ERROR",
		"nonce": m["nonce"],
		"data":  map[string]any{"code": 4000, "message": "child \"activity\" fails"},
	})

	var ce *CommandError
	if err := <-done; !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if !c.Connected() {
		t.Error("a rejected command must not drop the connection")
	}
}

func TestClient_SetActivity_DropsConnection(t *testing.T) {
	tests := []struct {
		name    string
		respond func(t *testing.T, server net.Conn)
		target  error
	}{
		{
			name: "close frame",
			respond: func(t *testing.T, server net.Conn) {
				writeJSON(t, server, OpClose, map[string]any{"code": 1000, "message": "bye"})
			},
			target: ErrClosedByPeer,
		},
		{
			name: "peer hangs up",
			respond: func(t *testing.T, server net.Conn) {
				server.Close()
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, server := connected(t)
			done := async(func() error { return c.SetActivity(&Activity{State: "x"}) })

			readFrame(t, server)
			tt.respond(t, server)

			err := <-done
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if c.Connected() {
				t.Error("expected connection to be dropped")
			}
		})
	}
}

func TestClient_SetActivity_Timeout(t *testing.T) {
	c, server := connected(t, WithTimeout(50*time.Millisecond))
	done := async(func() error { return c.SetActivity(&Activity{State: "x"}) })

	readFrame(t, server)

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected timeout error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SetActivity did not honor the deadline")
	}
	if c.Connected() {
		t.Error("expected connection to be dropped after timeout")
	}
}

func TestClient_SetActivity_NotConnected(t *testing.T) {
	c := NewClient()
	if err := c.SetActivity(&Activity{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

// ///////////////////////////////////////////////
// ClearActivity
// ///////////////////////////////////////////////

func TestClient_ClearActivity(t *testing.T) {
	c, server := connected(t)
	done := async(c.ClearActivity)

	_, m := readFrame(t, server)
	args := m["args"].(map[string]any)
	if v, ok := args["activity"]; !ok || v != nil {
		t.Fatalf("expected explicit null activity, got %v (present=%v)", v, ok)
	}
	reply(t, server, m)

	if err := <-done; err != nil {
		t.Fatalf("ClearActivity returned error: %v", err)
	}
}

// ///////////////////////////////////////////////
// Nonce Uniqueness
// ///////////////////////////////////////////////

func TestClient_NonceUniqueness(t *testing.T) {
	c, server := connected(t)
	nonces := make(map[string]bool)

	for i := range 5 {
		done := async(func() error { return c.SetActivity(&Activity{Details: "test"}) })

		_, m := readFrame(t, server)
		nonce := m["nonce"].(string)
		if nonces[nonce] {
			t.Fatalf("duplicate nonce on call %d: %s", i, nonce)
		}
		nonces[nonce] = true
		reply(t, server, m)

		if err := <-done; err != nil {
			t.Fatalf("SetActivity call %d returned error: %v", i, err)
		}
	}
}

// ///////////////////////////////////////////////
// Close
// ///////////////////////////////////////////////

func TestClient_Close(t *testing.T) {
	c, server := connected(t)
	done := async(c.Close)

	_, m := readFrame(t, server)
	if args := m["args"].(map[string]any); args["activity"] != nil {
		t.Errorf("expected clear before close, got %v", args["activity"])
	}
	reply(t, server, m)

	if err := <-done; err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if c.Connected() || c.AppID() != "" {
		t.Error("expected disconnected after Close")
	}
}

func TestClient_Close_NilConnection(t *testing.T) {
	c := NewClient()
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil connection should return nil, got: %v", err)
	}
	if c.Connected() {
		t.Fatal("expected Connected() to return false for new client")
	}
}

func TestWithIPCPath_EmptyKeepsDiscovery(t *testing.T) {
	c := NewClient(WithIPCPath(""))
	if c.dial == nil {
		t.Fatal("expected discovery dialer to remain set")
	}
}
