// Package discord provides a client for Discord's local IPC socket,
// enabling Rich Presence updates via the SET_ACTIVITY command.
//
// The [Client] type manages connection lifecycle and command framing.
// Platform-specific socket discovery is handled by conn_unix.go and
// conn_windows.go.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"tools.zach/dev/cordpush/internal/logger"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an active connection.
var ErrNotConnected = errors.New("not connected")

// ErrClosedByPeer is returned when Discord sends a CLOSE frame.
var ErrClosedByPeer = errors.New("connection closed by discord")

// CommandError is an ERROR event returned by Discord in reply to a command
// or handshake.
type CommandError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.Code, e.Message)
}

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Button represents a clickable button in a Discord Rich Presence activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps holds the start timestamp for an activity.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds image keys and tooltip text for an activity.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Activity represents a Discord Rich Presence activity.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// message is the envelope shared by every FRAME payload Discord sends back.
type message struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// DefaultTimeout bounds each handshake and command round trip.
const DefaultTimeout = 5 * time.Second

// Option configures a [Client].
type Option func(*Client)

// WithIPCPath dials path directly instead of probing the standard socket
// locations. An empty path keeps discovery.
func WithIPCPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.dial = func(timeout time.Duration) (net.Conn, error) {
				return dialPath(path, timeout)
			}
		}
	}
}

// WithDialer replaces socket discovery entirely. Used by tests to hand the
// client one end of a net.Pipe.
func WithDialer(dial func(timeout time.Duration) (net.Conn, error)) Option {
	return func(c *Client) { c.dial = dial }
}

// WithTimeout sets the per-round-trip deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger used for protocol tracing.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client manages a connection to Discord's IPC socket.
type Client struct {
	dial    func(timeout time.Duration) (net.Conn, error)
	timeout time.Duration
	pid     int
	log     *slog.Logger

	// mu protects appID, conn and nonce from concurrent access.
	mu sync.Mutex
	// appID is the application the current connection was opened for.
	appID string
	// conn is the active IPC socket connection, or nil when disconnected.
	conn net.Conn
	// nonce is a monotonically increasing counter used to tag each command frame.
	nonce uint64
}

// NewClient creates a disconnected Discord IPC client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		dial:    connectToDiscord,
		timeout: DefaultTimeout,
		pid:     os.Getpid(),
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens the IPC socket and performs the handshake for appID. Any
// existing connection is closed first.
func (c *Client) Connect(appID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dropLocked()

	conn, err := c.dial(c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(appID); err != nil {
		c.dropLocked()
		return err
	}
	c.appID = appID
	c.log.Debug("discord handshake complete", "app_id", appID)
	return nil
}

// AppID returns the application ID of the live connection, or "" when
// disconnected.
func (c *Client) AppID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ""
	}
	return c.appID
}

// SetActivity sends a SET_ACTIVITY command and waits for Discord's reply.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setActivityLocked(activity)
}

// ClearActivity sends a SET_ACTIVITY command with a nil activity.
func (c *Client) ClearActivity() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setActivityLocked(nil)
}

// Close clears the activity and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	// Best-effort clear before closing.
	_ = c.setActivityLocked(nil)
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.appID = ""
	return err
}

// Connected reports whether the client has an active connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// setActivityLocked issues SET_ACTIVITY. A nil activity clears the presence.
// The caller must hold c.mu.
func (c *Client) setActivityLocked(activity *Activity) error {
	return c.command("SET_ACTIVITY", map[string]any{
		"pid":      c.pid,
		"activity": activity,
	})
}

// dropLocked closes and forgets the connection. The caller must hold c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.appID = ""
}

// handshake sends the initial handshake frame to Discord and validates the
// response. The caller must hold c.mu.
func (c *Client) handshake(appID string) error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": appID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer func() {
		if c.conn != nil {
			c.conn.SetDeadline(time.Time{})
		}
	}()

	if err := WriteFrame(c.conn, OpHandshake, payload); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}

	opcode, respData, err := DecodeFrame(c.conn)
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	switch opcode {
	case OpFrame:
	case OpClose:
		return fmt.Errorf("handshake rejected: %w", closeReason(respData))
	default:
		return fmt.Errorf("unexpected handshake response opcode: %s", opcode)
	}

	var resp message
	if err := json.Unmarshal(respData, &resp); err != nil {
		return fmt.Errorf("parsing handshake response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("handshake rejected: %w", commandError(resp.Data))
	}
	return nil
}

// command writes a command frame and reads frames until the reply carrying
// the same nonce arrives. PINGs are answered in between. Any transport
// failure or CLOSE frame drops the connection. The caller must hold c.mu.
func (c *Client) command(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.nonce++
	nonce := strconv.FormatUint(c.nonce, 10)

	payload, err := json.Marshal(map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": nonce,
	})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}

	c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer func() {
		if c.conn != nil {
			c.conn.SetDeadline(time.Time{})
		}
	}()

	if err := WriteFrame(c.conn, OpFrame, payload); err != nil {
		c.dropLocked()
		return fmt.Errorf("writing command: %w", err)
	}

	for {
		opcode, data, err := DecodeFrame(c.conn)
		if err != nil {
			c.dropLocked()
			return fmt.Errorf("reading %s response: %w", cmd, err)
		}

		switch opcode {
		case OpPing:
			if err := WriteFrame(c.conn, OpPong, data); err != nil {
				c.dropLocked()
				return fmt.Errorf("answering ping: %w", err)
			}
			continue
		case OpClose:
			c.dropLocked()
			return closeReason(data)
		case OpFrame:
		default:
			c.log.Log(context.Background(), logger.LevelTrace, "ignoring ipc frame", "opcode", opcode.String())
			continue
		}

		var resp message
		if err := json.Unmarshal(data, &resp); err != nil {
			return fmt.Errorf("parsing %s response: %w", cmd, err)
		}
		if resp.Nonce != nonce {
			c.log.Log(context.Background(), logger.LevelTrace, "skipping unrelated ipc event", "evt", resp.Evt, "nonce", resp.Nonce)
			continue
		}
		if resp.Evt == "ERROR" {
			return commandError(resp.Data)
		}
		return nil
	}
}

// commandError decodes the data object of an ERROR event.
func commandError(data json.RawMessage) error {
	e := &CommandError{}
	if err := json.Unmarshal(data, e); err != nil || e.Message == "" {
		e.Message = "unknown error"
	}
	return e
}

// closeReason wraps the payload of a CLOSE frame in [ErrClosedByPeer].
func closeReason(data []byte) error {
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Message == "" {
		return ErrClosedByPeer
	}
	return fmt.Errorf("%w: %s (code %d)", ErrClosedByPeer, body.Message, body.Code)
}
