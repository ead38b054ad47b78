// Package app holds the presence session: the connection manager, the
// elapsed-time timer and the history-backed publish action that every
// surface (TUI, headless runner, MCP server) drives.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/discord"
	"tools.zach/dev/cordpush/internal/history"
	"tools.zach/dev/cordpush/internal/settings"
	"tools.zach/dev/cordpush/internal/timer"
)

// Status messages shown to the user after each action.
const (
	StatusConnected     = "Connected to Discord!"
	StatusDisconnected  = "Disconnected."
	StatusNotConnected  = "Not connected to Discord. Please connect first."
	StatusUpdated       = "Presence updated!"
	StatusCleared       = "Presence cleared."
	StatusTimerReset    = "Timer reset."
	StatusTimerSet      = "Elapsed time set."
	StatusHistoryClear  = "History cleared."
	StatusBlankIdentity = "Enter an application ID to connect."
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Presence is the transport a Session publishes through. *discord.Client
// satisfies it.
type Presence interface {
	Connect(appID string) error
	SetActivity(activity *discord.Activity) error
	ClearActivity() error
	Close() error
	Connected() bool
}

// Form is the user input for a publish.
type Form struct {
	// Identity is the application ID to publish under. Blank keeps the
	// current connection.
	Identity string `json:"identity,omitempty"`
	State    string `json:"state,omitempty"`
	Details  string `json:"details,omitempty"`
	// Hours, Minutes and Seconds are the elapsed time as typed. They are
	// combined without normalization.
	Hours   float64 `json:"hours,omitempty"`
	Minutes float64 `json:"minutes,omitempty"`
	Seconds float64 `json:"seconds,omitempty"`

	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`

	// AutoAdvance keeps the elapsed time counting between publishes.
	AutoAdvance bool `json:"auto_advance,omitempty"`
	// Interval is the auto-update period in seconds. Zero keeps the saved value.
	Interval float64 `json:"interval,omitempty"`
}

// ManualSeconds returns the typed elapsed time in seconds.
func (f Form) ManualSeconds() float64 {
	return timer.ToSeconds(f.Hours, f.Minutes, f.Seconds)
}

// WithElapsed returns a copy of f whose h/m/s fields show r, so the next
// manual-mode publish does not register as an edit.
func (f Form) WithElapsed(r timer.Result) Form {
	f.Hours, f.Minutes, f.Seconds = float64(r.H), float64(r.M), float64(r.S)
	return f
}

// Outcome is what a surface renders after an action.
type Outcome struct {
	Status         string       `json:"status"`
	Connected      bool         `json:"connected"`
	Identity       string       `json:"identity,omitempty"`
	Timer          timer.Result `json:"timer"`
	StateHistory   []string     `json:"state_history"`
	DetailsHistory []string     `json:"details_history"`
}

// Option configures a [Session].
type Option func(*Session)

// WithClock sets the wall clock used by the timer.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Session) { s.log = log }
}

// ///////////////////////////////////////////////
// Session
// ///////////////////////////////////////////////

// Session serializes every user action behind one mutex. It owns the
// connection flag, the timer and the settings store.
type Session struct {
	mu        sync.Mutex
	presence  Presence
	store     *settings.Store
	cfg       *config.Config
	timer     *timer.Timer
	now       func() time.Time
	log       *slog.Logger
	connected bool
	identity  string
	status    string
}

// NewSession wires a session. cfg supplies presence defaults, the edit
// tolerance and history exclusions.
func NewSession(p Presence, store *settings.Store, cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		presence: p,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
		log:      slog.Default(),
		status:   StatusDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timer = timer.New(s.now, cfg.Timer.EditToleranceSeconds)
	if err := store.SetExclude(cfg.History.Exclude); err != nil {
		s.log.Warn("ignoring history exclude patterns", "error", err)
	}
	return s
}

// ///////////////////////////////////////////////
// Connection Manager
// ///////////////////////////////////////////////

// Connect opens the link under identity. On success the identity becomes the
// saved default. A blank identity returns [ErrBlankIdentity] without I/O.
func (s *Session) Connect(identity string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity = strings.TrimSpace(identity)
	if identity == "" {
		return s.outcomeLocked(StatusBlankIdentity), ErrBlankIdentity
	}
	err := s.connectLocked(identity)
	if err != nil {
		return s.outcomeLocked(fmt.Sprintf("Failed to connect: %v", errors.Unwrap(err))), err
	}
	return s.outcomeLocked(StatusConnected), nil
}

// Disconnect closes the link if open. It always succeeds; close errors are
// logged. The timer keeps its state unless timer.reset_on_disconnect is set.
// The returned display fields are zeroed.
func (s *Session) Disconnect() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disconnectLocked()
	out := s.outcomeLocked(StatusDisconnected)
	out.Timer = timer.NewResult(0, s.now())
	return out
}

// EnsureConnected reconciles the connection with identity: a different
// non-blank identity forces a reconnect, a lost transport is reopened and a
// blank identity keeps whatever connection exists.
func (s *Session) EnsureConnected(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConnectedLocked(identity)
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnectedLocked()
}

// Identity returns the identity of the live connection, or "".
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isConnectedLocked() {
		return ""
	}
	return s.identity
}

// DefaultIdentity returns the identity a surface should prefill: the saved
// identity, else the configured application ID.
func (s *Session) DefaultIdentity() string {
	if id := s.store.Identity(); id != "" {
		return id
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Discord.AppID
}

func (s *Session) isConnectedLocked() bool {
	return s.connected && s.presence.Connected()
}

func (s *Session) connectLocked(identity string) error {
	if err := s.presence.Connect(identity); err != nil {
		s.connected, s.identity = false, ""
		s.log.Warn("discord connect failed", "identity", identity, "error", err)
		return &ConnectionError{Op: "connect", Identity: identity, Err: err}
	}
	s.connected, s.identity = true, identity
	s.log.Info("connected to discord", "identity", identity)
	if err := s.store.SetIdentity(identity); err != nil {
		s.log.Warn("failed to persist identity", "error", err)
	}
	return nil
}

func (s *Session) disconnectLocked() {
	if s.connected || s.presence.Connected() {
		if err := s.presence.Close(); err != nil {
			s.log.Warn("discord close failed", "identity", s.identity, "error", err)
		}
		s.log.Info("disconnected from discord", "identity", s.identity)
	}
	s.connected, s.identity = false, ""
	if s.cfg.Timer.ResetOnDisconnect {
		s.timer.Forget()
	}
}

func (s *Session) ensureConnectedLocked(identity string) error {
	identity = strings.TrimSpace(identity)

	if s.connected && !s.presence.Connected() {
		s.log.Warn("discord connection lost", "identity", s.identity)
		if identity == "" {
			identity = s.identity
		}
		s.connected, s.identity = false, ""
	}

	if s.connected {
		if identity == "" || identity == s.identity {
			return nil
		}
		s.log.Info("identity changed, reconnecting", "from", s.identity, "to", identity)
		s.disconnectLocked()
	}

	if identity == "" {
		return nil
	}
	return s.connectLocked(identity)
}

// ///////////////////////////////////////////////
// Publish
// ///////////////////////////////////////////////

// Publish ensures the connection, reconciles the timer and pushes the
// activity. A failed push still advances the timer. Successful pushes record
// the state and details values in history.
func (s *Session) Publish(f Form) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(f.Identity); err != nil {
		return s.outcomeLocked(fmt.Sprintf("Failed to connect: %v", errors.Unwrap(err))), err
	}
	if !s.isConnectedLocked() {
		return s.outcomeLocked(StatusNotConnected), ErrNotConnected
	}

	if err := s.store.SetPreferences(f.AutoAdvance, f.Interval); err != nil {
		s.log.Warn("failed to persist preferences", "error", err)
	}

	r := s.timer.Reconcile(f.ManualSeconds(), f.AutoAdvance)
	activity := BuildActivity(f, r, s.cfg.Presence)

	if err := s.presence.SetActivity(activity); err != nil {
		s.log.Warn("presence update failed", "identity", s.identity, "error", err)
		out := s.outcomeLocked(fmt.Sprintf("Update failed: %v", err))
		out.Timer = r
		return out, &ConnectionError{Op: "update", Identity: s.identity, Err: err}
	}

	for field, value := range map[history.Field]string{
		history.FieldState:   f.State,
		history.FieldDetails: f.Details,
	} {
		if _, err := s.store.Record(field, strings.TrimSpace(value)); err != nil {
			s.log.Warn("failed to persist history", "field", field, "error", err)
		}
	}

	s.log.Debug("presence updated", "elapsed", r.Display, "auto", f.AutoAdvance)
	out := s.outcomeLocked(StatusUpdated)
	out.Timer = r
	return out, nil
}

// ClearPresence removes the activity but keeps the connection.
func (s *Session) ClearPresence() (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isConnectedLocked() {
		return s.outcomeLocked(StatusNotConnected), ErrNotConnected
	}
	if err := s.presence.ClearActivity(); err != nil {
		s.log.Warn("presence clear failed", "error", err)
		return s.outcomeLocked(fmt.Sprintf("Clear failed: %v", err)),
			&ConnectionError{Op: "clear", Identity: s.identity, Err: err}
	}
	return s.outcomeLocked(StatusCleared), nil
}

// ///////////////////////////////////////////////
// Timer Actions
// ///////////////////////////////////////////////

// ResetTimer zeroes the elapsed time.
func (s *Session) ResetTimer() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outcomeLocked(StatusTimerReset)
	out.Timer = s.timer.Reset()
	return out
}

// EditElapsed sets the elapsed time explicitly. Components are combined
// without normalization.
func (s *Session) EditElapsed(h, m, sec float64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outcomeLocked(StatusTimerSet)
	out.Timer = s.timer.Edit(timer.ToSeconds(h, m, sec))
	return out
}

// ///////////////////////////////////////////////
// History Actions
// ///////////////////////////////////////////////

// SelectHistory returns value so a surface can place it in the field's input.
func (s *Session) SelectHistory(field history.Field, value string) (string, error) {
	if _, err := s.store.History(field); err != nil {
		return "", err
	}
	return value, nil
}

// NextHistory cycles through field's history starting from current.
func (s *Session) NextHistory(field history.Field, current string, step int) string {
	return s.store.NextHistory(field, current, step)
}

// History returns field's values, most recent first.
func (s *Session) History(field history.Field) ([]string, error) {
	return s.store.History(field)
}

// ClearHistory empties field's history.
func (s *Session) ClearHistory(field history.Field) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.ClearHistory(field); err != nil {
		return s.outcomeLocked(fmt.Sprintf("Clear failed: %v", err)), err
	}
	return s.outcomeLocked(StatusHistoryClear), nil
}

// ///////////////////////////////////////////////
// State
// ///////////////////////////////////////////////

// View returns the current state without acting.
func (s *Session) View() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcomeLocked(s.status)
}

// Settings returns a snapshot of the persisted settings.
func (s *Session) Settings() settings.Settings {
	return s.store.Snapshot()
}

// Config returns the active configuration.
func (s *Session) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig swaps in a reloaded configuration.
func (s *Session) SetConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.timer.SetTolerance(cfg.Timer.EditToleranceSeconds)
	if err := s.store.SetExclude(cfg.History.Exclude); err != nil {
		s.log.Warn("ignoring history exclude patterns", "error", err)
	}
	s.log.Info("configuration reloaded")
}

// Interval returns the saved auto-update period clamped to the scheduler
// bounds.
func (s *Session) Interval() time.Duration {
	interval := s.store.Snapshot().UpdateInterval
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ClampInterval(interval)
}

// Close disconnects for shutdown.
func (s *Session) Close() {
	s.Disconnect()
}

// outcomeLocked builds an Outcome carrying status and records it as the
// latest status. The caller must hold mu.
func (s *Session) outcomeLocked(status string) Outcome {
	s.status = status
	snap := s.store.Snapshot()
	out := Outcome{
		Status:         status,
		Connected:      s.isConnectedLocked(),
		Timer:          s.timer.Peek(),
		StateHistory:   snap.StateHistory,
		DetailsHistory: snap.DetailsHistory,
	}
	if out.Connected {
		out.Identity = s.identity
	}
	return out
}
