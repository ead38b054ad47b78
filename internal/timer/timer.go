// Package timer computes the elapsed time shown on a presence card.
//
// The elapsed value either stays pinned to what the user typed (manual mode)
// or keeps counting from the last publish (auto mode). [Reconcile] is a pure
// function over [State]; [Timer] wraps it with a clock and a mutex for the
// session.
package timer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultTolerance is how far, in seconds, a submitted value may drift from
// the running base before manual mode treats it as an edit.
const DefaultTolerance = 1.0

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// State is the reconciliation state carried between publishes.
type State struct {
	// Base is the elapsed seconds computed by the last reconcile. Never negative.
	Base float64
	// Last is when Base was computed. Zero means the timer has never run.
	Last time.Time
	// Auto records the mode used by the last reconcile.
	Auto bool
}

// Started reports whether the timer has a reconcile timestamp.
func (s State) Started() bool { return !s.Last.IsZero() }

// Result is a reconciled elapsed value in every shape the surfaces need.
type Result struct {
	// Elapsed is the clamped elapsed time in seconds.
	Elapsed float64 `json:"elapsed_seconds"`
	// H, M and S are the normalized hour, minute and second components.
	H int `json:"hours"`
	M int `json:"minutes"`
	S int `json:"seconds"`
	// Display is Elapsed formatted as HH:MM:SS.
	Display string `json:"display"`
	// StartEpoch is now - Elapsed in Unix seconds, the activity start timestamp.
	StartEpoch int64 `json:"start_epoch"`
}

// ///////////////////////////////////////////////
// Reconciliation
// ///////////////////////////////////////////////

// Reconcile decides the elapsed value to publish at now.
//
// Without a prior timestamp the manual input wins. In auto mode the base
// advances by the wall-clock delta and manual input is ignored. In manual
// mode the input replaces the base only when it differs by more than
// tolerance; otherwise the base keeps advancing so that re-submitting an
// untouched form does not rewind the clock. The result is clamped to zero.
func Reconcile(prev State, now time.Time, manual float64, auto bool, tolerance float64) (State, Result) {
	manual = sanitize(manual)

	var elapsed float64
	switch {
	case !prev.Started():
		elapsed = manual
	case auto:
		elapsed = prev.Base + delta(prev.Last, now)
	case math.Abs(manual-prev.Base) > tolerance:
		elapsed = manual
	default:
		elapsed = prev.Base + delta(prev.Last, now)
	}
	elapsed = math.Max(elapsed, 0)

	next := State{Base: elapsed, Last: now, Auto: auto}
	return next, NewResult(elapsed, now)
}

// Reset zeroes the base and stamps now.
func Reset(now time.Time, auto bool) (State, Result) {
	return State{Base: 0, Last: now, Auto: auto}, NewResult(0, now)
}

// Edit applies an explicit manual edit: the base becomes seconds (clamped)
// and the timestamp becomes now.
func Edit(now time.Time, seconds float64, auto bool) (State, Result) {
	elapsed := math.Max(sanitize(seconds), 0)
	return State{Base: elapsed, Last: now, Auto: auto}, NewResult(elapsed, now)
}

// NewResult builds the Result for elapsed seconds observed at now.
func NewResult(elapsed float64, now time.Time) Result {
	elapsed = math.Max(sanitize(elapsed), 0)
	h, m, s := FromSeconds(elapsed)
	return Result{
		Elapsed:    elapsed,
		H:          h,
		M:          m,
		S:          s,
		Display:    Format(elapsed),
		StartEpoch: int64(math.Floor(float64(now.UnixNano())/1e9 - elapsed)),
	}
}

// delta is the non-negative number of seconds between last and now. A clock
// that moved backwards contributes nothing.
func delta(last, now time.Time) float64 {
	return math.Max(now.Sub(last).Seconds(), 0)
}

// sanitize maps NaN and infinities to zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ///////////////////////////////////////////////
// HH:MM:SS Conversion
// ///////////////////////////////////////////////

// ToSeconds combines hour, minute and second fields as h*3600 + m*60 + s.
// Components are not normalized, so m=75 adds 75 minutes.
func ToSeconds(h, m, s float64) float64 {
	return h*3600 + m*60 + s
}

// FromSeconds splits seconds into normalized components. Fractions are
// truncated; negative input yields zeros. Hours are unbounded.
func FromSeconds(seconds float64) (h, m, s int) {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0, 0, 0
	}
	total := int64(seconds)
	return int(total / 3600), int(total % 3600 / 60), int(total % 60)
}

// Format renders seconds as zero-padded HH:MM:SS. Hours grow past two
// digits rather than wrapping.
func Format(seconds float64) string {
	h, m, s := FromSeconds(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ErrInvalidHMS is returned by [ParseHMS] for malformed input.
var ErrInvalidHMS = errors.New("invalid elapsed time")

// ParseHMS parses "HH:MM:SS", "MM:SS" or "SS" into seconds. Components are
// non-negative numbers and are not range-checked, matching [ToSeconds].
func ParseHMS(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q has more than three fields", ErrInvalidHMS, text)
	}

	var vals [3]float64
	offset := 3 - len(parts)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidHMS, text)
		}
		vals[offset+i] = v
	}
	return ToSeconds(vals[0], vals[1], vals[2]), nil
}

// ///////////////////////////////////////////////
// Timer
// ///////////////////////////////////////////////

// Timer holds a [State] behind a mutex and reads time from an injectable
// clock.
type Timer struct {
	mu        sync.Mutex
	state     State
	now       func() time.Time
	tolerance float64
}

// New creates a Timer that has never run. A nil clock uses time.Now.
func New(now func() time.Time, tolerance float64) *Timer {
	if now == nil {
		now = time.Now
	}
	return &Timer{now: now, tolerance: tolerance}
}

// SetTolerance replaces the manual-edit tolerance.
func (t *Timer) SetTolerance(tolerance float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tolerance = tolerance
}

// Reconcile runs [Reconcile] against the current clock and stores the result.
func (t *Timer) Reconcile(manual float64, auto bool) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r Result
	t.state, r = Reconcile(t.state, t.now(), manual, auto, t.tolerance)
	return r
}

// Reset zeroes the timer.
func (t *Timer) Reset() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r Result
	t.state, r = Reset(t.now(), t.state.Auto)
	return r
}

// Edit applies an explicit manual edit of seconds.
func (t *Timer) Edit(seconds float64) Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	var r Result
	t.state, r = Edit(t.now(), seconds, t.state.Auto)
	return r
}

// Forget clears the timestamp so the next reconcile takes the manual input
// verbatim. The base is kept for display.
func (t *Timer) Forget() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.Last = time.Time{}
}

// Peek reports the value the next auto reconcile would produce without
// mutating state. An unstarted timer reports its base.
func (t *Timer) Peek() Result {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	elapsed := t.state.Base
	if t.state.Started() && t.state.Auto {
		elapsed += delta(t.state.Last, now)
	}
	return NewResult(elapsed, now)
}

// State returns a copy of the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
