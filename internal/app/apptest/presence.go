// Package apptest provides an in-memory presence transport for tests of
// packages built on app.Session.
package apptest

import (
	"errors"
	"sync"

	"tools.zach/dev/cordpush/internal/discord"
)

// Presence records calls and fails on demand. It satisfies app.Presence.
type Presence struct {
	mu sync.Mutex

	// ConnectErr, SetErr, ClearErr and CloseErr are returned by the
	// matching method when non-nil.
	ConnectErr error
	SetErr     error
	ClearErr   error
	CloseErr   error
	// DropOnSet simulates Discord closing the socket during SET_ACTIVITY.
	DropOnSet bool

	// Calls lists method invocations in order, e.g. "connect:A", "set", "close".
	Calls []string
	// Activities holds every activity passed to SetActivity.
	Activities []*discord.Activity

	appID     string
	connected bool
}

// Connect records the call and marks the transport connected unless
// ConnectErr is set.
func (p *Presence) Connect(appID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "connect:"+appID)
	p.connected = false
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.appID, p.connected = appID, true
	return nil
}

// SetActivity records the activity.
func (p *Presence) SetActivity(a *discord.Activity) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "set")
	if !p.connected {
		return discord.ErrNotConnected
	}
	p.Activities = append(p.Activities, a)
	if p.DropOnSet {
		p.connected = false
		return errors.Join(discord.ErrClosedByPeer, p.SetErr)
	}
	return p.SetErr
}

// ClearActivity records the call.
func (p *Presence) ClearActivity() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "clear")
	if !p.connected {
		return discord.ErrNotConnected
	}
	return p.ClearErr
}

// Close marks the transport disconnected.
func (p *Presence) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, "close")
	p.connected = false
	return p.CloseErr
}

// Connected reports the simulated connection state.
func (p *Presence) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Drop simulates the transport dying without a Close call.
func (p *Presence) Drop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
}

// Last returns the most recent activity, or nil.
func (p *Presence) Last() *discord.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Activities) == 0 {
		return nil
	}
	return p.Activities[len(p.Activities)-1]
}

// CallLog returns a copy of Calls.
func (p *Presence) CallLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Calls...)
}
