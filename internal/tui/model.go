// Package tui is the interactive presence form: a Bubble Tea model driving
// an app.Session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/history"
	"tools.zach/dev/cordpush/internal/timer"
	"tools.zach/dev/cordpush/internal/watch"
)

// field indexes the form inputs in focus order.
type field int

const (
	fieldIdentity field = iota
	fieldState
	fieldDetails
	fieldHours
	fieldMinutes
	fieldSeconds
	fieldLargeImage
	fieldLargeText
	fieldSmallImage
	fieldSmallText
	fieldInterval
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldIdentity:   "Application ID",
	fieldState:      "State",
	fieldDetails:    "Details",
	fieldHours:      "Hours",
	fieldMinutes:    "Minutes",
	fieldSeconds:    "Seconds",
	fieldLargeImage: "Large image",
	fieldLargeText:  "Large text",
	fieldSmallImage: "Small image",
	fieldSmallText:  "Small text",
	fieldInterval:   "Interval (s)",
}

// historyField maps form fields with history to their cache.
var historyField = map[field]history.Field{
	fieldState:   history.FieldState,
	fieldDetails: history.FieldDetails,
}

// labelWidth is the column width of field labels.
const labelWidth = 16

// clockTick is how often the elapsed display refreshes.
const clockTick = time.Second

// Options configures the UI.
type Options struct {
	Context context.Context
	Session *app.Session
	// Watcher, when set, delivers config file changes.
	Watcher *watch.Watcher
	// ConfigPath is reloaded on each watcher event.
	ConfigPath string
	Log        *slog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	sess       *app.Session
	watcher    *watch.Watcher
	configPath string
	log        *slog.Logger

	// UI state
	keys     keyMap
	help     help.Model
	styles   styles
	width    int
	showHelp bool

	// Form state
	inputs [fieldCount]textinput.Model
	focus  field
	auto   bool

	// Session state
	out     app.Outcome
	failed  bool
	busy    bool
	autoGen int
}

// New creates the form, prefilled from the session's saved settings.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	m := Model{
		ctx:        ctx,
		sess:       opts.Session,
		watcher:    opts.Watcher,
		configPath: opts.ConfigPath,
		log:        log,
		keys:       defaultKeyMap(),
		help:       help.New(),
		styles:     newStyles(defaultPalette),
		out:        opts.Session.View(),
	}

	snap := opts.Session.Settings()
	m.auto = snap.AutoUpdateEnabled

	for i := range m.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.CharLimit = 128
		m.inputs[i] = ti
	}
	m.inputs[fieldIdentity].Placeholder = "Discord application ID"
	m.inputs[fieldIdentity].SetValue(opts.Session.DefaultIdentity())
	m.inputs[fieldState].Placeholder = "What you're doing"
	m.inputs[fieldDetails].Placeholder = "More about it"
	for _, f := range []field{fieldHours, fieldMinutes, fieldSeconds} {
		m.inputs[f].CharLimit = 12
		m.inputs[f].Placeholder = "0"
	}
	m.inputs[fieldInterval].CharLimit = 8
	m.inputs[fieldInterval].SetValue(strconv.FormatFloat(snap.UpdateInterval, 'f', -1, 64))
	if entries := snap.StateHistory; len(entries) > 0 {
		m.inputs[fieldState].SetValue(entries[0])
	}
	if entries := snap.DetailsHistory; len(entries) > 0 {
		m.inputs[fieldDetails].SetValue(entries[0])
	}
	m.inputs[fieldIdentity].Focus()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, clockCmd(), waitConfigCmd(m.ctx, m.watcher, m.configPath))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case outcomeMsg:
		return m.handleOutcome(msg)

	case autoTickMsg:
		if msg.gen != m.autoGen || !m.auto {
			return m, nil
		}
		return m.publish()

	case clockMsg:
		view := m.sess.View()
		m.out.Timer = view.Timer
		m.out.Connected = view.Connected
		return m, clockCmd()

	case configMsg:
		if msg.err != nil {
			m.log.Warn("config reload failed", "error", msg.err)
			m.out.Status, m.failed = fmt.Sprintf("Config reload failed: %v", msg.err), true
		} else {
			m.sess.SetConfig(msg.cfg)
			m.out.Status, m.failed = "Configuration reloaded.", false
		}
		return m, waitConfigCmd(m.ctx, m.watcher, m.configPath)
	}

	return m.updateFocused(msg)
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Next):
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil

	case key.Matches(msg, m.keys.Prev):
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil

	case key.Matches(msg, m.keys.Connect):
		if m.busy {
			return m, nil
		}
		m.busy = true
		identity := m.value(fieldIdentity)
		return m, m.run(actionConnect, func() (app.Outcome, error) {
			return m.sess.Connect(identity)
		})

	case key.Matches(msg, m.keys.Disconnect):
		m.autoGen++
		m.out, m.failed = m.sess.Disconnect(), false
		return m, nil

	case key.Matches(msg, m.keys.Publish):
		return m.publish()

	case key.Matches(msg, m.keys.Clear):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.autoGen++
		return m, m.run(actionClear, m.sess.ClearPresence)

	case key.Matches(msg, m.keys.ResetTimer):
		m.out, m.failed = m.sess.ResetTimer(), false
		m.setElapsedFields(m.out.Timer)
		return m, nil

	case key.Matches(msg, m.keys.ToggleAuto):
		m.auto = !m.auto
		m.autoGen++
		if m.auto && m.out.Connected {
			return m, autoTickCmd(m.autoGen, m.sess.Interval())
		}
		return m, nil

	case key.Matches(msg, m.keys.HistoryNext):
		m.cycleHistory(1)
		return m, nil

	case key.Matches(msg, m.keys.HistoryPrev):
		m.cycleHistory(-1)
		return m, nil
	}

	return m.updateFocused(msg)
}

// updateFocused forwards msg to the focused input.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// publish reads the form and pushes it in the background.
func (m Model) publish() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	form, err := m.form()
	if err != nil {
		m.out.Status, m.failed = err.Error(), true
		return m, nil
	}
	m.busy, m.failed = true, false
	m.out.Status = "Updating..."
	return m, m.run(actionPublish, func() (app.Outcome, error) {
		return m.sess.Publish(form)
	})
}

// handleOutcome applies the result of a background action.
func (m Model) handleOutcome(msg outcomeMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.out = msg.out
	m.failed = msg.err != nil
	if msg.err != nil {
		m.log.Debug("action failed", "action", msg.action, "error", msg.err)
	}

	switch msg.action {
	case actionConnect:
		if msg.err == nil && m.auto {
			m.autoGen++
			return m, autoTickCmd(m.autoGen, m.sess.Interval())
		}
	case actionPublish:
		if msg.out.Connected || msg.err == nil {
			m.setElapsedFields(msg.out.Timer)
		}
		if m.auto && msg.out.Connected {
			m.autoGen++
			return m, autoTickCmd(m.autoGen, m.sess.Interval())
		}
	}
	return m, nil
}

// cycleHistory replaces the focused state or details input with the next
// history value.
func (m *Model) cycleHistory(step int) {
	hf, ok := historyField[m.focus]
	if !ok {
		return
	}
	next := m.sess.NextHistory(hf, m.value(m.focus), step)
	if next == "" {
		return
	}
	value, err := m.sess.SelectHistory(hf, next)
	if err != nil {
		m.out.Status = err.Error()
		return
	}
	m.inputs[m.focus].SetValue(value)
	m.inputs[m.focus].CursorEnd()
}

func (m *Model) setFocus(f field) {
	m.inputs[m.focus].Blur()
	m.focus = f
	m.inputs[m.focus].Focus()
}

// setElapsedFields writes r into the h/m/s inputs so an untouched form does
// not register as an edit on the next publish.
func (m *Model) setElapsedFields(r timer.Result) {
	m.inputs[fieldHours].SetValue(strconv.Itoa(r.H))
	m.inputs[fieldMinutes].SetValue(strconv.Itoa(r.M))
	m.inputs[fieldSeconds].SetValue(strconv.Itoa(r.S))
}

func (m Model) value(f field) string {
	return strings.TrimSpace(m.inputs[f].Value())
}

// form builds the publish input from the fields.
func (m Model) form() (app.Form, error) {
	f := app.Form{
		Identity:    m.value(fieldIdentity),
		State:       m.value(fieldState),
		Details:     m.value(fieldDetails),
		LargeImage:  m.value(fieldLargeImage),
		LargeText:   m.value(fieldLargeText),
		SmallImage:  m.value(fieldSmallImage),
		SmallText:   m.value(fieldSmallText),
		AutoAdvance: m.auto,
	}
	var err error
	for _, n := range []struct {
		f   field
		dst *float64
	}{
		{fieldHours, &f.Hours},
		{fieldMinutes, &f.Minutes},
		{fieldSeconds, &f.Seconds},
		{fieldInterval, &f.Interval},
	} {
		if *n.dst, err = parseNumber(m.value(n.f)); err != nil {
			return app.Form{}, fmt.Errorf("%s must be a number", fieldLabels[n.f])
		}
	}
	return f, nil
}

// parseNumber reads a form number. Blank is zero.
func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Run starts the Bubble Tea program and disconnects when it exits.
func Run(opts Options) error {
	defer opts.Session.Close()
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(opts.Context))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && opts.Context.Err() != nil {
		return nil
	}
	return err
}

// ///////////////////////////////////////////////
// Messages
// ///////////////////////////////////////////////

type action string

const (
	actionConnect action = "connect"
	actionPublish action = "publish"
	actionClear   action = "clear"
)

type outcomeMsg struct {
	action action
	out    app.Outcome
	err    error
}

type autoTickMsg struct{ gen int }

type clockMsg time.Time

type configMsg struct {
	cfg *config.Config
	err error
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

func (m Model) run(a action, fn func() (app.Outcome, error)) tea.Cmd {
	return func() tea.Msg {
		out, err := fn()
		return outcomeMsg{action: a, out: out, err: err}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(clockTick, func(t time.Time) tea.Msg {
		return clockMsg(t)
	})
}

func autoTickCmd(gen int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return autoTickMsg{gen: gen}
	})
}

// waitConfigCmd blocks until the watcher reports a change, then reloads path.
// It returns nil when ctx ends.
func waitConfigCmd(ctx context.Context, w *watch.Watcher, path string) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-w.Events():
			cfg, err := config.LoadFile(path)
			return configMsg{cfg: cfg, err: err}
		}
	}
}
