// Tests for elapsed-time reconciliation ([Reconcile], [Reset], [Edit]),
// HH:MM:SS conversion and the clocked [Timer] wrapper.
package timer

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Unix(1_700_000_000, 0)

// at returns t0 plus d seconds.
func at(d float64) time.Time {
	return t0.Add(time.Duration(d * float64(time.Second)))
}

// ///////////////////////////////////////////////
// Reconcile
// ///////////////////////////////////////////////

func TestReconcile(t *testing.T) {
	tests := []struct {
		name   string
		prev   State
		now    time.Time
		manual float64
		auto   bool
		want   float64
	}{
		{"first publish uses manual", State{}, t0, 5, false, 5},
		{"first publish uses manual in auto mode", State{}, t0, 42, true, 42},
		{"auto advances by delta", State{Base: 5, Last: t0}, at(10), 0, true, 15},
		{"auto ignores manual input", State{Base: 5, Last: t0}, at(10), 9999, true, 15},
		{"manual edit beyond tolerance overrides", State{Base: 100, Last: t0}, at(3), 30, false, 30},
		{"manual within tolerance keeps counting", State{Base: 100, Last: t0}, at(3), 100.5, false, 103},
		{"manual exactly at tolerance keeps counting", State{Base: 100, Last: t0}, at(2), 101, false, 102},
		{"negative manual clamps to zero", State{}, t0, -30, false, 0},
		{"backwards clock adds nothing", State{Base: 50, Last: at(10)}, t0, 0, true, 50},
		{"NaN manual treated as zero", State{}, t0, math.NaN(), false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, r := Reconcile(tt.prev, tt.now, tt.manual, tt.auto, DefaultTolerance)
			if r.Elapsed != tt.want {
				t.Errorf("Elapsed = %v, want %v", r.Elapsed, tt.want)
			}
			if next.Base != tt.want {
				t.Errorf("Base = %v, want %v", next.Base, tt.want)
			}
			if !next.Last.Equal(tt.now) {
				t.Errorf("Last = %v, want %v", next.Last, tt.now)
			}
			if next.Auto != tt.auto {
				t.Errorf("Auto = %v, want %v", next.Auto, tt.auto)
			}
		})
	}
}

func TestReconcile_ManualFiveSeconds(t *testing.T) {
	_, r := Reconcile(State{}, t0, ToSeconds(0, 0, 5), false, DefaultTolerance)
	if r.Display != "00:00:05" {
		t.Errorf("Display = %q, want 00:00:05", r.Display)
	}
	if r.StartEpoch != t0.Unix()-5 {
		t.Errorf("StartEpoch = %d, want %d", r.StartEpoch, t0.Unix()-5)
	}
}

func TestReconcile_AutoAfterTenSeconds(t *testing.T) {
	s, _ := Reconcile(State{}, t0, 5, true, DefaultTolerance)
	_, r := Reconcile(s, at(10), 5, true, DefaultTolerance)
	if r.Elapsed != 15 || r.Display != "00:00:15" {
		t.Errorf("got (%v, %q), want (15, 00:00:15)", r.Elapsed, r.Display)
	}
}

func TestReconcile_Monotonic(t *testing.T) {
	tests := []struct {
		name string
		auto bool
		// feedback re-submits the previous result as the manual input, the
		// way an untouched form shows it.
		feedback bool
		manual   float64
	}{
		{name: "auto ignores input", auto: true, manual: 0},
		{name: "manual untouched form", feedback: true, manual: 42},
		{name: "manual fractional steps", feedback: true, manual: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{}
			manual := tt.manual
			prev := -1.0
			for i := range 20 {
				var r Result
				s, r = Reconcile(s, at(float64(i)*2.5), manual, tt.auto, DefaultTolerance)
				if r.Elapsed < prev {
					t.Fatalf("step %d: elapsed went backwards (%v < %v)", i, r.Elapsed, prev)
				}
				if r.Elapsed < 0 {
					t.Fatalf("step %d: negative elapsed %v", i, r.Elapsed)
				}
				if tt.feedback {
					manual = ToSeconds(float64(r.H), float64(r.M), float64(r.S))
				}
				prev = r.Elapsed
			}
			if want := tt.manual + 19*2.5; math.Abs(prev-want) > 1e-9 {
				t.Errorf("final elapsed = %v, want %v", prev, want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Reset / Edit
// ///////////////////////////////////////////////

func TestReset(t *testing.T) {
	s, r := Reset(at(99), true)
	if r.H != 0 || r.M != 0 || r.S != 0 || r.Display != "00:00:00" {
		t.Errorf("Reset result = %+v", r)
	}
	if s.Base != 0 || !s.Last.Equal(at(99)) || !s.Auto {
		t.Errorf("Reset state = %+v", s)
	}
}

func TestEdit(t *testing.T) {
	s, r := Edit(t0, ToSeconds(1, 75, 0), false)
	if s.Base != 8100 || r.Display != "02:15:00" {
		t.Errorf("Edit = (%v, %q), want (8100, 02:15:00)", s.Base, r.Display)
	}
	if s, _ := Edit(t0, -10, false); s.Base != 0 {
		t.Errorf("negative edit base = %v, want 0", s.Base)
	}
}

// ///////////////////////////////////////////////
// HH:MM:SS Conversion
// ///////////////////////////////////////////////

func TestToSeconds_NotNormalized(t *testing.T) {
	if got := ToSeconds(0, 75, 0); got != 4500 {
		t.Errorf("ToSeconds(0,75,0) = %v, want 4500", got)
	}
	if got := ToSeconds(1, 0, 90); got != 3690 {
		t.Errorf("ToSeconds(1,0,90) = %v, want 3690", got)
	}
}

func TestHMSRoundTrip(t *testing.T) {
	for _, hms := range [][3]int{{0, 0, 0}, {0, 0, 59}, {0, 59, 59}, {1, 2, 3}, {23, 59, 59}, {150, 0, 1}} {
		h, m, s := FromSeconds(ToSeconds(float64(hms[0]), float64(hms[1]), float64(hms[2])))
		if [3]int{h, m, s} != hms {
			t.Errorf("round trip %v -> %v", hms, [3]int{h, m, s})
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00"},
		{5, "00:00:05"},
		{59.9, "00:00:59"},
		{3661, "01:01:01"},
		{360000, "100:00:00"},
		{-4, "00:00:00"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseHMS(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"", 0, false},
		{"45", 45, false},
		{"02:30", 150, false},
		{"01:00:05", 3605, false},
		{" 0:75:0 ", 4500, false},
		{"1:2:3:4", 0, true},
		{"aa:00", 0, true},
		{"-1:00", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseHMS(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHMS) {
					t.Fatalf("ParseHMS(%q) err = %v, want ErrInvalidHMS", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseHMS(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Timer
// ///////////////////////////////////////////////

// fakeClock is a manually advanced clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTimer(t *testing.T) {
	clk := &fakeClock{now: t0}
	tm := New(clk.Now, DefaultTolerance)

	if r := tm.Reconcile(5, true); r.Elapsed != 5 {
		t.Fatalf("first reconcile = %v, want 5", r.Elapsed)
	}
	clk.Advance(10 * time.Second)
	if r := tm.Peek(); r.Elapsed != 15 {
		t.Errorf("Peek = %v, want 15", r.Elapsed)
	}
	if s := tm.State(); s.Base != 5 {
		t.Errorf("Peek mutated state: base %v", s.Base)
	}
	if r := tm.Reconcile(0, true); r.Elapsed != 15 {
		t.Errorf("auto reconcile = %v, want 15", r.Elapsed)
	}

	if r := tm.Reset(); r.Display != "00:00:00" {
		t.Errorf("Reset display = %q", r.Display)
	}
	if r := tm.Edit(90); r.Display != "00:01:30" {
		t.Errorf("Edit display = %q", r.Display)
	}
}

func TestTimer_Forget(t *testing.T) {
	clk := &fakeClock{now: t0}
	tm := New(clk.Now, DefaultTolerance)
	tm.Reconcile(100, true)
	clk.Advance(time.Minute)

	tm.Forget()
	if tm.State().Started() {
		t.Fatal("expected timer to be unstarted after Forget")
	}
	if r := tm.Reconcile(7, true); r.Elapsed != 7 {
		t.Errorf("reconcile after Forget = %v, want manual 7", r.Elapsed)
	}
}

func TestTimer_SetTolerance(t *testing.T) {
	clk := &fakeClock{now: t0}
	tm := New(clk.Now, DefaultTolerance)
	tm.Reconcile(100, false)
	tm.SetTolerance(60)
	clk.Advance(time.Second)

	if r := tm.Reconcile(130, false); r.Elapsed != 101 {
		t.Errorf("edit inside widened tolerance = %v, want 101", r.Elapsed)
	}
}
