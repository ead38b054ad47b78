package app

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler calls Tick on a period until its context ends. The period is
// read again before every wait so a changed interval applies from the next
// tick.
type Scheduler struct {
	// Interval returns the current period. Non-positive values pause for a
	// second before asking again.
	Interval func() time.Duration
	// Tick runs once per period. It must not block past ctx.
	Tick func(ctx context.Context)
	// Log receives scheduling diagnostics. Nil uses slog.Default.
	Log *slog.Logger
}

// Run blocks until ctx is done and returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	timer := time.NewTimer(s.next())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("scheduler stopped", "reason", ctx.Err())
			return ctx.Err()
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.next())
		}
	}
}

// next returns the wait before the following tick.
func (s *Scheduler) next() time.Duration {
	if d := s.Interval(); d > 0 {
		return d
	}
	return time.Second
}

// AutoPublish re-publishes form every [Session.Interval], feeding each
// result back into the form. It returns when ctx ends.
// Failures are reported through onResult and do not stop the loop.
func (s *Session) AutoPublish(ctx context.Context, form Form, onResult func(Outcome, error)) error {
	sched := &Scheduler{
		Interval: s.Interval,
		Log:      s.log,
		Tick: func(context.Context) {
			out, err := s.Publish(form)
			form = form.WithElapsed(out.Timer)
			if onResult != nil {
				onResult(out, err)
			}
		},
	}
	return sched.Run(ctx)
}
