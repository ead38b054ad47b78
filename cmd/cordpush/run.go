package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/watch"
)

// ///////////////////////////////////////////////
// Connect with Retry
// ///////////////////////////////////////////////

const (
	// connectAttempts bounds the startup connect loop of `cordpush run`.
	connectAttempts = 10
	// connectDelay is the wait between startup connect attempts.
	connectDelay = 5 * time.Second
)

// connectWithRetry connects sess to identity, retrying while the Discord
// client is unreachable. A blank identity fails at once.
func connectWithRetry(ctx context.Context, sess *app.Session, identity string, attempts int, delay time.Duration) error {
	var lastErr error
	for i := range attempts {
		_, err := sess.Connect(identity)
		if err == nil {
			return nil
		}
		if errors.Is(err, app.ErrBlankIdentity) {
			return fmt.Errorf("%w: pass --identity or set discord.app_id", err)
		}
		lastErr = err
		slog.Warn("Discord connect attempt failed", "attempt", i+1, "error", err)
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", attempts, lastErr)
}

// ///////////////////////////////////////////////
// Headless Loop
// ///////////////////////////////////////////////

// runPresence connects, publishes form once and holds the presence until ctx
// ends. With auto-advance on it re-publishes every saved interval. Each
// outcome is printed to w as one line.
func runPresence(ctx context.Context, w io.Writer, sess *app.Session, form app.Form, log *slog.Logger) error {
	if err := connectWithRetry(ctx, sess, form.Identity, connectAttempts, connectDelay); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	report := func(out app.Outcome, err error) {
		if err != nil {
			log.Warn("publish failed", "error", err, "elapsed", out.Timer.Display)
			fmt.Fprintf(w, "%s  %s  (%v)\n", out.Timer.Display, out.Status, err)
			return
		}
		log.Debug("presence published", "elapsed", out.Timer.Display)
		fmt.Fprintf(w, "%s  %s\n", out.Timer.Display, out.Status)
	}

	out, err := sess.Publish(form)
	report(out, err)
	form = form.WithElapsed(out.Timer)

	if !form.AutoAdvance {
		<-ctx.Done()
		return nil
	}
	log.Info("auto-update enabled", "interval", sess.Interval())
	if err := sess.AutoPublish(ctx, form, report); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// ///////////////////////////////////////////////
// Config Reload
// ///////////////////////////////////////////////

// watchConfig reloads the config file into sess whenever it changes. The
// returned func stops watching. An invalid file keeps the previous config.
func watchConfig(ctx context.Context, e *env, sess *app.Session) func() {
	path := e.paths.Config()
	w, err := watch.New(path, watch.WithLogger(e.log))
	if err != nil {
		e.log.Warn("config reload disabled", "error", err)
		return func() {}
	}
	if w.Polling() {
		e.log.Info("using polling mode for config reload")
	}
	go w.Run(ctx, func() {
		cfg, err := config.LoadFile(path)
		if err != nil {
			e.log.Warn("config reload failed, keeping previous", "error", err)
			return
		}
		sess.SetConfig(cfg)
	})
	return func() { w.Close() }
}
