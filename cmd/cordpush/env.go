package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	rootpkg "tools.zach/dev/cordpush"
	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/atomicfile"
	"tools.zach/dev/cordpush/internal/config"
	"tools.zach/dev/cordpush/internal/discord"
	"tools.zach/dev/cordpush/internal/logger"
	"tools.zach/dev/cordpush/internal/paths"
	"tools.zach/dev/cordpush/internal/settings"
	"tools.zach/dev/cordpush/internal/update"
)

// ///////////////////////////////////////////////
// Environment
// ///////////////////////////////////////////////

// env is what every command needs after startup: resolved paths, the loaded
// config and the file logger.
type env struct {
	paths    paths.DataDir
	cfg      *config.Config
	log      *slog.Logger
	closeLog io.Closer
}

// logMode selects where log lines go besides the log file.
type logMode int

const (
	// logFileOnly keeps stdout and stderr clean for the TUI and MCP stdio.
	logFileOnly logMode = iota
	// logTeeStderr copies lines to stderr when --verbose is set.
	logTeeStderr
)

// loadEnv resolves the data directory, writes the default config on first
// run, loads the config and installs the logger as the slog default.
func loadEnv(c *cli.Context, mode logMode) (*env, error) {
	dp := dataPaths(c)
	if err := dp.Ensure(); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(dp.Config()); errors.Is(err, os.ErrNotExist) {
		if writeErr := atomicfile.Write(dp.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(c.App.ErrWriter, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.LoadFile(dp.Config())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := logger.ParseLevel(cfg.Log.Level)
	opts := logger.Options{Path: dp.Log(), Level: level, MaxSizeMB: cfg.Log.MaxSizeMB}
	if c.Bool("verbose") {
		opts.Level = min(level, slog.LevelDebug)
		if mode == logTeeStderr {
			opts.Tee = c.App.ErrWriter
		}
	}
	log, closer, err := logger.New(opts)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	return &env{paths: dp, cfg: cfg, log: log, closeLog: closer}, nil
}

// Close releases the log file.
func (e *env) Close() {
	if e.closeLog != nil {
		e.closeLog.Close()
	}
}

// dataPaths returns the data directory chosen by --data-dir.
func dataPaths(c *cli.Context) paths.DataDir {
	if dir := c.String("data-dir"); dir != "" {
		return paths.DataDir{Root: dir}
	}
	return paths.Default()
}

// settingsDefaults seeds fresh settings from the config.
func settingsDefaults(cfg *config.Config) settings.Settings {
	def := settings.Defaults()
	if cfg.Scheduler.DefaultIntervalSeconds > 0 {
		def.UpdateInterval = cfg.Scheduler.DefaultIntervalSeconds
	}
	if cfg.History.DefaultLimit > 0 {
		def.HistoryLimit = cfg.History.DefaultLimit
	}
	return def
}

// openStore loads settings.json.
func (e *env) openStore() *settings.Store {
	return settings.Load(e.paths.Settings(), settingsDefaults(e.cfg))
}

// newSession wires a session over a real Discord IPC client.
func (e *env) newSession() *app.Session {
	client := discord.NewClient(
		discord.WithIPCPath(e.cfg.Discord.IPCPath),
		discord.WithTimeout(e.cfg.ConnectTimeout()),
		discord.WithLogger(e.log.With("component", "discord")),
	)
	return app.NewSession(client, e.openStore(), e.cfg, app.WithLogger(e.log))
}

// ///////////////////////////////////////////////
// Single Instance
// ///////////////////////////////////////////////

// instanceLock is a held PID file lock.
type instanceLock struct {
	paths paths.DataDir
	token string
	file  *os.File
}

// acquireInstance fails when another long-running cordpush owns the data
// directory. Release must be called on shutdown.
func (e *env) acquireInstance() (*instanceLock, error) {
	if alive, pid := checkStalePID(e.paths); alive {
		return nil, cli.Exit(fmt.Sprintf("cordpush already running (pid %d)", pid), 1)
	}
	token := pidToken()
	f, err := writePID(e.paths, token)
	if err != nil {
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return &instanceLock{paths: e.paths, token: token, file: f}, nil
}

// Release drops the lock and removes the PID file.
func (l *instanceLock) Release() {
	removePID(l.paths, l.token, l.file)
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := signalChannel()
	go func() {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// checkForUpdate logs a notice when a newer release exists. It never blocks
// the caller.
func checkForUpdate(ctx context.Context, log *slog.Logger, ver string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("update check panic", "error", r)
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		update.Notify(ctx, log, ver)
	}()
}
