package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"tools.zach/dev/cordpush/internal/app"
	"tools.zach/dev/cordpush/internal/history"
	"tools.zach/dev/cordpush/internal/logger"
	"tools.zach/dev/cordpush/internal/mcpserver"
	"tools.zach/dev/cordpush/internal/timer"
	"tools.zach/dev/cordpush/internal/tui"
	"tools.zach/dev/cordpush/internal/update"
	"tools.zach/dev/cordpush/internal/watch"
)

// defaultLogLines is how many lines `cordpush logs` prints without -n.
const defaultLogLines = 50

// newCLIApp creates the CLI application with all commands. Running it with no
// command opens the TUI.
func newCLIApp() *cli.App {
	app := &cli.App{
		Name:    "cordpush",
		Usage:   "Publish a custom Discord Rich Presence",
		Version: resolveVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Data directory for config, settings and logs (default ~/.cordpush)",
				EnvVars: []string{"CORDPUSH_DATA_DIR"},
			},
			&cli.BoolFlag{Name: "verbose", Usage: "Log at debug level; headless commands also log to stderr"},
		},
		Action: tuiAction,
		Commands: []*cli.Command{
			tuiCmd(),
			runCmd(),
			mcpCmd(),
			historyCmd(),
			settingsCmd(),
			logsCmd(),
			versionCmd(),
		},
	}
	// Errors are returned to main, which picks the exit code.
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// ///////////////////////////////////////////////
// Long-running Commands
// ///////////////////////////////////////////////

// tuiCmd creates the tui command.
func tuiCmd() *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Edit and publish the presence interactively (default)",
		Action: tuiAction,
	}
}

func tuiAction(c *cli.Context) error {
	e, err := loadEnv(c, logFileOnly)
	if err != nil {
		return err
	}
	defer e.Close()

	lock, err := e.acquireInstance()
	if err != nil {
		return err
	}
	defer lock.Release()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	ver := resolveVersion()
	e.log.Info("cordpush starting", "mode", "tui", "version", ver, "data_dir", e.paths.Root)
	checkForUpdate(ctx, e.log, ver)

	w, err := watch.New(e.paths.Config(), watch.WithLogger(e.log))
	if err != nil {
		e.log.Warn("config reload disabled", "error", err)
		w = nil
	} else {
		defer w.Close()
	}

	return tui.Run(tui.Options{
		Context:    ctx,
		Session:    e.newSession(),
		Watcher:    w,
		ConfigPath: e.paths.Config(),
		Log:        e.log,
	})
}

// runCmd creates the headless run command.
func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Publish a presence and hold it until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "identity", Aliases: []string{"i"}, Usage: "Discord application ID (defaults to the saved one)"},
			&cli.StringFlag{Name: "state", Aliases: []string{"s"}, Usage: "Lower line of the presence card"},
			&cli.StringFlag{Name: "details", Aliases: []string{"d"}, Usage: "Upper line of the presence card"},
			&cli.StringFlag{Name: "elapsed", Aliases: []string{"e"}, Usage: "Starting elapsed time as HH:MM:SS, MM:SS or SS"},
			&cli.StringFlag{Name: "large-image", Usage: "Large image asset key"},
			&cli.StringFlag{Name: "large-text", Usage: "Large image tooltip"},
			&cli.StringFlag{Name: "small-image", Usage: "Small image asset key"},
			&cli.StringFlag{Name: "small-text", Usage: "Small image tooltip"},
			&cli.BoolFlag{Name: "auto", Usage: "Keep the elapsed time counting and re-publish every interval (defaults to the saved choice)"},
			&cli.Float64Flag{Name: "interval", Usage: "Auto-update period in seconds"},
		},
		Action: func(c *cli.Context) error {
			form, err := formFromFlags(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}

			e, err := loadEnv(c, logTeeStderr)
			if err != nil {
				return err
			}
			defer e.Close()

			lock, err := e.acquireInstance()
			if err != nil {
				return err
			}
			defer lock.Release()

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			sess := e.newSession()
			defer sess.Close()

			if form.Identity == "" {
				form.Identity = sess.DefaultIdentity()
			}
			if !c.IsSet("auto") {
				form.AutoAdvance = sess.Settings().AutoUpdateEnabled
			}

			ver := resolveVersion()
			e.log.Info("cordpush starting", "mode", "run", "version", ver, "data_dir", e.paths.Root)
			checkForUpdate(ctx, e.log, ver)

			stopWatch := watchConfig(ctx, e, sess)
			defer stopWatch()

			return runPresence(ctx, c.App.Writer, sess, form, e.log)
		},
	}
}

// formFromFlags builds the publish form from run's flags.
func formFromFlags(c *cli.Context) (app.Form, error) {
	form := app.Form{
		Identity:    c.String("identity"),
		State:       c.String("state"),
		Details:     c.String("details"),
		LargeImage:  c.String("large-image"),
		LargeText:   c.String("large-text"),
		SmallImage:  c.String("small-image"),
		SmallText:   c.String("small-text"),
		AutoAdvance: c.Bool("auto"),
		Interval:    c.Float64("interval"),
	}
	if c.IsSet("interval") && form.Interval <= 0 {
		return form, fmt.Errorf("--interval must be positive, got %v", form.Interval)
	}
	secs, err := timer.ParseHMS(c.String("elapsed"))
	if err != nil {
		return form, fmt.Errorf("--elapsed: %w", err)
	}
	form.Seconds = secs
	return form, nil
}

// mcpCmd creates the mcp command.
func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the presence actions as MCP tools over stdio",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c, logFileOnly)
			if err != nil {
				return err
			}
			defer e.Close()

			lock, err := e.acquireInstance()
			if err != nil {
				return err
			}
			defer lock.Release()

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			sess := e.newSession()
			defer sess.Close()

			stopWatch := watchConfig(ctx, e, sess)
			defer stopWatch()

			ver := resolveVersion()
			e.log.Info("cordpush starting", "mode", "mcp", "version", ver, "tools", len(mcpserver.AllToolNames()))
			return mcpserver.Run(sess, ver)
		},
	}
}

// ///////////////////////////////////////////////
// Inspection Commands
// ///////////////////////////////////////////////

// historyCmd creates the history command group.
func historyCmd() *cli.Command {
	fieldFlag := func() cli.Flag {
		return &cli.StringFlag{Name: "field", Aliases: []string{"f"}, Usage: "state or details (default both)"}
	}
	return &cli.Command{
		Name:  "history",
		Usage: "Show, clear or cap recently published state and details values",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print history as JSON, most recent first",
				Flags: []cli.Flag{fieldFlag()},
				Action: func(c *cli.Context) error {
					return historyAction(c, false)
				},
			},
			{
				Name:  "clear",
				Usage: "Empty the history",
				Flags: []cli.Flag{fieldFlag()},
				Action: func(c *cli.Context) error {
					return historyAction(c, true)
				},
			},
			{
				Name:      "limit",
				Usage:     "Set how many values each history keeps, truncating both lists",
				ArgsUsage: "N",
				Action:    historyLimitAction,
			},
		},
	}
}

func historyAction(c *cli.Context, reset bool) error {
	fields := history.Fields
	if name := c.String("field"); name != "" {
		f, err := history.ParseField(name)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		fields = []history.Field{f}
	}

	e, err := loadEnv(c, logTeeStderr)
	if err != nil {
		return err
	}
	defer e.Close()
	store := e.openStore()

	out := make(map[history.Field][]string, len(fields))
	for _, f := range fields {
		if reset {
			if err := store.ClearHistory(f); err != nil {
				return fmt.Errorf("clear %s history: %w", f, err)
			}
			e.log.Info("history cleared", "field", f)
		}
		entries, err := store.History(f)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []string{}
		}
		out[f] = entries
	}
	return outputJSON(c.App.Writer, out)
}

func historyLimitAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: cordpush history limit N", 2)
	}
	limit, err := strconv.Atoi(c.Args().First())
	if err != nil || limit < 1 {
		return cli.Exit(fmt.Sprintf("history limit must be a positive integer, got %q", c.Args().First()), 2)
	}

	e, err := loadEnv(c, logTeeStderr)
	if err != nil {
		return err
	}
	defer e.Close()
	store := e.openStore()

	if err := store.SetHistoryLimit(limit); err != nil {
		return fmt.Errorf("set history limit: %w", err)
	}
	e.log.Info("history limit changed", "limit", limit)

	out := make(map[history.Field][]string, len(history.Fields))
	for _, f := range history.Fields {
		entries, err := store.History(f)
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []string{}
		}
		out[f] = entries
	}
	return outputJSON(c.App.Writer, out)
}

// settingsCmd creates the settings command.
func settingsCmd() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Print the persisted settings as JSON",
		Action: func(c *cli.Context) error {
			e, err := loadEnv(c, logTeeStderr)
			if err != nil {
				return err
			}
			defer e.Close()
			return outputJSON(c.App.Writer, e.openStore().Snapshot())
		},
	}
}

// logsCmd creates the logs command.
func logsCmd() *cli.Command {
	return &cli.Command{
		Name:  "logs",
		Usage: "Print the end of the log file",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "lines", Aliases: []string{"n"}, Value: defaultLogLines, Usage: "Number of lines"},
		},
		Action: func(c *cli.Context) error {
			path := dataPaths(c).Log()
			text, err := logger.ReadTail(path, c.Int("lines"))
			if errors.Is(err, os.ErrNotExist) {
				return cli.Exit(fmt.Sprintf("no log file at %s", path), 1)
			}
			if err != nil {
				return err
			}
			if text != "" {
				fmt.Fprintln(c.App.Writer, text)
			}
			return nil
		},
	}
}

// versionCmd creates the version command.
func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the version, optionally checking for a newer release",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "check", Usage: "Compare with the latest release"},
			&cli.StringFlag{Name: "manifest-url", Hidden: true},
		},
		Action: func(c *cli.Context) error {
			ver := resolveVersion()
			fmt.Fprintf(c.App.Writer, "cordpush %s\n", ver)
			if !c.Bool("check") {
				return nil
			}

			checker := &update.Checker{URL: c.String("manifest-url")}
			res, err := checker.Check(c.Context, ver)
			if err != nil {
				return cli.Exit(fmt.Sprintf("version check failed: %v", err), 1)
			}
			if res.Newer {
				fmt.Fprintf(c.App.Writer, "update available: %s\n", res.Latest)
			} else {
				fmt.Fprintln(c.App.Writer, "up to date")
			}
			return nil
		},
	}
}

// ///////////////////////////////////////////////
// Output Helpers
// ///////////////////////////////////////////////

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
