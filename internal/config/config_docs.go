package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "timer.edit_tolerance_seconds")
// to their [FieldDoc] entries.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Discord ──────────────────────────────────────────────────
	"discord.app_id": {
		Comment: "Application ID used when no identity has been saved in settings.json yet.\nCreate one at https://discord.com/developers/applications.",
		Alternatives: []string{
			`app_id = "123456789012345678"`,
		},
	},
	"discord.ipc_path": {
		Comment: "Explicit IPC socket or named pipe. Leave unset to probe the usual locations.",
		Alternatives: []string{
			`# ipc_path = "/run/user/1000/discord-ipc-0"`,
			`# ipc_path = '\\.\pipe\discord-ipc-0'`,
		},
	},
	"discord.connect_timeout_seconds": {
		Comment: "Seconds to wait for the Discord client to answer the handshake.",
	},

	// ── Presence ─────────────────────────────────────────────────
	"presence.large_image": {
		Comment: "Default image keys and hover text. Values typed in the form win over these.\nImage keys must match assets uploaded to your Discord app, or be https URLs.",
	},
	"presence.large_text":  {},
	"presence.small_image": {},
	"presence.small_text":  {},
	"presence.buttons": {
		Comment: "Up to two link buttons shown on the presence card.",
		Alternatives: []string{
			`# [[presence.buttons]]`,
			`# label = "Homepage"`,
			`# url = "https://example.com"`,
		},
	},

	// ── Timer ────────────────────────────────────────────────────
	"timer.edit_tolerance_seconds": {
		Comment: "In manual mode, a submitted elapsed time within this many seconds of the\nrunning timer is treated as unchanged and the timer keeps counting.",
	},
	"timer.reset_on_disconnect": {
		Comment: "Forget the running timer when disconnecting. The next publish starts\nfrom the HH:MM:SS fields instead of continuing the previous count.",
	},

	// ── Scheduler ────────────────────────────────────────────────
	"scheduler.default_interval_seconds": {
		Comment: "Auto-update interval used until one is saved in settings.json.",
	},
	"scheduler.min_interval_seconds": {
		Comment: "Bounds applied to the auto-update interval. Discord rate-limits\nSET_ACTIVITY to about one call per 15 seconds.",
	},
	"scheduler.max_interval_seconds": {},

	// ── History ──────────────────────────────────────────────────
	"history.default_limit": {
		Comment: "Number of recent state/details values kept, most recent first.",
	},
	"history.exclude": {
		Comment: "Values matching any of these glob patterns are never recorded.",
		Alternatives: []string{
			`# exclude = ["*password*", "tmp-*"]`,
		},
	},

	// ── Log ──────────────────────────────────────────────────────
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Rotate cordpush.log after it reaches this many megabytes.",
	},
}
