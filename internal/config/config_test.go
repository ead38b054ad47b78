// Tests for the config package covering [Load] behavior (defaults, overrides,
// missing files, malformed input, migration), validation ([Config.Validate]),
// interval clamping ([Config.ClampInterval]), serialization round-trips
// ([Config.Save]), and [ConfigDocs] completeness.

package config

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"tools.zach/dev/cordpush/internal/paths"
)

// writeConfig writes content to dir/config.toml.
func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, paths.ConfigFile), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

// ///////////////////////////////////////////////
// Load
// ///////////////////////////////////////////////

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		noFile  bool
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name:   "missing file yields defaults",
			noFile: true,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if !reflect.DeepEqual(cfg, DefaultConfig()) {
					t.Errorf("got %+v, want defaults", cfg)
				}
			},
		},
		{
			name:   "defaults from minimal config",
			config: "version = 1\n",
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Timer.EditToleranceSeconds != 1 {
					t.Errorf("EditToleranceSeconds = %v, want 1", cfg.Timer.EditToleranceSeconds)
				}
				if cfg.History.DefaultLimit != 10 {
					t.Errorf("DefaultLimit = %d, want 10", cfg.History.DefaultLimit)
				}
			},
		},
		{
			name: "user overrides applied",
			config: `
version = 1

[discord]
app_id = "123456789"
ipc_path = "/tmp/discord-ipc-0"

[timer]
edit_tolerance_seconds = 2.5
reset_on_disconnect = true

[[presence.buttons]]
label = "Homepage"
url = "https://example.com"
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Discord.AppID != "123456789" {
					t.Errorf("AppID = %q, want 123456789", cfg.Discord.AppID)
				}
				if cfg.Discord.IPCPath != "/tmp/discord-ipc-0" {
					t.Errorf("IPCPath = %q", cfg.Discord.IPCPath)
				}
				if cfg.Timer.EditToleranceSeconds != 2.5 || !cfg.Timer.ResetOnDisconnect {
					t.Errorf("Timer = %+v", cfg.Timer)
				}
				if len(cfg.Presence.Buttons) != 1 || cfg.Presence.Buttons[0].Label != "Homepage" {
					t.Errorf("Buttons = %+v", cfg.Presence.Buttons)
				}
			},
		},
		{
			name: "partial override preserves other defaults",
			config: `
[scheduler]
default_interval_seconds = 30
`,
			check: func(t *testing.T, cfg *Config) {
				t.Helper()
				if cfg.Scheduler.DefaultIntervalSeconds != 30 {
					t.Errorf("DefaultIntervalSeconds = %v, want 30", cfg.Scheduler.DefaultIntervalSeconds)
				}
				if cfg.Scheduler.MaxIntervalSeconds != 3600 {
					t.Errorf("MaxIntervalSeconds = %v, want 3600", cfg.Scheduler.MaxIntervalSeconds)
				}
			},
		},
		{
			name:    "malformed TOML",
			config:  "[discord\napp_id = ",
			wantErr: true,
		},
		{
			name:    "invalid value rejected",
			config:  "[log]\nlevel = \"loud\"\n",
			wantErr: true,
		},
		{
			name:    "newer schema rejected",
			config:  "version = 99\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if !tt.noFile {
				writeConfig(t, dir, tt.config)
			}
			cfg, err := Load(dir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

// ///////////////////////////////////////////////
// Validate
// ///////////////////////////////////////////////

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults valid", func(c *Config) {}, ""},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"zero log size", func(c *Config) { c.Log.MaxSizeMB = 0 }, "max_size_mb"},
		{"zero connect timeout", func(c *Config) { c.Discord.ConnectTimeoutSeconds = 0 }, "connect_timeout_seconds"},
		{"negative tolerance", func(c *Config) { c.Timer.EditToleranceSeconds = -1 }, "edit_tolerance_seconds"},
		{"NaN tolerance", func(c *Config) { c.Timer.EditToleranceSeconds = math.NaN() }, "edit_tolerance_seconds"},
		{"zero min interval", func(c *Config) { c.Scheduler.MinIntervalSeconds = 0 }, "min_interval_seconds"},
		{"max below min", func(c *Config) { c.Scheduler.MaxIntervalSeconds = 1 }, "max_interval_seconds"},
		{"default outside range", func(c *Config) { c.Scheduler.DefaultIntervalSeconds = 7200 }, "default_interval_seconds"},
		{"zero history limit", func(c *Config) { c.History.DefaultLimit = 0 }, "default_limit"},
		{"bad exclude glob", func(c *Config) { c.History.Exclude = []string{"[unclosed"} }, "history.exclude"},
		{"too many buttons", func(c *Config) {
			b := ButtonConfig{Label: "x", URL: "https://x.dev"}
			c.Presence.Buttons = []ButtonConfig{b, b, b}
		}, "at most 2"},
		{"button without label", func(c *Config) {
			c.Presence.Buttons = []ButtonConfig{{URL: "https://x.dev"}}
		}, "label is required"},
		{"button label too long", func(c *Config) {
			c.Presence.Buttons = []ButtonConfig{{Label: strings.Repeat("a", 33), URL: "https://x.dev"}}
		}, "max 32"},
		{"button with relative url", func(c *Config) {
			c.Presence.Buttons = []ButtonConfig{{Label: "x", URL: "/docs"}}
		}, "http(s)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ClampInterval
// ///////////////////////////////////////////////

func TestClampInterval(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		in   float64
		want time.Duration
	}{
		{"within range", 60, time.Minute},
		{"below min", 1, 15 * time.Second},
		{"above max", 99999, time.Hour},
		{"zero uses default", 0, 15 * time.Second},
		{"negative uses default", -5, 15 * time.Second},
		{"NaN uses default", math.NaN(), 15 * time.Second},
		{"Inf uses default", math.Inf(1), 15 * time.Second},
		{"fractional", 20.5, 20500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.ClampInterval(tt.in); got != tt.want {
				t.Errorf("ClampInterval(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestConnectTimeout(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ConnectTimeout(); got != 5*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 5s", got)
	}
}

// ///////////////////////////////////////////////
// Migration integration
// ///////////////////////////////////////////////

func TestLoad_Migration(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		wantVersion int
	}{
		{
			name:        "missing version treated as current",
			config:      "[discord]\napp_id = \"test\"\n",
			wantVersion: 1,
		},
		{
			name:        "skips migration when current",
			config:      "version = 1",
			wantVersion: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.config)

			cfg, err := Load(dir)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.Version != tt.wantVersion {
				t.Errorf("Version = %d, want %d", cfg.Version, tt.wantVersion)
			}
		})
	}
}

// ///////////////////////////////////////////////
// PeekVersion
// ///////////////////////////////////////////////

func TestPeekVersion(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"reads version from TOML", "version = 3\n[discord]\napp_id = \"test\"\n", 3},
		{"missing version returns 1", "[discord]\napp_id = \"test\"\n", 1},
		{"garbage returns 1", "not = [toml", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeekVersion([]byte(tt.data)); got != tt.want {
				t.Errorf("PeekVersion() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// ExampleConfig
// ///////////////////////////////////////////////

func TestExampleConfig(t *testing.T) {
	cfg := ExampleConfig()
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("ExampleConfig does not validate: %v", err)
	}
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		t.Fatalf("failed to marshal ExampleConfig: %v", err)
	}
}

// ///////////////////////////////////////////////
// ConfigDocs completeness
// ///////////////////////////////////////////////

func TestConfigDocsComplete(t *testing.T) {
	fields := collectTOMLFields(reflect.TypeOf(Config{}), "")
	for _, field := range fields {
		if _, ok := ConfigDocs[field]; !ok {
			t.Errorf("ConfigDocs missing entry for field %q", field)
		}
	}
}

func TestConfigDocsNoStaleEntries(t *testing.T) {
	known := map[string]bool{}
	for _, f := range collectTOMLFields(reflect.TypeOf(Config{}), "") {
		known[f] = true
	}
	for key := range ConfigDocs {
		if !known[key] {
			t.Errorf("ConfigDocs has entry %q for a field that does not exist", key)
		}
	}
}

// collectTOMLFields recursively walks a struct type and returns the
// dot-separated TOML key path for every tagged field.
func collectTOMLFields(typ reflect.Type, prefix string) []string {
	var fields []string
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("toml")
		if tag == "" || tag == "-" {
			continue
		}
		if idx := strings.Index(tag, ","); idx != -1 {
			tag = tag[:idx]
		}
		path := tag
		if prefix != "" {
			path = prefix + "." + tag
		}
		if f.Type.Kind() == reflect.Struct {
			fields = append(fields, collectTOMLFields(f.Type, path)...)
		} else {
			fields = append(fields, path)
		}
	}
	return fields
}

// ///////////////////////////////////////////////
// Marshal field order
// ///////////////////////////////////////////////

func TestConfigMarshalFieldOrder(t *testing.T) {
	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(DefaultConfig()); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := buf.String()

	order := []string{"version", "[discord]", "[presence]", "[timer]", "[scheduler]", "[history]", "[log]"}
	for i := 1; i < len(order); i++ {
		before, after := order[i-1], order[i]
		bIdx, aIdx := strings.Index(out, before), strings.Index(out, after)
		if bIdx < 0 || aIdx < 0 || bIdx > aIdx {
			t.Errorf("expected %q before %q in marshaled output", before, after)
		}
	}
}

// ///////////////////////////////////////////////
// Config.Save round-trip
// ///////////////////////////////////////////////

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Discord.AppID = "42"
	cfg.History.Exclude = []string{"secret*"}
	cfg.Presence.Buttons = []ButtonConfig{{Label: "Site", URL: "https://example.com"}}

	path := filepath.Join(dir, paths.ConfigFile)
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}
