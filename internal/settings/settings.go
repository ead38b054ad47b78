// Package settings persists per-user state between runs: the last identity,
// the recent state/details values and the auto-update preferences.
//
// The file is a flat JSON object written atomically after every mutation.
// Loading never fails: missing keys are backfilled from defaults and
// unreadable content is set aside and replaced with defaults.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"sync"

	"tools.zach/dev/cordpush/internal/atomicfile"
	"tools.zach/dev/cordpush/internal/history"
	"tools.zach/dev/cordpush/internal/migrate"
)

// DefaultUpdateInterval is the auto-update period in seconds for fresh settings.
const DefaultUpdateInterval = 15.0

// CorruptSuffix is appended to a settings file that could not be parsed
// before it is replaced with defaults.
const CorruptSuffix = ".corrupted"

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Settings is the on-disk schema of settings.json.
type Settings struct {
	// Version is the schema version, used for migration.
	Version int `json:"$version"`
	// Identity is the application ID of the last successful connection.
	Identity string `json:"identity"`
	// StateHistory holds recent state values, most recent first.
	StateHistory []string `json:"state_history"`
	// DetailsHistory holds recent details values, most recent first.
	DetailsHistory []string `json:"details_history"`
	// UpdateInterval is the auto-update period in seconds.
	UpdateInterval float64 `json:"update_interval"`
	// HistoryLimit caps each history list.
	HistoryLimit int `json:"history_limit"`
	// AutoUpdateEnabled records whether the timer auto-advances.
	AutoUpdateEnabled bool `json:"auto_update_enabled"`
}

// Defaults returns fresh settings.
func Defaults() Settings {
	return Settings{
		Version:        migrate.Settings.CurrentVersion,
		StateHistory:   []string{},
		DetailsHistory: []string{},
		UpdateInterval: DefaultUpdateInterval,
		HistoryLimit:   history.DefaultLimit,
	}
}

// backfill replaces missing or out-of-range values with those from def.
func (s *Settings) backfill(def Settings) {
	if s.StateHistory == nil {
		s.StateHistory = []string{}
	}
	if s.DetailsHistory == nil {
		s.DetailsHistory = []string{}
	}
	if s.UpdateInterval <= 0 || math.IsNaN(s.UpdateInterval) || math.IsInf(s.UpdateInterval, 0) {
		s.UpdateInterval = def.UpdateInterval
	}
	if s.HistoryLimit < 1 {
		s.HistoryLimit = def.HistoryLimit
	}
	s.Version = migrate.Settings.CurrentVersion
}

// ///////////////////////////////////////////////
// Migrations
// ///////////////////////////////////////////////

func init() {
	migrate.Settings.Register(migrate.Migration{
		Version:     2,
		Description: "rename client_id to identity",
		Upgrade:     renameClientID,
	})
}

// renameClientID moves the v1 "client_id" key to "identity" unless an
// identity is already present.
func renameClientID(data []byte) ([]byte, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	if id, ok := m["client_id"]; ok {
		if _, has := m["identity"]; !has {
			m["identity"] = id
		}
		delete(m, "client_id")
	}
	m["$version"] = json.RawMessage("2")
	return json.Marshal(m)
}

// PeekVersion reads just the $version field. A missing or zero version is
// reported as 1, the unversioned layout.
func PeekVersion(data []byte) (int, error) {
	var v struct {
		Version int `json:"$version"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	if v.Version == 0 {
		return 1, nil
	}
	return v.Version, nil
}

// ///////////////////////////////////////////////
// Loading
// ///////////////////////////////////////////////

// Decode parses settings content over def. It returns an error for content
// that is not a settings object; callers recover by using def instead.
func Decode(data []byte, def Settings) (Settings, error) {
	version, err := PeekVersion(data)
	if err != nil {
		return def, fmt.Errorf("parse settings: %w", err)
	}

	if version <= migrate.Settings.CurrentVersion && migrate.Settings.NeedsMigration(version) {
		if data, _, err = migrate.Settings.Run(data, version); err != nil {
			return def, fmt.Errorf("migrate settings: %w", err)
		}
	} else if version > migrate.Settings.CurrentVersion {
		slog.Warn("settings written by a newer version, reading known keys only", "version", version)
	}

	s := def
	s.StateHistory = slices.Clone(def.StateHistory)
	s.DetailsHistory = slices.Clone(def.DetailsHistory)
	if err := json.Unmarshal(data, &s); err != nil {
		return def, fmt.Errorf("parse settings: %w", err)
	}
	s.backfill(def)
	return s, nil
}

// Load reads path and returns a ready Store. A missing file yields def.
// Unparseable content is copied to path+[CorruptSuffix], logged and
// replaced with def; the error is never returned. Files needing migration
// are backed up and rewritten in the current schema.
func Load(path string, def Settings) *Store {
	def.backfill(Defaults())
	st := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		st.reset(def)
		return st
	case err != nil:
		slog.Warn("failed to read settings, using defaults", "path", path, "error", err)
		st.reset(def)
		return st
	}

	version, _ := PeekVersion(data)
	s, err := Decode(data, def)
	if err != nil {
		slog.Warn("discarding unreadable settings", "path", path, "error", err)
		if wErr := atomicfile.Write(path+CorruptSuffix, data, 0o600); wErr != nil {
			slog.Warn("failed to keep corrupted settings copy", "error", wErr)
		}
		st.reset(def)
		return st
	}

	st.reset(s)
	if version != 0 && version < migrate.Settings.CurrentVersion {
		if err := atomicfile.Backup(path); err != nil {
			slog.Warn("failed to back up settings before migration", "error", err)
		}
		if err := st.Save(); err != nil {
			slog.Warn("failed to save migrated settings", "error", err)
		}
	}
	return st
}

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store is the in-memory copy of settings.json. Every mutating method saves
// the whole file synchronously. Store is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	path   string
	data   Settings
	caches map[history.Field]*history.Cache
}

// reset replaces the in-memory state. The caller must hold mu or own st.
func (st *Store) reset(s Settings) {
	st.data = s
	st.caches = map[history.Field]*history.Cache{
		history.FieldState:   history.New(s.StateHistory, s.HistoryLimit),
		history.FieldDetails: history.New(s.DetailsHistory, s.HistoryLimit),
	}
	st.syncHistory()
}

// syncHistory copies cache contents into data. The caller must hold mu.
func (st *Store) syncHistory() {
	st.data.StateHistory = st.caches[history.FieldState].Entries()
	st.data.DetailsHistory = st.caches[history.FieldDetails].Entries()
}

// Path returns the settings file path.
func (st *Store) Path() string { return st.path }

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.data
	s.StateHistory = slices.Clone(st.data.StateHistory)
	s.DetailsHistory = slices.Clone(st.data.DetailsHistory)
	return s
}

// Identity returns the saved identity.
func (st *Store) Identity() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.data.Identity
}

// Record promotes value in field's history and saves when the list changed.
// Blank values are a no-op without a write.
func (st *Store) Record(field history.Field, value string) ([]string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	c, err := st.cache(field)
	if err != nil {
		return nil, err
	}
	entries, changed := c.Record(value)
	if !changed {
		return entries, nil
	}
	st.syncHistory()
	return entries, st.saveLocked()
}

// History returns field's values, most recent first.
func (st *Store) History(field history.Field) ([]string, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, err := st.cache(field)
	if err != nil {
		return nil, err
	}
	return c.Entries(), nil
}

// NextHistory returns the entry step positions from current in field's
// history, wrapping around.
func (st *Store) NextHistory(field history.Field, current string, step int) string {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, err := st.cache(field)
	if err != nil {
		return ""
	}
	return c.Next(current, step)
}

// ClearHistory empties field's history and saves.
func (st *Store) ClearHistory(field history.Field) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, err := st.cache(field)
	if err != nil {
		return err
	}
	if !c.Clear() {
		return nil
	}
	st.syncHistory()
	return st.saveLocked()
}

// SetIdentity saves id as the default identity.
func (st *Store) SetIdentity(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.data.Identity == id {
		return nil
	}
	st.data.Identity = id
	return st.saveLocked()
}

// SetPreferences saves the auto-update flag and interval. Non-positive
// intervals keep the current value.
func (st *Store) SetPreferences(auto bool, interval float64) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.data
	next.AutoUpdateEnabled = auto
	if interval > 0 && !math.IsInf(interval, 0) {
		next.UpdateInterval = interval
	}
	if next.AutoUpdateEnabled == st.data.AutoUpdateEnabled && next.UpdateInterval == st.data.UpdateInterval {
		return nil
	}
	st.data = next
	return st.saveLocked()
}

// SetHistoryLimit changes the cap on both history lists, truncating them.
func (st *Store) SetHistoryLimit(limit int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if limit < 1 {
		return fmt.Errorf("history limit must be >= 1, got %d", limit)
	}
	st.data.HistoryLimit = limit
	for _, c := range st.caches {
		c.SetLimit(limit)
	}
	st.syncHistory()
	return st.saveLocked()
}

// SetExclude installs glob patterns whose matches are never recorded.
func (st *Store) SetExclude(patterns []string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, c := range st.caches {
		if err := c.SetExclude(patterns); err != nil {
			return err
		}
	}
	return nil
}

// Save writes the settings file.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.saveLocked()
}

// saveLocked writes the settings file. The caller must hold mu.
func (st *Store) saveLocked() error {
	if err := atomicfile.WriteJSON(st.path, st.data, 0o600); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// cache returns field's history. The caller must hold mu.
func (st *Store) cache(field history.Field) (*history.Cache, error) {
	c, ok := st.caches[field]
	if !ok {
		return nil, fmt.Errorf("unknown history field %q", field)
	}
	return c, nil
}
