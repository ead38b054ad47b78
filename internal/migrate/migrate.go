// Package migrate applies sequential schema migrations to on-disk data,
// upgrading from one version to the next.
//
// Each on-disk format owns a [Registry]: [Config] for config.toml and
// [Settings] for settings.json. Packages register their upgrades from init
// functions so the registries stay free of format-specific code.
package migrate

import (
	"fmt"
	"log/slog"
	"slices"
)

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Migration upgrades on-disk data from the prior version to Version.
type Migration struct {
	// Version is the schema version this migration produces.
	Version int
	// Description is a short human-readable label for log output.
	Description string
	// Upgrade transforms the raw file content.
	Upgrade func(data []byte) ([]byte, error)
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Run applies migrations in version order, skipping those at or below
// fromVersion. It returns the transformed data and the last version reached;
// on error the version is the last one that succeeded.
func Run(data []byte, fromVersion int, migrations []Migration) ([]byte, int, error) {
	sorted := slices.Clone(migrations)
	slices.SortFunc(sorted, func(a, b Migration) int { return a.Version - b.Version })

	version := fromVersion
	for _, m := range sorted {
		if m.Version <= version {
			continue
		}
		slog.Info("applying migration", "version", m.Version, "description", m.Description)
		out, err := m.Upgrade(data)
		if err != nil {
			return nil, version, fmt.Errorf("migration to v%d failed: %w", m.Version, err)
		}
		data, version = out, m.Version
	}
	return data, version, nil
}

// NeedsMigration reports whether a file at fileVersion differs from
// currentVersion or has a registered migration newer than it.
func NeedsMigration(fileVersion, currentVersion int, migrations []Migration) bool {
	if fileVersion != currentVersion {
		return true
	}
	return slices.ContainsFunc(migrations, func(m Migration) bool { return m.Version > fileVersion })
}
