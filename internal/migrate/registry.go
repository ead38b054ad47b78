package migrate

import "fmt"

// Registry holds the version and migrations for a single on-disk format.
// Each format gets its own instance so version numbers never collide.
type Registry struct {
	// Name labels the format in error messages (e.g. "settings").
	Name string
	// CurrentVersion is the latest schema version this registry targets.
	CurrentVersion int
	// Migrations is the list of versioned upgrades. Exported so tests can
	// swap it for a fixture list.
	Migrations []Migration
}

// Register adds a migration. It panics on a duplicate version or on a
// version above CurrentVersion, both of which are programming errors.
func (r *Registry) Register(m Migration) {
	if m.Version > r.CurrentVersion {
		panic(fmt.Sprintf("migrate: %s migration v%d exceeds current version %d", r.Name, m.Version, r.CurrentVersion))
	}
	for _, existing := range r.Migrations {
		if existing.Version == m.Version {
			panic(fmt.Sprintf("migrate: duplicate %s migration version %d (description: %q)", r.Name, m.Version, m.Description))
		}
	}
	r.Migrations = append(r.Migrations, m)
}

// NeedsMigration reports whether data at fileVersion must be upgraded.
func (r *Registry) NeedsMigration(fileVersion int) bool {
	return NeedsMigration(fileVersion, r.CurrentVersion, r.Migrations)
}

// Run upgrades data from fromVersion to the latest registered version.
// A file newer than CurrentVersion is rejected so an older binary never
// rewrites data it does not understand.
func (r *Registry) Run(data []byte, fromVersion int) ([]byte, int, error) {
	if fromVersion > r.CurrentVersion {
		return nil, fromVersion, fmt.Errorf("%s version %d is newer than supported version %d", r.Name, fromVersion, r.CurrentVersion)
	}
	return Run(data, fromVersion, r.Migrations)
}

// Config is the migration registry for config.toml files.
var Config = &Registry{Name: "config", CurrentVersion: 1}

// Settings is the migration registry for settings.json files. Version 1 is
// the unversioned layout that stored the identity under "client_id".
var Settings = &Registry{Name: "settings", CurrentVersion: 2}
