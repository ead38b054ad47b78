// Package cordpush provides embedded assets for the cordpush binary.
//
// The root package exists solely to embed config.default.toml via
// [DefaultConfigTOML], which is written to the data directory on first run.
package cordpush

import _ "embed"

// DefaultConfigTOML holds the raw bytes of config.default.toml.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
