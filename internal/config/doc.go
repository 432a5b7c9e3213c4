// Package config loads, normalizes, and validates the TOML configuration
// used by the tailor CLI and its orchestrators.
package config
