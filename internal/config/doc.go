// Package config loads, normalizes, and validates minutes configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// MINUTES_API_KEY. The Config type centralizes every knob the daemon and CLI
// need, so upload directories, queue settings, and external API credentials
// are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
