// Package config loads, normalizes, and validates socksd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and centralizes every knob the daemon and CLI
// need: transport selection, worker pool sizing, per-client rate limits,
// journal persistence, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical transport names, and clear validation errors.
package config
