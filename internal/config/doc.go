// Package config loads, normalizes, and validates mediaferry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MEDIAFERRY_SESSION_SECRET and AWS_REGION. The Config type centralizes every
// knob the daemon and CLI need: the transfer endpoint, the blob store backend,
// worker pool sizes and the transcoder formats.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
