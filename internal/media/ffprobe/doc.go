// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe against a file; Result.Geometry maps the streams and
// container metadata onto the catalog's geometry record.
package ffprobe
