// Package encoding drives ffmpeg to derive the preview formats of uploaded
// media: still images, web video and a poster frame for videos.
//
// The Runner reports video progress parsed from ffmpeg's -progress stream,
// validates that every output landed on disk, and tags failures with the
// services error markers so the workflow can decide whether to retry.
package encoding
