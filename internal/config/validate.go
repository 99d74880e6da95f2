package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	supportedImageFormats = []string{"webp", "jpg", "png", "avif"}
	supportedVideoFormats = []string{"mp4", "webm"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateTasks(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.SessionSecret == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mediaferry/config.toml"
		}
		return fmt.Errorf("server.session_secret is required. Set MEDIAFERRY_SESSION_SECRET env var or edit %s (create with 'mediaferry config init')", defaultPath)
	}
	if c.Server.Bind == c.Server.AdminBind {
		return errors.New("server.bind and server.admin_bind must differ")
	}
	if c.Server.ChunkSize < 1024 {
		return errors.New("server.chunk_size must be at least 1024 bytes")
	}
	if c.Server.MaxUploadMiB <= 0 {
		return errors.New("server.max_upload_mib must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendFS:
		if c.Storage.Root == "" {
			return errors.New("storage.root must be set for the fs backend")
		}
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the s3 backend")
		}
		if (c.Storage.AccessKeyID == "") != (c.Storage.SecretKey == "") {
			return errors.New("storage.access_key_id and storage.secret_access_key must be set together")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported (use %q or %q)", c.Storage.Backend, StorageBackendFS, StorageBackendS3)
	}
	return nil
}

func (c *Config) validateTasks() error {
	if err := ensurePositiveMap(map[string]int{
		"tasks.image_concurrency":  c.Tasks.ImageConcurrency,
		"tasks.video_concurrency":  c.Tasks.VideoConcurrency,
		"tasks.upload_concurrency": c.Tasks.UploadConcurrency,
		"tasks.attempts":           c.Tasks.Attempts,
		"tasks.poll_interval":      c.Tasks.PollInterval,
		"tasks.stale_temp_hours":   c.Tasks.StaleTempHours,
	}); err != nil {
		return err
	}
	if c.Tasks.BackoffSeconds < 0 {
		return errors.New("tasks.backoff_seconds must not be negative")
	}
	if c.Tasks.HeartbeatInterval <= 0 {
		return errors.New("tasks.heartbeat_interval must be positive")
	}
	if c.Tasks.HeartbeatTimeout <= c.Tasks.HeartbeatInterval {
		return errors.New("tasks.heartbeat_timeout must be greater than tasks.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if !slices.Contains(supportedImageFormats, c.Encoding.ImageFormat) {
		return fmt.Errorf("encoding.image_format %q is not supported", c.Encoding.ImageFormat)
	}
	if !slices.Contains(supportedVideoFormats, c.Encoding.VideoFormat) {
		return fmt.Errorf("encoding.video_format %q is not supported", c.Encoding.VideoFormat)
	}
	if c.Encoding.ImageQuality < 1 || c.Encoding.ImageQuality > 100 {
		return errors.New("encoding.image_quality must be between 1 and 100")
	}
	if c.Encoding.VideoCRF < 0 || c.Encoding.VideoCRF > 51 {
		return errors.New("encoding.video_crf must be between 0 and 51")
	}
	if c.Encoding.PosterOffset < 0 {
		return errors.New("encoding.poster_offset must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be an http(s) URL", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
