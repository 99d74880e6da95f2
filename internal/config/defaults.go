package config

const (
	StorageBackendFS = "fs"
	StorageBackendS3 = "s3"
)

const (
	defaultStagingDir        = "~/.local/share/mediaferry/staging"
	defaultDataDir           = "~/.local/share/mediaferry"
	defaultLogDir            = "~/.local/share/mediaferry/logs"
	defaultStorageRoot       = "~/.local/share/mediaferry/media"
	defaultBind              = "127.0.0.1:7490"
	defaultAdminBind         = "127.0.0.1:7491"
	defaultSessionCookie     = "session-token"
	defaultChunkSize         = 1 << 20
	defaultMaxUploadMiB      = 2048
	defaultImageConcurrency  = 4
	defaultVideoConcurrency  = 1
	defaultUploadConcurrency = 4
	defaultTaskAttempts      = 3
	defaultBackoffSeconds    = 10
	defaultPollInterval      = 2
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultStaleTempHours    = 48
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultImageFormat       = "webp"
	defaultVideoFormat       = "mp4"
	defaultImageQuality      = 80
	defaultVideoCRF          = 23
	defaultPosterOffset      = 1.0
	defaultNtfyTimeout       = 10
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
		},
		Server: Server{
			Bind:          defaultBind,
			AdminBind:     defaultAdminBind,
			SessionCookie: defaultSessionCookie,
			ChunkSize:     defaultChunkSize,
			MaxUploadMiB:  defaultMaxUploadMiB,
		},
		Storage: Storage{
			Backend: StorageBackendFS,
			Root:    defaultStorageRoot,
		},
		Tasks: Tasks{
			ImageConcurrency:  defaultImageConcurrency,
			VideoConcurrency:  defaultVideoConcurrency,
			UploadConcurrency: defaultUploadConcurrency,
			Attempts:          defaultTaskAttempts,
			BackoffSeconds:    defaultBackoffSeconds,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			StaleTempHours:    defaultStaleTempHours,
		},
		Encoding: Encoding{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			ImageFormat:   defaultImageFormat,
			VideoFormat:   defaultVideoFormat,
			ImageQuality:  defaultImageQuality,
			VideoCRF:      defaultVideoCRF,
			PosterOffset:  defaultPosterOffset,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
