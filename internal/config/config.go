package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir string `toml:"staging_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Server contains the transfer endpoint and admin API settings.
type Server struct {
	Bind           string   `toml:"bind"`
	AdminBind      string   `toml:"admin_bind"`
	APIToken       string   `toml:"api_token"`
	SessionSecret  string   `toml:"session_secret"`
	SessionCookie  string   `toml:"session_cookie"`
	ChunkSize      int      `toml:"chunk_size"`
	MaxUploadMiB   int      `toml:"max_upload_mib"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Storage selects and configures the final blob store.
type Storage struct {
	Backend        string `toml:"backend"`
	Root           string `toml:"root"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	Region         string `toml:"region"`
	Endpoint       string `toml:"endpoint"`
	ForcePathStyle bool   `toml:"force_path_style"`
	AccessKeyID    string `toml:"access_key_id"`
	SecretKey      string `toml:"secret_access_key"`
	Overwrite      bool   `toml:"overwrite"`
}

// Tasks contains worker pool and retry settings for post-upload processing.
type Tasks struct {
	ImageConcurrency  int `toml:"image_concurrency"`
	VideoConcurrency  int `toml:"video_concurrency"`
	UploadConcurrency int `toml:"upload_concurrency"`
	Attempts          int `toml:"attempts"`
	BackoffSeconds    int `toml:"backoff_seconds"`
	PollInterval      int `toml:"poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
	StaleTempHours    int `toml:"stale_temp_hours"`
}

// Encoding contains transcoder settings.
type Encoding struct {
	FFmpegBinary  string  `toml:"ffmpeg_binary"`
	FFprobeBinary string  `toml:"ffprobe_binary"`
	ImageFormat   string  `toml:"image_format"`
	VideoFormat   string  `toml:"video_format"`
	ImageQuality  int     `toml:"image_quality"`
	VideoCRF      int     `toml:"video_crf"`
	PosterOffset  float64 `toml:"poster_offset"`
}

// Notifications configures ntfy delivery of task outcomes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	OnComplete     bool   `toml:"on_complete"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediaferry.
//
// Configuration sections by subsystem:
//   - Paths: staging, data and log directories
//   - Server: websocket bind, admin API and session verification
//   - Storage: final blob store backend
//   - Tasks: worker concurrency, retry attempts and backoff
//   - Encoding: ffmpeg binaries and output formats
//   - Notifications: ntfy topic for task outcomes
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Server        Server        `toml:"server"`
	Storage       Storage       `toml:"storage"`
	Tasks         Tasks         `toml:"tasks"`
	Encoding      Encoding      `toml:"encoding"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaferry/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("MEDIAFERRY_CONFIG"))
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaferry.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The fs storage root is created too; s3 has nothing local to prepare.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StagingDir, c.Paths.DataDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageBackendFS {
		dirs = append(dirs, c.Storage.Root)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the location of the task database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "tasks.db")
}

// CatalogDir returns the directory backing the entity and user catalog.
func (c *Config) CatalogDir() string {
	return filepath.Join(c.Paths.DataDir, "catalog")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "mediaferryd.lock")
}

// DaemonLogPath returns the daemon log file path.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "mediaferryd.log")
}

// PollInterval returns the worker poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Tasks.PollInterval) * time.Second
}

// Backoff returns the base retry delay for failed tasks.
func (c *Config) Backoff() time.Duration {
	return time.Duration(c.Tasks.BackoffSeconds) * time.Second
}

// MaxUploadBytes returns the per-upload buffer ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
