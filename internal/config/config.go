// Package config loads and validates the manimforge configuration.
package config

import (
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server" split_words:"true"`
	Render    RenderConfig    `yaml:"render" json:"render" split_words:"true"`
	Retention RetentionConfig `yaml:"retention" json:"retention" split_words:"true"`
	Database  DatabaseConfig  `yaml:"database" json:"database" split_words:"true"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging" split_words:"true"`
	Generator GeneratorConfig `yaml:"generator" json:"generator" split_words:"true"`
	Projects  ProjectsConfig  `yaml:"projects" json:"projects" split_words:"true"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics" split_words:"true"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host" split_words:"true"`
	Port            int           `yaml:"port" json:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" split_words:"true"`
	MaxRequestBytes int64         `yaml:"max_request_bytes" json:"max_request_bytes" split_words:"true"`
	EnableCORS      bool          `yaml:"enable_cors" json:"enable_cors" split_words:"true"`
}

// RenderConfig holds the scene pipeline configuration
type RenderConfig struct {
	Image           string `yaml:"image" json:"image" split_words:"true"`
	DockerfileDir   string `yaml:"dockerfile_dir" json:"dockerfile_dir" split_words:"true"`
	Dockerfile      string `yaml:"dockerfile" json:"dockerfile" split_words:"true"`
	TempDir         string `yaml:"temp_dir" json:"temp_dir" split_words:"true"`
	OutputDir       string `yaml:"output_dir" json:"output_dir" split_words:"true"`
	URLPrefix       string `yaml:"url_prefix" json:"url_prefix" split_words:"true"`
	Quality         string `yaml:"quality" json:"quality" split_words:"true"`
	FFmpegPath      string `yaml:"ffmpeg_path" json:"ffmpeg_path" split_words:"true"`
	NetworkDisabled bool   `yaml:"network_disabled" json:"network_disabled" split_words:"true"`
	// MemoryLimitMB caps each render container; 0 means unlimited.
	MemoryLimitMB int64 `yaml:"memory_limit_mb" json:"memory_limit_mb" split_words:"true"`
	// CPULimit is a fractional CPU count; 0 means unlimited.
	CPULimit             float64       `yaml:"cpu_limit" json:"cpu_limit" split_words:"true"`
	SceneTimeout         time.Duration `yaml:"scene_timeout" json:"scene_timeout" split_words:"true"`
	MaxConcurrentBatches int           `yaml:"max_concurrent_batches" json:"max_concurrent_batches" split_words:"true"`
	QueueSize            int           `yaml:"queue_size" json:"queue_size" split_words:"true"`
	Thumbnails           bool          `yaml:"thumbnails" json:"thumbnails" split_words:"true"`
	ThumbnailQuality     int           `yaml:"thumbnail_quality" json:"thumbnail_quality" split_words:"true"`
	ThumbnailWidth       int           `yaml:"thumbnail_width" json:"thumbnail_width" split_words:"true"`
}

// RetentionConfig controls artifact and history expiry
type RetentionConfig struct {
	Enabled  bool          `yaml:"enabled" json:"enabled" split_words:"true"`
	Schedule string        `yaml:"schedule" json:"schedule" split_words:"true"`
	MaxAge   time.Duration `yaml:"max_age" json:"max_age" split_words:"true"`
}

// DatabaseConfig holds history database configuration
type DatabaseConfig struct {
	Type       string `yaml:"type" json:"type" split_words:"true"`
	Path       string `yaml:"path" json:"path" split_words:"true"`
	DSN        string `yaml:"dsn" json:"dsn" envconfig:"DATABASE_URL"`
	LogQueries bool   `yaml:"log_queries" json:"log_queries" split_words:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" json:"level" envconfig:"LOG_LEVEL"`
	Format       string `yaml:"format" json:"format" envconfig:"LOG_FORMAT"`
	Output       string `yaml:"output" json:"output" split_words:"true"`
	EnableColors bool   `yaml:"enable_colors" json:"enable_colors" split_words:"true"`
}

// GeneratorConfig configures the scene source generator
type GeneratorConfig struct {
	Provider       string        `yaml:"provider" json:"provider" split_words:"true"`
	Model          string        `yaml:"model" json:"model" split_words:"true"`
	APIKey         string        `yaml:"api_key" json:"-" envconfig:"GEMINI_API_KEY"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" split_words:"true"`
	RequestsPerMin int           `yaml:"requests_per_minute" json:"requests_per_minute" split_words:"true"`
}

// ProjectsConfig configures the project store
type ProjectsConfig struct {
	Backend       string        `yaml:"backend" json:"backend" split_words:"true"`
	RedisAddr     string        `yaml:"redis_addr" json:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" json:"-" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" json:"redis_db" split_words:"true"`
	KeyPrefix     string        `yaml:"key_prefix" json:"key_prefix" split_words:"true"`
	TTL           time.Duration `yaml:"ttl" json:"ttl" split_words:"true"`
}

// MetricsConfig controls the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" split_words:"true"`
	Path    string `yaml:"path" json:"path" split_words:"true"`
}

// DefaultConfig returns a configuration with all default values set
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // renders outlive any fixed write deadline
			ShutdownTimeout: 30 * time.Second,
			MaxRequestBytes: 4 << 20,
			EnableCORS:      true,
		},
		Render: RenderConfig{
			Image:                "manim-platform",
			DockerfileDir:        "docker",
			Dockerfile:           "Dockerfile",
			TempDir:              "tmp",
			OutputDir:            "public/videos",
			URLPrefix:            "/videos",
			Quality:              "m",
			FFmpegPath:           "ffmpeg",
			NetworkDisabled:      true,
			MemoryLimitMB:        2048,
			CPULimit:             2,
			SceneTimeout:         5 * time.Minute,
			MaxConcurrentBatches: 2,
			QueueSize:            16,
			Thumbnails:           true,
			ThumbnailQuality:     80,
			ThumbnailWidth:       480,
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "@every 1h",
			MaxAge:   72 * time.Hour,
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: "data/manimforge.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Generator: GeneratorConfig{
			Provider:       "none",
			Model:          "gemini-1.5-flash",
			Timeout:        60 * time.Second,
			RequestsPerMin: 30,
		},
		Projects: ProjectsConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			KeyPrefix: "manimforge:",
			TTL:       30 * 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
