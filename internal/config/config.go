package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Library  LibraryConfig  `mapstructure:"library"  validate:"required"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains the single-operator authentication settings.
// This is a personal service: one operator, whose bcrypt password hash is
// part of the configuration rather than a user table.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	OperatorPasswordHash string `mapstructure:"operator_password_hash" validate:"required"`
}

// WorkerConfig contains the task executor settings: worker loop count,
// idle poll cadence and the retry/backoff policy.
type WorkerConfig struct {
	Count         int           `mapstructure:"count"          validate:"required,gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval"  validate:"min=0"`
	MaxRetries    int           `mapstructure:"max_retries"    validate:"min=0"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"   validate:"min=0"`
	BackoffCap    time.Duration `mapstructure:"backoff_cap"    validate:"min=0"`
	BackoffJitter float64       `mapstructure:"backoff_jitter" validate:"gte=0,lte=1"`
}

// LibraryConfig locates the content-addressed media library on disk.
type LibraryConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

// GeminiConfig contains the settings for the Gemini-backed captioner.
// When the API key is empty, captioning falls back to a no-op backend so the
// rest of the pipeline keeps working.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}
