package model

import "time"

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Backend   BackendConfig
	Logging   LoggingConfig
	Security  SecurityConfig
	Progress  ProgressConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port    int
	Host    string
	Timeout int // seconds, 0 disables the write deadline
}

// StorageConfig holds temp storage configuration
type StorageConfig struct {
	TempRoot        string
	ResetOnStart    bool
	ChunkSize       int
	CleanupInterval int // seconds
	OrphanTTL       int // seconds a job directory may outlive its lease
}

// BackendConfig holds yt-dlp configuration
type BackendConfig struct {
	Executable        string
	CookiesFile       string
	ExtractTimeout    time.Duration
	SourceURLTemplate string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string
	FilePath string
}

// SecurityConfig holds request validation configuration
type SecurityConfig struct {
	AltAllowedHosts []string
}

// ProgressConfig holds console progress rendering configuration
type ProgressConfig struct {
	Enabled bool
	Refresh time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	BurstSize         int
	CleanupInterval   int // seconds
}

// MetricsConfig holds prometheus exposition configuration
type MetricsConfig struct {
	Enabled bool
	Path    string
}
