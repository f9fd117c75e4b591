package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"videorelay/internal/model"

	"github.com/joho/godotenv"
)

// Load loads configuration from environment variables
func Load() *model.Config {
	godotenv.Load()

	return &model.Config{
		Server: model.ServerConfig{
			Port:    getEnvInt("SERVER_PORT", 8080),
			Host:    getEnvStr("SERVER_HOST", "0.0.0.0"),
			Timeout: getEnvInt("SERVER_TIMEOUT", 0),
		},
		Storage: model.StorageConfig{
			TempRoot:        getEnvStr("TEMP_ROOT", "/tmp/youtube"),
			ResetOnStart:    getEnvBool("TEMP_RESET_ON_START", true),
			ChunkSize:       getEnvInt("TRANSFER_CHUNK_SIZE", 8192),
			CleanupInterval: getEnvInt("STORAGE_CLEANUP_INTERVAL", 600),
			OrphanTTL:       getEnvInt("ORPHAN_TTL_SECONDS", 21600),
		},
		Backend: model.BackendConfig{
			Executable:        getEnvStr("YTDLP_PATH", "yt-dlp"),
			CookiesFile:       getEnvStr("COOKIES_FILE", "cookies.txt"),
			ExtractTimeout:    getEnvDuration("EXTRACT_TIMEOUT", 60*time.Second),
			SourceURLTemplate: getEnvStr("SOURCE_URL_TEMPLATE", "https://www.youtube.com/watch?v=%s"),
		},
		Logging: model.LoggingConfig{
			Level:    getEnvStr("LOG_LEVEL", "info"),
			FilePath: getEnvStr("LOG_FILE", "./log/app.log"),
		},
		Security: model.SecurityConfig{
			AltAllowedHosts: splitList(getEnvStr("ALT_ALLOWED_HOSTS", "twitter.com,x.com")),
		},
		Progress: model.ProgressConfig{
			Enabled: getEnvBool("PROGRESS_ENABLED", true),
			Refresh: getEnvDuration("PROGRESS_REFRESH", 100*time.Millisecond),
		},
		RateLimit: model.RateLimitConfig{
			Enabled:           getEnvBool("RATELIMIT_ENABLED", true),
			RequestsPerMinute: getEnvInt("RATELIMIT_REQUESTS_PER_MINUTE", 60),
			BurstSize:         getEnvInt("RATELIMIT_BURST_SIZE", 10),
			CleanupInterval:   getEnvInt("RATELIMIT_CLEANUP_INTERVAL", 1800),
		},
		Metrics: model.MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvStr("METRICS_PATH", "/metrics"),
		},
	}
}

// splitList parses a comma-separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvStr(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	valStr := getEnvStr(key, "")
	if val, err := strconv.Atoi(valStr); err == nil {
		return val
	}
	return defaultVal
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	valStr := getEnvStr(key, "")
	if valStr == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(valStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	valStr := strings.ToLower(getEnvStr(key, ""))
	if valStr == "true" || valStr == "1" || valStr == "yes" {
		return true
	}
	if valStr == "false" || valStr == "0" || valStr == "no" {
		return false
	}
	return defaultVal
}
