package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := config.LoadConfig()

	assert.Equal(t, "8080", cfg.ApiServicePort)
	assert.Equal(t, "50052", cfg.ApiGrpcPort)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.Equal(t, 255, cfg.MaxFilenameLength)
	assert.Equal(t, 30*time.Second, cfg.AITimeoutDuration())
	assert.Equal(t, 10*time.Second, cfg.DBConnectTimeoutDuration())
	assert.Equal(t, int64(900), cfg.ResetTokenTTL)
	assert.Equal(t, int64(100), cfg.DailyMessageLimit)
	assert.Equal(t, 50, cfg.SessionListLimit)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("API_SERVICE_PORT", "9090")
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("AI_TIMEOUT", "5")
	t.Setenv("COOKIE_SECURE", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("APP_BASE_URL", "https://medassist.example/")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := config.LoadConfig()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "9090", cfg.ApiServicePort)
	assert.Equal(t, config.AIProviderOpenAI, cfg.AIProvider)
	assert.Equal(t, 5*time.Second, cfg.AITimeoutDuration())
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "https://medassist.example", cfg.AppBaseURL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_InvalidValuesUseDefaults(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "invalid")
	t.Setenv("COOKIE_SECURE", "maybe")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg := config.LoadConfig()

	assert.Equal(t, int64(10*1024*1024), cfg.MaxFileSize)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestConfig_NonPositiveTimeoutsFallBack(t *testing.T) {
	cfg := &config.Config{AITimeout: 0, OCRTimeout: -1, DBConnectTimeout: 0}

	assert.Equal(t, 30*time.Second, cfg.AITimeoutDuration())
	assert.Equal(t, 30*time.Second, cfg.OCRTimeoutDuration())
	assert.Equal(t, 10*time.Second, cfg.DBConnectTimeoutDuration())
}
