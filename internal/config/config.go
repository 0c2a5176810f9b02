package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AI provider identifiers accepted in AI_PROVIDER
const (
	AIProviderGemini  = "gemini"
	AIProviderOpenAI  = "openai"
	AIProviderOffline = "offline"
)

type Config struct {
	AppEnv             string
	LogLevel           slog.Level
	ApiServicePort     string
	ApiGrpcPort        string
	AppBaseURL         string
	CORSAllowedOrigins []string
	MaxFileSize        int64
	MaxFilenameLength  int
	AIProvider         string
	GeminiAPIKey       string
	GeminiModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	AITimeout          int64 // seconds
	OCRAPIURL          string
	OCRAPIKey          string
	OCRTimeout         int64 // seconds
	PostgreSQLHost     string
	PostgreSQLPort     int64
	PostgreSQLUser     string
	PostgreSQLPassword string
	PostgreSQLDatabase string
	DBConnectTimeout   int64 // seconds
	JWTSecret          string
	SessionTokenTTL    int64 // seconds
	ResetTokenTTL      int64 // seconds
	CookieSecure       bool
	RedisHost          string
	RedisPort          int64
	RedisPassword      string
	RedisDB            int64
	ChatHistoryTTL     int64 // seconds
	DailyMessageLimit  int64
	SessionListLimit   int
	SendGridAPIKey     string
	SendGridBaseURL    string
	MailFromEmail      string
	MailFromName       string
}

func LoadConfig() *Config {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),                               // Default development
		LogLevel:           getLogLevel(),                                                  // Default INFO
		ApiServicePort:     getEnv("API_SERVICE_PORT", "8080"),                             // Default 8080
		ApiGrpcPort:        getEnv("API_GRPC_PORT", "50052"),                               // Default 50052 (health)
		AppBaseURL:         strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		MaxFileSize:        getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024),                   // Default 10 MB
		MaxFilenameLength:  int(getEnvAsInt64("MAX_FILENAME_LENGTH", 255)),                 // Default 255
		AIProvider:         strings.ToLower(getEnv("AI_PROVIDER", AIProviderGemini)),       // gemini | openai | offline
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),                                   // Empty selects offline client
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),                     // Default gemini-1.5-flash
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),                                   // Empty selects offline client
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),                          // Default gpt-4o-mini
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),                                  // Empty uses api.openai.com
		AITimeout:          getEnvAsInt64("AI_TIMEOUT", 30),                                // Default 30 seconds
		OCRAPIURL:          getEnv("OCR_API_URL", "https://api.ocr.space"),                 // Default OCR.space
		OCRAPIKey:          getEnv("OCR_API_KEY", "helloworld"),                            // OCR.space public demo key
		OCRTimeout:         getEnvAsInt64("OCR_TIMEOUT", 30),                               // Default 30 seconds
		PostgreSQLHost:     getEnv("POSTGRESQL_HOST", "db"),                                // Default db
		PostgreSQLPort:     getEnvAsInt64("POSTGRESQL_PORT", 5432),                         // Default 5432
		PostgreSQLUser:     getEnv("POSTGRESQL_USER", "medassist_user"),                    // Default user
		PostgreSQLPassword: getEnv("POSTGRESQL_PASSWORD", "medassist_password"),            // Default password
		PostgreSQLDatabase: getEnv("POSTGRESQL_DATABASE", "medassist_db"),                  // Default database name
		DBConnectTimeout:   getEnvAsInt64("DB_CONNECT_TIMEOUT", 10),                        // Default 10 seconds
		JWTSecret:          getEnv("JWT_SECRET", "medassist_secret"),                       // Default secret key
		SessionTokenTTL:    getEnvAsInt64("SESSION_TOKEN_EXPIRATION", 7*24*3600),           // Default 7 days
		ResetTokenTTL:      getEnvAsInt64("RESET_TOKEN_EXPIRATION", 900),                   // Default 15 minutes
		CookieSecure:       getEnvAsBool("COOKIE_SECURE", false),                           // Default false
		RedisHost:          getEnv("REDIS_HOST", "redis"),                                  // Default redis
		RedisPort:          getEnvAsInt64("REDIS_PORT", 6379),                              // Default 6379
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),                                   // Default empty
		RedisDB:            getEnvAsInt64("REDIS_DATABASE", 0),                             // Default 0
		ChatHistoryTTL:     getEnvAsInt64("CHAT_HISTORY_TTL", 3600),                        // Default 1 hour
		DailyMessageLimit:  getEnvAsInt64("DAILY_MESSAGE_LIMIT", 100),                      // <=0 means unlimited
		SessionListLimit:   int(getEnvAsInt64("SESSION_LIST_LIMIT", 50)),                   // Default 50
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),                                 // Empty logs emails instead
		SendGridBaseURL:    getEnv("SENDGRID_BASE_URL", "https://api.sendgrid.com"),        // Default SendGrid
		MailFromEmail:      getEnv("MAIL_FROM_EMAIL", "no-reply@medassist.local"),          // Default sender
		MailFromName:       getEnv("MAIL_FROM_NAME", "MedAssist"),                          // Default sender name
	}
}

// AITimeoutDuration returns the per-call deadline for generative AI requests
func (c *Config) AITimeoutDuration() time.Duration {
	return secondsOr(c.AITimeout, 30)
}

// OCRTimeoutDuration returns the per-call deadline for OCR requests
func (c *Config) OCRTimeoutDuration() time.Duration {
	return secondsOr(c.OCRTimeout, 30)
}

// DBConnectTimeoutDuration returns the deadline for establishing the database connection
func (c *Config) DBConnectTimeoutDuration() time.Duration {
	return secondsOr(c.DBConnectTimeout, 10)
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return strings.ToLower(c.AppEnv) == "production"
}

func secondsOr(value, fallback int64) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return fallback
}

func getEnvAsList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getLogLevel() slog.Level {
	levelStr := getEnv("LOG_LEVEL", "INFO")

	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
