package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// TestConfig returns a config with the production defaults and the offline AI provider
func TestConfig() *config.Config {
	return &config.Config{
		AppEnv:             "test",
		LogLevel:           slog.LevelError,
		ApiServicePort:     "8080",
		ApiGrpcPort:        "50052",
		AppBaseURL:         "http://localhost:3000",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MaxFileSize:        10 * 1024 * 1024,
		MaxFilenameLength:  255,
		AIProvider:         config.AIProviderOffline,
		AITimeout:          30,
		OCRTimeout:         30,
		DBConnectTimeout:   10,
		JWTSecret:          "test-secret",
		SessionTokenTTL:    7 * 24 * 3600,
		ResetTokenTTL:      900,
		ChatHistoryTTL:     3600,
		DailyMessageLimit:  100,
		SessionListLimit:   50,
		MailFromEmail:      "no-reply@medassist.test",
		MailFromName:       "MedAssist",
	}
}

// TestLogger discards all output
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// NewTestDB opens an in-memory SQLite database with the schema migrated
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	// Every connection to ":memory:" is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.MedicalReport{},
		&models.ChatSession{},
		&models.ChatMessage{},
	))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// CreateUser inserts a user whose password is "password123"
func CreateUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		DisplayName: "Test User",
		FirstName:   "Test",
		LastName:    "User",
		Email:       email,
		Password:    string(hash),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// NewMiniRedis starts an in-process Redis server and a client connected to it
func NewMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}
