package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Pool owns the process-wide database handle. It is created once at startup
// and injected into every repository; database/sql reconnects broken
// connections on demand.
type Pool struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPool wraps an already opened gorm handle (used by tests with SQLite or sqlmock)
func NewPool(db *gorm.DB, logger *slog.Logger) *Pool {
	return &Pool{db: db, logger: logger}
}

// DSN builds the PostgreSQL connection string from config
func DSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC connect_timeout=%d",
		cfg.PostgreSQLHost,
		cfg.PostgreSQLUser,
		cfg.PostgreSQLPassword,
		cfg.PostgreSQLDatabase,
		cfg.PostgreSQLPort,
		int(cfg.DBConnectTimeoutDuration().Seconds()),
	)
}

// GormConfig is the gorm configuration every connection uses. Driver errors
// are translated so unique violations surface as gorm.ErrDuplicatedKey.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	}
}

// Connect opens the PostgreSQL pool and runs migrations. Connection attempts
// are retried until the configured connect timeout elapses, after which
// ErrConnectTimeout is returned.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pool, error) {
	dsn := DSN(cfg)
	timeout := cfg.DBConnectTimeoutDuration()

	logger.Info("🔌 [Database] Connecting to PostgreSQL...",
		"host", cfg.PostgreSQLHost,
		"port", cfg.PostgreSQLPort,
		"database", cfg.PostgreSQLDatabase,
		"timeout", timeout,
	)

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	gormCfg := GormConfig()
	retryDelay := 500 * time.Millisecond
	attempt := 0

	for {
		attempt++
		db, err := gorm.Open(postgres.Open(dsn), gormCfg)
		if err == nil {
			pool := &Pool{db: db, logger: logger}
			if err = pool.Ping(connectCtx); err == nil {
				logger.Info("✅ [Database] Database connection established", "attempts", attempt)
				if err := pool.configure(); err != nil {
					return nil, err
				}
				if err := Migrate(ctx, dsn, logger); err != nil {
					pool.Close()
					return nil, fmt.Errorf("failed to run migrations: %w", err)
				}
				return pool, nil
			}
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
		}

		logger.Warn("⏳ [Database] Connection failed, retrying...",
			"attempt", attempt,
			"retry_in", retryDelay,
			"error", err,
		)

		select {
		case <-connectCtx.Done():
			if errors.Is(connectCtx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %v", ErrConnectTimeout, timeout, err)
			}
			return nil, connectCtx.Err()
		case <-time.After(retryDelay):
		}
	}
}

func (p *Pool) configure() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return nil
}

// Migrate applies the embedded goose migrations over a lib/pq connection
func Migrate(ctx context.Context, dsn string, logger *slog.Logger) error {
	logger.Info("🔄 [Database] Running migrations...")

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info("✅ [Database] Migrations completed successfully")
	return nil
}

// DB returns the gorm handle shared by all repositories
func (p *Pool) DB() *gorm.DB {
	return p.db
}

// Ping checks that the database is reachable
func (p *Pool) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases every pooled connection
func (p *Pool) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.Info("🔌 [Database] Closing connection pool")
	}
	return sqlDB.Close()
}

// Database errors
var (
	ErrConnectTimeout = errors.New("database connection timed out")
)
