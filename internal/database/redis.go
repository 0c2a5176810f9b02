package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// RedisClient wraps the redis client with helpers for the chat history cache.
// The same connection backs the daily message limiter.
type RedisClient struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*RedisClient, error) {
	logger.Info("🔌 [Redis] Connecting to Redis...",
		"host", cfg.RedisHost,
		"port", cfg.RedisPort,
		"db", cfg.RedisDB,
	)

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       int(cfg.RedisDB),
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("✅ [Redis] Redis connection established")

	return NewRedisClientFromClient(client, cfg, logger), nil
}

// NewRedisClientFromClient wraps an existing redis.Client (miniredis in tests)
func NewRedisClientFromClient(client *redis.Client, cfg *config.Config, logger *slog.Logger) *RedisClient {
	ttl := time.Duration(cfg.ChatHistoryTTL) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisClient{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Client exposes the underlying connection for the rate limiter
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

func historyKey(sessionID string) string {
	return fmt.Sprintf("session:%s:history", sessionID)
}

// GetChatHistory returns the cached messages of a session in order.
// A missing key yields an empty slice and no error.
func (r *RedisClient) GetChatHistory(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	raw, err := r.client.LRange(ctx, historyKey(sessionID), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []models.ChatMessage{}, nil
	}
	if err != nil {
		r.logger.Error("❌ [Redis] History cache read failed", "session_id", sessionID, "error", err)
		return []models.ChatMessage{}, err
	}

	messages, err := decodeHistory(raw)
	if err != nil {
		// a partial history is worse than none
		r.logger.Warn("⚠️ [Redis] Dropping unreadable cached history", "session_id", sessionID, "error", err)
		return []models.ChatMessage{}, nil
	}

	r.logger.Debug("📖 [Redis] History cache hit", "session_id", sessionID, "messages", len(messages))
	return messages, nil
}

// SetChatHistory replaces the cached history of a session and refreshes its TTL
func (r *RedisClient) SetChatHistory(ctx context.Context, sessionID string, messages []models.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	encoded, err := encodeHistory(messages)
	if err != nil {
		return err
	}

	key := historyKey(sessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, encoded...)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		r.logger.Error("❌ [Redis] History cache write failed", "session_id", sessionID, "error", err)
		return err
	}

	r.logger.Debug("💾 [Redis] History cached", "session_id", sessionID, "messages", len(messages), "ttl", r.ttl)
	return nil
}

func encodeHistory(messages []models.ChatMessage) ([]interface{}, error) {
	out := make([]interface{}, len(messages))
	for i := range messages {
		data, err := json.Marshal(&messages[i])
		if err != nil {
			return nil, fmt.Errorf("encode message %s: %w", messages[i].ID, err)
		}
		out[i] = string(data)
	}
	return out, nil
}

func decodeHistory(raw []string) ([]models.ChatMessage, error) {
	messages := make([]models.ChatMessage, len(raw))
	for i, item := range raw {
		if err := json.Unmarshal([]byte(item), &messages[i]); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
	}
	return messages, nil
}

// DeleteChatHistory drops the cached history of one or more sessions
func (r *RedisClient) DeleteChatHistory(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		keys = append(keys, historyKey(id))
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.logger.Error("❌ [Redis] History cache delete failed", "sessions", len(sessionIDs), "error", err)
		return err
	}

	r.logger.Debug("🗑️ [Redis] History cache cleared", "sessions", len(sessionIDs))
	return nil
}
