package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
)

// PasswordResetRepository tracks issued reset tokens so each is redeemable once
type PasswordResetRepository interface {
	Create(ctx context.Context, token *models.PasswordResetToken) error
	FindUsable(ctx context.Context, tokenID string) (*models.PasswordResetToken, error)
	Redeem(ctx context.Context, tokenID string, userID uint, passwordHash string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository creates a new password reset repository instance
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *passwordResetRepository) FindUsable(ctx context.Context, tokenID string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := r.db.WithContext(ctx).
		Where("token_id = ? AND used = ?", tokenID, false).
		Take(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	if time.Now().After(token.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &token, nil
}

// Redeem sets the user's new password and spends the token in one
// transaction. A token that is spent, expired or issued to another user
// reports ErrTokenNotFound and leaves the password unchanged.
func (r *passwordResetRepository) Redeem(ctx context.Context, tokenID string, userID uint, passwordHash string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updated := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Update("password", passwordHash)
		if updated.Error != nil {
			return updated.Error
		}
		if updated.RowsAffected == 0 {
			return ErrUserNotFound
		}

		spent := tx.Model(&models.PasswordResetToken{}).
			Where("token_id = ? AND user_id = ? AND used = ? AND expires_at > ?", tokenID, userID, false, time.Now()).
			Update("used", true)
		if spent.Error != nil {
			return spent.Error
		}
		if spent.RowsAffected == 0 {
			return ErrTokenNotFound
		}
		return nil
	})
}

func (r *passwordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at < ?", time.Now()).
		Delete(&models.PasswordResetToken{})
	return result.RowsAffected, result.Error
}

// Repository errors
var (
	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
)
