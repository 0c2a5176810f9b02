package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/EgehanKilicarslan/medassist/backend-go/internal/config"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/models"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/database/repository"
	"github.com/EgehanKilicarslan/medassist/backend-go/internal/mailer"
)

// Token types carried in the "type" claim
const (
	TokenTypeSession = "session"
	TokenTypeReset   = "reset"
)

// MinPasswordLength is enforced on signup and password reset
const MinPasswordLength = 8

// BackgroundRunner runs fire-and-forget work with a deadline
type BackgroundRunner interface {
	SubmitWithTimeout(timeout time.Duration, task func(ctx context.Context))
}

// SignupInput carries a new account's details
type SignupInput struct {
	DisplayName string
	FirstName   string
	LastName    string
	Email       string
	Password    string
}

// AuthService defines the interface for authentication business logic
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
	Me(ctx context.Context, userID uint) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ValidateSessionToken(tokenString string) (uint, error)
}

type tokenClaims struct {
	UserID uint   `json:"user_id"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo  repository.UserRepository
	resetRepo repository.PasswordResetRepository
	mailer    mailer.Mailer
	runner    BackgroundRunner
	jwtSecret []byte
	cfg       *config.Config
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service instance
func NewAuthService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetRepository,
	mailer mailer.Mailer,
	runner BackgroundRunner,
	cfg *config.Config,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:  userRepo,
		resetRepo: resetRepo,
		mailer:    mailer,
		runner:    runner,
		jwtSecret: []byte(cfg.JWTSecret),
		cfg:       cfg,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Signup(ctx context.Context, in SignupInput) (*models.User, string, error) {
	email := normalizeEmail(in.Email)
	s.logger.Info("📝 [AuthService] Signup attempt", "email", email)

	if len(in.Password) < MinPasswordLength {
		return nil, "", newValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.Error("❌ [AuthService] Database error", "error", err)
		return nil, "", err
	}
	if existing != nil {
		s.logger.Warn("⚠️ [AuthService] Email already registered", "email", email)
		return nil, "", ErrEmailAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to hash password", "error", err)
		return nil, "", err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(in.FirstName + " " + in.LastName)
	}

	user := &models.User{
		DisplayName: displayName,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		Email:       email,
		Password:    string(hashedPassword),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, "", ErrEmailAlreadyExists
		}
		s.logger.Error("❌ [AuthService] Failed to create user", "error", err)
		return nil, "", err
	}

	token, err := s.issueToken(user.ID, TokenTypeSession, time.Duration(s.cfg.SessionTokenTTL)*time.Second, "")
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to generate token", "error", err)
		return nil, "", err
	}

	s.logger.Info("✅ [AuthService] User registered successfully", "user_id", user.ID)
	return user, token, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = normalizeEmail(email)
	s.logger.Info("🔐 [AuthService] Login attempt", "email", email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Warn("⚠️ [AuthService] User not found", "email", email)
			return nil, "", ErrInvalidCredentials
		}
		s.logger.Error("❌ [AuthService] Database error", "error", err)
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		s.logger.Warn("⚠️ [AuthService] Invalid password", "email", email)
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(user.ID, TokenTypeSession, time.Duration(s.cfg.SessionTokenTTL)*time.Second, "")
	if err != nil {
		s.logger.Error("❌ [AuthService] Failed to generate token", "error", err)
		return nil, "", err
	}

	s.logger.Info("✅ [AuthService] User logged in successfully", "user_id", user.ID)
	return user, token, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*models.User, error) {
	if userID == 0 {
		return nil, ErrUnauthorized
	}
	return s.userRepo.FindByID(ctx, userID)
}

// ForgotPassword issues a reset link for a known email. Unknown emails
// succeed silently so the endpoint does not reveal registered addresses.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Info("🔑 [AuthService] Reset requested for unknown email")
			return nil
		}
		return err
	}

	ttl := time.Duration(s.cfg.ResetTokenTTL) * time.Second
	tokenID := uuid.NewString()
	token, err := s.issueToken(user.ID, TokenTypeReset, ttl, tokenID)
	if err != nil {
		return err
	}

	record := &models.PasswordResetToken{
		UserID:    user.ID,
		TokenID:   tokenID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.resetRepo.Create(ctx, record); err != nil {
		s.logger.Error("❌ [AuthService] Failed to store reset token", "error", err)
		return err
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, url.QueryEscape(token))
	body := resetEmailBody(user.DisplayName, link, ttl)
	to := user.Email

	s.runner.SubmitWithTimeout(30*time.Second, func(ctx context.Context) {
		if err := s.mailer.Send(ctx, to, "Reset your MedAssist password", body); err != nil {
			s.logger.Error("❌ [AuthService] Failed to send reset email", "user_id", user.ID, "error", err)
		}
	})

	s.logger.Info("🔑 [AuthService] Reset token issued", "user_id", user.ID)
	return nil
}

func resetEmailBody(name, link string, ttl time.Duration) string {
	return fmt.Sprintf(
		`<p>Hello %s,</p>
<p>We received a request to reset your MedAssist password. The link below is valid for %d minutes.</p>
<p><a href="%s">Reset your password</a></p>
<p>If you did not request this, you can ignore this email.</p>`,
		html.EscapeString(name), int(ttl.Minutes()), html.EscapeString(link),
	)
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.parseToken(token, TokenTypeReset)
	if err != nil || claims.ID == "" {
		return ErrInvalidToken
	}
	if len(newPassword) < MinPasswordLength {
		return newValidationError("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	stored, err := s.resetRepo.FindUsable(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) || errors.Is(err, repository.ErrTokenExpired) {
			return ErrInvalidToken
		}
		return err
	}
	if stored.UserID != claims.UserID {
		return ErrInvalidToken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	if err := s.resetRepo.Redeem(ctx, claims.ID, claims.UserID, string(hashedPassword)); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) || errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidToken
		}
		s.logger.Error("❌ [AuthService] Failed to update password", "user_id", claims.UserID, "error", err)
		return err
	}

	s.logger.Info("✅ [AuthService] Password reset", "user_id", claims.UserID)
	return nil
}

func (s *authService) ValidateSessionToken(tokenString string) (uint, error) {
	claims, err := s.parseToken(tokenString, TokenTypeSession)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}

func (s *authService) parseToken(tokenString, wantType string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *authService) issueToken(userID uint, tokenType string, ttl time.Duration, tokenID string) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: userID,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Service errors
var (
	ErrEmailAlreadyExists = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)
