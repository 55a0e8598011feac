package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/storage"
	"go.uber.org/zap"
)

type Permission string

const (
	PermOperator Permission = "operator"
	PermAdmin    Permission = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many login attempts")
)

type AuthService struct {
	storage        *storage.Store
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
	rateLimiter    *LoginRateLimiter
	logger         *zap.Logger
}

func NewAuthService(store *storage.Store, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	jwtSecret := cfg.GetJWTSecret()

	return &AuthService{
		storage:        store,
		jwtHandler:     NewJWTHandler(jwtSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		passwordHasher: NewPasswordHasher(cfg.LegacySalt),
		rateLimiter:    NewLoginRateLimiter(cfg.LoginMaxAttempts, cfg.LoginAttemptWindow),
		logger:         logger,
	}
}

// LoginUser authenticates a user and returns tokens. Legacy password hashes
// are transparently rewritten with bcrypt on the first successful login.
func (a *AuthService) LoginUser(ctx context.Context, username, password, ipAddress string) (accessToken, refreshToken string, err error) {
	limitKey := username + "|" + ipAddress
	if !a.rateLimiter.Allow(limitKey) {
		a.logger.Warn("login rate limited",
			zap.String("username", username),
			zap.String("ip", ipAddress))
		return "", "", ErrRateLimited
	}

	user, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		a.rateLimiter.RecordFailure(limitKey)
		a.logger.Info("login failed", zap.String("username", username), zap.String("reason", "user not found"))
		return "", "", ErrInvalidCredentials
	}

	valid, legacy := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if !valid {
		a.rateLimiter.RecordFailure(limitKey)
		a.logger.Info("login failed", zap.String("username", username), zap.String("reason", "invalid password"))
		return "", "", ErrInvalidCredentials
	}
	a.rateLimiter.Reset(limitKey)

	if legacy {
		if newHash, hashErr := a.passwordHasher.HashPassword(password); hashErr == nil {
			if upErr := a.storage.UpdatePasswordHash(ctx, user.ID, newHash); upErr != nil {
				a.logger.Warn("legacy hash upgrade failed", zap.String("username", username), zap.Error(upErr))
			} else {
				a.logger.Info("legacy password hash upgraded", zap.String("username", username))
			}
		}
	}

	accessToken, err = a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	tokenHash := a.hashRefreshToken(refreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, tokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	if err := a.storage.UpdateLastLogin(ctx, user.ID); err != nil {
		a.logger.Warn("failed to update last login", zap.String("username", username), zap.Error(err))
	}
	a.logger.Info("login succeeded", zap.String("username", username), zap.String("ip", ipAddress))

	return accessToken, refreshToken, nil
}

// RefreshAccessToken rotates a refresh token and issues a new token pair.
func (a *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (string, string, error) {
	tokenHash := a.hashRefreshToken(refreshToken)

	userID, err := a.storage.GetRefreshToken(ctx, tokenHash)
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token: %w", err)
	}

	user, err := a.storage.GetUserByID(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("user not found: %w", err)
	}

	if err := a.storage.RevokeRefreshToken(ctx, tokenHash); err != nil {
		a.logger.Warn("failed to revoke refresh token", zap.Error(err))
	}

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefreshToken, err := a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	newTokenHash := a.hashRefreshToken(newRefreshToken)
	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, newTokenHash, expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, newRefreshToken, nil
}

// RevokeRefreshToken revokes a refresh token
func (a *AuthService) RevokeRefreshToken(ctx context.Context, refreshToken string) error {
	return a.storage.RevokeRefreshToken(ctx, a.hashRefreshToken(refreshToken))
}

// CreateUser creates a new user with a bcrypt hash
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) (*storage.User, error) {
	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.storage.CreateUser(ctx, username, passwordHash, role)
}

// EnsureDefaultUser seeds the admin account on first boot.
func (a *AuthService) EnsureDefaultUser(ctx context.Context, username, password string) error {
	passwordHash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return err
	}
	return a.storage.EnsureDefaultUser(ctx, username, passwordHash)
}

func (a *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*storage.User, error) {
	return a.storage.GetUserByID(ctx, userID)
}

// ValidateToken validates an access token and returns the permissions the
// holder has. Used by transports that cannot run the gin middleware.
func (a *AuthService) ValidateToken(token string) ([]Permission, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	return a.roleToPermissions(claims.Role), nil
}

func (a *AuthService) roleToPermissions(role string) []Permission {
	switch role {
	case "admin":
		return []Permission{PermOperator, PermAdmin}
	default:
		return []Permission{PermOperator}
	}
}

func (a *AuthService) hashRefreshToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
