package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/types"
	"gorm.io/gorm"
)

func (s *Store) CreateUser(ctx context.Context, username, passwordHash, role string) (*User, error) {
	user := User{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, &types.DatabaseError{Operation: "create user", Err: err}
	}
	return &user, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("username = ? AND is_active = ?", username, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.DatabaseError{Operation: "get user", Err: err}
	}
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, &types.DatabaseError{Operation: "get user", Err: err}
	}
	return &user, nil
}

func (s *Store) UpdateLastLogin(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Update("last_login", &now).Error
}

// UpdatePasswordHash rewrites the stored hash, used both for password changes
// and for the transparent legacy-to-bcrypt upgrade after a successful login.
func (s *Store) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return s.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Update("password_hash", hash).Error
}

// EnsureDefaultUser seeds the initial operator account on first boot.
func (s *Store) EnsureDefaultUser(ctx context.Context, username, passwordHash string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return &types.DatabaseError{Operation: "count users", Err: err}
	}
	if count > 0 {
		return nil
	}
	_, err := s.CreateUser(ctx, username, passwordHash, "admin")
	return err
}

// Refresh tokens

func (s *Store) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	token := RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
		return &types.DatabaseError{Operation: "store refresh token", Err: err}
	}
	return nil
}

// GetRefreshToken returns the owning user for a live, unrevoked token hash.
func (s *Store) GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var token RefreshToken
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND revoked = ? AND expires_at > ?", tokenHash, false, time.Now()).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, types.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, &types.DatabaseError{Operation: "get refresh token", Err: err}
	}
	return token.UserID, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return s.db.WithContext(ctx).
		Model(&RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error
}
