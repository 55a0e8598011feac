package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jebisys/switchboard/internal/config"
	"github.com/jebisys/switchboard/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testLegacySalt = "jebi_salt_2025"

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		LegacySalt:         testLegacySalt,
		LoginMaxAttempts:   3,
		LoginAttemptWindow: time.Minute,
	}
}

func newTestService(t *testing.T) (*AuthService, *storage.Store) {
	t.Helper()
	store, err := storage.OpenInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewAuthService(store, testAuthConfig(), zap.NewNop()), store
}

func legacyHash(password string) string {
	sum := sha256.Sum256([]byte(password + testLegacySalt))
	return hex.EncodeToString(sum[:])
}

func TestPasswordHasherBcryptRoundTrip(t *testing.T) {
	ph := NewPasswordHasher(testLegacySalt)

	hash, err := ph.HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2"))

	valid, legacy := ph.VerifyPassword("s3cret", hash)
	assert.True(t, valid)
	assert.False(t, legacy)

	valid, _ = ph.VerifyPassword("wrong", hash)
	assert.False(t, valid)
}

func TestPasswordHasherLegacyScheme(t *testing.T) {
	ph := NewPasswordHasher(testLegacySalt)

	valid, legacy := ph.VerifyPassword("s3cret", legacyHash("s3cret"))
	assert.True(t, valid)
	assert.True(t, legacy)

	valid, legacy = ph.VerifyPassword("wrong", legacyHash("s3cret"))
	assert.False(t, valid)
	assert.True(t, legacy)
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret", "operator")
	require.NoError(t, err)

	access, refresh, err := svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)

	claims, err := svc.jwtHandler.ValidateAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Username)
	assert.Equal(t, "operator", claims.Role)
}

func TestLoginInvalidPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret", "operator")
	require.NoError(t, err)

	_, _, err = svc.LoginUser(ctx, "operator", "wrong", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.LoginUser(ctx, "ghost", "whatever", "10.0.0.1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginRateLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret", "operator")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _, err = svc.LoginUser(ctx, "operator", "wrong", "10.0.0.1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Window is full: even the right password is refused.
	_, _, err = svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	assert.ErrorIs(t, err, ErrRateLimited)

	// A different IP is not affected.
	_, _, err = svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.2")
	assert.NoError(t, err)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	user, err := store.CreateUser(ctx, "operator", legacyHash("s3cret"), "operator")
	require.NoError(t, err)

	_, _, err = svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	require.NoError(t, err)

	upgraded, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(upgraded.PasswordHash, "$2"))

	// The new hash still verifies.
	_, _, err = svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	assert.NoError(t, err)
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret", "operator")
	require.NoError(t, err)

	_, refresh, err := svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	require.NoError(t, err)

	access2, refresh2, err := svc.RefreshAccessToken(ctx, refresh)
	require.NoError(t, err)
	assert.NotEmpty(t, access2)
	assert.NotEqual(t, refresh, refresh2)

	// Old refresh token is single-use.
	_, _, err = svc.RefreshAccessToken(ctx, refresh)
	assert.Error(t, err)
}

func TestRevokeRefreshToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret", "operator")
	require.NoError(t, err)

	_, refresh, err := svc.LoginUser(ctx, "operator", "s3cret", "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefreshToken(ctx, refresh))
	_, _, err = svc.RefreshAccessToken(ctx, refresh)
	assert.Error(t, err)
}

func TestEnsureDefaultUserIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureDefaultUser(ctx, "admin", "changeme"))
	require.NoError(t, svc.EnsureDefaultUser(ctx, "admin", "other"))

	user, err := store.GetUserByUsername(ctx, "admin")
	require.NoError(t, err)
	valid, _ := NewPasswordHasher(testLegacySalt).VerifyPassword("changeme", user.PasswordHash)
	assert.True(t, valid)
}

func TestRoleToPermissions(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, []Permission{PermOperator, PermAdmin}, svc.roleToPermissions("admin"))
	assert.Equal(t, []Permission{PermOperator}, svc.roleToPermissions("operator"))
	assert.Equal(t, []Permission{PermOperator}, svc.roleToPermissions(""))
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	l := NewLoginRateLimiter(2, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	l.RecordFailure("k")
	l.RecordFailure("k")
	assert.False(t, l.Allow("k"))

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("k"))
}

func TestJWTRejectsTampering(t *testing.T) {
	h := NewJWTHandler("secret-one", time.Minute, time.Hour)
	other := NewJWTHandler("secret-two", time.Minute, time.Hour)

	token, err := h.GenerateAccessToken(uuid.New(), "operator", "operator")
	require.NoError(t, err)

	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)

	expired := NewJWTHandler("secret-one", -time.Minute, time.Hour)
	token, err = expired.GenerateAccessToken(uuid.New(), "operator", "operator")
	require.NoError(t, err)
	_, err = h.ValidateAccessToken(token)
	assert.Error(t, err)
}
