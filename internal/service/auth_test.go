package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/security"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeRegionalStore, *security.Lockout) {
	t.Helper()
	store := newFakeRegionalStore(domain.DeploymentCN)
	lockout := security.NewLockout(security.DefaultLockoutPolicy(), zap.NewNop())
	t.Cleanup(lockout.Close)

	cfg := config.JWTConfig{
		Secret:        "test-secret-key-for-development-32-chars-long",
		Issuer:        "morntool",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	return NewAuthService(store, lockout, cfg, zap.NewNop()), store, lockout
}

func TestSignupAndLogin(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, SignupInput{
		Email:    "User@Example.com",
		Password: "correct-horse-battery",
		Nickname: "tester",
	})
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", resp.User.Email)
	assert.Equal(t, int64(domain.FreeUserInitialCredits), resp.User.Credits)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.Equal(t, int64(3600), resp.Tokens.ExpiresIn)

	login, err := svc.Login(ctx, LoginInput{Email: "user@example.com", Password: "correct-horse-battery"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	claims, err := svc.ValidateToken(login.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "free", claims.Tier)
}

func TestSignupRejectsDuplicateAndWeakPassword(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "long-enough-password"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "long-enough-password"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginWrongPasswordCountsTowardLockout(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "long-enough-password"})
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrong-password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// 第五次失败触发锁定
	_, err = svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrAccountLocked)

	// 锁定期内连正确密码也拒绝
	_, err = svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "long-enough-password"})
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestLoginSuccessResetsFailures(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "long-enough-password"})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, _ = svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrong-password"})
	}
	_, err = svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "long-enough-password"})
	require.NoError(t, err)

	// 计数清零后又有满额尝试次数
	for i := 0; i < 4; i++ {
		_, err := svc.Login(ctx, LoginInput{Email: "a@example.com", Password: "wrong-password"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestLoginUnknownUserCountsFailure(t *testing.T) {
	svc, _, lockout := newTestAuthService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = svc.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever-password"})
	}
	locked, _ := lockout.IsLocked("ghost@example.com")
	assert.True(t, locked)
}

func TestRefreshToken(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	ctx := context.Background()

	resp, err := svc.Signup(ctx, SignupInput{Email: "a@example.com", Password: "long-enough-password"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, resp.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)

	_, err = svc.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
