package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
)

func newTestAuthService(t *testing.T, now func() time.Time) (*AuthService, *memUserStore) {
	t.Helper()
	users := newMemUserStore()
	svc, err := NewAuthService(users, AuthConfig{Secret: "test-secret", TokenTTL: time.Hour, Issuer: "grievo"}, now)
	require.NoError(t, err)
	return svc, users
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(newMemUserStore(), AuthConfig{}, nil)
	assert.Error(t, err)
}

func TestAuthService_RegisterLoginAuthenticate(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Name: "Asha", Phone: "9000000001", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, reg.User.Role)
	assert.NotEqual(t, "secret", reg.User.PasswordHash)
	assert.NotEmpty(t, reg.Token)

	login, err := svc.Login(ctx, "9000000001", "secret")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)

	user, err := svc.Authenticate(ctx, login.Token)
	require.NoError(t, err)
	assert.Equal(t, "Asha", user.Name)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Phone: "", Password: "x"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = svc.Register(ctx, RegisterInput{Name: "A", Phone: "1", Password: "x", Role: "root"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestAuthService_RegisterDuplicatePhone(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Name: "A", Phone: "1", Password: "x"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Name: "B", Phone: "1", Password: "y"})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindConflict))
	assert.Equal(t, "User already exists", err.Error())
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterInput{Name: "A", Phone: "1", Password: "right"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "1", "wrong")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	_, err = svc.Login(ctx, "2", "right")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
	assert.Equal(t, "Invalid phone or password", err.Error())
}

func TestAuthService_AuthenticateRejectsExpiredToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := now
	svc, _ := newTestAuthService(t, func() time.Time { return clock })
	ctx := context.Background()

	reg, err := svc.Register(ctx, RegisterInput{Name: "A", Phone: "1", Password: "x"})
	require.NoError(t, err)

	clock = now.Add(2 * time.Hour)
	_, err = svc.Authenticate(ctx, reg.Token)
	require.Error(t, err)
	assert.Equal(t, "Not authorized, token expired", err.Error())
}

func TestAuthService_AuthenticateRejectsForeignTokens(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)
	ctx := context.Background()
	reg, err := svc.Register(ctx, RegisterInput{Name: "A", Phone: "1", Password: "x"})
	require.NoError(t, err)

	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   reg.User.ID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, other)
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))

	_, err = svc.Authenticate(ctx, "not-a-token")
	assert.True(t, errs.IsKind(err, errs.KindUnauthorized))
}

func TestAuthService_AuthenticateUnknownUser(t *testing.T) {
	svc, _ := newTestAuthService(t, nil)

	token, err := svc.issue(&domain.User{ID: "ghost", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, "Not authorized, user not found", err.Error())
}
