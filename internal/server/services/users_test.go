package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmartynov/offsync/internal/common"
	"github.com/vmartynov/offsync/internal/server/config"
	"github.com/vmartynov/offsync/internal/server/repositories/users"
)

func setupUserService(t *testing.T) *UserService {
	t.Helper()
	cfg := &config.Config{SecretKey: "test-secret", TokenValidityDuration: time.Hour}
	return NewUserService(users.NewMemoryRepository(), cfg)
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := setupUserService(t)

	user, err := svc.Register(ctx, "alice", "pass123")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)

	token, err := svc.Login(ctx, "alice", "pass123")
	require.NoError(t, err)

	userID, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestUserService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := setupUserService(t)

	_, err := svc.Register(ctx, "alice", "pass123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, common.ErrLoginAlreadyExists)
}

func TestUserService_RegisterEmptyCredentials(t *testing.T) {
	ctx := context.Background()
	svc := setupUserService(t)

	_, err := svc.Register(ctx, "", "pass")
	assert.ErrorIs(t, err, common.ErrInvalidLoginPassword)

	_, err = svc.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, common.ErrInvalidLoginPassword)
}

func TestUserService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := setupUserService(t)

	_, err := svc.Register(ctx, "alice", "pass123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	// Absent users and wrong passwords are indistinguishable.
	_, err = svc.Login(ctx, "nobody", "pass123")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
