package services

import (
	"context"
	"testing"

	"example.com/backstage/invoicing/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserAccounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.users.CreateUser(ctx, "Owner@Example.com", "Owner", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)

	loaded, err := env.users.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, loaded.Email)

	authed, err := env.users.Authenticate(ctx, "owner@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = env.users.Authenticate(ctx, "owner@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.users.Authenticate(ctx, "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.CreateUser(ctx, "owner@example.com", "Again", "another-pass")
	assert.ErrorIs(t, err, repositories.ErrDuplicateKey)
}
