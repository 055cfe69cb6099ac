package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"

	"github.com/AyishaBeevi/lyvore-backend/internal/models"
)

type memRefreshTokens struct {
	tokens    map[primitive.ObjectID]*models.RefreshToken
	insertErr error
	rotateErr error
}

func newMemRefreshTokens(existing ...*models.RefreshToken) *memRefreshTokens {
	s := &memRefreshTokens{tokens: make(map[primitive.ObjectID]*models.RefreshToken)}
	for _, token := range existing {
		s.tokens[token.ID] = token
	}
	return s
}

func (s *memRefreshTokens) Insert(_ context.Context, token *models.RefreshToken) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	token.ID = primitive.NewObjectID()
	stored := *token
	s.tokens[token.ID] = &stored
	return nil
}

func (s *memRefreshTokens) Rotate(_ context.Context, oldID, newID primitive.ObjectID) (bool, error) {
	if s.rotateErr != nil {
		return false, s.rotateErr
	}
	old, ok := s.tokens[oldID]
	if !ok || old.Revoked {
		return false, nil
	}
	old.Revoked = true
	old.ReplacedByToken = &newID
	return true, nil
}

func (s *memRefreshTokens) Revoke(_ context.Context, id primitive.ObjectID) error {
	if token, ok := s.tokens[id]; ok {
		token.Revoked = true
	}
	return nil
}

func refreshFixture() (*models.User, *models.RefreshToken) {
	user := &models.User{ID: primitive.NewObjectID(), Email: "asha@example.com", Role: models.RoleUser}
	old := &models.RefreshToken{
		ID:        primitive.NewObjectID(),
		UserID:    user.ID,
		TokenHash: hashToken("old"),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return user, old
}

func TestRotateRefreshToken(t *testing.T) {
	user, old := refreshFixture()
	store := newMemRefreshTokens(old)

	issued, err := rotateRefreshToken(context.Background(), store, old, user, "secret", time.Minute, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedByToken)
	assert.Equal(t, issued.RefreshTokenID, *old.ReplacedByToken)

	fresh, ok := store.tokens[issued.RefreshTokenID]
	require.True(t, ok)
	assert.False(t, fresh.Revoked)
	assert.Equal(t, hashToken(issued.RefreshToken), fresh.TokenHash)
}

func TestRotateRefreshTokenKeepsOldWhenIssueFails(t *testing.T) {
	user, old := refreshFixture()
	store := newMemRefreshTokens(old)
	store.insertErr = errors.New("write timeout")

	_, err := rotateRefreshToken(context.Background(), store, old, user, "secret", time.Minute, time.Hour, zaptest.NewLogger(t))
	require.Error(t, err)

	assert.False(t, old.Revoked)
	assert.Nil(t, old.ReplacedByToken)
	assert.Len(t, store.tokens, 1)
}

func TestRotateRefreshTokenOnlyOnce(t *testing.T) {
	user, old := refreshFixture()
	store := newMemRefreshTokens(old)
	lg := zaptest.NewLogger(t)

	first, err := rotateRefreshToken(context.Background(), store, old, user, "secret", time.Minute, time.Hour, lg)
	require.NoError(t, err)

	_, err = rotateRefreshToken(context.Background(), store, old, user, "secret", time.Minute, time.Hour, lg)
	require.ErrorIs(t, err, errRefreshTokenReused)

	live := 0
	for _, token := range store.tokens {
		if !token.Revoked {
			live++
			assert.Equal(t, first.RefreshTokenID, token.ID)
		}
	}
	assert.Equal(t, 1, live)
}

func TestRotateRefreshTokenRevokesFreshTokenOnRotateError(t *testing.T) {
	user, old := refreshFixture()
	store := newMemRefreshTokens(old)
	store.rotateErr = errors.New("connection reset")

	_, err := rotateRefreshToken(context.Background(), store, old, user, "secret", time.Minute, time.Hour, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRefreshTokenReused)

	assert.False(t, old.Revoked)
	for id, token := range store.tokens {
		if id != old.ID {
			assert.True(t, token.Revoked)
		}
	}
}
