package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/softwarepar/softwarepar-backend/internal/models"
)

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	manager := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, accessExp, refreshExp, err := manager.GeneratePair(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.True(t, refreshExp.After(accessExp))

	userID, role, err := manager.ParseAccess(pair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleClient, role)
}

func TestTokenManager_RefreshRoundTrip(t *testing.T) {
	manager := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	pair, _, _, err := manager.GeneratePair(user)
	assert.NoError(t, err)

	claims, err := manager.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)

	// Refresh токен подписан другим секретом и не проходит как access.
	_, _, err = manager.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_WrongSecretRejected(t *testing.T) {
	issuer := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, time.Hour)
	verifier := NewTokenManager("other-secret", "other-refresh", 15*time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, _, _, err := issuer.GeneratePair(user)
	assert.NoError(t, err)

	_, _, err = verifier.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	_, err = verifier.ParseRefresh(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_ExpiredAccessRejected(t *testing.T) {
	manager := NewTokenManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleClient}

	pair, _, _, err := manager.GeneratePair(user)
	assert.NoError(t, err)

	_, _, err = manager.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}
