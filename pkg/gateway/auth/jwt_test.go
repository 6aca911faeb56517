package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123"

func worker() models.User {
	facility := int64(3)
	return models.User{ID: 42, Role: models.RoleFacilityWorker, FacilityID: &facility}
}

func TestIssueAndValidate(t *testing.T) {
	m, err := NewJWTManager(testSecret, "growthwatch", "growthwatch-api", time.Hour, nil)
	require.NoError(t, err)

	token, err := m.IssueToken(worker())
	require.NoError(t, err)

	claims, err := m.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleFacilityWorker, claims.Role)
	require.NotNil(t, claims.FacilityID)
	assert.Equal(t, int64(3), *claims.FacilityID)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	m, err := NewJWTManager(testSecret, "growthwatch", "growthwatch-api", time.Hour, nil)
	require.NoError(t, err)
	token, err := m.IssueToken(worker())
	require.NoError(t, err)

	other, err := NewJWTManager("another-secret-of-length", "growthwatch", "growthwatch-api", time.Hour, nil)
	require.NoError(t, err)
	_, err = other.ValidateToken(context.Background(), token)
	assert.Error(t, err)

	wrongAudience, err := NewJWTManager(testSecret, "growthwatch", "someone-else", time.Hour, nil)
	require.NoError(t, err)
	_, err = wrongAudience.ValidateToken(context.Background(), token)
	assert.Error(t, err)

	m.nowFunc = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = m.ValidateToken(context.Background(), token)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))

	_, err = m.ValidateToken(context.Background(), "")
	assert.Error(t, err)
	_, err = m.ValidateToken(context.Background(), "not.a.token")
	assert.Error(t, err)
}

func TestShortSecretRejected(t *testing.T) {
	_, err := NewJWTManager("short", "i", "a", time.Hour, nil)
	assert.Error(t, err)
}

func TestRevokeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m, err := NewJWTManager(testSecret, "growthwatch", "growthwatch-api", time.Hour, NewRevocationStore(client))
	require.NoError(t, err)
	token, err := m.IssueToken(worker())
	require.NoError(t, err)

	claims, err := m.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.NoError(t, m.Revoke(context.Background(), claims))

	_, err = m.ValidateToken(context.Background(), token)
	assert.True(t, errors.Is(err, ErrTokenRevoked))

	ttl := mr.TTL(revokedKeyPrefix + claims.ID)
	assert.True(t, ttl > 0 && ttl <= time.Hour, "ttl %s", ttl)

	mr.FastForward(time.Hour + time.Minute)
	revoked, err := NewRevocationStore(client).IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNoopRevocation(t *testing.T) {
	store := NewRevocationStore(nil)
	require.NoError(t, store.Revoke(context.Background(), "x", time.Minute))
	revoked, err := store.IsRevoked(context.Background(), "x")
	require.NoError(t, err)
	assert.False(t, revoked)
}
