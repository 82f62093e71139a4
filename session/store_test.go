package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("u1", "r@example.com", "researcher")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "u1", sess.UserID)
	assert.WithinDuration(t, time.Now().Add(sessionTTL), sess.ExpiresAt, time.Minute)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
}

func TestStore_GetUnknown(t *testing.T) {
	store := NewStore()

	got, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ExpiredSession(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("u1", "r@example.com", "researcher")
	require.NoError(t, err)
	sess.ExpiresAt = time.Now().Add(-time.Minute)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	store.CleanupExpired()
	store.mu.RLock()
	_, exists := store.sessions[sess.ID]
	store.mu.RUnlock()
	assert.False(t, exists)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("u1", "r@example.com", "researcher")
	require.NoError(t, err)
	require.NoError(t, store.Delete(sess.ID))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Touch(t *testing.T) {
	store := NewStore()

	sess, err := store.Create("u1", "r@example.com", "researcher")
	require.NoError(t, err)
	before := sess.LastUsedAt

	time.Sleep(5 * time.Millisecond)
	store.Touch(sess.ID)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.True(t, got.LastUsedAt.After(before))
}
