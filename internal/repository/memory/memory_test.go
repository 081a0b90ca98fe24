package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-tutor-be/internal/entity"
)

func TestCredentialCache(t *testing.T) {
	c := NewCredentialCache()

	_, found := c.Get("u1", "gemini")
	assert.False(t, found)

	c.Set("u1", "gemini", "secret-one")
	got, found := c.Get("u1", "gemini")
	require.True(t, found)
	assert.Equal(t, "secret-one", got)

	c.Invalidate("u1", "gemini")
	_, found = c.Get("u1", "gemini")
	assert.False(t, found)
}

func TestCredentialCacheInvalidateUser(t *testing.T) {
	c := NewCredentialCache()
	c.Set("u1", "gemini", "a")
	c.Set("u1", "ollama", "b")
	c.Set("u2", "gemini", "c")

	c.InvalidateUser("u1")

	_, found := c.Get("u1", "gemini")
	assert.False(t, found)
	_, found = c.Get("u1", "ollama")
	assert.False(t, found)

	// Other users' entries survive.
	got, found := c.Get("u2", "gemini")
	require.True(t, found)
	assert.Equal(t, "c", got)
}

func TestQuotaRepositoryRoundTrip(t *testing.T) {
	repo := NewQuotaRepository()
	ctx := context.Background()
	user := uuid.New()

	rec, err := repo.Load(ctx, user, "2026-03-10")
	require.NoError(t, err)
	assert.Nil(t, rec, "missing record reads as nil, not an error")

	require.NoError(t, repo.Save(ctx, &entity.QuotaRecord{
		UserId: user,
		UTCDay: "2026-03-10",
		Count:  7,
	}))

	rec, err = repo.Load(ctx, user, "2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.Count)

	// Records are value copies; mutating the returned record must not leak
	// back into the store.
	rec.Count = 99
	again, err := repo.Load(ctx, user, "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 7, again.Count)
}

func TestQuotaRepositoryKeysByDay(t *testing.T) {
	repo := NewQuotaRepository()
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, repo.Save(ctx, &entity.QuotaRecord{UserId: user, UTCDay: "2026-03-10", Count: 5}))

	rec, err := repo.Load(ctx, user, "2026-03-11")
	require.NoError(t, err)
	assert.Nil(t, rec, "the next UTC day starts with a fresh record")
}
