package audiofiles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_InsertAssignsMonotonicIDs(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f1, err := repo.Insert(ctx, 1, 1, "a.wav")
	require.NoError(t, err)
	f2, err := repo.Insert(ctx, 1, 1, "b.wav")
	require.NoError(t, err)

	assert.Greater(t, f2.ID, f1.ID)
	assert.True(t, f1.Active())
	assert.True(t, f2.Active())
}

func TestInMemory_FindLatestActive(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	_, err := repo.FindLatestActive(ctx, 1, 1)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = repo.Insert(ctx, 1, 1, "a.wav")
	require.NoError(t, err)
	f2, err := repo.Insert(ctx, 1, 1, "b.wav")
	require.NoError(t, err)

	latest, err := repo.FindLatestActive(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, f2.ID, latest.ID)
	assert.Equal(t, "b.wav", latest.StorageKey.String)

	// Other slots are independent.
	_, err = repo.FindLatestActive(ctx, 1, 2)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestInMemory_FindOlderActive(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f1, _ := repo.Insert(ctx, 1, 1, "a.wav")
	f2, _ := repo.Insert(ctx, 1, 1, "b.wav")
	f3, _ := repo.Insert(ctx, 1, 1, "c.wav")

	older, err := repo.FindOlderActive(ctx, 1, 1, f3.ID)
	require.NoError(t, err)
	require.Len(t, older, 2)
	// Newest first.
	assert.Equal(t, f2.ID, older[0].ID)
	assert.Equal(t, f1.ID, older[1].ID)
}

func TestInMemory_MarkDeletedIsIdempotent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	f1, _ := repo.Insert(ctx, 1, 1, "a.wav")
	f2, _ := repo.Insert(ctx, 1, 1, "b.wav")

	t1 := time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkDeleted(ctx, []int64{f1.ID}, t1))

	// Second call with a later timestamp must not overwrite the first.
	t2 := t1.Add(time.Hour)
	require.NoError(t, repo.MarkDeleted(ctx, []int64{f1.ID}, t2))

	rows := repo.All(1, 1)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].DeletedAt.Valid)
	assert.Equal(t, t1, rows[0].DeletedAt.Time)
	assert.True(t, rows[1].Active())

	latest, err := repo.FindLatestActive(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, f2.ID, latest.ID)
}
