package audiofiles

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/server/models"
)

type slot struct {
	userID   int
	phraseID int
}

// InMemoryRepository is an append-only, process-local ledger with the same
// semantics as the Postgres implementation: monotonic ids, soft-delete,
// latest-active by greatest id. Used by service tests and single-process runs.
type InMemoryRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[slot][]*models.AudioFile
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, rows: make(map[slot][]*models.AudioFile)}
}

func clone(f *models.AudioFile) *models.AudioFile {
	c := *f
	return &c
}

func (r *InMemoryRepository) Insert(_ context.Context, userID, phraseID int, storageKey string) (*models.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file := &models.AudioFile{
		ID:         r.nextID,
		UserID:     userID,
		PhraseID:   phraseID,
		StorageKey: sql.NullString{String: storageKey, Valid: true},
		CreatedAt:  time.Now(),
	}
	r.nextID++

	k := slot{userID, phraseID}
	r.rows[k] = append(r.rows[k], file)

	return clone(file), nil
}

func (r *InMemoryRepository) FindLatestActive(_ context.Context, userID, phraseID int) (*models.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var latest *models.AudioFile
	for _, f := range r.rows[slot{userID, phraseID}] {
		if f.Active() && (latest == nil || f.ID > latest.ID) {
			latest = f
		}
	}
	if latest == nil {
		return nil, common.ErrNotFound
	}
	return clone(latest), nil
}

func (r *InMemoryRepository) FindOlderActive(_ context.Context, userID, phraseID int, beforeID int64) ([]*models.AudioFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.AudioFile
	for _, f := range r.rows[slot{userID, phraseID}] {
		if f.Active() && f.ID < beforeID {
			result = append(result, clone(f))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (r *InMemoryRepository) MarkDeleted(_ context.Context, ids []int64, deletedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	for _, files := range r.rows {
		for _, f := range files {
			if _, ok := wanted[f.ID]; ok && f.Active() {
				f.DeletedAt = sql.NullTime{Time: deletedAt, Valid: true}
			}
		}
	}
	return nil
}

// All returns every row for a slot, in insertion order. Test helper.
func (r *InMemoryRepository) All(userID, phraseID int) []*models.AudioFile {
	r.mu.Lock()
	defer r.mu.Unlock()

	files := r.rows[slot{userID, phraseID}]
	result := make([]*models.AudioFile, 0, len(files))
	for _, f := range files {
		result = append(result, clone(f))
	}
	return result
}
