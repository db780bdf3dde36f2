// Package audiofiles persists the append-only version ledger of audio
// recordings attached to (user, phrase) slots.
package audiofiles

import (
	"context"
	"time"

	"github.com/ekoaw/phraseaudio/internal/server/models"
)

type Repository interface {
	// Insert appends a new active row and returns it with the
	// database-assigned id and creation timestamp.
	Insert(ctx context.Context, userID, phraseID int, storageKey string) (*models.AudioFile, error)

	// FindLatestActive returns the active row with the greatest id for
	// the slot, or common.ErrNotFound.
	FindLatestActive(ctx context.Context, userID, phraseID int) (*models.AudioFile, error)

	// FindOlderActive returns all active rows with id strictly less than
	// beforeID, newest first.
	FindOlderActive(ctx context.Context, userID, phraseID int, beforeID int64) ([]*models.AudioFile, error)

	// MarkDeleted soft-deletes the given rows. Rows already deleted are
	// left untouched, so repeated calls are harmless.
	MarkDeleted(ctx context.Context, ids []int64, deletedAt time.Time) error
}
