package models

import (
	"database/sql"
	"time"
)

// AudioFile is one row of the append-only version ledger for a
// (user, phrase) slot. Rows are never physically deleted: a later upload
// retires older rows by setting DeletedAt, and the active version is the
// row with the greatest ID and a null DeletedAt.
type AudioFile struct {
	// ID is assigned by the database on insert and is monotonically
	// increasing, so ID order is consistent with CreatedAt order.
	ID int64

	UserID   int
	PhraseID int

	// StorageKey is the object-store key of the converted blob.
	StorageKey sql.NullString

	CreatedAt time.Time

	// DeletedAt marks the row as retired. Soft-delete only.
	DeletedAt sql.NullTime
}

// Active reports whether the row is the not-yet-retired state.
func (f *AudioFile) Active() bool {
	return !f.DeletedAt.Valid
}
