package audiofiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/dbx"
	"github.com/ekoaw/phraseaudio/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, userID, phraseID int, storageKey string) (*models.AudioFile, error) {
	query :=
		`INSERT INTO user_phrase_files (user_id, phrase_id, storage_key)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	file := &models.AudioFile{
		UserID:     userID,
		PhraseID:   phraseID,
		StorageKey: sql.NullString{String: storageKey, Valid: true},
	}

	err := r.db.QueryRowContext(ctx, query, userID, phraseID, storageKey).
		Scan(&file.ID, &file.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) FindLatestActive(ctx context.Context, userID, phraseID int) (*models.AudioFile, error) {
	query :=
		`SELECT id, user_id, phrase_id, storage_key, created_at, deleted_at FROM user_phrase_files
		 WHERE user_id = $1 AND phrase_id = $2 AND deleted_at IS NULL
		 ORDER BY id DESC
		 LIMIT 1
		 `

	file := &models.AudioFile{}
	err := r.db.QueryRowContext(ctx, query, userID, phraseID).
		Scan(&file.ID, &file.UserID, &file.PhraseID, &file.StorageKey, &file.CreatedAt, &file.DeletedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) FindOlderActive(ctx context.Context, userID, phraseID int, beforeID int64) ([]*models.AudioFile, error) {
	query :=
		`SELECT id, user_id, phrase_id, storage_key, created_at, deleted_at FROM user_phrase_files
		 WHERE user_id = $1 AND phrase_id = $2 AND deleted_at IS NULL AND id < $3
		 ORDER BY created_at DESC, id DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, userID, phraseID, beforeID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.AudioFile
	for rows.Next() {
		var item models.AudioFile
		if err := rows.Scan(&item.ID, &item.UserID, &item.PhraseID, &item.StorageKey, &item.CreatedAt, &item.DeletedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, ids []int64, deletedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, deletedAt)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	// Rows already retired keep their original deleted_at, which makes
	// concurrent retirement idempotent.
	query := fmt.Sprintf(
		`UPDATE user_phrase_files SET deleted_at = $1 WHERE id IN (%s) AND deleted_at IS NULL`,
		strings.Join(placeholders, ", "))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
