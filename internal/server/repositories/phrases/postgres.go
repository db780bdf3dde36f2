package phrases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// GetByID returns the phrase with the given id, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id int) (*models.Phrase, error) {
	query :=
		`SELECT id, created_at FROM phrases
		 WHERE id = $1
		 `

	phrase := &models.Phrase{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&phrase.ID, &phrase.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return phrase, nil
}
