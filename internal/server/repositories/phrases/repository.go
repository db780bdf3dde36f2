package phrases

import (
	"context"

	"github.com/ekoaw/phraseaudio/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int) (*models.Phrase, error)
}
