package users

import (
	"context"

	"github.com/ekoaw/phraseaudio/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id int) (*models.User, error)
}
