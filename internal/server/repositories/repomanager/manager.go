package repomanager

import (
	"context"
	"database/sql"

	"github.com/ekoaw/phraseaudio/internal/dbx"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/audiofiles"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/phrases"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Phrases(db dbx.DBTX) phrases.Repository
	AudioFiles(db dbx.DBTX) audiofiles.Repository
}
