// Package server initializes and runs the audio attachment server.
// It wires the database, object storage, transcoder and background cleanup
// worker together, starts the HTTP endpoint and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ekoaw/phraseaudio/internal/filex"
	"github.com/ekoaw/phraseaudio/internal/logging"
	"github.com/ekoaw/phraseaudio/internal/server/cleanup"
	"github.com/ekoaw/phraseaudio/internal/server/config"
	"github.com/ekoaw/phraseaudio/internal/server/converter"
	"github.com/ekoaw/phraseaudio/internal/server/httpapi"
	"github.com/ekoaw/phraseaudio/internal/server/metrics"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/repomanager"
	"github.com/ekoaw/phraseaudio/internal/server/services"
	"github.com/ekoaw/phraseaudio/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	worker     *cleanup.Worker
	httpServer *http.Server
}

// NewApp builds the full server from configuration: it opens the database,
// runs migrations, connects to object storage and assembles the pipeline
// behind the HTTP endpoint.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:       cfg.S3Region,
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	tempDir, err := filex.EnsureDir(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("temp dir init error: %w", err)
	}

	conv := converter.New(cfg.FFmpegPath, cfg.ConversionFormats, cfg.ConversionTimeout,
		tempDir, converter.ExecRunner{}, logger)

	worker := cleanup.NewWorker(cfg.CleanupQueueSize, logger)

	m := metrics.New()

	audio := services.NewAudioService(
		rm.Users(db), rm.Phrases(db), rm.AudioFiles(db),
		store, conv, worker, m,
		services.AudioConfig{
			UploadExtension: cfg.UploadExtension,
			StorageFormat:   cfg.StorageFormat,
			TempDir:         tempDir,
		},
		logger,
	)

	api := httpapi.NewServer(audio, rm.Users(db), rm.Phrases(db), m, logger)

	httpServer := &http.Server{
		Addr:              cfg.EndpointAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		config:     cfg,
		logger:     logger,
		db:         db,
		worker:     worker,
		httpServer: httpServer,
	}, nil
}

// Run starts the cleanup worker and the HTTP endpoint and blocks until the
// context is cancelled or a termination signal arrives. Shutdown order:
// stop accepting requests, then drain the cleanup queue, then close the
// database.
func (app *App) Run(ctx context.Context) error {

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "starting server", "addr", app.httpServer.Addr)

	app.worker.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return app.httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()

	app.worker.Stop()

	if closeErr := app.db.Close(); closeErr != nil {
		app.logger.Error(ctx, "failed to close database", "error", closeErr)
	}

	app.logger.Info(ctx, "server stopped")

	return err
}
