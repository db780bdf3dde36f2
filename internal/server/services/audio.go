// Package services holds the audio pipeline: the orchestration of upload
// (validate, persist, convert, store, record, retire, clean up) and download
// (locate, fetch, convert, stream, clean up) around the converter, the
// object store and the version ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/filex"
	"github.com/ekoaw/phraseaudio/internal/logging"
	"github.com/ekoaw/phraseaudio/internal/server/cleanup"
	"github.com/ekoaw/phraseaudio/internal/server/metrics"
	"github.com/ekoaw/phraseaudio/internal/server/models"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/audiofiles"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/phrases"
	"github.com/ekoaw/phraseaudio/internal/server/repositories/users"
	"github.com/ekoaw/phraseaudio/internal/server/storage"
)

// AudioRequest identifies the logical attachment slot of one recording.
type AudioRequest struct {
	UserID   int
	PhraseID int
}

// Download is the success payload of a download: an open handle on the
// converted file plus the filename for attachment semantics. The underlying
// path may already be scheduled for deletion; the open handle keeps the
// content readable until Close.
type Download struct {
	Filename string
	Content  io.ReadCloser
}

// Converter is the format-conversion capability the pipeline requires.
type Converter interface {
	Supports(format string) bool
	Convert(ctx context.Context, inputPath, format string) (string, error)
}

// TaskQueue accepts fire-and-forget background work. *cleanup.Worker
// satisfies it; tests substitute a synchronous queue.
type TaskQueue interface {
	Submit(task cleanup.Task)
}

// AudioConfig holds the pipeline's fixed format policy and scratch space.
type AudioConfig struct {
	// UploadExtension is the only accepted extension of uploaded files,
	// including the dot (".m4a").
	UploadExtension string
	// StorageFormat is the canonical format blobs are stored in ("wav").
	StorageFormat string
	// TempDir is where in-flight files are staged.
	TempDir string
}

type AudioService struct {
	users     users.Repository
	phrases   phrases.Repository
	files     audiofiles.Repository
	store     storage.ObjectStore
	converter Converter
	queue     TaskQueue
	metrics   *metrics.Metrics
	cfg       AudioConfig
	logger    logging.Logger
}

func NewAudioService(
	users users.Repository,
	phrases phrases.Repository,
	files audiofiles.Repository,
	store storage.ObjectStore,
	converter Converter,
	queue TaskQueue,
	m *metrics.Metrics,
	cfg AudioConfig,
	logger logging.Logger,
) *AudioService {
	return &AudioService{
		users:     users,
		phrases:   phrases,
		files:     files,
		store:     store,
		converter: converter,
		queue:     queue,
		metrics:   m,
		cfg:       cfg,
		logger:    logger,
	}
}

// Upload attaches one recording to the (user, phrase) slot: the incoming
// stream is staged locally, converted to the canonical storage format,
// persisted to the object store and recorded as the new latest ledger row.
// Retirement of superseded rows and removal of the staged files happen on
// the background queue after Upload has returned.
func (s *AudioService) Upload(ctx context.Context, req AudioRequest, filename string, body io.Reader) (file *models.AudioFile, err error) {
	s.metrics.UploadsTotal.Inc()

	var tempPaths []string
	defer func() {
		if err != nil {
			s.metrics.UploadFailures.Inc()
			// Failed mid-pipeline: the staged files are garbage now.
			s.scheduleRemoval(tempPaths)
		}
	}()

	// Validation happens before any filesystem or network write.
	if !strings.EqualFold(filepath.Ext(filename), s.cfg.UploadExtension) {
		s.logger.Error(ctx, "invalid file extension", "filename", filename, "expected", s.cfg.UploadExtension)
		return nil, fmt.Errorf("%w: invalid file extension, should be %s", common.ErrInvalidFormat, s.cfg.UploadExtension)
	}

	if _, err := s.users.GetByID(ctx, req.UserID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "user not found", "user_id", req.UserID)
			return nil, fmt.Errorf("%w: user %d not found", common.ErrPreconditionFailed, req.UserID)
		}
		return nil, fmt.Errorf("%w: user lookup: %w", common.ErrInternal, err)
	}

	if _, err := s.phrases.GetByID(ctx, req.PhraseID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "phrase not found", "phrase_id", req.PhraseID)
			return nil, fmt.Errorf("%w: phrase %d not found", common.ErrPreconditionFailed, req.PhraseID)
		}
		return nil, fmt.Errorf("%w: phrase lookup: %w", common.ErrInternal, err)
	}

	inputPath := filex.UniquePath(s.cfg.TempDir, fmt.Sprintf("%d_%d_", req.UserID, req.PhraseID), s.cfg.UploadExtension)
	s.logger.Info(ctx, "saving uploaded file", "path", inputPath)

	// Registered before the copy: a stream that breaks mid-write still
	// leaves a partial file that must be cleaned up.
	tempPaths = append(tempPaths, inputPath)
	if err := filex.SaveStream(inputPath, body); err != nil {
		return nil, fmt.Errorf("%w: save upload: %w", common.ErrInternal, err)
	}

	start := time.Now()
	outputPath, err := s.converter.Convert(ctx, inputPath, s.cfg.StorageFormat)
	if err != nil {
		return nil, err
	}
	s.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	tempPaths = append(tempPaths, outputPath)

	storageKey := filepath.Base(outputPath)

	converted, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open converted file: %w", common.ErrInternal, err)
	}

	putErr := s.store.Put(ctx, storageKey, converted, "audio/"+s.cfg.StorageFormat)
	converted.Close()
	if putErr != nil {
		// No ledger row is written: nothing must point at a missing blob.
		return nil, putErr
	}

	file, err = s.files.Insert(ctx, req.UserID, req.PhraseID, storageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: record version: %w", common.ErrInternal, err)
	}

	s.queue.Submit(s.retirementTask(req, file.ID, inputPath, outputPath))

	return file, nil
}

// retirementTask retires every ledger row older than newID and removes the
// staged files of this upload. Blob deletion failures are logged per key and
// do not fail the rest of the task.
func (s *AudioService) retirementTask(req AudioRequest, newID int64, inputPath, outputPath string) cleanup.Task {
	return func(ctx context.Context) error {
		s.metrics.CleanupTasks.Inc()

		older, err := s.files.FindOlderActive(ctx, req.UserID, req.PhraseID, newID)
		if err != nil {
			s.metrics.CleanupFailures.Inc()
			return fmt.Errorf("find superseded versions: %w", err)
		}

		if len(older) > 0 {
			ids := make([]int64, len(older))
			for i, old := range older {
				ids[i] = old.ID
			}

			if err := s.files.MarkDeleted(ctx, ids, time.Now()); err != nil {
				s.metrics.CleanupFailures.Inc()
				return fmt.Errorf("retire superseded versions: %w", err)
			}

			for _, old := range older {
				if !old.StorageKey.Valid {
					continue
				}
				if err := s.store.Delete(ctx, old.StorageKey.String); err != nil {
					s.logger.Error(ctx, "failed to delete blob of retired version",
						"storage_key", old.StorageKey.String, "error", err)
					continue
				}
				s.logger.Info(ctx, "deleted blob of retired version", "storage_key", old.StorageKey.String)
			}
		}

		s.removeFiles(ctx, inputPath, outputPath)
		return nil
	}
}

// Download locates the latest active recording for the slot, fetches its
// blob, converts it to the requested format and returns an open handle on
// the result. The staged files are scheduled for removal on every path,
// success included: the returned handle stays readable because it is opened
// before the removal task can run.
func (s *AudioService) Download(ctx context.Context, req AudioRequest, format string) (dl *Download, err error) {
	s.metrics.DownloadsTotal.Inc()

	var tempPaths []string
	defer func() {
		if err != nil {
			s.metrics.DownloadFailures.Inc()
		}
		s.scheduleRemoval(tempPaths)
	}()

	format = strings.ToLower(format)
	if !s.converter.Supports(format) {
		s.logger.Error(ctx, "unsupported audio format requested", "format", format)
		return nil, fmt.Errorf("%w: unsupported audio format %q", common.ErrUnsupportedFormat, format)
	}

	latest, err := s.files.FindLatestActive(ctx, req.UserID, req.PhraseID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "audio file not found", "user_id", req.UserID, "phrase_id", req.PhraseID)
			return nil, fmt.Errorf("%w: audio file not found", common.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: version lookup: %w", common.ErrInternal, err)
	}

	if !latest.StorageKey.Valid {
		return nil, fmt.Errorf("%w: version %d has no storage key", common.ErrInternal, latest.ID)
	}
	storageKey := latest.StorageKey.String

	blob, err := s.store.Get(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	prefix := strings.TrimSuffix(storageKey, filepath.Ext(storageKey)) + "_"
	inputPath := filex.UniquePath(s.cfg.TempDir, prefix, filepath.Ext(storageKey))

	// Registered before the copy so an interrupted blob stream cannot
	// leak the partially staged file.
	tempPaths = append(tempPaths, inputPath)
	if err := filex.SaveStream(inputPath, blob); err != nil {
		return nil, fmt.Errorf("%w: stage blob: %w", common.ErrInternal, err)
	}

	start := time.Now()
	outputPath, err := s.converter.Convert(ctx, inputPath, format)
	if err != nil {
		return nil, err
	}
	s.metrics.ConversionDuration.Observe(time.Since(start).Seconds())
	tempPaths = append(tempPaths, outputPath)

	content, err := os.Open(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open converted file: %w", common.ErrInternal, err)
	}

	return &Download{Filename: filepath.Base(outputPath), Content: content}, nil
}

// scheduleRemoval submits best-effort deletion of local files to the
// background queue.
func (s *AudioService) scheduleRemoval(paths []string) {
	if len(paths) == 0 {
		return
	}
	s.queue.Submit(func(ctx context.Context) error {
		s.metrics.CleanupTasks.Inc()
		s.removeFiles(ctx, paths...)
		return nil
	})
}

func (s *AudioService) removeFiles(ctx context.Context, paths ...string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn(ctx, "failed to remove temporary file", "path", path, "error", err)
			continue
		}
		s.logger.Debug(ctx, "removed temporary file", "path", path)
	}
}
