package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekoaw/phraseaudio/internal/common"
	"github.com/ekoaw/phraseaudio/internal/logging"
	"github.com/ekoaw/phraseaudio/internal/server/metrics"
	"github.com/ekoaw/phraseaudio/internal/server/models"
	"github.com/ekoaw/phraseaudio/internal/server/services"
)

type fakeAudio struct {
	uploadErr   error
	downloadErr error

	lastReq      services.AudioRequest
	lastFilename string
	lastFormat   string
	uploadBody   string

	downloadContent string
}

func (f *fakeAudio) Upload(ctx context.Context, req services.AudioRequest, filename string, body io.Reader) (*models.AudioFile, error) {
	f.lastReq = req
	f.lastFilename = filename
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.uploadBody = string(b)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &models.AudioFile{ID: 1, UserID: req.UserID, PhraseID: req.PhraseID}, nil
}

func (f *fakeAudio) Download(ctx context.Context, req services.AudioRequest, format string) (*services.Download, error) {
	f.lastReq = req
	f.lastFormat = format
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &services.Download{
		Filename: fmt.Sprintf("recording.%s", format),
		Content:  io.NopCloser(strings.NewReader(f.downloadContent)),
	}, nil
}

type fakeUsersRepo struct{ existing map[int]bool }

func (f *fakeUsersRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	if !f.existing[id] {
		return nil, common.ErrNotFound
	}
	return &models.User{ID: id, CreatedAt: time.Now()}, nil
}

type fakePhrasesRepo struct{ existing map[int]bool }

func (f *fakePhrasesRepo) GetByID(ctx context.Context, id int) (*models.Phrase, error) {
	if !f.existing[id] {
		return nil, common.ErrNotFound
	}
	return &models.Phrase{ID: id, CreatedAt: time.Now()}, nil
}

func newTestServer(t *testing.T, audio *fakeAudio) *Server {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	return NewServer(
		audio,
		&fakeUsersRepo{existing: map[int]bool{1: true}},
		&fakePhrasesRepo{existing: map[int]bool{1: true}},
		metrics.New(),
		logger,
	)
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUpload_Success(t *testing.T) {
	audio := &fakeAudio{}
	srv := newTestServer(t, audio)

	body, contentType := multipartBody(t, "audio_file", "take.m4a", "m4a bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/1/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"success","message":"audio file saved"}`, rec.Body.String())
	assert.Equal(t, services.AudioRequest{UserID: 1, PhraseID: 1}, audio.lastReq)
	assert.Equal(t, "take.m4a", audio.lastFilename)
	assert.Equal(t, "m4a bytes", audio.uploadBody)
}

func TestUpload_MissingFileField(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	body, contentType := multipartBody(t, "wrong_field", "take.m4a", "m4a bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/1/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "audio_file")
}

func TestUpload_NonNumericUserID(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	body, contentType := multipartBody(t, "audio_file", "take.m4a", "m4a bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/abc/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_InvalidExtensionMapsTo412(t *testing.T) {
	audio := &fakeAudio{
		uploadErr: fmt.Errorf("%w: invalid file extension, should be .m4a", common.ErrInvalidFormat),
	}
	srv := newTestServer(t, audio)

	body, contentType := multipartBody(t, "audio_file", "take.mp3", "mp3 bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/1/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"invalid file extension, should be .m4a"}`, rec.Body.String())
}

func TestUpload_MissingUserMapsTo412(t *testing.T) {
	audio := &fakeAudio{
		uploadErr: fmt.Errorf("%w: user 7 not found", common.ErrPreconditionFailed),
	}
	srv := newTestServer(t, audio)

	body, contentType := multipartBody(t, "audio_file", "take.m4a", "m4a bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/7/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Contains(t, rec.Body.String(), "user 7 not found")
}

func TestUpload_InternalErrorIsNotEchoed(t *testing.T) {
	audio := &fakeAudio{
		uploadErr: fmt.Errorf("%w: secret detail", common.ErrInternal),
	}
	srv := newTestServer(t, audio)

	body, contentType := multipartBody(t, "audio_file", "take.m4a", "m4a bytes")
	req := httptest.NewRequest(http.MethodPost, "/audio/user/1/phrase/1", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestDownload_Success(t *testing.T) {
	audio := &fakeAudio{downloadContent: "wav bytes"}
	srv := newTestServer(t, audio)

	req := httptest.NewRequest(http.MethodGet, "/audio/user/1/phrase/1?format=wav", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wav bytes", rec.Body.String())
	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="recording.wav"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "wav", audio.lastFormat)
}

func TestDownload_FormatDefaultsToM4a(t *testing.T) {
	audio := &fakeAudio{downloadContent: "m4a bytes"}
	srv := newTestServer(t, audio)

	req := httptest.NewRequest(http.MethodGet, "/audio/user/1/phrase/1", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "m4a", audio.lastFormat)
}

func TestDownload_NotFoundMapsTo404(t *testing.T) {
	audio := &fakeAudio{
		downloadErr: fmt.Errorf("%w: audio file not found", common.ErrNotFound),
	}
	srv := newTestServer(t, audio)

	req := httptest.NewRequest(http.MethodGet, "/audio/user/1/phrase/1", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"status":"error","message":"audio file not found"}`, rec.Body.String())
}

func TestDownload_UnsupportedFormatKeepsMessage(t *testing.T) {
	audio := &fakeAudio{
		downloadErr: fmt.Errorf("%w: unsupported audio format %q", common.ErrUnsupportedFormat, "ogg"),
	}
	srv := newTestServer(t, audio)

	req := httptest.NewRequest(http.MethodGet, "/audio/user/1/phrase/1?format=ogg", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported audio format")
}

func TestGetUser(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/user/1", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":1`)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/user/42", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "user 42 not found")
	})

	t.Run("non-numeric id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/user/abc", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetPhrase(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/phrase/1", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":1`)
	})

	t.Run("missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/audio/phrase/42", nil)
		rec := httptest.NewRecorder()

		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "phrase 42 not found")
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeAudio{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
