// Package upload orchestrates the three-step attachment upload flow:
// presign, direct storage write, completion. It is request/response only and
// independent of the live chat channel; a message referencing the attachment
// is sent only after the whole flow succeeds.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/duetapp/duetchat/internal/api"
)

// MaxSizeBytes is the largest attachment the client will upload.
const MaxSizeBytes int64 = 50 << 20 // 50 MiB

// allowedTypes is the set of MIME types accepted for attachments. Validation
// happens locally, before any network request.
var allowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/gif":       {},
	"video/mp4":       {},
	"video/quicktime": {},
}

var (
	// ErrUnsupportedType rejects a file whose detected MIME type is not an
	// accepted image or video format.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge rejects a file over MaxSizeBytes.
	ErrTooLarge = errors.New("file too large")
)

// UploadAPI is the slice of the REST client the uploader depends on.
type UploadAPI interface {
	PresignUpload(ctx context.Context, req api.PresignRequest) (api.PresignResponse, error)
	CompleteUpload(ctx context.Context, req api.CompleteRequest) (api.Media, error)
}

// Uploader runs the upload flow for local files.
type Uploader struct {
	api     UploadAPI
	fs      afero.Fs
	httpc   *http.Client
	maxSize int64
	logger  *slog.Logger
}

// Option is a function that configures an Uploader.
type Option func(*Uploader)

// WithFs replaces the filesystem files are read from. Tests use an in-memory
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(u *Uploader) {
		u.fs = fs
	}
}

// WithHTTPClient replaces the HTTP client used for the direct storage write.
func WithHTTPClient(h *http.Client) Option {
	return func(u *Uploader) {
		u.httpc = h
	}
}

// New creates an Uploader backed by the given API client.
func New(apiClient UploadAPI, opts ...Option) *Uploader {
	u := &Uploader{
		api:     apiClient,
		fs:      afero.NewOsFs(),
		httpc:   &http.Client{Timeout: 5 * time.Minute},
		maxSize: MaxSizeBytes,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload validates the file at path and runs the three steps strictly in
// sequence: request a write credential, write the bytes to storage, confirm
// completion. It returns the persisted attachment descriptor. Any failing
// step aborts the flow; the caller keeps the file and may retry.
func (u *Uploader) Upload(ctx context.Context, path string) (api.Media, error) {
	info, err := u.fs.Stat(path)
	if err != nil {
		return api.Media{}, fmt.Errorf("reading file: %w", err)
	}
	if info.Size() > u.maxSize {
		return api.Media{}, fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, info.Size(), u.maxSize)
	}

	f, err := u.fs.Open(path)
	if err != nil {
		return api.Media{}, fmt.Errorf("reading file: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return api.Media{}, fmt.Errorf("detecting file type: %w", err)
	}
	fileType := mtype.String()
	if _, ok := allowedTypes[fileType]; !ok {
		return api.Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return api.Media{}, fmt.Errorf("rewinding file: %w", err)
	}

	fileName := filepath.Base(path)

	// Step 1: write credential.
	presign, err := u.api.PresignUpload(ctx, api.PresignRequest{
		FileName: fileName,
		FileType: fileType,
	})
	if err != nil {
		return api.Media{}, fmt.Errorf("requesting upload credential: %w", err)
	}
	u.logger.Debug("Received upload credential", "key", presign.Key)

	// Step 2: raw bytes straight to storage. Must not start before step 1
	// returned the credential.
	if err := u.put(ctx, presign.PresignedURL, f, info.Size(), fileType); err != nil {
		return api.Media{}, fmt.Errorf("writing to storage: %w", err)
	}

	// Step 3: confirm so the backend persists the attachment record.
	media, err := u.api.CompleteUpload(ctx, api.CompleteRequest{
		Key:      presign.Key,
		FileName: fileName,
		FileType: fileType,
		FileSize: info.Size(),
	})
	if err != nil {
		return api.Media{}, fmt.Errorf("confirming upload: %w", err)
	}

	u.logger.Info("Attachment uploaded", "id", media.ID, "key", media.Key, "bytes", info.Size())
	return media, nil
}

func (u *Uploader) put(ctx context.Context, url string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := u.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("storage rejected write with status %d", resp.StatusCode)
	}
	return nil
}
