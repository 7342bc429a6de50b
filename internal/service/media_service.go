package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"time"

	"github.com/rs/zerolog"

	"github.com/Milan-Sharma1/vsp-backend/internal/errs"
	"github.com/Milan-Sharma1/vsp-backend/internal/ids"
	"github.com/Milan-Sharma1/vsp-backend/internal/media/sniffer"
	"github.com/Milan-Sharma1/vsp-backend/internal/models"
	"github.com/Milan-Sharma1/vsp-backend/internal/repository"
	"github.com/Milan-Sharma1/vsp-backend/internal/storage"
)

// Upload is a file staged by the transport layer.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

func UploadFromFileHeader(fh *multipart.FileHeader) *Upload {
	if fh == nil {
		return nil
	}
	return &Upload{
		Filename:    fh.Filename,
		ContentType: sniffer.MimeTypeFromHTTP(fh.Header),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

type BlobPutter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.Blob, error)
}

type BlobReleaser interface {
	Release(ctx context.Context, key, reason string) error
}

type mediaStore interface {
	ReplaceMedia(ctx context.Context, id string, slot models.MediaSlot, url, key string) (models.User, string, error)
}

type MediaService struct {
	users    mediaStore
	store    BlobPutter
	releaser BlobReleaser
	maxBytes int64
	now      func() time.Time
	log      zerolog.Logger
}

func NewMediaService(users mediaStore, store BlobPutter, releaser BlobReleaser, maxBytes int64, log zerolog.Logger) *MediaService {
	return &MediaService{
		users:    users,
		store:    store,
		releaser: releaser,
		maxBytes: maxBytes,
		now:      time.Now,
		log:      log,
	}
}

// Accept checks that the upload is an image and stores it under the slot's
// prefix.
func (s *MediaService) Accept(ctx context.Context, slot models.MediaSlot, upload *Upload) (storage.Blob, error) {
	if !slot.Valid() {
		return storage.Blob{}, errs.Validation("unknown media slot")
	}
	if upload == nil || upload.Open == nil {
		return storage.Blob{}, errs.Validation(fmt.Sprintf("%s file is missing", slot))
	}
	if upload.Size <= 0 {
		return storage.Blob{}, errs.Validation(fmt.Sprintf("%s file is empty", slot))
	}
	if s.maxBytes > 0 && upload.Size > s.maxBytes {
		return storage.Blob{}, errs.Validation(fmt.Sprintf("%s file exceeds %d bytes", slot, s.maxBytes))
	}

	file, err := upload.Open()
	if err != nil {
		return storage.Blob{}, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	detected, head, err := sniffer.Detect(file)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return storage.Blob{}, errs.Validation(fmt.Sprintf("%s must be a jpeg, png, gif, webp or avif image", slot))
		}
		return storage.Blob{}, fmt.Errorf("read upload: %w", err)
	}
	if !detected.Matches(upload.ContentType) {
		return storage.Blob{}, errs.Validation(fmt.Sprintf("content type mismatch: declared %s, actual %s", upload.ContentType, detected.MIME))
	}

	key := s.objectKey(slot, detected.Ext())
	body := io.MultiReader(bytes.NewReader(head), file)

	blob, err := s.store.Put(ctx, key, body, upload.Size, detected.MIME)
	if err != nil {
		return storage.Blob{}, errs.Upstream(fmt.Sprintf("failed to store %s", slot), err)
	}
	return blob, nil
}

// Replace points the user's slot at blob. The previous blob is released only
// after the new reference is persisted; if persisting fails the new blob is
// released instead. Release failures are logged and never fail the call.
func (s *MediaService) Replace(ctx context.Context, userID string, slot models.MediaSlot, blob storage.Blob) (models.PublicUser, error) {
	if !slot.Valid() {
		return models.PublicUser{}, errs.Validation("unknown media slot")
	}

	user, oldKey, err := s.users.ReplaceMedia(ctx, userID, slot, blob.URL, blob.Key)
	if err != nil {
		s.Discard(ctx, userID, slot, blob.Key, "replace failed")
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.PublicUser{}, errs.NotFound("user not found")
		}
		return models.PublicUser{}, fmt.Errorf("replace %s: %w", slot, err)
	}

	if oldKey != "" && oldKey != blob.Key {
		s.Discard(ctx, userID, slot, oldKey, "replaced")
	}
	return user.Public(), nil
}

// Update accepts the upload and swaps it into the slot.
func (s *MediaService) Update(ctx context.Context, userID string, slot models.MediaSlot, upload *Upload) (models.PublicUser, error) {
	blob, err := s.Accept(ctx, slot, upload)
	if err != nil {
		return models.PublicUser{}, err
	}
	return s.Replace(ctx, userID, slot, blob)
}

// Discard schedules release of a blob that nothing references.
func (s *MediaService) Discard(ctx context.Context, userID string, slot models.MediaSlot, key, reason string) {
	if key == "" {
		return
	}
	if err := s.releaser.Release(context.WithoutCancel(ctx), key, reason); err != nil {
		s.log.Warn().
			Err(err).
			Str("user_id", userID).
			Str("slot", string(slot)).
			Str("key", key).
			Msg("release media failed")
	}
}

func (s *MediaService) objectKey(slot models.MediaSlot, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", slot, s.now().UTC().Format("2006/01/02"), ids.New(), ext)
}
