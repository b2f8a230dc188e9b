package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"battlearena/internal/ids"
	"battlearena/internal/media/sniffer"
	"battlearena/internal/media/svg"
	"battlearena/internal/models"
)

const maxAvatarBytes = 2 << 20

// ObjectStore persists avatar bytes. *storage.ObjectStore satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	URL(key string) string
}

type AvatarUpload struct {
	File   io.Reader
	Header *multipart.FileHeader
}

type Avatar struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"sizeBytes"`
}

type AvatarService struct {
	store ObjectStore
	log   zerolog.Logger
}

func NewAvatarService(store ObjectStore, log zerolog.Logger) *AvatarService {
	return &AvatarService{
		store: store,
		log:   log,
	}
}

// Upload sniffs, sanitizes and stores an avatar image owned by user.
func (s *AvatarService) Upload(ctx context.Context, user models.User, input AvatarUpload) (Avatar, error) {
	if input.File == nil || input.Header == nil {
		return Avatar{}, invalid("file is required")
	}

	data, err := io.ReadAll(io.LimitReader(input.File, maxAvatarBytes+1))
	if err != nil {
		return Avatar{}, fmt.Errorf("read avatar: %w", err)
	}
	if len(data) == 0 {
		return Avatar{}, invalid("file is empty")
	}
	if len(data) > maxAvatarBytes {
		return Avatar{}, invalid("file exceeds %d bytes", maxAvatarBytes)
	}

	format, err := sniffer.Detect(data)
	if err != nil {
		return Avatar{}, invalid("%v", err)
	}

	declared := sniffer.DeclaredType(input.Header.Header)
	if declared != "" && declared != "application/octet-stream" && declared != format.MIME() {
		return Avatar{}, invalid("content type mismatch: declared %s, actual %s", declared, format.MIME())
	}

	if format == sniffer.FormatSVG {
		clean, err := svg.Sanitize(data)
		if errors.Is(err, svg.ErrNotSVG) {
			return Avatar{}, invalid("%v", err)
		}
		if err != nil {
			return Avatar{}, fmt.Errorf("sanitize svg: %w", err)
		}
		data = clean
	}

	key := fmt.Sprintf("avatars/%s/%s.%s", user.ID, ids.New(), format.Ext())
	size, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), format.MIME())
	if err != nil {
		return Avatar{}, oops.In("avatar").With("user_id", user.ID).With("key", key).Wrap(err)
	}

	s.log.Info().Str("user_id", user.ID).Str("key", key).Int64("size", size).Msg("avatar stored")

	return Avatar{
		Key:       key,
		URL:       s.store.URL(key),
		Format:    string(format),
		SizeBytes: size,
	}, nil
}
