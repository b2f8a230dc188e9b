package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"battlearena/internal/models"
)

type mockObjectStore struct {
	mock.Mock
	stored []byte
}

func (m *mockObjectStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.stored = data
	args := m.Called(ctx, key, size, contentType)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockObjectStore) URL(key string) string {
	return "https://cdn.example.com/avatars/" + key
}

func fileHeader(contentType string) *multipart.FileHeader {
	header := textproto.MIMEHeader{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &multipart.FileHeader{Filename: "avatar", Header: header}
}

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestAvatarUploadStoresUnderUserPrefix(t *testing.T) {
	store := &mockObjectStore{}
	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "avatars/u1/") && strings.HasSuffix(key, ".png")
	}), int64(len(pngBytes)), "image/png").Return(int64(len(pngBytes)), nil)

	svc := NewAvatarService(store, zerolog.Nop())
	avatar, err := svc.Upload(context.Background(), models.User{ID: "u1"}, AvatarUpload{
		File:   bytes.NewReader(pngBytes),
		Header: fileHeader("image/png"),
	})
	require.NoError(t, err)

	assert.Equal(t, "png", avatar.Format)
	assert.Equal(t, int64(len(pngBytes)), avatar.SizeBytes)
	assert.Equal(t, "https://cdn.example.com/avatars/"+avatar.Key, avatar.URL)
	store.AssertExpectations(t)
}

func TestAvatarUploadSanitizesSVG(t *testing.T) {
	store := &mockObjectStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, "image/svg+xml").Return(int64(10), nil)

	svc := NewAvatarService(store, zerolog.Nop())
	_, err := svc.Upload(context.Background(), models.User{ID: "u1"}, AvatarUpload{
		File:   strings.NewReader(`<svg onload="x()"><script>x()</script><rect/></svg>`),
		Header: fileHeader(""),
	})
	require.NoError(t, err)
	assert.Equal(t, "<svg><rect/></svg>", string(store.stored))
}

func TestAvatarUploadRejections(t *testing.T) {
	tests := []struct {
		name   string
		upload AvatarUpload
	}{
		{name: "missing file", upload: AvatarUpload{}},
		{name: "empty", upload: AvatarUpload{File: bytes.NewReader(nil), Header: fileHeader("")}},
		{name: "unknown format", upload: AvatarUpload{File: strings.NewReader("hello"), Header: fileHeader("")}},
		{name: "declared type mismatch", upload: AvatarUpload{File: bytes.NewReader(pngBytes), Header: fileHeader("image/gif")}},
		{name: "too large", upload: AvatarUpload{
			File:   io.MultiReader(bytes.NewReader(pngBytes), bytes.NewReader(make([]byte, maxAvatarBytes))),
			Header: fileHeader("image/png"),
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &mockObjectStore{}
			svc := NewAvatarService(store, zerolog.Nop())
			_, err := svc.Upload(context.Background(), models.User{ID: "u1"}, tc.upload)
			assert.ErrorIs(t, err, ErrValidation)
			store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAvatarUploadStoreFailure(t *testing.T) {
	boom := errors.New("bucket gone")
	store := &mockObjectStore{}
	store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(int64(0), boom)

	svc := NewAvatarService(store, zerolog.Nop())
	_, err := svc.Upload(context.Background(), models.User{ID: "u1"}, AvatarUpload{
		File:   bytes.NewReader(pngBytes),
		Header: fileHeader("image/png"),
	})
	assert.ErrorIs(t, err, boom)
}
