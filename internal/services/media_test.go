package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type mockStore struct{ mock.Mock }

func (m *mockStore) Save(ctx context.Context, folder, filename string, data []byte) (string, error) {
	args := m.Called(ctx, folder, filename, data)
	return args.String(0), args.Error(1)
}

func TestReadUpload(t *testing.T) {
	up, err := ReadUpload(bytes.NewReader(pngHeader), "shot", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", up.ContentType)
	assert.Equal(t, "shot.png", up.Filename)

	up, err = ReadUpload(bytes.NewReader(pngHeader), "evil.html", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "evil.png", up.Filename)

	svg := `<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`
	_, err = ReadUpload(strings.NewReader(svg), "logo.svg", 1<<20)
	assert.EqualError(t, err, "Only image and video files are allowed")

	_, err = ReadUpload(strings.NewReader("just some text"), "notes.txt", 1<<20)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	big := append(append([]byte{}, pngHeader...), make([]byte, 64)...)
	_, err = ReadUpload(bytes.NewReader(big), "big.png", 32)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ReadUpload(bytes.NewReader(nil), "empty.png", 32)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLocalStore_Save(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(filepath.Join(dir, "uploads"))

	url, err := s.Save(context.Background(), FolderPosts, "photo.PNG", pngHeader)
	require.NoError(t, err)
	assert.Regexp(t, `^/uploads/\d+-[0-9a-f-]{36}\.png$`, url)

	written, err := os.ReadFile(filepath.Join(dir, "uploads", strings.TrimPrefix(url, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, pngHeader, written)

	url, err = s.Save(context.Background(), FolderPosts, "evil.html", pngHeader)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
}

func TestFallbackStore(t *testing.T) {
	ctx := context.Background()

	t.Run("primary success", func(t *testing.T) {
		primary, fallback := &mockStore{}, &mockStore{}
		primary.On("Save", ctx, FolderPosts, "a.png", pngHeader).Return("https://cdn/a.png", nil)

		url, err := (&FallbackStore{Primary: primary, Fallback: fallback}).Save(ctx, FolderPosts, "a.png", pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn/a.png", url)
		fallback.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("primary failure falls back", func(t *testing.T) {
		primary, fallback := &mockStore{}, &mockStore{}
		primary.On("Save", ctx, FolderPosts, "a.png", pngHeader).Return("", errors.New("cloud down"))
		fallback.On("Save", ctx, FolderPosts, "a.png", pngHeader).Return("/uploads/a.png", nil)

		url, err := (&FallbackStore{Primary: primary, Fallback: fallback}).Save(ctx, FolderPosts, "a.png", pngHeader)
		require.NoError(t, err)
		assert.Equal(t, "/uploads/a.png", url)
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("both fail", func(t *testing.T) {
		primary, fallback := &mockStore{}, &mockStore{}
		primary.On("Save", ctx, FolderPosts, "a.png", pngHeader).Return("", errors.New("cloud down"))
		fallback.On("Save", ctx, FolderPosts, "a.png", pngHeader).Return("", errors.New("disk full"))

		_, err := (&FallbackStore{Primary: primary, Fallback: fallback}).Save(ctx, FolderPosts, "a.png", pngHeader)
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}
