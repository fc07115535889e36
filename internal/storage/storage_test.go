package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "tattootrack/internal/errors"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestLocal_Save(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, 1024)
	require.NoError(t, err)

	t.Run("stores_png", func(t *testing.T) {
		url, err := store.Save(context.Background(), bytes.NewReader(pngHeader), int64(len(pngHeader)))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, PublicPrefix))
		assert.True(t, strings.HasSuffix(url, ".png"))

		data, err := os.ReadFile(filepath.Join(dir, filepath.Base(url)))
		require.NoError(t, err)
		assert.Equal(t, pngHeader, data)
	})

	t.Run("rejects_text", func(t *testing.T) {
		_, err := store.Save(context.Background(), strings.NewReader("just some notes"), 15)
		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "INVALID_FILE_TYPE", appErr.Code)
	})

	t.Run("rejects_declared_oversize", func(t *testing.T) {
		_, err := store.Save(context.Background(), bytes.NewReader(pngHeader), 4096)
		assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
	})

	t.Run("rejects_oversize_stream", func(t *testing.T) {
		big := append(append([]byte{}, pngHeader...), make([]byte, 2048)...)
		_, err := store.Save(context.Background(), bytes.NewReader(big), -1)
		assert.ErrorIs(t, err, apperrors.ErrFileTooLarge)
	})
}

func TestLocal_Remove(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocal(dir, 1024)
	require.NoError(t, err)

	url, err := store.Save(context.Background(), bytes.NewReader(pngHeader), -1)
	require.NoError(t, err)

	require.NoError(t, store.Remove(url))
	_, err = os.Stat(filepath.Join(dir, filepath.Base(url)))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, store.Remove(url))
	assert.NoError(t, store.Remove("https://example.com/x.png"))
}
