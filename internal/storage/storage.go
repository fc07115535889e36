// Package storage keeps uploaded images on local disk.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/uuid"
)

// PublicPrefix is the URL path the upload directory is served under.
const PublicPrefix = "/uploads/"

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Local writes images into a single directory.
type Local struct {
	dir      string
	maxBytes int64
}

// NewLocal creates the directory if needed.
func NewLocal(dir string, maxBytes int64) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Local{dir: dir, maxBytes: maxBytes}, nil
}

// Dir returns the directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

// Save sniffs the content type, writes the image under a fresh name and
// returns its public URL. size is the declared size, or -1 if unknown.
func (l *Local) Save(ctx context.Context, src io.Reader, size int64) (string, error) {
	if size > l.maxBytes {
		return "", apperrors.ErrFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(src, l.maxBytes+1))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if int64(len(data)) > l.maxBytes {
		return "", apperrors.ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	ext, ok := allowedTypes[baseType(mtype.String())]
	if !ok {
		return "", apperrors.WithMessage(apperrors.ErrInvalidFileType,
			fmt.Sprintf("unsupported file type %s", mtype.String()))
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.New() + ext
	dst, err := os.OpenFile(filepath.Join(l.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, bytes.NewReader(data)); err != nil {
		_ = os.Remove(dst.Name())
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return PublicPrefix + name, nil
}

// Remove deletes the file behind a URL returned by Save. Missing files
// and URLs outside the upload prefix are ignored.
func (l *Local) Remove(url string) error {
	if !strings.HasPrefix(url, PublicPrefix) {
		return nil
	}
	name := path.Base(url)
	if name == "." || name == "/" {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func baseType(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return m[:i]
	}
	return m
}
