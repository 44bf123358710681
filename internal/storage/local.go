package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is the public path uploaded files are served under.
const URLPrefix = "/storage/"

// MaxImageSize is the largest accepted product image.
const MaxImageSize = 2 << 20

var (
	ErrImageTooLarge   = errors.New("image exceeds 2 MiB")
	ErrUnsupportedType = errors.New("image must be jpeg, png or gif")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Upload is an image received with a catalog write.
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// LocalStore keeps product images on the local filesystem below Dir, in the
// uploads/ subdirectory, and hands out /storage/uploads/<name> URLs.
type LocalStore struct {
	Dir string
}

// NewLocalStore creates the uploads directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{Dir: dir}, nil
}

// Save validates and writes the upload, returning its public URL.
func (s *LocalStore) Save(up *Upload) (string, error) {
	if up.Size > MaxImageSize {
		return "", ErrImageTooLarge
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", ErrUnsupportedType
		}
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]

	ext, ok := imageExtensions[http.DetectContentType(head)]
	if !ok {
		return "", ErrUnsupportedType
	}

	name := path.Join("uploads", uuid.New().String()+ext)
	dst, err := os.Create(filepath.Join(s.Dir, filepath.FromSlash(name)))
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	// One extra byte past the limit detects bodies that lied about Size.
	written, err := io.Copy(dst, io.LimitReader(io.MultiReader(bytes.NewReader(head), up.Body), MaxImageSize+1))
	if err == nil && written > MaxImageSize {
		err = ErrImageTooLarge
	}
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(dst.Name())
		if errors.Is(err, ErrImageTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return URLPrefix + name, nil
}

// Delete removes the file behind url. URLs outside the store (external image
// links, seeded paths) and files that are already gone are ignored.
func (s *LocalStore) Delete(url string) error {
	rel, ok := s.relPath(url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete image %s: %w", url, err)
	}
	return nil
}

// Handler serves stored files under URLPrefix.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(URLPrefix, http.FileServer(http.Dir(s.Dir)))
}

func (s *LocalStore) relPath(url string) (string, bool) {
	if !strings.HasPrefix(url, URLPrefix+"uploads/") {
		return "", false
	}
	rel := path.Clean(strings.TrimPrefix(url, URLPrefix))
	if !strings.HasPrefix(rel, "uploads/") {
		return "", false
	}
	return rel, true
}
