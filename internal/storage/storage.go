package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Rodrigo-Schwindt/Backend-Render/pkg/errors"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 10 << 20

// PublicPrefix is the URL path uploaded files are served under.
const PublicPrefix = "/uploads/"

// Storage defines the interface for file storage operations.
type Storage interface {
	// Upload stores a file and returns its key and public URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by its key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// NewImageKey builds a unique key such as "products/<uuid>.jpg".
func NewImageKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 6 {
		ext = ""
	}
	return path.Join(prefix, uuid.NewString()+ext)
}

// KeyFromURL extracts the storage key from a public URL. It reports false
// for URLs that do not point into PublicPrefix.
func KeyFromURL(url string) (string, bool) {
	i := strings.Index(url, PublicPrefix)
	if i < 0 {
		return "", false
	}
	key := url[i+len(PublicPrefix):]
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// SniffImage checks the first bytes of r and returns the detected content
// type together with a reader that still yields the full content.
func SniffImage(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	ct := http.DetectContentType(head)
	if !strings.HasPrefix(ct, "image/") {
		return "", nil, apperrors.InvalidInput("only image files are allowed")
	}
	return ct, br, nil
}
