package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned by Download when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStorage defines the interface for object storage operations
type ObjectStorage interface {
	// Upload stores an object under key, replacing any previous content
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading; the caller closes it
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// GetURL returns a locator for the object, for logs and job records
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadKey builds the storage key for an uploaded file. Every upload gets
// its own prefix so two clients sending the same file name never collide;
// only the base name of the client supplied name is kept.
func UploadKey(uploadID, fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == ".." || base == "" {
		base = "upload.xml"
	}
	return path.Join("uploads", uploadID, base)
}
