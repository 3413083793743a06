package domain

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// ImageID identifies an image by its filename stem.
type ImageID string

// StemOf derives the ImageID of a filename: base name without its last extension.
func StemOf(filename string) ImageID {
	base := filepath.Base(filename)
	return ImageID(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Image is an image known to the snapshot store
type Image struct {
	ID         ImageID
	Path       string
	SHA256     string
	IngestedAt time.Time
}

// ImageRepository defines the interface for image storage operations
type ImageRepository interface {
	// Upsert creates or updates the image record of id
	Upsert(ctx context.Context, id ImageID, path, sha256 string) (*Image, error)

	// Get retrieves an image by id, failing with ErrNotFound
	Get(ctx context.Context, id ImageID) (*Image, error)

	// List retrieves all images ordered by id
	List(ctx context.Context) ([]*Image, error)

	// Count returns the total number of images
	Count(ctx context.Context) (int64, error)

	// Delete removes an image by id
	Delete(ctx context.Context, id ImageID) error
}
