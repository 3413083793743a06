package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lewtec/boxlabeler/internal/domain"
)

const timeLayout = time.RFC3339Nano

// ImageRepository implements domain.ImageRepository on SQLite
type ImageRepository struct {
	db DBTX
}

// NewImageRepository creates a new ImageRepository
func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// NewImageRepositoryWithTx creates a new ImageRepository bound to a transaction
func NewImageRepositoryWithTx(tx *sql.Tx) *ImageRepository {
	return &ImageRepository{db: tx}
}

// Upsert creates the image record of id or replaces its path and hash
func (r *ImageRepository) Upsert(ctx context.Context, id domain.ImageID, path, sha256 string) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO images (id, path, sha256, ingested_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET path = excluded.path, sha256 = excluded.sha256
RETURNING id, path, sha256, ingested_at`,
		string(id), path, sha256, time.Now().UTC().Format(timeLayout))
	img, err := scanImage(row)
	if err != nil {
		return nil, fmt.Errorf("while saving image %q: %w", id, err)
	}
	return img, nil
}

// Get retrieves an image by id
func (r *ImageRepository) Get(ctx context.Context, id domain.ImageID) (*domain.Image, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, path, sha256, ingested_at FROM images WHERE id = ?`, string(id))
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("image %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("while loading image %q: %w", id, err)
	}
	return img, nil
}

// List retrieves all images ordered by id
func (r *ImageRepository) List(ctx context.Context) ([]*domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, path, sha256, ingested_at FROM images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("while listing images: %w", err)
	}
	defer rows.Close()

	var result []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("while listing images: %w", err)
		}
		result = append(result, img)
	}
	return result, rows.Err()
}

// FindBySHA256 lists the images whose content hash is sum
func (r *ImageRepository) FindBySHA256(ctx context.Context, sum string) ([]*domain.Image, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, path, sha256, ingested_at FROM images WHERE sha256 = ? ORDER BY id`, sum)
	if err != nil {
		return nil, fmt.Errorf("while searching images: %w", err)
	}
	defer rows.Close()

	var result []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	return result, rows.Err()
}

// Count returns the total number of images
func (r *ImageRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("while counting images: %w", err)
	}
	return n, nil
}

// Delete removes an image by id
func (r *ImageRepository) Delete(ctx context.Context, id domain.ImageID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, string(id))
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(s scanner) (*domain.Image, error) {
	var (
		img        domain.Image
		id         string
		ingestedAt string
	)
	if err := s.Scan(&id, &img.Path, &img.SHA256, &ingestedAt); err != nil {
		return nil, err
	}
	img.ID = domain.ImageID(id)
	t, err := time.Parse(timeLayout, ingestedAt)
	if err != nil {
		return nil, fmt.Errorf("while parsing ingestion time of %q: %w", id, err)
	}
	img.IngestedAt = t
	return &img, nil
}

// Verify that ImageRepository implements domain.ImageRepository
var _ domain.ImageRepository = (*ImageRepository)(nil)
