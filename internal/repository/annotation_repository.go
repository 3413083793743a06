package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// AnnotationRepository implements domain.AnnotationRepository on SQLite. Annotations are
// stored as tagged JSON records.
type AnnotationRepository struct {
	db DBTX
}

// NewAnnotationRepository creates a new AnnotationRepository
func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

// NewAnnotationRepositoryWithTx creates a new AnnotationRepository bound to a transaction
func NewAnnotationRepositoryWithTx(tx *sql.Tx) *AnnotationRepository {
	return &AnnotationRepository{db: tx}
}

// Save creates or replaces the annotation of its image
func (r *AnnotationRepository) Save(ctx context.Context, a *domain.Annotation) error {
	payload, err := domain.Records.Encode(a)
	if err != nil {
		return fmt.Errorf("while encoding annotation of %q: %w", a.ImageID, err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO annotations (image_id, payload, version, box_count, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(image_id) DO UPDATE SET
  payload = excluded.payload,
  version = excluded.version,
  box_count = excluded.box_count,
  updated_at = excluded.updated_at`,
		string(a.ImageID), string(payload), a.Version.String(), len(a.Boxes), time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("while saving annotation of %q: %w", a.ImageID, err)
	}
	return nil
}

// Get retrieves the annotation of an image
func (r *AnnotationRepository) Get(ctx context.Context, id domain.ImageID) (*domain.Annotation, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM annotations WHERE image_id = ?`, string(id)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("annotation of %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("while loading annotation of %q: %w", id, err)
	}
	return decodePayload(id, payload)
}

// List retrieves every annotation ordered by image id
func (r *AnnotationRepository) List(ctx context.Context) ([]*domain.Annotation, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT image_id, payload FROM annotations ORDER BY image_id`)
	if err != nil {
		return nil, fmt.Errorf("while listing annotations: %w", err)
	}
	defer rows.Close()

	var result []*domain.Annotation
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("while listing annotations: %w", err)
		}
		a, err := decodePayload(domain.ImageID(id), payload)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// Count returns the number of stored annotations
func (r *AnnotationRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("while counting annotations: %w", err)
	}
	return n, nil
}

// CountBoxes returns the number of boxes over all stored annotations, deleted ones included
func (r *AnnotationRepository) CountBoxes(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(box_count), 0) FROM annotations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("while counting boxes: %w", err)
	}
	return n, nil
}

// Delete removes the annotation of an image
func (r *AnnotationRepository) Delete(ctx context.Context, id domain.ImageID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM annotations WHERE image_id = ?`, string(id))
	return err
}

func decodePayload(id domain.ImageID, payload string) (*domain.Annotation, error) {
	a, err := domain.DecodeAnnotation([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("while decoding stored annotation of %q: %w", id, err)
	}
	return a, nil
}

// Verify that AnnotationRepository implements domain.AnnotationRepository
var _ domain.AnnotationRepository = (*AnnotationRepository)(nil)
