package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
	"github.com/lewtec/boxlabeler/internal/registry"
)

// Store snapshots registries into the database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore returns a Store on db. A nil logger means slog.Default().
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

func (s *Store) Images() *ImageRepository {
	return NewImageRepository(s.db)
}

func (s *Store) Annotations() *AnnotationRepository {
	return NewAnnotationRepository(s.db)
}

// SaveRegistry writes every image of paths (with its content hash) and every annotation of
// annotations in one transaction. Either registry may be nil. Annotations are stored
// flushed: dirty flags are cleared before encoding and set again when the transaction fails.
func (s *Store) SaveRegistry(ctx context.Context, paths *registry.ImagePathRegistry, annotations *registry.AnnotationRegistry) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("while starting snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if paths != nil {
		images := NewImageRepositoryWithTx(tx)
		for i, path := range paths.Filenames() {
			id, _ := paths.IDByIndex(i)
			var sum string
			if fs := paths.Filesystem(); fs != nil {
				if sum, err = imagefile.HashFile(fs, path); err != nil {
					return fmt.Errorf("while hashing image %q: %w", id, err)
				}
			}
			if _, err := images.Upsert(ctx, id, path, sum); err != nil {
				return err
			}
		}
	}
	if annotations != nil {
		var flushed []*domain.BoundingBox
		committed := false
		defer func() {
			if !committed {
				for _, box := range flushed {
					box.MarkDirty()
				}
			}
		}()
		for _, a := range annotations.Annotations() {
			for _, box := range a.Boxes {
				if box.Dirty() {
					box.ClearDirty()
					flushed = append(flushed, box)
				}
			}
		}

		repo := NewAnnotationRepositoryWithTx(tx)
		for _, a := range annotations.Annotations() {
			if err := repo.Save(ctx, a); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("while committing snapshot: %w", err)
		}
		committed = true
		s.logger.Debug("snapshot saved", "annotations", annotations.Len(), "flushed", len(flushed))
		return nil
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("while committing snapshot: %w", err)
	}
	return nil
}

// LoadRegistry rebuilds an annotation registry from the stored annotations, in id order.
func (s *Store) LoadRegistry(ctx context.Context) (*registry.AnnotationRegistry, error) {
	stored, err := s.Annotations().List(ctx)
	if err != nil {
		return nil, err
	}
	r := registry.NewAnnotationRegistry()
	for _, a := range stored {
		if err := r.Add(a.ImageID, a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LoadPaths rebuilds an image path registry from the stored images, in id order.
func (s *Store) LoadPaths(ctx context.Context) (*registry.ImagePathRegistry, error) {
	images, err := s.Images().List(ctx)
	if err != nil {
		return nil, err
	}
	r := registry.NewImagePathRegistry(nil)
	for _, img := range images {
		r.Add(img.ID, img.Path)
	}
	return r, nil
}
