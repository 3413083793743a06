package annotation

import (
	"context"
	"fmt"

	"github.com/lewtec/boxlabeler/internal/repository"
)

// Snapshot stores both registries in the SQLite database at filename, creating and
// migrating it when needed. Dirty flags are cleared once the snapshot is committed.
func (w *Workspace) Snapshot(ctx context.Context, filename string) error {
	w.Logger.Debug("Snapshot: opening database", "file", filename)
	db, err := repository.Open(filename)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.NewStore(db, w.Logger).SaveRegistry(ctx, w.Paths, w.Annotations); err != nil {
		return fmt.Errorf("while writing snapshot %s: %w", filename, err)
	}
	w.Logger.Info("snapshot written", "file", filename, "annotations", w.Annotations.Len())
	return nil
}

// RestoreSnapshot replaces the annotation registry with the one stored at filename and
// the path registry with the stored images, resolved on the workspace filesystem.
func (w *Workspace) RestoreSnapshot(ctx context.Context, filename string) error {
	db, err := repository.Open(filename)
	if err != nil {
		return err
	}
	defer db.Close()

	store := repository.NewStore(db, w.Logger)
	paths, err := store.LoadPaths(ctx)
	if err != nil {
		return fmt.Errorf("while reading snapshot %s: %w", filename, err)
	}
	annotations, err := store.LoadRegistry(ctx)
	if err != nil {
		return fmt.Errorf("while reading snapshot %s: %w", filename, err)
	}
	paths.SetFilesystem(w.FS)
	w.Paths, w.Annotations = paths, annotations
	return nil
}
