package repository

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/go-git/go-billy/v6/memfs"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
	"github.com/lewtec/boxlabeler/internal/registry"
)

func setupTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	db := SetupTestDB(t)
	t.Cleanup(func() { CleanupTestDB(t, db) })

	return NewStore(db, nil), context.Background()
}

func testAnnotation(id domain.ImageID) *domain.Annotation {
	a := domain.NewAnnotation(id, 500, 600)
	a.OriginFilename = string(id) + ".xml"
	a.AppendBox(domain.BoxParams{XMin: 173, YMin: 344, XMax: 261, YMax: 429, Label: "pill"})
	a.AppendBox(domain.BoxParams{XMin: 10, YMin: 20, XMax: 30, YMax: 40, Label: "not_pill"})
	return a
}

func TestAnnotationRepository_Save(t *testing.T) {
	store, ctx := setupTestStore(t)
	repo := store.Annotations()

	t.Run("saves and loads annotation", func(t *testing.T) {
		a := testAnnotation("boxes1")
		if err := repo.Save(ctx, a); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := repo.Get(ctx, "boxes1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Width != 500 || got.Height != 600 {
			t.Errorf("size = %dx%d, want 500x600", got.Width, got.Height)
		}
		if got.OriginFilename != "boxes1.xml" {
			t.Errorf("OriginFilename = %v, want boxes1.xml", got.OriginFilename)
		}
		if len(got.Boxes) != 2 {
			t.Fatalf("Got %d boxes, want 2", len(got.Boxes))
		}
		if got.Boxes[1].Label() != "not_pill" {
			t.Errorf("Boxes[1].Label() = %v, want not_pill", got.Boxes[1].Label())
		}
		if !got.Version.EqualString("0.0.3") {
			t.Errorf("Version = %v, want 0.0.3", got.Version)
		}
	})

	t.Run("replaces existing annotation", func(t *testing.T) {
		if err := repo.Save(ctx, domain.NewAnnotation("boxes1", 1, 1)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, _ := repo.Get(ctx, "boxes1")
		if got.HasBoxes() {
			t.Error("replaced annotation should have no boxes")
		}
		count, _ := repo.Count(ctx)
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
	})
}

func TestAnnotationRepository_Get(t *testing.T) {
	store, ctx := setupTestStore(t)

	_, err := store.Annotations().Get(ctx, "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}

	t.Run("fails on a corrupt payload", func(t *testing.T) {
		MustExec(t, store.db, `INSERT INTO annotations (image_id, payload, version, updated_at) VALUES ('bad', '{"image_id":"bad"}', '0.0.3', '')`)
		_, err := store.Annotations().Get(ctx, "bad")
		if !errors.Is(err, domain.ErrUnresolvableTypeTag) {
			t.Errorf("Get() error = %v, want ErrUnresolvableTypeTag", err)
		}
	})
}

func TestAnnotationRepository_CountBoxes(t *testing.T) {
	store, ctx := setupTestStore(t)
	repo := store.Annotations()

	repo.Save(ctx, testAnnotation("a"))
	repo.Save(ctx, testAnnotation("b"))
	repo.Save(ctx, domain.NewAnnotation("c", 1, 1))

	boxes, err := repo.CountBoxes(ctx)
	if err != nil {
		t.Fatalf("CountBoxes() error = %v", err)
	}
	if boxes != 4 {
		t.Errorf("CountBoxes() = %d, want 4", boxes)
	}

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	all, _ := repo.List(ctx)
	if len(all) != 2 || all[0].ImageID != "b" || all[1].ImageID != "c" {
		t.Errorf("List() after Delete() returned %d annotations", len(all))
	}
}

func TestStore_SaveRegistry(t *testing.T) {
	store, ctx := setupTestStore(t)

	fs := memfs.New()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"images/b.jpg", "images/a.jpg"} {
		if err := imagefile.WriteFile(fs, name, buf.Bytes()); err != nil {
			t.Fatal(err)
		}
	}
	paths, err := registry.ScanFilesystem(fs, "images", "jpg")
	if err != nil {
		t.Fatalf("ScanFilesystem() error = %v", err)
	}
	annotations, err := registry.MakeEmpty(paths, nil)
	if err != nil {
		t.Fatalf("MakeEmpty() error = %v", err)
	}
	if err := annotations.Update("b", testAnnotation("b")); err != nil {
		t.Fatal(err)
	}
	if len(annotations.Dirty()) != 1 {
		t.Fatalf("Dirty() = %v, want [b]", annotations.Dirty())
	}

	if err := store.SaveRegistry(ctx, paths, annotations); err != nil {
		t.Fatalf("SaveRegistry() error = %v", err)
	}

	t.Run("clears dirty flags", func(t *testing.T) {
		if dirty := annotations.Dirty(); len(dirty) != 0 {
			t.Errorf("Dirty() = %v, want none", dirty)
		}
	})

	t.Run("stores hashed images", func(t *testing.T) {
		want, _ := imagefile.HashFile(fs, "images/a.jpg")
		img, err := store.Images().Get(ctx, "a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if img.SHA256 != want {
			t.Errorf("SHA256 = %v, want %v", img.SHA256, want)
		}
		loaded, err := store.LoadPaths(ctx)
		if err != nil {
			t.Fatalf("LoadPaths() error = %v", err)
		}
		if loaded.Len() != 2 {
			t.Errorf("LoadPaths().Len() = %d, want 2", loaded.Len())
		}
	})

	t.Run("loads registry in id order", func(t *testing.T) {
		loaded, err := store.LoadRegistry(ctx)
		if err != nil {
			t.Fatalf("LoadRegistry() error = %v", err)
		}
		ids := loaded.IDs()
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Fatalf("IDs() = %v, want [a b]", ids)
		}
		b, _ := loaded.Get("b")
		if len(b.Boxes) != 2 {
			t.Errorf("Got %d boxes for b, want 2", len(b.Boxes))
		}
		if dirty := loaded.Dirty(); len(dirty) != 0 {
			t.Errorf("loaded Dirty() = %v, want none", dirty)
		}
	})
}

func TestStore_SaveRegistryFailureKeepsDirty(t *testing.T) {
	store, ctx := setupTestStore(t)
	annotations := registry.NewAnnotationRegistry()
	if err := annotations.Add("b", testAnnotation("b")); err != nil {
		t.Fatal(err)
	}
	MustExec(t, store.db, `DROP TABLE annotations`)

	if err := store.SaveRegistry(ctx, nil, annotations); err == nil {
		t.Fatal("SaveRegistry() error = nil, want an error")
	}
	b, _ := annotations.Get("b")
	for i, box := range b.Boxes {
		if !box.Dirty() {
			t.Errorf("Boxes[%d].Dirty() = false after a failed snapshot", i)
		}
	}
}
