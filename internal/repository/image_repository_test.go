package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/lewtec/boxlabeler/internal/domain"
)

func TestImageRepository_Upsert(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewImageRepository(db)
	ctx := context.Background()

	t.Run("creates image successfully", func(t *testing.T) {
		img, err := repo.Upsert(ctx, "boxes1", "/path/to/boxes1.jpg", "abc")
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		if img.ID != "boxes1" {
			t.Errorf("ID = %v, want %v", img.ID, "boxes1")
		}
		if img.Path != "/path/to/boxes1.jpg" {
			t.Errorf("Path = %v, want %v", img.Path, "/path/to/boxes1.jpg")
		}
		if img.SHA256 != "abc" {
			t.Errorf("SHA256 = %v, want %v", img.SHA256, "abc")
		}
		if img.IngestedAt.IsZero() {
			t.Error("IngestedAt should not be zero")
		}
	})

	t.Run("replaces path and hash of existing image", func(t *testing.T) {
		first, _ := repo.Get(ctx, "boxes1")

		img, err := repo.Upsert(ctx, "boxes1", "/other/boxes1.jpg", "def")
		if err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if img.Path != "/other/boxes1.jpg" {
			t.Errorf("Path = %v, want /other/boxes1.jpg", img.Path)
		}
		if img.SHA256 != "def" {
			t.Errorf("SHA256 = %v, want def", img.SHA256)
		}
		if !img.IngestedAt.Equal(first.IngestedAt) {
			t.Errorf("IngestedAt = %v, want %v", img.IngestedAt, first.IngestedAt)
		}

		count, _ := repo.Count(ctx)
		if count != 1 {
			t.Errorf("Count() = %d, want 1", count)
		}
	})
}

func TestImageRepository_Get(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewImageRepository(db)
	ctx := context.Background()

	repo.Upsert(ctx, "boxes0", "/path/to/boxes0.jpg", "")

	t.Run("retrieves existing image", func(t *testing.T) {
		img, err := repo.Get(ctx, "boxes0")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if img.Path != "/path/to/boxes0.jpg" {
			t.Errorf("Path = %v, want /path/to/boxes0.jpg", img.Path)
		}
	})

	t.Run("fails for non-existent image", func(t *testing.T) {
		_, err := repo.Get(ctx, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})
}

func TestImageRepository_List(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewImageRepository(db)
	ctx := context.Background()

	repo.Upsert(ctx, "c", "/c.jpg", "1")
	repo.Upsert(ctx, "a", "/a.jpg", "2")
	repo.Upsert(ctx, "b", "/b.jpg", "1")

	images, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(images) != 3 {
		t.Fatalf("Got %d images, want 3", len(images))
	}
	for i, want := range []domain.ImageID{"a", "b", "c"} {
		if images[i].ID != want {
			t.Errorf("images[%d].ID = %v, want %v", i, images[i].ID, want)
		}
	}

	t.Run("finds images by hash", func(t *testing.T) {
		found, err := repo.FindBySHA256(ctx, "1")
		if err != nil {
			t.Fatalf("FindBySHA256() error = %v", err)
		}
		if len(found) != 2 || found[0].ID != "b" || found[1].ID != "c" {
			t.Errorf("FindBySHA256() = %v, want [b c]", found)
		}
	})
}

func TestImageRepository_Delete(t *testing.T) {
	db := SetupTestDB(t)
	defer CleanupTestDB(t, db)

	repo := NewImageRepository(db)
	ctx := context.Background()

	repo.Upsert(ctx, "a", "/a.jpg", "")

	if err := repo.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}
}
