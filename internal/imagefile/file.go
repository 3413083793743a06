package imagefile

import (
	"crypto/sha256"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v6"
	"github.com/google/uuid"
)

// HashFile returns the hex encoded SHA-256 of the file at path.
func HashFile(fs billy.Filesystem, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("while hashing %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// ReadFile returns the whole content of path.
func ReadFile(fs billy.Filesystem, path string) ([]byte, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteAtomic streams write into a uuid named temp file next to filename and renames it
// into place once write succeeds. On failure the temp file is removed and filename is
// left untouched.
func WriteAtomic(fs billy.Filesystem, filename string, write func(w io.Writer) error) error {
	dir := filepath.Dir(filename)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("while creating %s: %w", dir, err)
	}
	tempFile := fs.Join(dir, fmt.Sprintf(".%s.tmp", uuid.New()))
	f, err := fs.Create(tempFile)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		fs.Remove(tempFile)
		return err
	}
	if err := f.Close(); err != nil {
		fs.Remove(tempFile)
		return err
	}
	if err := fs.Rename(tempFile, filename); err != nil {
		fs.Remove(tempFile)
		return fmt.Errorf("while moving %s into place: %w", filename, err)
	}
	return nil
}

// WriteFile is WriteAtomic for an in-memory payload.
func WriteFile(fs billy.Filesystem, filename string, data []byte) error {
	return WriteAtomic(fs, filename, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
