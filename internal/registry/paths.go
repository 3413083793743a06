// Package registry holds the two ordered maps a workspace is built around: image id to
// image path, and image id to annotation.
package registry

import (
	"cmp"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// DefaultExtension is scanned when no extension is given.
const DefaultExtension = "jpg"

// ImagePathRegistry maps image ids to image paths in scan order. Paths are relative to the
// filesystem the registry was built from.
type ImagePathRegistry struct {
	fs    billy.Filesystem
	ids   []domain.ImageID
	paths map[domain.ImageID]string
}

// NewImagePathRegistry returns an empty registry resolving paths on fs.
func NewImagePathRegistry(fs billy.Filesystem) *ImagePathRegistry {
	return &ImagePathRegistry{fs: fs, paths: map[domain.ImageID]string{}}
}

// FromDirectory scans a directory of the local disk. Recorded paths are absolute.
func FromDirectory(dir, ext string) (*ImagePathRegistry, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("while resolving %s: %w", dir, err)
	}
	return ScanFilesystem(osfs.New("/"), abs, ext)
}

// ScanFilesystem registers every file of dir whose extension matches ext, ignoring case.
// Files are visited in lexical order of their stems. Two files with the same stem keep the position of
// the first and the path of the last; the collision is logged.
func ScanFilesystem(fs billy.Filesystem, dir, ext string) (*ImagePathRegistry, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	ext = "." + strings.TrimPrefix(ext, ".")

	info, err := fs.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("while scanning %s: %w", dir, domain.ErrInvalidDirectory)
	}
	matches, err := util.Glob(fs, fs.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("while scanning %s: %w", dir, err)
	}
	slices.SortFunc(matches, func(a, b string) int {
		if c := cmp.Compare(domain.StemOf(a), domain.StemOf(b)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	r := NewImagePathRegistry(fs)
	for _, path := range matches {
		if !strings.EqualFold(filepath.Ext(path), ext) {
			continue
		}
		if info, err := fs.Stat(path); err != nil || info.IsDir() {
			continue
		}
		id := domain.StemOf(path)
		if previous, replaced := r.Add(id, path); replaced {
			slog.Warn("duplicate image id, keeping the later file", "id", id, "dropped", previous, "kept", path)
		}
	}
	return r, nil
}

// Add registers path under id. An existing id keeps its position and gets the new path;
// the previous path is returned with replaced set.
func (r *ImagePathRegistry) Add(id domain.ImageID, path string) (previous string, replaced bool) {
	previous, replaced = r.paths[id]
	if !replaced {
		r.ids = append(r.ids, id)
	}
	r.paths[id] = path
	return previous, replaced
}

func (r *ImagePathRegistry) Filesystem() billy.Filesystem {
	return r.fs
}

// SetFilesystem changes the filesystem paths are resolved on, typically after loading the
// registry from JSON.
func (r *ImagePathRegistry) SetFilesystem(fs billy.Filesystem) {
	r.fs = fs
}

func (r *ImagePathRegistry) Len() int {
	return len(r.ids)
}

func (r *ImagePathRegistry) IDByIndex(i int) (domain.ImageID, error) {
	if i < 0 || i >= len(r.ids) {
		return "", fmt.Errorf("%w: image %d of %d", domain.ErrIndexOutOfRange, i, len(r.ids))
	}
	return r.ids[i], nil
}

func (r *ImagePathRegistry) FilenameByIndex(i int) (string, error) {
	id, err := r.IDByIndex(i)
	if err != nil {
		return "", err
	}
	return r.paths[id], nil
}

func (r *ImagePathRegistry) FilenameByID(id domain.ImageID) (string, error) {
	path, ok := r.paths[id]
	if !ok {
		return "", fmt.Errorf("image %q: %w", id, domain.ErrNotFound)
	}
	return path, nil
}

// IndexOf returns the scan position of id, or -1.
func (r *ImagePathRegistry) IndexOf(id domain.ImageID) int {
	return slices.Index(r.ids, id)
}

// Contains accepts an image id or a filename whose stem is an image id.
func (r *ImagePathRegistry) Contains(s string) bool {
	if _, ok := r.paths[domain.ImageID(s)]; ok {
		return true
	}
	_, ok := r.paths[domain.StemOf(s)]
	return ok
}

// IDs returns the ids in scan order.
func (r *ImagePathRegistry) IDs() []domain.ImageID {
	return slices.Clone(r.ids)
}

// Filenames returns the paths in scan order.
func (r *ImagePathRegistry) Filenames() []string {
	out := make([]string, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.paths[id]
	}
	return out
}

// Open opens the image of id on the registry filesystem.
func (r *ImagePathRegistry) Open(id domain.ImageID) (billy.File, error) {
	path, err := r.FilenameByID(id)
	if err != nil {
		return nil, err
	}
	if r.fs == nil {
		return nil, fmt.Errorf("while opening %s: registry has no filesystem", path)
	}
	return r.fs.Open(path)
}

// MarshalJSON writes the raw id to path object in scan order.
func (r *ImagePathRegistry) MarshalJSON() ([]byte, error) {
	return writeObject(r.ids, func(id domain.ImageID) ([]byte, error) {
		return json.Marshal(r.paths[id])
	})
}

// UnmarshalJSON replaces the content of r, keeping the document order. The filesystem is
// left as is.
func (r *ImagePathRegistry) UnmarshalJSON(data []byte) error {
	ids := []domain.ImageID{}
	paths := map[domain.ImageID]string{}
	err := readObject(data, func(id domain.ImageID, raw json.RawMessage) error {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return fmt.Errorf("%w: path of %q: %v", domain.ErrParse, id, err)
		}
		if _, seen := paths[id]; !seen {
			ids = append(ids, id)
		}
		paths[id] = path
		return nil
	})
	if err != nil {
		return err
	}
	r.ids, r.paths = ids, paths
	return nil
}
