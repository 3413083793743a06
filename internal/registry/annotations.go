package registry

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/go-git/go-billy/v6"

	"github.com/lewtec/boxlabeler/internal/codec/record"
	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
)

// AnnotationRegistry maps image ids to annotations in insertion order.
type AnnotationRegistry struct {
	ids     []domain.ImageID
	entries map[domain.ImageID]*domain.Annotation
}

func NewAnnotationRegistry() *AnnotationRegistry {
	return &AnnotationRegistry{entries: map[domain.ImageID]*domain.Annotation{}}
}

// MakeEmpty creates one annotation without boxes per image of paths, reading the pixel
// size of every image. The first unreadable image aborts the whole registry. A nil prober
// probes on the filesystem of paths.
func MakeEmpty(paths *ImagePathRegistry, prober *imagefile.Prober) (*AnnotationRegistry, error) {
	if prober == nil {
		prober = imagefile.NewProber(paths.Filesystem())
	}
	r := NewAnnotationRegistry()
	for i, id := range paths.ids {
		size, err := prober.Dimensions(paths.paths[id])
		if err != nil {
			return nil, fmt.Errorf("while reading image %d (%s): %w", i, id, err)
		}
		if err := r.Add(id, domain.NewAnnotation(id, size.Width, size.Height)); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *AnnotationRegistry) Len() int {
	return len(r.ids)
}

func (r *AnnotationRegistry) Contains(id domain.ImageID) bool {
	_, ok := r.entries[id]
	return ok
}

// Get returns the annotation of id or fails with domain.ErrNotFound.
func (r *AnnotationRegistry) Get(id domain.ImageID) (*domain.Annotation, error) {
	a, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("annotation of %q: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// Add inserts a at the end. An id already present fails with domain.ErrDuplicateKey.
func (r *AnnotationRegistry) Add(id domain.ImageID, a *domain.Annotation) error {
	if err := checkEntry(id, a); err != nil {
		return err
	}
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("annotation of %q: %w", id, domain.ErrDuplicateKey)
	}
	r.ids = append(r.ids, id)
	r.entries[id] = a
	return nil
}

// Update applies change to the annotation of id, which must exist. A *domain.Annotation
// replaces the entry; a domain.AnnotationPatch is merged into it.
func (r *AnnotationRegistry) Update(id domain.ImageID, change domain.Change) error {
	current, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("while updating annotation of %q: %w", id, domain.ErrNotFound)
	}
	switch c := change.(type) {
	case nil:
		return fmt.Errorf("while updating annotation of %q: %w: no change", id, domain.ErrInvalidAnnotation)
	case *domain.Annotation:
		if err := checkEntry(id, c); err != nil {
			return err
		}
	}
	r.entries[id] = domain.ApplyChange(current, change)
	return nil
}

func checkEntry(id domain.ImageID, a *domain.Annotation) error {
	if a == nil {
		return fmt.Errorf("annotation of %q: %w: nil", id, domain.ErrInvalidAnnotation)
	}
	if a.ImageID != id {
		return fmt.Errorf("annotation of %q: %w: filed under %q", a.ImageID, domain.ErrInvalidAnnotation, id)
	}
	return nil
}

// IDs returns the ids in insertion order.
func (r *AnnotationRegistry) IDs() []domain.ImageID {
	return slices.Clone(r.ids)
}

// Annotations returns the annotations in insertion order.
func (r *AnnotationRegistry) Annotations() []*domain.Annotation {
	out := make([]*domain.Annotation, len(r.ids))
	for i, id := range r.ids {
		out[i] = r.entries[id]
	}
	return out
}

// Dirty returns the ids whose annotation holds unsaved work.
func (r *AnnotationRegistry) Dirty() []domain.ImageID {
	var out []domain.ImageID
	for _, id := range r.ids {
		if r.entries[id].IsDirty() {
			out = append(out, id)
		}
	}
	return out
}

// ClearDirty flushes the dirty flag of every box.
func (r *AnnotationRegistry) ClearDirty() {
	for _, a := range r.entries {
		a.ClearDirty()
	}
}

// MarshalJSON writes an object of image id to tagged annotation record, in order.
func (r *AnnotationRegistry) MarshalJSON() ([]byte, error) {
	return writeObject(r.ids, func(id domain.ImageID) ([]byte, error) {
		return domain.Records.Encode(r.entries[id])
	})
}

// UnmarshalJSON replaces the content of r. Every value must be a tagged annotation record;
// a repeated key overwrites the earlier value in place.
func (r *AnnotationRegistry) UnmarshalJSON(data []byte) error {
	loaded := NewAnnotationRegistry()
	err := readObject(data, func(id domain.ImageID, raw json.RawMessage) error {
		a, err := domain.DecodeAnnotation(raw)
		if err != nil {
			return fmt.Errorf("while decoding annotation of %q: %w", id, err)
		}
		if loaded.Contains(id) {
			return loaded.Update(id, a)
		}
		return loaded.Add(id, a)
	})
	if err != nil {
		return err
	}
	*r = *loaded
	return nil
}

// FromRecords builds a registry from the record file at path, one annotation per record,
// streaming the file front to back. A second record for the same image fails with
// domain.ErrDuplicateKey. An empty opts.Origin is replaced by path.
func FromRecords(fs billy.Filesystem, path string, opts record.DecodeOptions) (*AnnotationRegistry, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	defer f.Close()

	reader, err := record.NewReader(f, record.Compressed(path))
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	defer reader.Close()

	if opts.Origin == "" {
		opts.Origin = path
	}
	r := NewAnnotationRegistry()
	err = record.ReadAnnotations(reader, opts, func(a *domain.Annotation) error {
		return r.Add(a.ImageID, a)
	})
	if err != nil {
		return nil, fmt.Errorf("while reading %s: %w", path, err)
	}
	return r, nil
}

// MergeResult lists what MergeIntersection did with each source id.
type MergeResult struct {
	Updated   []domain.ImageID
	Discarded []domain.ImageID
}

// MergeIntersection replaces the annotations of dst whose id also appears in src. Source
// ids unknown to dst are discarded, and dst entries missing from src are left untouched.
func MergeIntersection(dst, src *AnnotationRegistry) MergeResult {
	var res MergeResult
	for _, id := range src.ids {
		if err := dst.Update(id, src.entries[id]); err != nil {
			res.Discarded = append(res.Discarded, id)
			continue
		}
		res.Updated = append(res.Updated, id)
	}
	return res
}
