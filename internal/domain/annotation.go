package domain

import (
	"context"
	"fmt"

	"github.com/lewtec/boxlabeler/internal/codec/tagged"
)

// Annotation groups the bounding boxes and the image geometry of one image.
type Annotation struct {
	ImageID        ImageID
	Width          int
	Height         int
	Version        SchemaVersion
	OriginFilename string
	Boxes          []*BoundingBox
}

// NewAnnotation returns an Annotation without boxes at the current schema version.
func NewAnnotation(id ImageID, width, height int) *Annotation {
	return &Annotation{
		ImageID: id,
		Width:   width,
		Height:  height,
		Version: CurrentVersion,
		Boxes:   []*BoundingBox{},
	}
}

func (a *Annotation) HasBoxes() bool {
	return len(a.Boxes) > 0
}

// Box returns the box at index i of the box list.
func (a *Annotation) Box(i int) (*BoundingBox, error) {
	if i < 0 || i >= len(a.Boxes) {
		return nil, fmt.Errorf("%w: box %d of image %q (%d boxes)", ErrIndexOutOfRange, i, a.ImageID, len(a.Boxes))
	}
	return a.Boxes[i], nil
}

// DeleteBox soft deletes the box at index i. The box stays in the list.
func (a *Annotation) DeleteBox(i int) error {
	box, err := a.Box(i)
	if err != nil {
		return err
	}
	box.Delete()
	return nil
}

// AppendBox creates a box owned by a at the next free index. The new box counts as a change.
func (a *Annotation) AppendBox(p BoxParams) *BoundingBox {
	p.ImageID = a.ImageID
	p.Index = len(a.Boxes)
	box := NewBoundingBox(p)
	box.dirty = true
	a.Boxes = append(a.Boxes, box)
	return box
}

// MarkAllCorrect stamps user with the current time and records it as the reviewer of every box.
func (a *Annotation) MarkAllCorrect(user UserID) {
	user = user.Stamped()
	for _, box := range a.Boxes {
		box.SetReview(user, true)
	}
}

// IsDirty reports unsaved work: a dirty, new or deleted box.
func (a *Annotation) IsDirty() bool {
	for _, box := range a.Boxes {
		if box.Dirty() || box.HasState(StateNew) || box.Deleted() {
			return true
		}
	}
	return false
}

func (a *Annotation) ClearDirty() {
	for _, box := range a.Boxes {
		box.ClearDirty()
	}
}

// Exportable returns the boxes that are not deleted and were marked correct.
func (a *Annotation) Exportable() []*BoundingBox {
	var out []*BoundingBox
	for _, box := range a.Boxes {
		if !box.Deleted() && box.HasState(StateCorrect) {
			out = append(out, box)
		}
	}
	return out
}

type annotationFields struct {
	ImageID        ImageID        `json:"image_id"`
	Width          int            `json:"image_width"`
	Height         int            `json:"image_height"`
	Version        SchemaVersion  `json:"version"`
	OriginFilename string         `json:"origin_filename,omitempty"`
	Boxes          []*BoundingBox `json:"bounding_boxes"`
}

func (*Annotation) RecordTag() string { return TagAnnotation }

func (a *Annotation) MarshalJSON() ([]byte, error) {
	return tagged.Wrap(TagAnnotation, annotationFields(*a))
}

func (a *Annotation) UnmarshalJSON(data []byte) error {
	f := annotationFields{Version: CurrentVersion}
	if err := tagged.Unwrap(data, TagAnnotation, &f); err != nil {
		return err
	}
	*a = Annotation(f)
	return nil
}

// Change is applied by a registry update: either a whole *Annotation that replaces the
// current value or an AnnotationPatch merged into it.
type Change interface {
	apply(current *Annotation) *Annotation
}

func (a *Annotation) apply(*Annotation) *Annotation {
	return a
}

// AnnotationPatch lists the fields to overwrite; nil fields are left alone. A non-nil empty
// Boxes slice clears the boxes.
type AnnotationPatch struct {
	Width          *int
	Height         *int
	Version        *SchemaVersion
	OriginFilename *string
	Boxes          []*BoundingBox
}

func (p AnnotationPatch) apply(current *Annotation) *Annotation {
	if p.Width != nil {
		current.Width = *p.Width
	}
	if p.Height != nil {
		current.Height = *p.Height
	}
	if p.Version != nil {
		current.Version = *p.Version
	}
	if p.OriginFilename != nil {
		current.OriginFilename = *p.OriginFilename
	}
	if p.Boxes != nil {
		current.Boxes = p.Boxes
	}
	return current
}

// ApplyChange returns the annotation that results from applying c to current.
func ApplyChange(current *Annotation, c Change) *Annotation {
	return c.apply(current)
}

// AnnotationRepository persists annotations outside of the in-memory registry
type AnnotationRepository interface {
	// Save creates or replaces the annotation of its image
	Save(ctx context.Context, annotation *Annotation) error

	// Get retrieves the annotation of an image, failing with ErrNotFound
	Get(ctx context.Context, id ImageID) (*Annotation, error)

	// List retrieves every annotation ordered by image id
	List(ctx context.Context) ([]*Annotation, error)

	// Count returns the number of stored annotations
	Count(ctx context.Context) (int64, error)

	// Delete removes the annotation of an image
	Delete(ctx context.Context, id ImageID) error
}
