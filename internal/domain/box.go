package domain

import (
	"math"

	"github.com/lewtec/boxlabeler/internal/codec/tagged"
)

// BoundingBox is one labeled rectangle of an Annotation. Fields are only reachable through
// methods: every setter compares against the previous value and raises the dirty flag when
// something changed. Only ClearDirty lowers it again.
//
// (ImageID, Index) identifies a box inside its Annotation.
type BoundingBox struct {
	xmin, ymin, xmax, ymax float64

	label      string
	imageID    ImageID
	index      int
	author     UserID
	confidence float64
	state      ReviewState
	deleted    bool
	dirty      bool

	// presentation state, not persisted
	hidden   bool
	disabled bool
}

// BoxParams holds the values for NewBoundingBox. A zero Author means DefaultHuman and a zero
// Confidence means 1.0.
type BoxParams struct {
	XMin, YMin, XMax, YMax float64

	Label      string
	ImageID    ImageID
	Index      int
	Author     UserID
	Confidence float64
	State      ReviewState
}

// NewBoundingBox builds a clean (not dirty) box.
func NewBoundingBox(p BoxParams) *BoundingBox {
	author := p.Author
	if author.IsZero() {
		author = DefaultHuman
	}
	confidence := p.Confidence
	if confidence == 0 {
		confidence = 1
	}
	return &BoundingBox{
		xmin:       p.XMin,
		ymin:       p.YMin,
		xmax:       p.XMax,
		ymax:       p.YMax,
		label:      p.Label,
		imageID:    p.ImageID,
		index:      p.Index,
		author:     author,
		confidence: confidence,
		state:      p.State,
	}
}

func (b *BoundingBox) XMin() float64 { return b.xmin }
func (b *BoundingBox) YMin() float64 { return b.ymin }
func (b *BoundingBox) XMax() float64 { return b.xmax }
func (b *BoundingBox) YMax() float64 { return b.ymax }

// Corners returns xmin, ymin, xmax, ymax.
func (b *BoundingBox) Corners() (float64, float64, float64, float64) {
	return b.xmin, b.ymin, b.xmax, b.ymax
}

func (b *BoundingBox) Width() float64 { return math.Abs(b.xmax - b.xmin) }
func (b *BoundingBox) Height() float64 { return math.Abs(b.ymax - b.ymin) }

func (b *BoundingBox) Label() string { return b.label }
func (b *BoundingBox) ImageID() ImageID { return b.imageID }
func (b *BoundingBox) Index() int { return b.index }
func (b *BoundingBox) Author() UserID { return b.author }
func (b *BoundingBox) Confidence() float64 { return b.confidence }
func (b *BoundingBox) State() ReviewState { return b.state }
func (b *BoundingBox) Deleted() bool { return b.deleted }
func (b *BoundingBox) Dirty() bool { return b.dirty }
func (b *BoundingBox) Visible() bool { return !b.deleted && !b.hidden }
func (b *BoundingBox) Enabled() bool { return !b.deleted && !b.disabled }
func (b *BoundingBox) HasState(f ReviewState) bool { return b.state.Has(f) }

func set[T comparable](b *BoundingBox, field *T, v T) {
	if *field != v {
		*field = v
		b.dirty = true
	}
}

// SetCorners moves all four edges at once.
func (b *BoundingBox) SetCorners(xmin, ymin, xmax, ymax float64) {
	set(b, &b.xmin, xmin)
	set(b, &b.ymin, ymin)
	set(b, &b.xmax, xmax)
	set(b, &b.ymax, ymax)
}

func (b *BoundingBox) SetLabel(label string) { set(b, &b.label, label) }
func (b *BoundingBox) SetIndex(index int) { set(b, &b.index, index) }
func (b *BoundingBox) SetAuthor(author UserID) { set(b, &b.author, author) }
func (b *BoundingBox) SetConfidence(c float64) { set(b, &b.confidence, c) }
func (b *BoundingBox) SetState(state ReviewState) { set(b, &b.state, state) }
func (b *BoundingBox) AddState(flags ReviewState) { set(b, &b.state, b.state.With(flags)) }
func (b *BoundingBox) ClearState(flags ReviewState) { set(b, &b.state, b.state.Without(flags)) }

// SetReview records a review by user: the box becomes REVIEWED and CORRECT is set or cleared.
func (b *BoundingBox) SetReview(user UserID, correct bool) {
	b.SetAuthor(user)
	state := b.state.With(StateReviewed)
	if correct {
		state = state.With(StateCorrect)
	} else {
		state = state.Without(StateCorrect)
	}
	b.SetState(state)
}

// Delete latches the box as deleted. There is no way back.
func (b *BoundingBox) Delete() {
	set(b, &b.deleted, true)
	b.hidden = true
	b.disabled = true
}

// SetVisible is ignored for deleted boxes.
func (b *BoundingBox) SetVisible(visible bool) {
	if b.deleted {
		return
	}
	b.hidden = !visible
}

// SetEnabled is ignored for deleted boxes.
func (b *BoundingBox) SetEnabled(enabled bool) {
	if b.deleted {
		return
	}
	b.disabled = !enabled
}

// ClearDirty is the flush step called once the box has been persisted.
func (b *BoundingBox) ClearDirty() {
	b.dirty = false
}

// MarkDirty undoes a flush whose write did not go through.
func (b *BoundingBox) MarkDirty() {
	b.dirty = true
}

type boxFields struct {
	XMin       float64     `json:"xmin"`
	YMin       float64     `json:"ymin"`
	XMax       float64     `json:"xmax"`
	YMax       float64     `json:"ymax"`
	Label      string      `json:"label"`
	ImageID    ImageID     `json:"image_id"`
	Index      int         `json:"index"`
	Author     UserID      `json:"user"`
	Confidence float64     `json:"confidence"`
	State      ReviewState `json:"state"`
	Deleted    bool        `json:"delete"`
	Dirty      bool        `json:"dirty"`
}

func (*BoundingBox) RecordTag() string { return TagBoundingBox }

func (b *BoundingBox) MarshalJSON() ([]byte, error) {
	return tagged.Wrap(TagBoundingBox, boxFields{
		XMin:       b.xmin,
		YMin:       b.ymin,
		XMax:       b.xmax,
		YMax:       b.ymax,
		Label:      b.label,
		ImageID:    b.imageID,
		Index:      b.index,
		Author:     b.author,
		Confidence: b.confidence,
		State:      b.state,
		Deleted:    b.deleted,
		Dirty:      b.dirty,
	})
}

func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	f := boxFields{Confidence: 1}
	if err := tagged.Unwrap(data, TagBoundingBox, &f); err != nil {
		return err
	}
	*b = BoundingBox{
		xmin:       f.XMin,
		ymin:       f.YMin,
		xmax:       f.XMax,
		ymax:       f.YMax,
		label:      f.Label,
		imageID:    f.ImageID,
		index:      f.Index,
		author:     f.Author,
		confidence: f.Confidence,
		state:      f.State,
		deleted:    f.Deleted,
		dirty:      f.Dirty,
		hidden:     f.Deleted,
		disabled:   f.Deleted,
	}
	return nil
}
