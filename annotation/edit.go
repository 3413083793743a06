package annotation

import (
	"fmt"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/geometry"
	"github.com/lewtec/boxlabeler/internal/selection"
)

// Editor applies pointer and keyboard gestures to the boxes of one annotation.
//
// Wheel and nudge gestures change a pending rectangle of the selected box; Commit rounds it
// and writes it to the box. Drawing goes through Press, Move and Release.
type Editor struct {
	ws         *Workspace
	annotation *domain.Annotation
	user       domain.UserID
	labels     *selection.Group[string]
	nudger     *geometry.Nudger

	selected int
	pending  geometry.Rect
	drag     *geometry.Drag
	drawing  *domain.BoundingBox
}

// Edit opens an editor on the annotation of id. The first configured label is active.
func (w *Workspace) Edit(id domain.ImageID) (*Editor, error) {
	a, err := w.Annotations.Get(id)
	if err != nil {
		return nil, err
	}
	labels, err := selection.New(1, 1, w.Config.Labels.Labels()...)
	if err != nil {
		return nil, fmt.Errorf("while preparing label selection: %w", err)
	}
	return &Editor{
		ws:         w,
		annotation: a,
		user:       w.User(),
		labels:     labels,
		nudger:     geometry.NewNudger(w.Config.Editing.NudgeStep),
		selected:   -1,
	}, nil
}

func (e *Editor) Annotation() *domain.Annotation { return e.annotation }

// Labels is the exclusive label choice used for new boxes.
func (e *Editor) Labels() *selection.Group[string] { return e.labels }

// Label returns the active label.
func (e *Editor) Label() string {
	checked := e.labels.Checked()
	if len(checked) == 0 {
		return ""
	}
	return checked[0]
}

// Select makes box i the target of wheel and nudge gestures. Pending edits of the previous
// selection are committed first.
func (e *Editor) Select(i int) error {
	box, err := e.annotation.Box(i)
	if err != nil {
		return err
	}
	e.Commit()
	e.selected = i
	e.pending = geometry.FromCorners(box.Corners())
	return nil
}

// Selected returns the selected box.
func (e *Editor) Selected() (*domain.BoundingBox, bool) {
	if e.selected < 0 {
		return nil, false
	}
	box, err := e.annotation.Box(e.selected)
	if err != nil || box.Deleted() {
		return nil, false
	}
	return box, true
}

// Pending returns the uncommitted rectangle of the selected box.
func (e *Editor) Pending() (geometry.Rect, bool) {
	if _, ok := e.Selected(); !ok {
		return geometry.Rect{}, false
	}
	return e.pending, true
}

// Wheel resizes the selected box on the zone nearest to p. With editing.zone_max_distance
// set, pointers farther than that from every anchor are ignored.
func (e *Editor) Wheel(p geometry.Point, units float64) (geometry.Zone, bool) {
	if _, ok := e.Selected(); !ok {
		return 0, false
	}
	var zone geometry.Zone
	if limit := e.ws.Config.Editing.ZoneMaxDistance; limit > 0 {
		z, ok := geometry.ClassifyWithin(e.pending, p, limit)
		if !ok {
			return 0, false
		}
		zone = z
	} else {
		zone, _ = geometry.Classify(e.pending, p)
	}
	e.pending = geometry.Resize(e.pending, zone, geometry.WheelDelta(e.pending, units))
	return zone, true
}

func (e *Editor) StartNudge(direction geometry.Direction, stretch bool) {
	e.nudger.Start(direction, stretch)
}

// Tick applies one nudge step to the selected box.
func (e *Editor) Tick() {
	if _, ok := e.Selected(); ok {
		e.pending = e.nudger.Tick(e.pending)
	}
}

func (e *Editor) StopNudge() {
	e.nudger.Stop()
}

// Commit writes the pending rectangle to the selected box, rounded and normalized. It
// reports whether the box changed.
func (e *Editor) Commit() bool {
	box, ok := e.Selected()
	if !ok {
		return false
	}
	r := geometry.Commit(e.pending)
	e.pending = r
	before := geometry.FromCorners(box.Corners())
	if before == r {
		return false
	}
	box.SetCorners(r.Corners())
	return true
}

// DeleteSelected soft deletes the selected box.
func (e *Editor) DeleteSelected() error {
	if _, ok := e.Selected(); !ok {
		return fmt.Errorf("no box selected: %w", domain.ErrNotFound)
	}
	if err := e.annotation.DeleteBox(e.selected); err != nil {
		return err
	}
	e.selected = -1
	return nil
}

// Press starts drawing a box with the active label at p.
func (e *Editor) Press(p geometry.Point) *domain.BoundingBox {
	e.Commit()
	e.drag = geometry.StartDrag(p)
	e.drawing = e.annotation.AppendBox(domain.BoxParams{
		XMin:   p.X,
		YMin:   p.Y,
		XMax:   p.X,
		YMax:   p.Y,
		Label:  e.Label(),
		Author: e.user,
		State:  domain.StateNew | domain.StateReviewed,
	})
	e.selected = e.drawing.Index()
	e.pending = e.drag.Rect()
	return e.drawing
}

// Move follows the pointer while drawing.
func (e *Editor) Move(p geometry.Point) {
	if e.drag == nil || !e.drag.Active() {
		return
	}
	e.drag.Move(p)
	e.pending = e.drag.Rect()
	e.drawing.SetCorners(e.pending.Corners())
}

// Release finishes drawing at p. The box gets normalized integer corners and is marked
// correct.
func (e *Editor) Release(p geometry.Point) (*domain.BoundingBox, bool) {
	if e.drag == nil || !e.drag.Active() {
		return nil, false
	}
	r := e.drag.Finish(p)
	box := e.drawing
	box.SetCorners(r.Corners())
	box.AddState(domain.StateCorrect)
	e.pending = r
	e.drag, e.drawing = nil, nil
	return box, true
}

// Drawing reports whether a drag is in progress.
func (e *Editor) Drawing() bool {
	return e.drag != nil && e.drag.Active()
}

// Accept commits pending edits and marks every box reviewed and correct by the editor's user.
func (e *Editor) Accept() error {
	e.Commit()
	return e.ws.UpdateFromEdits(e.annotation.ImageID, e.user)
}
