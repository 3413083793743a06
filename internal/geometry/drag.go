package geometry

// Drag follows a press, move, release gesture that draws a new box. The rectangle spans
// from the press point to the latest pointer position and may be inverted until Finish.
type Drag struct {
	origin  Point
	current Point
	active  bool
}

// StartDrag begins a drag at p.
func StartDrag(p Point) *Drag {
	return &Drag{origin: p, current: p, active: true}
}

// Move updates the pointer position. Moves after Finish are ignored.
func (d *Drag) Move(p Point) {
	if d.active {
		d.current = p
	}
}

func (d *Drag) Active() bool { return d.active }

// Rect returns the raw rectangle between the press point and the pointer.
func (d *Drag) Rect() Rect {
	return Rect{Left: d.origin.X, Top: d.origin.Y, Right: d.current.X, Bottom: d.current.Y}
}

// Finish ends the drag at p and returns the committed rectangle.
func (d *Drag) Finish(p Point) Rect {
	d.Move(p)
	d.active = false
	return Commit(d.Rect())
}
