package geometry

import "strings"

// Direction is a set of arrow keys held at the same time.
type Direction uint8

const (
	Up Direction = 1 << iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	if d == 0 {
		return "NONE"
	}
	var parts []string
	for _, flag := range []struct {
		f    Direction
		name string
	}{{Up, "UP"}, {Down, "DOWN"}, {Left, "LEFT"}, {Right, "RIGHT"}} {
		if d&flag.f != 0 {
			parts = append(parts, flag.name)
		}
	}
	return strings.Join(parts, "|")
}

// Nudger turns held arrow keys into per tick box edits. The caller owns the repeat timer:
// Start on key press, Tick on every timer fire, Stop on release.
type Nudger struct {
	step      float64
	direction Direction
	stretch   bool
}

// NewNudger returns a Nudger moving step pixels per tick. A non positive step falls back
// to Sensitivity.
func NewNudger(step float64) *Nudger {
	if step <= 0 {
		step = Sensitivity
	}
	return &Nudger{step: step}
}

// Start arms the nudger. With stretch set, the edge facing direction moves outward
// instead of the whole box.
func (n *Nudger) Start(direction Direction, stretch bool) {
	n.direction = direction
	n.stretch = stretch
}

func (n *Nudger) Stop() {
	n.direction = 0
	n.stretch = false
}

func (n *Nudger) Active() bool { return n.direction != 0 }

func (n *Nudger) Step() float64 { return n.step }

// Tick applies one step to r. An inactive nudger returns r unchanged.
func (n *Nudger) Tick(r Rect) Rect {
	if !n.Active() {
		return r
	}
	if n.stretch {
		if n.direction&Up != 0 {
			r.Top -= n.step
		}
		if n.direction&Down != 0 {
			r.Bottom += n.step
		}
		if n.direction&Left != 0 {
			r.Left -= n.step
		}
		if n.direction&Right != 0 {
			r.Right += n.step
		}
		return r
	}

	var dx, dy float64
	if n.direction&Up != 0 {
		dy -= n.step
	}
	if n.direction&Down != 0 {
		dy += n.step
	}
	if n.direction&Left != 0 {
		dx -= n.step
	}
	if n.direction&Right != 0 {
		dx += n.step
	}
	return r.Translate(dx, dy)
}
