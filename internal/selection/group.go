// Package selection implements a bounded multi-select: a fixed set of members of which at
// least min and at most max are ON. It has no knowledge of widgets; a UI binds its own
// controls through Toggle and Subscribe.
package selection

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrInvalidBounds is returned by New when min and max do not satisfy 0 <= min <= max, max >= 1
	ErrInvalidBounds = errors.New("invalid selection bounds")
	// ErrDuplicateMember is returned by New when a member is listed twice
	ErrDuplicateMember = errors.New("duplicate selection member")
)

type subscriber[T comparable] struct {
	id int
	fn func(on []T)
}

// Group tracks which members are ON. The first min members start ON. Turning a member ON
// past max evicts the member that has been ON the longest; turning one OFF below min is
// refused. Every accepted change notifies subscribers with the ON members in member order.
type Group[T comparable] struct {
	min, max int
	members  []T
	on       map[T]bool
	order    []T
	disabled bool

	subs   []subscriber[T]
	nextID int
}

// New builds a group over members. The group may have fewer than min members, in which
// case every member starts ON.
func New[T comparable](min, max int, members ...T) (*Group[T], error) {
	if min < 0 || max < 1 || min > max {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidBounds, min, max)
	}
	g := &Group[T]{
		min:     min,
		max:     max,
		members: slices.Clone(members),
		on:      make(map[T]bool, len(members)),
	}
	for i, m := range members {
		if _, seen := g.on[m]; seen {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateMember, m)
		}
		g.on[m] = i < min
		if i < min {
			g.order = append(g.order, m)
		}
	}
	return g, nil
}

func (g *Group[T]) Min() int { return g.min }
func (g *Group[T]) Max() int { return g.max }

// Members returns every member in declaration order.
func (g *Group[T]) Members() []T { return slices.Clone(g.members) }

func (g *Group[T]) IsOn(m T) bool { return g.on[m] }

// Checked returns the ON members in member order.
func (g *Group[T]) Checked() []T {
	out := []T{}
	for _, m := range g.members {
		if g.on[m] {
			out = append(out, m)
		}
	}
	return out
}

// SetEnabled blocks or allows user transitions. Clear works regardless.
func (g *Group[T]) SetEnabled(enabled bool) { g.disabled = !enabled }

func (g *Group[T]) Enabled() bool { return !g.disabled }

// SetOn turns m ON and reports whether the state changed.
func (g *Group[T]) SetOn(m T) bool {
	on, known := g.on[m]
	if !known || on || g.disabled {
		return false
	}
	g.on[m] = true
	g.order = append(g.order, m)
	if len(g.order) > g.max {
		oldest := g.order[0]
		g.order = g.order[1:]
		g.on[oldest] = false
	}
	g.notify()
	return true
}

// SetOff turns m OFF and reports whether the state changed. It is refused when fewer than
// min members would remain ON.
func (g *Group[T]) SetOff(m T) bool {
	if !g.on[m] || g.disabled {
		return false
	}
	if len(g.order)-1 < g.min {
		return false
	}
	g.on[m] = false
	g.order = slices.DeleteFunc(g.order, func(o T) bool { return o == m })
	g.notify()
	return true
}

// Toggle flips m, the equivalent of clicking it.
func (g *Group[T]) Toggle(m T) bool {
	if g.on[m] {
		return g.SetOff(m)
	}
	return g.SetOn(m)
}

// Clear turns every member OFF, ignoring min. Subscribers are only notified when something
// was ON.
func (g *Group[T]) Clear() {
	if len(g.order) == 0 {
		return
	}
	for m := range g.on {
		g.on[m] = false
	}
	g.order = nil
	g.notify()
}

// Subscribe registers fn for change notifications and returns a function removing it.
func (g *Group[T]) Subscribe(fn func(on []T)) (unsubscribe func()) {
	id := g.nextID
	g.nextID++
	g.subs = append(g.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		g.subs = slices.DeleteFunc(g.subs, func(s subscriber[T]) bool { return s.id == id })
	}
}

func (g *Group[T]) notify() {
	for _, s := range slices.Clone(g.subs) {
		s.fn(g.Checked())
	}
}
