// Package geometry holds the pure computations behind interactive box editing: zone
// classification of a pointer inside a box, wheel resizing, keyboard nudging and the
// normalization applied when an interaction is committed.
package geometry

import "math"

// Point is a position in image pixel coordinates.
type Point struct {
	X, Y float64
}

// Rect is an axis aligned rectangle in image pixel coordinates. During an interaction the
// edges may cross; Commit restores Left <= Right and Top <= Bottom.
type Rect struct {
	Left, Top, Right, Bottom float64
}

// FromCorners builds a Rect from xmin, ymin, xmax, ymax.
func FromCorners(xmin, ymin, xmax, ymax float64) Rect {
	return Rect{Left: xmin, Top: ymin, Right: xmax, Bottom: ymax}
}

// Corners returns xmin, ymin, xmax, ymax.
func (r Rect) Corners() (float64, float64, float64, float64) {
	return r.Left, r.Top, r.Right, r.Bottom
}

func (r Rect) Width() float64  { return r.Right - r.Left }
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Translate moves the whole rectangle by dx, dy.
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{Left: r.Left + dx, Top: r.Top + dy, Right: r.Right + dx, Bottom: r.Bottom + dy}
}

// Commit rounds every edge to the nearest integer (halves to even) and sorts each axis
// pair, so a rectangle dragged backwards still yields a valid box.
func Commit(r Rect) Rect {
	left, right := math.RoundToEven(r.Left), math.RoundToEven(r.Right)
	top, bottom := math.RoundToEven(r.Top), math.RoundToEven(r.Bottom)
	if left > right {
		left, right = right, left
	}
	if top > bottom {
		top, bottom = bottom, top
	}
	return Rect{Left: left, Top: top, Right: right, Bottom: bottom}
}
