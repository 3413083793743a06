package geometry

// Sensitivity scales how fast wheel and keyboard gestures change a box.
const Sensitivity = 3

// WheelDelta converts raw wheel units into a resize delta. Speed grows with the size of the
// box: (width + height) * units / (Sensitivity * 2000).
func WheelDelta(r Rect, units float64) float64 {
	return (r.Width() + r.Height()) * units / (Sensitivity * 2000)
}

// Resize moves the edges named by zone by delta. A positive delta grows the box.
//
// The vertical component is applied first (TOP wins over BOTTOM), then the horizontal one
// (LEFT wins over RIGHT). Only the exact Middle zone scales symmetrically, moving every
// edge outward by delta/2.
func Resize(r Rect, zone Zone, delta float64) Rect {
	if zone.Has(ZoneTop) {
		r.Top -= delta
	} else if zone.Has(ZoneBottom) {
		r.Bottom += delta
	}

	switch {
	case zone.Has(ZoneLeft):
		r.Left -= delta
	case zone.Has(ZoneRight):
		r.Right += delta
	case zone == Middle:
		r.Top -= delta / 2
		r.Left -= delta / 2
		r.Bottom += delta / 2
		r.Right += delta / 2
	}
	return r
}

// ResizeAt classifies p inside r and resizes the matching zone by the wheel delta of units.
func ResizeAt(r Rect, p Point, units float64) (Rect, Zone) {
	zone, _ := Classify(r, p)
	return Resize(r, zone, WheelDelta(r, units)), zone
}
