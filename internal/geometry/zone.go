package geometry

import (
	"math"
	"strings"
)

// Zone names one of the nine regions of a rectangle as a combination of flags.
type Zone uint8

const (
	ZoneTop Zone = 1 << iota
	ZoneBottom
	ZoneLeft
	ZoneRight
	ZoneMiddle
)

// The nine regions, in classification order.
const (
	TopLeft      = ZoneTop | ZoneLeft
	TopMiddle    = ZoneTop | ZoneMiddle
	TopRight     = ZoneTop | ZoneRight
	MiddleLeft   = ZoneMiddle | ZoneLeft
	Middle       = ZoneMiddle
	MiddleRight  = ZoneMiddle | ZoneRight
	BottomLeft   = ZoneBottom | ZoneLeft
	BottomMiddle = ZoneBottom | ZoneMiddle
	BottomRight  = ZoneBottom | ZoneRight
)

// Zones lists the nine regions in the order used to break distance ties.
var Zones = [9]Zone{
	TopLeft, TopMiddle, TopRight,
	MiddleLeft, Middle, MiddleRight,
	BottomLeft, BottomMiddle, BottomRight,
}

// anchor fractions of width and height for each entry of Zones
var anchors = [9][2]float64{
	{1.0 / 6, 1.0 / 6}, {0.5, 1.0 / 6}, {5.0 / 6, 1.0 / 6},
	{1.0 / 6, 0.5}, {0.5, 0.5}, {5.0 / 6, 0.5},
	{1.0 / 6, 5.0 / 6}, {0.5, 5.0 / 6}, {5.0 / 6, 5.0 / 6},
}

func (z Zone) Has(f Zone) bool { return z&f == f }

func (z Zone) String() string {
	if z == 0 {
		return "NONE"
	}
	var parts []string
	for _, flag := range []struct {
		f    Zone
		name string
	}{{ZoneTop, "TOP"}, {ZoneBottom, "BOTTOM"}, {ZoneMiddle, "MIDDLE"}, {ZoneLeft, "LEFT"}, {ZoneRight, "RIGHT"}} {
		if z.Has(flag.f) {
			parts = append(parts, flag.name)
		}
	}
	return strings.Join(parts, "-")
}

// anchor returns the representative point of Zones[i] inside r: the centroid of its ninth.
func anchor(r Rect, i int) Point {
	return Point{
		X: r.Left + r.Width()*anchors[i][0],
		Y: r.Top + r.Height()*anchors[i][1],
	}
}

// Classify returns the zone whose anchor is nearest to p under Manhattan distance, along
// with that distance. Ties go to the zone listed first in Zones.
func Classify(r Rect, p Point) (Zone, float64) {
	best, bestDistance := Zones[0], math.Inf(1)
	for i, z := range Zones {
		a := anchor(r, i)
		d := math.Abs(p.X-a.X) + math.Abs(p.Y-a.Y)
		if d < bestDistance {
			best, bestDistance = z, d
		}
	}
	return best, bestDistance
}

// ClassifyWithin is Classify with a rejection radius: it reports false when the nearest
// anchor is farther than maxDistance.
func ClassifyWithin(r Rect, p Point, maxDistance float64) (Zone, bool) {
	z, d := Classify(r, p)
	if d > maxDistance {
		return 0, false
	}
	return z, true
}
