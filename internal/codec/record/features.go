package record

import (
	"cmp"
	"maps"
	"slices"
	"strconv"
)

// Feature keys of the object detection record layout.
const (
	KeyImageEncoded = "image/encoded"
	KeyImageFormat  = "image/format"
	KeyFilename     = "image/filename"
	KeyHeight       = "image/height"
	KeyWidth        = "image/width"

	KeyClassText  = "image/object/class/text"
	KeyClassLabel = "image/object/class/label"
	KeyBoxXMin    = "image/object/bbox/xmin"
	KeyBoxYMin    = "image/object/bbox/ymin"
	KeyBoxXMax    = "image/object/bbox/xmax"
	KeyBoxYMax    = "image/object/bbox/ymax"

	KeyDetectionLabel = "image/detection/label"
	KeyDetectionXMin  = "image/detection/bbox/xmin"
	KeyDetectionYMin  = "image/detection/bbox/ymin"
	KeyDetectionXMax  = "image/detection/bbox/xmax"
	KeyDetectionYMax  = "image/detection/bbox/ymax"
	KeyDetectionScore = "image/detection/score"
)

// boxKeys holds the keys of the coordinate and class arrays for one mode.
type boxKeys struct {
	xmin, ymin, xmax, ymax, label string
}

var (
	groundTruthKeys = boxKeys{KeyBoxXMin, KeyBoxYMin, KeyBoxXMax, KeyBoxYMax, KeyClassLabel}
	detectionKeys   = boxKeys{KeyDetectionXMin, KeyDetectionYMin, KeyDetectionXMax, KeyDetectionYMax, KeyDetectionLabel}
)

// LabelMap maps class text to the integer class id stored in records.
type LabelMap map[string]int64

// DefaultLabels returns the stock two class map.
func DefaultLabels() LabelMap {
	return LabelMap{"pill": 1, "not_pill": 2}
}

// ID returns the class id of label.
func (m LabelMap) ID(label string) (int64, bool) {
	id, ok := m[label]
	return id, ok
}

// Text returns the label of a class id, or the decimal id when the map has none. When
// several labels share an id the lexically smallest wins.
func (m LabelMap) Text(id int64) string {
	for _, label := range m.Labels() {
		if m[label] == id {
			return label
		}
	}
	return strconv.FormatInt(id, 10)
}

// Labels returns the known labels sorted by class id.
func (m LabelMap) Labels() []string {
	labels := slices.Collect(maps.Keys(m))
	slices.SortFunc(labels, func(a, b string) int {
		if c := cmp.Compare(m[a], m[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return labels
}
