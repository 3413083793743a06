package record

import (
	"fmt"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
)

// DecodeOptions controls how examples become annotations.
type DecodeOptions struct {
	// Mode selects the ground truth (ModeTraining) or detection (ModeInference) arrays.
	Mode domain.MachineLearningMode
	// Author is recorded on every box. Zero means domain.DefaultMachine.
	Author domain.UserID
	// Threshold drops detections whose score is not strictly greater. Ignored in training mode.
	Threshold float64
	// Origin is stored as the origin filename of every annotation.
	Origin string
	// Labels turns class ids into label text when a record carries no text.
	Labels LabelMap
}

// DecodeAnnotation builds the annotation described by one example. Normalized coordinates
// are multiplied back by the image width and height.
func DecodeAnnotation(e *Example, opts DecodeOptions) (*domain.Annotation, error) {
	var keys boxKeys
	switch {
	case opts.Mode&domain.ModeInference != 0:
		keys = detectionKeys
	case opts.Mode&domain.ModeTraining != 0:
		keys = groundTruthKeys
	default:
		return nil, fmt.Errorf("%w: records cannot be decoded in %s mode", domain.ErrParse, opts.Mode)
	}
	author := opts.Author
	if author.IsZero() {
		author = domain.DefaultMachine
	}

	filename, err := e.String(KeyFilename)
	if err != nil {
		return nil, err
	}
	height, err := e.Int64(KeyHeight)
	if err != nil {
		return nil, err
	}
	width, err := e.Int64(KeyWidth)
	if err != nil {
		return nil, err
	}

	var coords [4][]float32
	for i, key := range []string{keys.xmin, keys.ymin, keys.xmax, keys.ymax} {
		if coords[i], err = e.FloatList(key); err != nil {
			return nil, err
		}
	}
	classes, err := e.Int64List(keys.label)
	if err != nil {
		return nil, err
	}
	n := len(classes)
	for i, c := range coords {
		if len(c) != n {
			return nil, fmt.Errorf("%w: %s: coordinate array %d has %d values, want %d", domain.ErrParse, filename, i, len(c), n)
		}
	}

	var scores []float32
	var texts [][]byte
	if keys == detectionKeys {
		if scores, err = e.FloatList(KeyDetectionScore); err != nil {
			return nil, err
		}
		if len(scores) != n {
			return nil, fmt.Errorf("%w: %s: %d scores for %d detections", domain.ErrParse, filename, len(scores), n)
		}
	} else if e.Has(KeyClassText) {
		if texts, err = e.BytesList(KeyClassText); err != nil {
			return nil, err
		}
		if len(texts) != n {
			texts = nil
		}
	}

	id := domain.StemOf(filename)
	a := domain.NewAnnotation(id, int(width), int(height))
	a.OriginFilename = opts.Origin
	threshold := float32(opts.Threshold)
	for i := 0; i < n; i++ {
		confidence := 1.0
		if scores != nil {
			// scores are stored as float32, compare at that precision
			if !(scores[i] > threshold) {
				continue
			}
			confidence = float64(scores[i])
		}
		label := opts.Labels.Text(classes[i])
		if texts != nil {
			label = string(texts[i])
		}
		a.Boxes = append(a.Boxes, domain.NewBoundingBox(domain.BoxParams{
			XMin:       float64(coords[0][i]) * float64(width),
			YMin:       float64(coords[1][i]) * float64(height),
			XMax:       float64(coords[2][i]) * float64(width),
			YMax:       float64(coords[3][i]) * float64(height),
			Label:      label,
			ImageID:    id,
			Index:      len(a.Boxes),
			Author:     author,
			Confidence: confidence,
		}))
	}
	return a, nil
}

// EncodeTrainingExample builds the training example of a. Only boxes that are not deleted
// and carry CORRECT are exported; an annotation without any fails with
// domain.ErrEmptyExportSet. Coordinates are normalized by the size of img.
func EncodeTrainingExample(a *domain.Annotation, img *imagefile.Encoded, filename string, labels LabelMap) (*Example, error) {
	boxes := a.Exportable()
	if len(boxes) == 0 {
		return nil, fmt.Errorf("while exporting %s: %w", a.ImageID, domain.ErrEmptyExportSet)
	}
	width, height := float64(img.Size.Width), float64(img.Size.Height)
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("while exporting %s: image has no pixels", a.ImageID)
	}

	n := len(boxes)
	xmin, ymin := make([]float32, n), make([]float32, n)
	xmax, ymax := make([]float32, n), make([]float32, n)
	classes := make([]int64, n)
	texts := make([]string, n)
	for i, box := range boxes {
		id, ok := labels.ID(box.Label())
		if !ok {
			return nil, fmt.Errorf("while exporting %s box %d: %w: %q", a.ImageID, box.Index(), domain.ErrUnknownLabel, box.Label())
		}
		x0, y0, x1, y1 := box.Corners()
		xmin[i] = float32(x0 / width)
		ymin[i] = float32(y0 / height)
		xmax[i] = float32(x1 / width)
		ymax[i] = float32(y1 / height)
		classes[i] = id
		texts[i] = box.Label()
	}

	e := NewExample()
	e.SetInt64s(KeyHeight, int64(img.Size.Height))
	e.SetInt64s(KeyWidth, int64(img.Size.Width))
	e.SetBytes(KeyImageEncoded, img.Data)
	e.SetStrings(KeyFilename, filename)
	e.SetStrings(KeyImageFormat, img.Format)
	e.SetFloats(KeyBoxXMin, xmin...)
	e.SetFloats(KeyBoxYMin, ymin...)
	e.SetFloats(KeyBoxXMax, xmax...)
	e.SetFloats(KeyBoxYMax, ymax...)
	e.SetInt64s(KeyClassLabel, classes...)
	e.SetStrings(KeyClassText, texts...)
	return e, nil
}

// ReadAnnotations decodes every remaining record of r and passes the annotations to fn in
// file order. It stops at the first error, including one returned by fn.
func ReadAnnotations(r *Reader, opts DecodeOptions, fn func(*domain.Annotation) error) error {
	for {
		e, err := r.NextExample()
		if IsEnd(err) {
			return nil
		}
		if err != nil {
			return err
		}
		a, err := DecodeAnnotation(e, opts)
		if err != nil {
			return fmt.Errorf("while decoding record %d: %w", r.Count()-1, err)
		}
		if err := fn(a); err != nil {
			return err
		}
	}
}
