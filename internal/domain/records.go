package domain

import (
	"fmt"

	"github.com/lewtec/boxlabeler/internal/codec/tagged"
)

const (
	TagAnnotation  = "boxlabeler/domain.Annotation"
	TagBoundingBox = "boxlabeler/domain.BoundingBox"
	TagUserID      = "boxlabeler/domain.UserID"
)

// Records is the closed set of record types understood by the tagged JSON codec.
var Records = tagged.Table{
	TagAnnotation:  func() tagged.Record { return new(Annotation) },
	TagBoundingBox: func() tagged.Record { return new(BoundingBox) },
	TagUserID:      func() tagged.Record { return new(UserID) },
}

// DecodeAnnotation decodes one tagged Annotation record.
func DecodeAnnotation(data []byte) (*Annotation, error) {
	rec, err := Records.Decode(data)
	if err != nil {
		return nil, err
	}
	a, ok := rec.(*Annotation)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrUnresolvableTypeTag, TagAnnotation, rec.RecordTag())
	}
	return a, nil
}
