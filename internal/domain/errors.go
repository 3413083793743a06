package domain

import (
	"errors"

	"github.com/lewtec/boxlabeler/internal/codec/tagged"
)

var (
	// ErrNotFound is returned when an image id is absent from a registry
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned when adding an image id that is already present
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrInvalidDirectory is returned when a scan target is not a directory
	ErrInvalidDirectory = errors.New("not a directory")
	// ErrUnresolvableTypeTag is returned when a tagged record cannot be rebuilt
	ErrUnresolvableTypeTag = tagged.ErrUnresolvableTag
	// ErrParse is returned for malformed XML or record structures
	ErrParse = errors.New("parse error")
	// ErrEmptyExportSet is returned when an image has no box eligible for export
	ErrEmptyExportSet = errors.New("no exportable bounding boxes")
	// ErrUnknownLabel is returned when a label has no class id in the label map
	ErrUnknownLabel = errors.New("unknown label")
	// ErrIndexOutOfRange is returned for index based lookups past the end
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrInvalidAnnotation is returned when a registry is given a nil annotation or one
	// filed under another image id
	ErrInvalidAnnotation = errors.New("invalid annotation")
)
