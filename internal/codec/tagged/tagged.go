// Package tagged encodes records as JSON objects carrying a reserved type tag key, so that
// heterogeneous nested values can be rebuilt without an external schema.
//
// A record type marshals itself through Wrap and unmarshals through Unwrap; polymorphic
// decoding goes through a Table built at compile time by the package owning the records.
package tagged

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Key is the reserved object key holding the type tag.
const Key = "__type__"

// ErrUnresolvableTag is returned when a tag is missing or has no constructor.
var ErrUnresolvableTag = errors.New("unresolvable type tag")

// Record is implemented by every value that can be encoded with a tag.
type Record interface {
	RecordTag() string
}

// Wrap marshals fields, which must encode as a JSON object, and prepends the tag key.
func Wrap(tag string, fields any) ([]byte, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("while encoding %s: %w", tag, err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("while encoding %s: record fields must encode as a JSON object", tag)
	}
	name, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(name) + len(Key) + 5)
	buf.WriteString(`{"` + Key + `":`)
	buf.Write(name)
	if len(bytes.TrimSpace(body[1:len(body)-1])) > 0 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// PeekTag returns the tag of an encoded record without decoding its fields.
func PeekTag(data []byte) (string, error) {
	var probe struct {
		Tag *string `json:"__type__"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("while reading type tag: %w", err)
	}
	if probe.Tag == nil {
		return "", fmt.Errorf("%w: object has no %q key", ErrUnresolvableTag, Key)
	}
	return *probe.Tag, nil
}

// Unwrap checks that data carries tag and decodes the remaining fields into fields.
func Unwrap(data []byte, tag string, fields any) error {
	got, err := PeekTag(data)
	if err != nil {
		return err
	}
	if got != tag {
		return fmt.Errorf("%w: got %q, want %q", ErrUnresolvableTag, got, tag)
	}
	if err := json.Unmarshal(data, fields); err != nil {
		return fmt.Errorf("while decoding %s: %w", tag, err)
	}
	return nil
}

// Table maps a tag to the constructor of its record. Constructors must return pointers so
// the decoded fields land in the returned value.
type Table map[string]func() Record

// Decode resolves the tag of data and rebuilds the concrete record.
func (t Table) Decode(data []byte) (Record, error) {
	tag, err := PeekTag(data)
	if err != nil {
		return nil, err
	}
	ctor, ok := t[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnresolvableTag, tag)
	}
	rec := ctor()
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("while decoding %s: %w", tag, err)
	}
	return rec, nil
}

// Encode marshals r after checking that its tag can be decoded again by t.
func (t Table) Encode(r Record) ([]byte, error) {
	if _, ok := t[r.RecordTag()]; !ok {
		return nil, fmt.Errorf("%w: %q is not registered", ErrUnresolvableTag, r.RecordTag())
	}
	return json.Marshal(r)
}
