package record

import (
	"fmt"
	"math"
	"slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// Field numbers of the tf.train protos.
const (
	fieldFeatures   protowire.Number = 1 // Example.features
	fieldFeatureMap protowire.Number = 1 // Features.feature
	fieldMapKey     protowire.Number = 1
	fieldMapValue   protowire.Number = 2
	fieldBytesList  protowire.Number = 1 // Feature.bytes_list
	fieldFloatList  protowire.Number = 2 // Feature.float_list
	fieldInt64List  protowire.Number = 3 // Feature.int64_list
	fieldListValue  protowire.Number = 1 // *List.value
)

// Kind tells which list a Feature holds.
type Kind uint8

const (
	KindNone Kind = iota
	KindBytes
	KindFloat
	KindInt64
)

// Feature is one tf.train.Feature: a list of bytes, float32 or int64 values.
type Feature struct {
	Kind   Kind
	Bytes  [][]byte
	Floats []float32
	Int64s []int64
}

// Example is a tf.train.Example, a map from feature key to Feature.
type Example struct {
	Features map[string]Feature
}

func NewExample() *Example {
	return &Example{Features: map[string]Feature{}}
}

func (e *Example) SetBytes(key string, values ...[]byte) {
	e.Features[key] = Feature{Kind: KindBytes, Bytes: values}
}

func (e *Example) SetStrings(key string, values ...string) {
	b := make([][]byte, len(values))
	for i, v := range values {
		b[i] = []byte(v)
	}
	e.SetBytes(key, b...)
}

func (e *Example) SetFloats(key string, values ...float32) {
	e.Features[key] = Feature{Kind: KindFloat, Floats: values}
}

func (e *Example) SetInt64s(key string, values ...int64) {
	e.Features[key] = Feature{Kind: KindInt64, Int64s: values}
}

func (e *Example) Has(key string) bool {
	_, ok := e.Features[key]
	return ok
}

func (e *Example) get(key string, kind Kind) (Feature, error) {
	f, ok := e.Features[key]
	if !ok {
		return Feature{}, fmt.Errorf("%w: missing feature %q", domain.ErrParse, key)
	}
	// an empty list is encoded without its kind
	if f.Kind != kind && f.Kind != KindNone {
		return Feature{}, fmt.Errorf("%w: feature %q has the wrong type", domain.ErrParse, key)
	}
	return f, nil
}

// BytesList returns a bytes feature. A missing key is an error.
func (e *Example) BytesList(key string) ([][]byte, error) {
	f, err := e.get(key, KindBytes)
	return f.Bytes, err
}

func (e *Example) FloatList(key string) ([]float32, error) {
	f, err := e.get(key, KindFloat)
	return f.Floats, err
}

func (e *Example) Int64List(key string) ([]int64, error) {
	f, err := e.get(key, KindInt64)
	return f.Int64s, err
}

// String returns the single value of a bytes feature as a string.
func (e *Example) String(key string) (string, error) {
	values, err := e.BytesList(key)
	if err != nil {
		return "", err
	}
	if len(values) != 1 {
		return "", fmt.Errorf("%w: feature %q has %d values, want 1", domain.ErrParse, key, len(values))
	}
	return string(values[0]), nil
}

// Int64 returns the single value of an int64 feature.
func (e *Example) Int64(key string) (int64, error) {
	values, err := e.Int64List(key)
	if err != nil {
		return 0, err
	}
	if len(values) != 1 {
		return 0, fmt.Errorf("%w: feature %q has %d values, want 1", domain.ErrParse, key, len(values))
	}
	return values[0], nil
}

// Marshal encodes e in protobuf wire format. Keys are written in sorted order so equal
// examples encode to equal bytes.
func (e *Example) Marshal() []byte {
	keys := make([]string, 0, len(e.Features))
	for k := range e.Features {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var features []byte
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldMapKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldMapValue, protowire.BytesType)
		entry = protowire.AppendBytes(entry, marshalFeature(e.Features[k]))

		features = protowire.AppendTag(features, fieldFeatureMap, protowire.BytesType)
		features = protowire.AppendBytes(features, entry)
	}

	var out []byte
	out = protowire.AppendTag(out, fieldFeatures, protowire.BytesType)
	out = protowire.AppendBytes(out, features)
	return out
}

func marshalFeature(f Feature) []byte {
	var list []byte
	var field protowire.Number
	switch f.Kind {
	case KindBytes:
		field = fieldBytesList
		for _, v := range f.Bytes {
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, v)
		}
	case KindFloat:
		field = fieldFloatList
		if len(f.Floats) > 0 {
			var packed []byte
			for _, v := range f.Floats {
				packed = protowire.AppendFixed32(packed, math.Float32bits(v))
			}
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	case KindInt64:
		field = fieldInt64List
		if len(f.Int64s) > 0 {
			var packed []byte
			for _, v := range f.Int64s {
				packed = protowire.AppendVarint(packed, uint64(v))
			}
			list = protowire.AppendTag(list, fieldListValue, protowire.BytesType)
			list = protowire.AppendBytes(list, packed)
		}
	default:
		return nil
	}
	var out []byte
	out = protowire.AppendTag(out, field, protowire.BytesType)
	out = protowire.AppendBytes(out, list)
	return out
}

// UnmarshalExample decodes a serialized tf.train.Example. Unknown fields are skipped and
// repeated numeric values are accepted both packed and unpacked.
func UnmarshalExample(b []byte) (*Example, error) {
	e := NewExample()
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if num != fieldFeatures || typ != protowire.BytesType {
			return nil
		}
		return eachField(v, func(num protowire.Number, typ protowire.Type, entry []byte) error {
			if num != fieldFeatureMap || typ != protowire.BytesType {
				return nil
			}
			key, feature, err := unmarshalEntry(entry)
			if err != nil {
				return err
			}
			e.Features[key] = feature
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func unmarshalEntry(b []byte) (string, Feature, error) {
	var key string
	var feature Feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, v []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldMapKey:
			key = string(v)
		case fieldMapValue:
			f, err := unmarshalFeature(v)
			if err != nil {
				return fmt.Errorf("while decoding feature %q: %w", key, err)
			}
			feature = f
		}
		return nil
	})
	return key, feature, err
}

func unmarshalFeature(b []byte) (Feature, error) {
	var f Feature
	err := eachField(b, func(num protowire.Number, typ protowire.Type, list []byte) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case fieldBytesList:
			f = Feature{Kind: KindBytes, Bytes: [][]byte{}}
			return eachRaw(list, func(num protowire.Number, typ protowire.Type, raw []byte) error {
				if num != fieldListValue || typ != protowire.BytesType {
					return nil
				}
				v, n := protowire.ConsumeBytes(raw)
				if n < 0 {
					return wireError(n)
				}
				f.Bytes = append(f.Bytes, slices.Clone(v))
				return nil
			})
		case fieldFloatList:
			f = Feature{Kind: KindFloat, Floats: []float32{}}
			return eachRaw(list, func(num protowire.Number, typ protowire.Type, raw []byte) error {
				if num != fieldListValue {
					return nil
				}
				return consumeFloats(typ, raw, &f.Floats)
			})
		case fieldInt64List:
			f = Feature{Kind: KindInt64, Int64s: []int64{}}
			return eachRaw(list, func(num protowire.Number, typ protowire.Type, raw []byte) error {
				if num != fieldListValue {
					return nil
				}
				return consumeInt64s(typ, raw, &f.Int64s)
			})
		}
		return nil
	})
	return f, err
}

func consumeFloats(typ protowire.Type, raw []byte, out *[]float32) error {
	switch typ {
	case protowire.Fixed32Type:
		v, n := protowire.ConsumeFixed32(raw)
		if n < 0 {
			return wireError(n)
		}
		*out = append(*out, math.Float32frombits(v))
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return wireError(n)
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeFixed32(packed)
			if n < 0 {
				return wireError(n)
			}
			*out = append(*out, math.Float32frombits(v))
			packed = packed[n:]
		}
	}
	return nil
}

func consumeInt64s(typ protowire.Type, raw []byte, out *[]int64) error {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(raw)
		if n < 0 {
			return wireError(n)
		}
		*out = append(*out, int64(v))
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return wireError(n)
		}
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return wireError(n)
			}
			*out = append(*out, int64(v))
			packed = packed[n:]
		}
	}
	return nil
}

// eachField walks the fields of a message, passing the payload of length delimited fields
// and skipping everything else.
func eachField(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	return eachRaw(b, func(num protowire.Number, typ protowire.Type, raw []byte) error {
		if typ != protowire.BytesType {
			return fn(num, typ, nil)
		}
		v, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return wireError(n)
		}
		return fn(num, typ, v)
	})
}

// eachRaw walks the fields of a message, passing each undecoded field value.
func eachRaw(b []byte, fn func(protowire.Number, protowire.Type, []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireError(n)
		}
		b = b[n:]
		size := protowire.ConsumeFieldValue(num, typ, b)
		if size < 0 {
			return wireError(size)
		}
		if err := fn(num, typ, b[:size]); err != nil {
			return err
		}
		b = b[size:]
	}
	return nil
}

func wireError(n int) error {
	return fmt.Errorf("%w: %v", domain.ErrParse, protowire.ParseError(n))
}
