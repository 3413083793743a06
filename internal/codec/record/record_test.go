package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"google.golang.org/protobuf/encoding/protowire"
	"pgregory.net/rapid"

	"github.com/lewtec/boxlabeler/internal/domain"
	"github.com/lewtec/boxlabeler/internal/imagefile"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMaskedCRC(t *testing.T) {
	// CRC-32C of no bytes is zero, leaving only the mask delta
	assert.Equal(t, uint32(0xa282ead8), maskedCRC(nil))
}

func TestFraming(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf, compress)
			payloads := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{0xff}, 4096)}
			for _, p := range payloads {
				require.NoError(t, w.Write(p))
			}
			require.NoError(t, w.Close())

			r, err := NewReader(&buf, compress)
			require.NoError(t, err)
			defer r.Close()
			for i, want := range payloads {
				got, err := r.Next()
				require.NoError(t, err, "record %d", i)
				assert.Equal(t, want, got)
			}
			_, err = r.Next()
			assert.ErrorIs(t, err, io.EOF)
			assert.Equal(t, 3, r.Count())
		})
	}
}

func TestFramingCorruption(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	require.NoError(t, w.Write([]byte("payload")))
	framed := buf.Bytes()

	t.Run("truncated", func(t *testing.T) {
		r, err := NewReader(bytes.NewReader(framed[:len(framed)-2]), false)
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, domain.ErrParse)
		assert.False(t, IsEnd(err))
	})

	t.Run("data checksum", func(t *testing.T) {
		bad := bytes.Clone(framed)
		bad[12] ^= 0x01
		r, err := NewReader(bytes.NewReader(bad), false)
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("length checksum", func(t *testing.T) {
		bad := bytes.Clone(framed)
		bad[0] ^= 0x01
		r, err := NewReader(bytes.NewReader(bad), false)
		require.NoError(t, err)
		_, err = r.Next()
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("not gzip", func(t *testing.T) {
		_, err := NewReader(bytes.NewReader(framed), true)
		assert.ErrorIs(t, err, domain.ErrParse)
	})
}

func TestExampleUnpackedValues(t *testing.T) {
	// FloatList and Int64List written without packing, as older writers do
	var floats []byte
	floats = protowire.AppendTag(floats, fieldListValue, protowire.Fixed32Type)
	floats = protowire.AppendFixed32(floats, 0x3f000000) // 0.5
	floats = protowire.AppendTag(floats, fieldListValue, protowire.Fixed32Type)
	floats = protowire.AppendFixed32(floats, 0x3e800000) // 0.25

	var ints []byte
	ints = protowire.AppendTag(ints, fieldListValue, protowire.VarintType)
	ints = protowire.AppendVarint(ints, 7)

	entry := func(key string, field protowire.Number, list []byte) []byte {
		var feature []byte
		feature = protowire.AppendTag(feature, field, protowire.BytesType)
		feature = protowire.AppendBytes(feature, list)

		var e []byte
		e = protowire.AppendTag(e, fieldMapKey, protowire.BytesType)
		e = protowire.AppendString(e, key)
		e = protowire.AppendTag(e, fieldMapValue, protowire.BytesType)
		e = protowire.AppendBytes(e, feature)
		return e
	}
	var features []byte
	for _, e := range [][]byte{entry("f", fieldFloatList, floats), entry("i", fieldInt64List, ints)} {
		features = protowire.AppendTag(features, fieldFeatureMap, protowire.BytesType)
		features = protowire.AppendBytes(features, e)
	}
	var msg []byte
	msg = protowire.AppendTag(msg, fieldFeatures, protowire.BytesType)
	msg = protowire.AppendBytes(msg, features)

	e, err := UnmarshalExample(msg)
	require.NoError(t, err)
	f, err := e.FloatList("f")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, f)
	i, err := e.Int64("i")
	require.NoError(t, err)
	assert.Equal(t, int64(7), i)

	_, err = e.Int64List("f")
	assert.ErrorIs(t, err, domain.ErrParse)
	_, err = e.String("missing")
	assert.ErrorIs(t, err, domain.ErrParse)

	_, err = UnmarshalExample([]byte{0x0a, 0x05, 0x01})
	assert.ErrorIs(t, err, domain.ErrParse)
}

func TestExampleRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewExample()
		e.SetFloats("floats", rapid.SliceOf(rapid.Float32Range(-1e6, 1e6)).Draw(t, "floats")...)
		e.SetInt64s("ints", rapid.SliceOf(rapid.Int64()).Draw(t, "ints")...)
		e.SetBytes("bytes", rapid.SliceOf(rapid.SliceOf(rapid.Byte())).Draw(t, "bytes")...)

		decoded, err := UnmarshalExample(e.Marshal())
		if err != nil {
			t.Fatalf("UnmarshalExample() error = %v", err)
		}
		for _, key := range []string{"floats", "ints", "bytes"} {
			want, got := e.Features[key], decoded.Features[key]
			assert.Equal(t, len(want.Floats), len(got.Floats), key)
			assert.Equal(t, len(want.Int64s), len(got.Int64s), key)
			assert.Equal(t, len(want.Bytes), len(got.Bytes), key)
			for i := range want.Floats {
				assert.Equal(t, want.Floats[i], got.Floats[i])
			}
			for i := range want.Int64s {
				assert.Equal(t, want.Int64s[i], got.Int64s[i])
			}
			for i := range want.Bytes {
				assert.Equal(t, string(want.Bytes[i]), string(got.Bytes[i]))
			}
		}
	})
}

func inferenceExample() *Example {
	e := NewExample()
	e.SetStrings(KeyFilename, "images/boxes1.jpg")
	e.SetStrings(KeyImageFormat, "jpg")
	e.SetInt64s(KeyWidth, 200)
	e.SetInt64s(KeyHeight, 100)
	e.SetFloats(KeyDetectionXMin, 0.125, 0.25, 0.5, 0.75)
	e.SetFloats(KeyDetectionYMin, 0.125, 0.25, 0.5, 0.75)
	e.SetFloats(KeyDetectionXMax, 0.25, 0.5, 0.75, 1)
	e.SetFloats(KeyDetectionYMax, 0.25, 0.5, 0.75, 1)
	e.SetInt64s(KeyDetectionLabel, 1, 2, 1, 9)
	e.SetFloats(KeyDetectionScore, 0.3, 0.5, 0.51, 0.9)
	return e
}

func TestDecodeInference(t *testing.T) {
	a, err := DecodeAnnotation(inferenceExample(), DecodeOptions{
		Mode:      domain.ModeInference,
		Threshold: 0.5,
		Origin:    "detections.tfrecord",
		Labels:    DefaultLabels(),
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ImageID("boxes1"), a.ImageID)
	assert.Equal(t, 200, a.Width)
	assert.Equal(t, 100, a.Height)
	assert.Equal(t, "detections.tfrecord", a.OriginFilename)
	require.Len(t, a.Boxes, 2, "scores at or below the threshold are dropped")

	first := a.Boxes[0]
	xmin, ymin, xmax, ymax := first.Corners()
	assert.Equal(t, [4]float64{100, 50, 150, 75}, [4]float64{xmin, ymin, xmax, ymax})
	assert.Equal(t, "pill", first.Label())
	assert.Equal(t, 0, first.Index())
	assert.InDelta(t, 0.51, first.Confidence(), 1e-6)
	assert.Equal(t, domain.DefaultMachine, first.Author())

	second := a.Boxes[1]
	assert.Equal(t, 1, second.Index())
	assert.Equal(t, "9", second.Label(), "unknown class ids fall back to the number")
	assert.Equal(t, 200.0, second.XMax())
}

func TestDecodeInferenceThresholdPrecision(t *testing.T) {
	e := inferenceExample()
	e.SetFloats(KeyDetectionScore, 0.6, 0.7, 0.1, 0.6000001)
	a, err := DecodeAnnotation(e, DecodeOptions{Mode: domain.ModeInference, Threshold: 0.6})
	require.NoError(t, err)
	require.Len(t, a.Boxes, 2, "a stored 0.6 is not above a 0.6 threshold")
	assert.InDelta(t, 0.7, a.Boxes[0].Confidence(), 1e-6)
	assert.InDelta(t, 0.6000001, a.Boxes[1].Confidence(), 1e-6)
}

func TestDecodeErrors(t *testing.T) {
	t.Run("testing mode", func(t *testing.T) {
		_, err := DecodeAnnotation(inferenceExample(), DecodeOptions{Mode: domain.ModeTesting})
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("ragged arrays", func(t *testing.T) {
		e := inferenceExample()
		e.SetFloats(KeyDetectionScore, 0.9)
		_, err := DecodeAnnotation(e, DecodeOptions{Mode: domain.ModeInference})
		assert.ErrorIs(t, err, domain.ErrParse)
	})

	t.Run("training arrays missing", func(t *testing.T) {
		_, err := DecodeAnnotation(inferenceExample(), DecodeOptions{Mode: domain.ModeTraining})
		assert.ErrorIs(t, err, domain.ErrParse)
	})
}

func exportable() *domain.Annotation {
	a := domain.NewAnnotation("boxes1", 200, 100)
	a.AppendBox(domain.BoxParams{XMin: 50, YMin: 25, XMax: 150, YMax: 75, Label: "pill"})
	a.AppendBox(domain.BoxParams{XMin: 0, YMin: 0, XMax: 10, YMax: 10, Label: "not_pill"})
	a.AppendBox(domain.BoxParams{XMin: 0, YMin: 0, XMax: 20, YMax: 20, Label: "pill"})
	a.MarkAllCorrect(domain.DefaultHuman)
	a.Boxes[1].SetReview(domain.DefaultHuman, false)
	a.Boxes[2].Delete()
	return a
}

func TestEncodeTrainingExample(t *testing.T) {
	img := &imagefile.Encoded{Data: []byte("jpeg bytes"), Format: "jpg", Size: imagefile.Size{Width: 200, Height: 100}}

	e, err := EncodeTrainingExample(exportable(), img, "images/boxes1.jpg", DefaultLabels())
	require.NoError(t, err)

	xmin, err := e.FloatList(KeyBoxXMin)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25}, xmin, "only correct, live boxes are exported")
	classes, err := e.Int64List(KeyClassLabel)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, classes)
	format, err := e.String(KeyImageFormat)
	require.NoError(t, err)
	assert.Equal(t, "jpg", format)

	var buf bytes.Buffer
	w := NewWriter(&buf, false)
	require.NoError(t, w.WriteExample(e))
	r, err := NewReader(&buf, false)
	require.NoError(t, err)

	var decoded []*domain.Annotation
	err = ReadAnnotations(r, DecodeOptions{Mode: domain.ModeTraining, Labels: DefaultLabels()}, func(a *domain.Annotation) error {
		decoded = append(decoded, a)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	require.Len(t, decoded[0].Boxes, 1)
	box := decoded[0].Boxes[0]
	assert.Equal(t, "pill", box.Label())
	assert.InDelta(t, 50, box.XMin(), 1e-4)
	assert.InDelta(t, 25, box.YMin(), 1e-4)
	assert.InDelta(t, 150, box.XMax(), 1e-4)
	assert.InDelta(t, 75, box.YMax(), 1e-4)
	assert.Equal(t, 1.0, box.Confidence())
}

func TestEncodeTrainingExampleErrors(t *testing.T) {
	img := &imagefile.Encoded{Data: []byte{1}, Format: "jpg", Size: imagefile.Size{Width: 10, Height: 10}}

	t.Run("no correct boxes", func(t *testing.T) {
		a := domain.NewAnnotation("empty", 10, 10)
		a.AppendBox(domain.BoxParams{Label: "pill"})
		_, err := EncodeTrainingExample(a, img, "empty.jpg", DefaultLabels())
		assert.ErrorIs(t, err, domain.ErrEmptyExportSet)
	})

	t.Run("unknown label", func(t *testing.T) {
		a := domain.NewAnnotation("x", 10, 10)
		a.AppendBox(domain.BoxParams{Label: "cat"})
		a.MarkAllCorrect(domain.DefaultHuman)
		_, err := EncodeTrainingExample(a, img, "x.jpg", DefaultLabels())
		assert.ErrorIs(t, err, domain.ErrUnknownLabel)
	})
}

func TestLabelMap(t *testing.T) {
	labels := LabelMap{"pill": 1, "not_pill": 2, "capsule": 1}
	assert.Equal(t, []string{"capsule", "pill", "not_pill"}, labels.Labels())
	assert.Equal(t, "capsule", labels.Text(1))
	assert.Equal(t, "3", labels.Text(3))
}
