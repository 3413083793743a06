// Package record reads and writes TFRecord files of tf.train.Example records and maps them
// to and from annotations.
//
// Each record is framed as
//
//	uint64 length (little endian)
//	uint32 masked CRC-32C of the length bytes
//	length bytes of data
//	uint32 masked CRC-32C of the data
//
// Files whose name ends in ".gz" are gzip compressed as a whole.
package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/lewtec/boxlabeler/internal/domain"
)

// MaxRecordSize bounds the length prefix accepted by Reader.
const MaxRecordSize = 1 << 30

const maskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, castagnoli)
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Compressed reports whether a record file name denotes a gzip compressed file.
func Compressed(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".gz")
}

// Writer appends framed records to an underlying writer.
type Writer struct {
	w  io.Writer
	gz *gzip.Writer
}

// NewWriter frames records onto w. With compress set the stream is gzip compressed and
// Close must be called to flush it.
func NewWriter(w io.Writer, compress bool) *Writer {
	if compress {
		gz := gzip.NewWriter(w)
		return &Writer{w: gz, gz: gz}
	}
	return &Writer{w: w}
}

// Write frames one record.
func (w *Writer) Write(data []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))

	for _, part := range [][]byte{header[:], data, footer[:]} {
		if _, err := w.w.Write(part); err != nil {
			return fmt.Errorf("while writing record: %w", err)
		}
	}
	return nil
}

// WriteExample serializes and frames e.
func (w *Writer) WriteExample(e *Example) error {
	return w.Write(e.Marshal())
}

// Close flushes compression state. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// Reader reads framed records one at a time, front to back.
type Reader struct {
	r     *bufio.Reader
	gz    *gzip.Reader
	count int
}

// NewReader reads records from r, decompressing them when compress is set.
func NewReader(r io.Reader, compress bool) (*Reader, error) {
	if compress {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
		}
		return &Reader{r: bufio.NewReader(gz), gz: gz}, nil
	}
	return &Reader{r: bufio.NewReader(r)}, nil
}

// Next returns the next record. It returns io.EOF after the last complete record and an
// error wrapping domain.ErrParse for a truncated or corrupted one.
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	n, err := io.ReadFull(r.r, header[:])
	if err == io.EOF && n == 0 {
		return nil, io.EOF
	}
	if err != nil {
		return nil, r.corrupt("truncated header: %v", err)
	}
	if got, want := binary.LittleEndian.Uint32(header[8:]), maskedCRC(header[:8]); got != want {
		return nil, r.corrupt("length checksum mismatch")
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if length > MaxRecordSize {
		return nil, r.corrupt("record of %d bytes exceeds the limit", length)
	}

	data := make([]byte, length+4)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return nil, r.corrupt("truncated data: %v", err)
	}
	data, footer := data[:length], data[length:]
	if binary.LittleEndian.Uint32(footer) != maskedCRC(data) {
		return nil, r.corrupt("data checksum mismatch")
	}
	r.count++
	return data, nil
}

// NextExample reads and decodes the next record.
func (r *Reader) NextExample() (*Example, error) {
	data, err := r.Next()
	if err != nil {
		return nil, err
	}
	e, err := UnmarshalExample(data)
	if err != nil {
		return nil, fmt.Errorf("while decoding record %d: %w", r.count-1, err)
	}
	return e, nil
}

// Count returns the number of records read so far.
func (r *Reader) Count() int {
	return r.count
}

// Close releases decompression state. It does not close the underlying reader.
func (r *Reader) Close() error {
	if r.gz != nil {
		return r.gz.Close()
	}
	return nil
}

func (r *Reader) corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: record %d: %s", domain.ErrParse, r.count, fmt.Sprintf(format, args...))
}

// IsEnd reports whether err marks the clean end of a record stream.
func IsEnd(err error) bool {
	return errors.Is(err, io.EOF)
}
