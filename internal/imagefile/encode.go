package imagefile

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/go-git/go-billy/v6"
)

// DefaultJPEGQuality is used when the caller passes a non positive quality.
const DefaultJPEGQuality = 95

// Encoded is an image normalized for training records.
type Encoded struct {
	Data   []byte
	Format string // "png" or "jpg", as written to image/format
	Size   Size
}

// Reencode decodes the image at path and encodes it again. PNG sources stay PNG, every
// other format is written as JPEG.
func Reencode(fs billy.Filesystem, path string, quality int) (*Encoded, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("while opening %s: %w", path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("while decoding %s: %w", path, err)
	}

	format, name := imaging.JPEG, "jpg"
	if ext, err := imaging.FormatFromFilename(path); err == nil && ext == imaging.PNG {
		format, name = imaging.PNG, "png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("while encoding %s as %s: %w", path, strings.ToUpper(name), err)
	}
	bounds := img.Bounds()
	return &Encoded{
		Data:   buf.Bytes(),
		Format: name,
		Size:   Size{Width: bounds.Dx(), Height: bounds.Dy()},
	}, nil
}
