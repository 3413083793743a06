// Package imagefile reads and writes the image files behind a workspace through a
// billy.Filesystem.
package imagefile

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-git/go-billy/v6"
	"github.com/patrickmn/go-cache"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Size is the pixel size of an image.
type Size struct {
	Width  int
	Height int
}

// Prober reads image sizes from headers only. Results are cached per path, file size and
// modification time, so a file replaced on disk is probed again.
type Prober struct {
	fs    billy.Filesystem
	sizes *cache.Cache
}

// NewProber creates a prober over fs. The cache never expires and runs no janitor.
func NewProber(fs billy.Filesystem) *Prober {
	return &Prober{
		fs:    fs,
		sizes: cache.New(cache.NoExpiration, 0),
	}
}

func (p *Prober) Filesystem() billy.Filesystem {
	return p.fs
}

// Dimensions returns the width and height of the image at path.
func (p *Prober) Dimensions(path string) (Size, error) {
	info, err := p.fs.Stat(path)
	if err != nil {
		return Size{}, fmt.Errorf("while probing %s: %w", path, err)
	}
	key := fmt.Sprintf("%s:%d:%d", path, info.Size(), info.ModTime().UnixNano())
	if cached, ok := p.sizes.Get(key); ok {
		return cached.(Size), nil
	}

	f, err := p.fs.Open(path)
	if err != nil {
		return Size{}, fmt.Errorf("while probing %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, fmt.Errorf("while decoding header of %s: %w", path, err)
	}
	size := Size{Width: cfg.Width, Height: cfg.Height}
	p.sizes.Set(key, size, cache.DefaultExpiration)
	return size, nil
}

// Cached returns how many sizes are currently cached.
func (p *Prober) Cached() int {
	return p.sizes.ItemCount()
}
