// Package codec decodes source textures into pixel buffers and encodes
// finished channels into the packaged texture format.
package codec

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/webp"
)

// Codec converts between files on disk and pixel buffers.
type Codec interface {
	// Decode reads path. Unsupported formats return a nil image and no error.
	Decode(path string) (image.Image, error)
	// Encode serializes img in the packaged texture format.
	Encode(img image.Image) ([]byte, error)
	// Extension is the file extension Encode produces, including the dot.
	Extension() string
}

// PNG reads common raster formats and writes PNG.
type PNG struct{}

var _ Codec = PNG{}

// Decode implements Codec.
func (PNG) Decode(path string) (image.Image, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff":
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return img, nil
	case ".webp":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		img, err := webp.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return img, nil
	default:
		return nil, nil
	}
}

// Encode implements Codec.
func (PNG) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Extension implements Codec.
func (PNG) Extension() string { return ".png" }
