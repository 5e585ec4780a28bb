package codec

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"strings"
	"sync"

	"texbake/internal/fileutil"
	"texbake/internal/raster"
	"texbake/internal/texture"
)

// ErrUnsupported is returned by Loader.Load when the codec cannot read a file.
var ErrUnsupported = errors.New("unsupported texture format")

var bakedChannelTags = []string{"_d_", "_g_", "_n_", "_m_"}

// Loader reads textures through a Codec and reassembles detail-transfer
// outputs that were written as separate alpha and rgb halves.
type Loader struct {
	codec Codec
	mu    sync.Mutex
}

// NewLoader wraps c. A nil codec selects PNG.
func NewLoader(c Codec) *Loader {
	if c == nil {
		c = PNG{}
	}
	return &Loader{codec: c}
}

// Codec returns the wrapped codec.
func (l *Loader) Codec() Codec { return l.codec }

// Load decodes path. Missing files return an error matching fs.ErrNotExist
// and unreadable formats return ErrUnsupported.
func (l *Loader) Load(path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("load texture: empty path: %w", fs.ErrNotExist)
	}
	if isBakedChannel(path) {
		if img, ok, err := l.reassemble(path); err != nil || ok {
			return img, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("load texture: %w", err)
	}
	img, err := l.codec.Decode(path)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, fmt.Errorf("load %s: %w", path, ErrUnsupported)
	}
	return img, nil
}

// Exists reports whether path can be loaded, counting baked halves that are
// waiting to be reassembled.
func (l *Loader) Exists(path string) bool {
	if path == "" {
		return false
	}
	if _, err := os.Stat(path); err == nil {
		return true
	}
	if !isBakedChannel(path) {
		return false
	}
	return fileutil.FileExists(texture.BakedSibling(path, "alpha")) && fileutil.FileExists(texture.BakedSibling(path, "rgb"))
}

func (l *Loader) reassemble(path string) (image.Image, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	alphaPath := texture.BakedSibling(path, "alpha")
	rgbPath := texture.BakedSibling(path, "rgb")
	if !fileutil.FileExists(alphaPath) || !fileutil.FileExists(rgbPath) {
		return nil, false, nil
	}
	alpha, err := l.codec.Decode(alphaPath)
	if err != nil {
		return nil, false, err
	}
	rgb, err := l.codec.Decode(rgbPath)
	if err != nil {
		return nil, false, err
	}
	if alpha == nil || rgb == nil {
		return nil, false, fmt.Errorf("reassemble %s: %w", path, ErrUnsupported)
	}

	merged := raster.MergeAlphaToRGB(alpha, rgb)
	data, err := l.codec.Encode(merged)
	if err != nil {
		return nil, false, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, false, fmt.Errorf("write reassembled %s: %w", path, err)
	}
	_ = os.Remove(alphaPath)
	_ = os.Remove(rgbPath)
	return merged, true, nil
}

func isBakedChannel(path string) bool {
	if !texture.IsBaked(path) {
		return false
	}
	for _, tag := range bakedChannelTags {
		if strings.Contains(path, tag) {
			return true
		}
	}
	return false
}
