// Package phash computes perceptual difference hashes used to decide whether
// a parent texture changed enough to re-bake its children.
package phash

import (
	"fmt"
	"image"
	"math/bits"

	"github.com/disintegration/imaging"
)

// Hasher reduces an image to a 64-bit perceptual hash.
type Hasher interface {
	Hash(img image.Image) uint64
}

// Loader is the subset of codec.Loader HashFile needs.
type Loader interface {
	Load(path string) (image.Image, error)
}

// DHash is a difference hash: the image is normalised to 100×100, reduced
// to a 9×8 grayscale grid, and each bit records whether a cell is brighter
// than its right-hand neighbour.
type DHash struct{}

var _ Hasher = DHash{}

// Hash implements Hasher.
func (DHash) Hash(img image.Image) uint64 {
	normalised := imaging.Resize(img, 100, 100, imaging.Lanczos)
	small := imaging.Grayscale(imaging.Resize(normalised, 9, 8, imaging.Lanczos))

	var hash uint64
	for y := 0; y < 8; y++ {
		row := y * small.Stride
		for x := 0; x < 8; x++ {
			left := small.Pix[row+x*4]
			right := small.Pix[row+(x+1)*4]
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}
	return hash
}

// HashFile loads path and hashes it with h.
func HashFile(h Hasher, loader Loader, path string) (uint64, error) {
	img, err := loader.Load(path)
	if err != nil {
		return 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return h.Hash(img), nil
}

// Distance is the number of differing bits between two hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
