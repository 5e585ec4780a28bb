package recipe

import (
	"image"
	"math"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"

	"texbake/internal/raster"
)

// Maps derives the game-specific maps recipes hand off to.
type Maps interface {
	// HeightToNormal treats the luminance of height as a height field and
	// returns a tangent-space normal map. A non-nil mask scales the bump
	// strength per pixel; black flattens it.
	HeightToNormal(height, mask image.Image) image.Image
	// ModulateMulti writes the luminance of mask into the emissive channel of
	// a multi map.
	ModulateMulti(multi, mask image.Image) image.Image
	// EyeMulti builds an eye multi map from a base colour and a glow mask.
	EyeMulti(base, mask image.Image) image.Image
	// GlowBase stores the glow luminance in the alpha of a base colour map.
	GlowBase(base, glow image.Image) image.Image
	// Transplant copies the visible pixels of baked onto underlay.
	Transplant(underlay, baked image.Image) image.Image
}

// NormalStrength is the default bump scale of DefaultMaps.
const NormalStrength = 2.0

// DefaultMaps implements Maps with Sobel gradients.
type DefaultMaps struct {
	// Strength overrides NormalStrength when positive.
	Strength float64
}

var _ Maps = DefaultMaps{}

var (
	sobelX = kernel([]float64{-1, 0, 1, -2, 0, 2, -1, 0, 1})
	sobelY = kernel([]float64{-1, -2, -1, 0, 0, 0, 1, 2, 1})
)

// kernel builds a 3×3 kernel scaled so any gradient fits a biased byte.
func kernel(values []float64) *convolution.Kernel {
	k := convolution.NewKernel(3, 3)
	for i, v := range values {
		k.Matrix[i] = v / 8
	}
	return k
}

func (m DefaultMaps) strength() float64 {
	if m.Strength > 0 {
		return m.Strength
	}
	return NormalStrength
}

// HeightToNormal implements Maps.
func (m DefaultMaps) HeightToNormal(height, mask image.Image) image.Image {
	src := raster.Clone(height)
	w, h := raster.Size(src)
	gray := effect.Grayscale(src)

	opts := &convolution.Options{Bias: 128, Wrap: true, KeepAlpha: true}
	gx := convolution.Convolve(gray, sobelX, opts)
	gy := convolution.Convolve(gray, sobelY, opts)

	var weights *image.Gray
	if mask != nil {
		weights = luminance(raster.Resize(mask, w, h))
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	base := m.strength()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := base
			if weights != nil {
				s *= float64(weights.Pix[y*weights.Stride+x]) / 255
			}
			dx := (float64(gx.Pix[y*gx.Stride+x*4]) - 128) / 127.5
			dy := (float64(gy.Pix[y*gy.Stride+x*4]) - 128) / 127.5
			nx, ny, nz := -dx*s, -dy*s, 1.0
			length := math.Sqrt(nx*nx + ny*ny + nz*nz)

			i := y*out.Stride + x*4
			out.Pix[i] = unit(nx / length)
			out.Pix[i+1] = unit(ny / length)
			out.Pix[i+2] = unit(nz / length)
			out.Pix[i+3] = src.Pix[y*src.Stride+x*4+3]
		}
	}
	return out
}

// luminance returns the grayscale of img as one byte per pixel, origin at 0.
func luminance(img image.Image) *image.Gray {
	rgba := effect.Grayscale(img)
	b := rgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Pix[y*out.Stride+x] = rgba.Pix[rgba.PixOffset(b.Min.X+x, b.Min.Y+y)]
		}
	}
	return out
}

// unit maps [-1, 1] onto a byte.
func unit(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(255, (v*0.5+0.5)*255))))
}

// ModulateMulti implements Maps.
func (DefaultMaps) ModulateMulti(multi, mask image.Image) image.Image {
	out := raster.Clone(multi)
	w, h := raster.Size(out)
	lum := luminance(raster.Resize(mask, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x*4+2] = lum.Pix[y*lum.Stride+x]
		}
	}
	return out
}

// EyeMulti implements Maps. Red carries the base luminance, green the glow
// mask, blue stays empty.
func (DefaultMaps) EyeMulti(base, mask image.Image) image.Image {
	src := raster.Clone(base)
	w, h := raster.Size(src)
	baseLum := luminance(src)
	glow := luminance(raster.Resize(mask, w, h))

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*out.Stride + x*4
			out.Pix[i] = baseLum.Pix[y*baseLum.Stride+x]
			out.Pix[i+1] = glow.Pix[y*glow.Stride+x]
			out.Pix[i+3] = 255
		}
	}
	return out
}

// GlowBase implements Maps.
func (DefaultMaps) GlowBase(base, glow image.Image) image.Image {
	out := raster.Clone(base)
	w, h := raster.Size(out)
	lum := luminance(raster.Resize(glow, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x*4+3] = lum.Pix[y*lum.Stride+x]
		}
	}
	return out
}

// Transplant implements Maps.
func (DefaultMaps) Transplant(underlay, baked image.Image) image.Image {
	w, h := raster.Size(underlay)
	return raster.DrawOver(underlay, baked, w, h)
}
