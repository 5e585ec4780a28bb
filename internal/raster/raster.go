package raster

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Transparent is the colour blank canvases start from.
var Transparent = color.NRGBA{}

// Canvas returns a w×h image filled with c.
func Canvas(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// Clone copies img into a zero-origin NRGBA image.
func Clone(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// Size returns the width and height of img.
func Size(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize scales img to w×h. Images already at that size are copied.
func Resize(img image.Image, w, h int) *image.NRGBA {
	if iw, ih := Size(img); iw == w && ih == h {
		return Clone(img)
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// DrawOver composites src, stretched to w×h, over dst at the origin.
func DrawOver(dst, src image.Image, w, h int) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return Clone(dst)
	}
	return imaging.Overlay(dst, Resize(src, w, h), image.Pt(0, 0), 1.0)
}

// ResizeAndMerge draws source stretched over the full extent of target.
func ResizeAndMerge(target, source image.Image) *image.NRGBA {
	w, h := Size(target)
	return DrawOver(target, source, w, h)
}

// MergeLayers flattens images bottom-up. Every layer is stretched to the
// largest width and height in the stack. A single layer is returned as is.
func MergeLayers(images []image.Image) *image.NRGBA {
	switch len(images) {
	case 0:
		return nil
	case 1:
		return Clone(images[0])
	}
	maxW, maxH := 0, 0
	for _, img := range images {
		w, h := Size(img)
		maxW = max(maxW, w)
		maxH = max(maxH, h)
	}
	out := Canvas(maxW, maxH, Transparent)
	for _, img := range images {
		out = DrawOver(out, img, maxW, maxH)
	}
	return out
}

// Grayscale converts img to gray, keeping alpha.
func Grayscale(img image.Image) *image.NRGBA {
	return imaging.Grayscale(img)
}

// Invert negates the colour channels of img, keeping alpha.
func Invert(img image.Image) *image.NRGBA {
	return imaging.Invert(img)
}

// ExtractAlpha returns an opaque grayscale image of img's alpha channel.
func ExtractAlpha(img image.Image) *image.NRGBA {
	out := Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		a := out.Pix[i+3]
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = a, a, a, 255
	}
	return out
}

// ExtractRGB returns img with every pixel made opaque.
func ExtractRGB(img image.Image) *image.NRGBA {
	out := Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 255
	}
	return out
}

// MergeAlphaToRGB takes colour from rgb and alpha from the red channel of
// alpha. The result has rgb's size; pixels outside alpha are transparent.
func MergeAlphaToRGB(alpha, rgb image.Image) *image.NRGBA {
	out := Clone(rgb)
	a := Clone(alpha)
	w, h := Size(out)
	aw, ah := Size(a)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var v uint8
			if x < aw && y < ah {
				v = a.Pix[y*a.Stride+x*4]
			}
			out.Pix[y*out.Stride+x*4+3] = v
		}
	}
	return out
}

// BlackoutTransparent zeroes the colour of every pixel whose alpha is at or
// below threshold, keeping alpha unchanged.
func BlackoutTransparent(img image.Image, threshold uint8) *image.NRGBA {
	out := Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i+3] <= threshold {
			out.Pix[i], out.Pix[i+1], out.Pix[i+2] = 0, 0, 0
		}
	}
	return out
}

// HasUsableAlpha reports whether at least minCoverage of the pixels have an
// alpha of minAlpha or more.
func HasUsableAlpha(img image.Image, minAlpha uint8, minCoverage float64) bool {
	src := Clone(img)
	total := len(src.Pix) / 4
	if total == 0 {
		return false
	}
	visible := 0
	for i := 3; i < len(src.Pix); i += 4 {
		if src.Pix[i] >= minAlpha {
			visible++
		}
	}
	return float64(visible)/float64(total) >= minCoverage
}

// MajorityColour returns the most frequent visible colour of img. Pixels that
// are nearly transparent or nearly black are ignored; ties go to the colour
// seen first. An image with no qualifying pixels yields opaque black.
func MajorityColour(img image.Image) color.NRGBA {
	src := Clone(img)
	counts := make(map[color.NRGBA]int)
	var order []color.NRGBA
	for i := 0; i < len(src.Pix); i += 4 {
		c := color.NRGBA{R: src.Pix[i], G: src.Pix[i+1], B: src.Pix[i+2], A: src.Pix[i+3]}
		if c.A <= 20 || (c.R <= 50 && c.G <= 50 && c.B <= 50) {
			continue
		}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	best := color.NRGBA{A: 255}
	bestCount := 0
	for _, c := range order {
		if counts[c] > bestCount {
			best, bestCount = c, counts[c]
		}
	}
	return best
}

// DawntrailSkinMulti derives a skin mask from a base colour image: red from
// the base red, green from the inverted base blue, a constant 152 blue and
// full alpha.
func DawntrailSkinMulti(img image.Image) *image.NRGBA {
	out := Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		r, b := out.Pix[i], out.Pix[i+2]
		out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = r, 255-b, 152, 255
	}
	return out
}

// LayerImages draws top over bottom and keeps bottom's alpha. The top layer
// is scaled to bottom's height, preserving its aspect ratio.
//
// When override is set its grayscale replaces the alpha: the bottom alpha
// (inverted if invertAlpha) is overlaid with the override, which is itself
// inverted unless keepOverride is set.
func LayerImages(bottom, top, override image.Image, invertAlpha, keepOverride bool) *image.NRGBA {
	bw, bh := Size(bottom)
	alpha := ExtractAlpha(bottom)
	composite := ExtractRGB(bottom)

	tw, th := Size(top)
	if th > 0 {
		composite = DrawOver(composite, top, bh*tw/th, bh)
	}

	if override != nil {
		base := alpha
		if invertAlpha {
			base = Invert(alpha)
		}
		value := Grayscale(override)
		if !keepOverride {
			value = Invert(value)
		}
		alpha = LayerImages(base, value, nil, false, false)
	}

	if aw, ah := Size(alpha); aw != bw || ah != bh {
		alpha = Resize(alpha, bw, bh)
	}
	return MergeAlphaToRGB(alpha, composite)
}
