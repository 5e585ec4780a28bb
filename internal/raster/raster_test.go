package raster_test

import (
	"image"
	"image/color"
	"testing"

	"texbake/internal/raster"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestBlackoutTransparent(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 200, G: 10, B: 10, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 10, B: 10, A: 3})

	out := raster.BlackoutTransparent(img, 0)
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{A: 0}) {
		t.Fatalf("transparent pixel = %+v, want black", got)
	}
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{R: 200, G: 10, B: 10, A: 3}) {
		t.Fatalf("pixel above threshold changed: %+v", got)
	}

	out = raster.BlackoutTransparent(img, 3)
	if got := out.NRGBAAt(1, 0); got != (color.NRGBA{A: 3}) {
		t.Fatalf("pixel at threshold = %+v, want black with alpha 3", got)
	}
	if img.NRGBAAt(0, 0).R != 200 {
		t.Fatal("input image was mutated")
	}
}

func TestHasUsableAlpha(t *testing.T) {
	img := solid(10, 10, color.NRGBA{A: 0})
	if raster.HasUsableAlpha(img, 16, 0.05) {
		t.Fatal("fully transparent image reported usable alpha")
	}
	for x := 0; x < 5; x++ {
		img.SetNRGBA(x, 0, color.NRGBA{A: 16})
	}
	if !raster.HasUsableAlpha(img, 16, 0.05) {
		t.Fatal("5% coverage should be usable")
	}
	if raster.HasUsableAlpha(img, 17, 0.05) {
		t.Fatal("pixels below minAlpha should not count")
	}
}

func TestMajorityColour(t *testing.T) {
	img := solid(4, 1, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(0, 0, color.NRGBA{G: 200, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 10, B: 10, A: 255})

	got := raster.MajorityColour(img)
	if got.R != 255 || got.G != 0 || got.B != 0 {
		t.Fatalf("MajorityColour = %+v, want red", got)
	}

	dark := solid(2, 2, color.NRGBA{R: 5, G: 5, B: 5, A: 255})
	if got := raster.MajorityColour(dark); got != (color.NRGBA{A: 255}) {
		t.Fatalf("expected black fallback, got %+v", got)
	}

	faint := solid(2, 2, color.NRGBA{R: 255, A: 20})
	if got := raster.MajorityColour(faint); got != (color.NRGBA{A: 255}) {
		t.Fatalf("near-transparent pixels should be ignored, got %+v", got)
	}
}

func TestMajorityColourTieGoesToFirstSeen(t *testing.T) {
	img := solid(2, 1, color.NRGBA{R: 100, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{B: 100, A: 255})
	if got := raster.MajorityColour(img); got.R != 100 {
		t.Fatalf("tie should pick first colour, got %+v", got)
	}
}

func TestDawntrailSkinMulti(t *testing.T) {
	img := solid(1, 1, color.NRGBA{R: 40, G: 90, B: 200, A: 10})
	got := raster.DawntrailSkinMulti(img).NRGBAAt(0, 0)
	want := color.NRGBA{R: 40, G: 55, B: 152, A: 255}
	if got != want {
		t.Fatalf("DawntrailSkinMulti = %+v, want %+v", got, want)
	}
}

func TestExtractAndMergeAlpha(t *testing.T) {
	img := solid(2, 2, color.NRGBA{R: 9, G: 8, B: 7, A: 100})
	alpha := raster.ExtractAlpha(img)
	if got := alpha.NRGBAAt(1, 1); got != (color.NRGBA{R: 100, G: 100, B: 100, A: 255}) {
		t.Fatalf("ExtractAlpha = %+v", got)
	}
	rgb := raster.ExtractRGB(img)
	if got := rgb.NRGBAAt(0, 0); got != (color.NRGBA{R: 9, G: 8, B: 7, A: 255}) {
		t.Fatalf("ExtractRGB = %+v", got)
	}
	merged := raster.MergeAlphaToRGB(alpha, rgb)
	if got := merged.NRGBAAt(0, 1); got != img.NRGBAAt(0, 1) {
		t.Fatalf("round trip = %+v, want %+v", got, img.NRGBAAt(0, 1))
	}
}

func TestMergeAlphaToRGBOutOfBoundsIsTransparent(t *testing.T) {
	rgb := solid(2, 1, color.NRGBA{R: 50, A: 255})
	alpha := solid(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	merged := raster.MergeAlphaToRGB(alpha, rgb)
	if merged.NRGBAAt(0, 0).A != 255 || merged.NRGBAAt(1, 0).A != 0 {
		t.Fatalf("unexpected alpha: %+v %+v", merged.NRGBAAt(0, 0), merged.NRGBAAt(1, 0))
	}
}

func TestMergeLayers(t *testing.T) {
	bottom := solid(4, 4, color.NRGBA{R: 255, A: 255})
	top := solid(2, 2, color.NRGBA{B: 255, A: 255})

	if raster.MergeLayers(nil) != nil {
		t.Fatal("empty stack should merge to nil")
	}
	single := raster.MergeLayers([]image.Image{bottom})
	if single.NRGBAAt(0, 0) != bottom.NRGBAAt(0, 0) {
		t.Fatal("single layer should be returned unchanged")
	}

	out := raster.MergeLayers([]image.Image{bottom, top})
	if w, h := raster.Size(out); w != 4 || h != 4 {
		t.Fatalf("merged size %dx%d, want 4x4", w, h)
	}
	if got := out.NRGBAAt(3, 3); got.B != 255 || got.R != 0 {
		t.Fatalf("opaque top layer should cover bottom after stretch, got %+v", got)
	}
}

func TestMergeLayersKeepsBottomUnderTransparentTop(t *testing.T) {
	bottom := solid(2, 2, color.NRGBA{R: 255, A: 255})
	top := solid(2, 2, color.NRGBA{B: 255, A: 0})
	out := raster.MergeLayers([]image.Image{bottom, top})
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 255}) {
		t.Fatalf("transparent overlay changed pixel: %+v", got)
	}
}

func TestLayerImagesKeepsBottomAlpha(t *testing.T) {
	bottom := solid(2, 2, color.NRGBA{R: 255, A: 128})
	top := solid(2, 2, color.NRGBA{G: 255, A: 255})

	out := raster.LayerImages(bottom, top, nil, false, false)
	got := out.NRGBAAt(0, 0)
	if got.G != 255 || got.R != 0 {
		t.Fatalf("top colour should win, got %+v", got)
	}
	if got.A != 128 {
		t.Fatalf("alpha should come from bottom, got %d", got.A)
	}
}

func TestLayerImagesAlphaOverride(t *testing.T) {
	bottom := solid(2, 2, color.NRGBA{R: 255, A: 255})
	top := solid(2, 2, color.NRGBA{G: 255, A: 255})
	override := solid(2, 2, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	inverted := raster.LayerImages(bottom, top, override, false, false)
	if a := inverted.NRGBAAt(0, 0).A; a != 0 {
		t.Fatalf("white override inverted should clear alpha, got %d", a)
	}
	kept := raster.LayerImages(bottom, top, override, false, true)
	if a := kept.NRGBAAt(0, 0).A; a != 255 {
		t.Fatalf("kept white override should be opaque, got %d", a)
	}
}

func TestResizeSameSizeCopies(t *testing.T) {
	img := solid(3, 2, color.NRGBA{R: 1, A: 255})
	out := raster.Resize(img, 3, 2)
	out.SetNRGBA(0, 0, color.NRGBA{})
	if img.NRGBAAt(0, 0).R != 1 {
		t.Fatal("Resize at same size should not alias the input")
	}
	if w, h := raster.Size(raster.Resize(img, 6, 4)); w != 6 || h != 4 {
		t.Fatalf("Resize gave %dx%d", w, h)
	}
}
