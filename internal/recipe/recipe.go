package recipe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"texbake/internal/cache"
	"texbake/internal/codec"
	"texbake/internal/fileutil"
	"texbake/internal/logging"
	"texbake/internal/raster"
)

// ErrNoOutput reports that a recipe had nothing to render because a required
// input is missing.
var ErrNoOutput = errors.New("recipe produced no output")

// Kind selects a recipe.
type Kind int

const (
	Passthrough Kind = iota
	Normal
	Mask
	MergeNormal
	Glow
	GlowEyeMask
	BakeImport
	DontManipulate
	DetailMask
)

func (k Kind) String() string {
	switch k {
	case Passthrough:
		return "passthrough"
	case Normal:
		return "normal"
	case Mask:
		return "mask"
	case MergeNormal:
		return "merge_normal"
	case Glow:
		return "glow"
	case GlowEyeMask:
		return "glow_eye_mask"
	case BakeImport:
		return "bake_import"
	case DontManipulate:
		return "dont_manipulate"
	case DetailMask:
		return "detail_mask"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// bakeUnderlay is the skin tone BakeImport fills its canvas with.
var bakeUnderlay = color.NRGBA{R: 160, G: 113, B: 94, A: 255}

// Request describes one channel render.
type Request struct {
	Recipe Kind
	Input  string
	Output string

	// BaseNormal is the parent image normals are generated from.
	BaseNormal string
	// Modifier is the normal-generation mask, the multi modulation mask or
	// the glow map, depending on the recipe.
	Modifier   string
	Layering   string
	Correction string

	AlphaOverride       string
	InvertModifier      bool
	InvertAlpha         bool
	KeepAlphaOverride   bool
	BlackoutTransparent bool
}

// signature keys a cached render by every request field that changes its
// pixels.
func (r Request) signature() string {
	return strings.Join([]string{
		r.Recipe.String(),
		r.Input,
		r.BaseNormal,
		r.Modifier,
		r.Layering,
		r.Correction,
		r.AlphaOverride,
		strconv.FormatBool(r.InvertModifier),
		strconv.FormatBool(r.InvertAlpha),
		strconv.FormatBool(r.KeepAlphaOverride),
	}, "\x1f")
}

// Caches are the per-run memo tables recipes share.
type Caches struct {
	Mask   *cache.Store[string, image.Image]
	Normal *cache.Store[string, image.Image]
	Glow   *cache.Store[string, image.Image]
}

// NewCaches returns empty caches.
func NewCaches() *Caches {
	return &Caches{
		Mask:   cache.NewStore[string, image.Image](),
		Normal: cache.NewStore[string, image.Image](),
		Glow:   cache.NewStore[string, image.Image](),
	}
}

// Reset empties every table.
func (c *Caches) Reset() {
	c.Mask.Reset()
	c.Normal.Reset()
	c.Glow.Reset()
}

// Engine renders recipes.
type Engine struct {
	baseDir string
	loader  *codec.Loader
	maps    Maps
	caches  *Caches
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaps overrides the map writers.
func WithMaps(m Maps) Option {
	return func(e *Engine) {
		if m != nil {
			e.maps = m
		}
	}
}

// WithCaches shares caches owned by the caller.
func WithCaches(c *Caches) Option {
	return func(e *Engine) {
		if c != nil {
			e.caches = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine builds an engine reading resources relative to baseDir.
func NewEngine(baseDir string, loader *codec.Loader, opts ...Option) *Engine {
	if loader == nil {
		loader = codec.NewLoader(nil)
	}
	e := &Engine{
		baseDir: baseDir,
		loader:  loader,
		maps:    DefaultMaps{},
		caches:  NewCaches(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Caches returns the engine's caches.
func (e *Engine) Caches() *Caches { return e.caches }

// Export renders req and writes the encoded result to req.Output, waiting
// for any lock another writer holds on it.
func (e *Engine) Export(ctx context.Context, req Request) error {
	if req.Output == "" {
		return fmt.Errorf("export %s: empty output path", req.Recipe)
	}
	data, err := e.Encode(req)
	if err != nil {
		return err
	}
	if err := fileutil.WriteLocked(ctx, req.Output, data, 0); err != nil {
		return fmt.Errorf("write %s: %w", req.Output, err)
	}
	e.logger.Debug("channel written",
		logging.String(logging.FieldRecipe, req.Recipe.String()),
		logging.String(logging.FieldPath, req.Output),
		logging.Int("bytes", len(data)),
	)
	return nil
}

// Encode renders req and returns the bytes Export would write.
// DontManipulate copies its source unless the codec needs another format.
func (e *Engine) Encode(req Request) ([]byte, error) {
	if req.Recipe == DontManipulate {
		return e.raw(req)
	}
	img, err := e.Render(req)
	if err != nil {
		return nil, err
	}
	data, err := e.loader.Codec().Encode(img)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", req.Recipe, err)
	}
	return data, nil
}

// Render runs the recipe and returns the image it produced.
func (e *Engine) Render(req Request) (image.Image, error) {
	switch req.Recipe {
	case Passthrough:
		return e.passthrough(req)
	case Normal:
		return e.normal(req)
	case MergeNormal:
		return e.mergeNormal(req)
	case Mask:
		return e.mask(req)
	case Glow:
		return e.glow(req)
	case GlowEyeMask:
		return e.glowEyeMask(req)
	case DetailMask:
		return e.detailMask(req)
	case BakeImport:
		return e.bakeImport(req)
	case DontManipulate:
		return e.input(e.resolve(req.Input))
	default:
		return nil, fmt.Errorf("unknown recipe %d", int(req.Recipe))
	}
}

func (e *Engine) passthrough(req Request) (image.Image, error) {
	override, err := e.optional(req.AlphaOverride)
	if err != nil {
		return nil, err
	}

	if req.Layering != "" {
		bottom, err := e.input(e.layering(req.Layering))
		if err != nil {
			return nil, err
		}
		top, err := e.input(req.Input)
		if err != nil {
			return nil, err
		}
		layered := raster.LayerImages(bottom, top, override, req.InvertAlpha, req.KeepAlphaOverride)
		if !req.BlackoutTransparent {
			return layered, nil
		}
		alpha := raster.ExtractAlpha(layered)
		if raster.HasUsableAlpha(top, 16, 0.05) {
			alpha = raster.ExtractAlpha(top)
		}
		return raster.BlackoutTransparent(raster.MergeAlphaToRGB(alpha, raster.ExtractRGB(top)), 2), nil
	}

	img, err := e.input(e.resolve(req.Input))
	if err != nil {
		return nil, err
	}
	if override != nil {
		w, h := raster.Size(img)
		img = raster.MergeAlphaToRGB(raster.Resize(raster.Grayscale(override), w, h), img)
	}
	if req.BlackoutTransparent {
		img = raster.BlackoutTransparent(img, 0)
	}
	return img, nil
}

func (e *Engine) normal(req Request) (image.Image, error) {
	out, err := e.caches.Normal.Compute(req.signature(), func() (image.Image, error) {
		src, err := e.input(req.Input)
		if err != nil {
			return nil, err
		}
		target := onCanvas(src)
		if req.InvertModifier {
			target = raster.Invert(target)
		}
		modifier, err := e.optional(req.Modifier)
		if err != nil {
			return nil, err
		}
		normal := e.maps.HeightToNormal(target, modifier)
		override, err := e.optional(req.AlphaOverride)
		if err != nil {
			return nil, err
		}
		if override != nil {
			normal = raster.LayerImages(normal, normal, override, req.InvertAlpha, false)
		}
		return normal, nil
	})
	if err != nil {
		return nil, err
	}
	return e.correct(out, req.Correction)
}

func (e *Engine) mergeNormal(req Request) (image.Image, error) {
	if req.BaseNormal == "" {
		return nil, fmt.Errorf("%w: merge normal needs a base image", ErrNoOutput)
	}
	return e.caches.Normal.Compute(req.signature(), func() (image.Image, error) {
		parent, err := e.input(req.BaseNormal)
		if err != nil {
			return nil, err
		}
		canvas := onCanvas(parent)
		if req.InvertModifier {
			canvas = raster.Invert(canvas)
		}
		modifier, err := e.optional(req.Modifier)
		if err != nil {
			return nil, err
		}
		generated := e.maps.HeightToNormal(canvas, modifier)

		child, err := e.input(req.Input)
		if err != nil {
			return nil, err
		}
		if modifier == nil && req.Layering != "" {
			bottom, err := e.optional(e.layering(req.Layering))
			if err != nil {
				return nil, err
			}
			if bottom != nil {
				child = raster.LayerImages(bottom, child, nil, false, false)
			}
		}

		out := image.Image(raster.MergeAlphaToRGB(
			raster.ExtractAlpha(child),
			raster.LayerImages(child, generated, nil, false, false),
		))
		if out, err = e.correct(out, req.Correction); err != nil {
			return nil, err
		}

		override, err := e.optional(req.AlphaOverride)
		if err != nil {
			return nil, err
		}
		if override != nil {
			alpha := image.Image(raster.Grayscale(override))
			rgb := image.Image(raster.ExtractRGB(out))
			ow, oh := raster.Size(out)
			aw, ah := raster.Size(alpha)
			if oh < ah {
				rgb = raster.Resize(rgb, aw, ah)
			} else {
				alpha = raster.Resize(alpha, ow, oh)
			}
			out = raster.MergeAlphaToRGB(alpha, rgb)
		}
		return out, nil
	})
}

func (e *Engine) mask(req Request) (image.Image, error) {
	return e.caches.Mask.Compute(req.signature(), func() (image.Image, error) {
		src, err := e.input(req.Input)
		if err != nil {
			return nil, err
		}
		base := image.Image(src)
		if req.Layering != "" {
			layer, err := e.optional(e.layering(req.Layering))
			if err != nil {
				return nil, err
			}
			if layer != nil {
				w, h := raster.Size(src)
				canvas := raster.DrawOver(raster.Canvas(w, h, raster.Transparent), layer, w, h)
				base = raster.DrawOver(canvas, src, w, h)
			}
		}
		multi := image.Image(raster.DawntrailSkinMulti(base))
		modifier, err := e.optional(req.Modifier)
		if err != nil {
			return nil, err
		}
		if modifier != nil {
			multi = e.maps.ModulateMulti(multi, modifier)
		}
		return multi, nil
	})
}

func (e *Engine) glow(req Request) (image.Image, error) {
	return e.caches.Glow.Compute(req.signature(), func() (image.Image, error) {
		src, err := e.input(req.Input)
		if err != nil {
			return nil, err
		}
		glowMap, err := e.input(req.Modifier)
		if err != nil {
			return nil, err
		}
		w, h := raster.Size(src)
		base := image.Image(src)
		if req.Layering != "" {
			layer, err := e.optional(e.layering(req.Layering))
			if err != nil {
				return nil, err
			}
			if layer != nil {
				canvas := raster.DrawOver(raster.Canvas(w, h, raster.Transparent), layer, w, h)
				base = raster.DrawOver(canvas, src, w, h)
			}
		}
		return e.maps.GlowBase(base, raster.Resize(glowMap, w, h)), nil
	})
}

func (e *Engine) glowEyeMask(req Request) (image.Image, error) {
	return e.caches.Glow.Compute(req.signature(), func() (image.Image, error) {
		src, mask, err := e.pair(req.Input, req.Modifier)
		if err != nil {
			return nil, err
		}
		return e.maps.EyeMulti(src, mask), nil
	})
}

func (e *Engine) detailMask(req Request) (image.Image, error) {
	return e.caches.Glow.Compute(req.signature(), func() (image.Image, error) {
		src, mask, err := e.pair(req.Input, req.Modifier)
		if err != nil {
			return nil, err
		}
		return e.maps.ModulateMulti(src, mask), nil
	})
}

func (e *Engine) bakeImport(req Request) (image.Image, error) {
	baked, err := e.input(req.Input)
	if err != nil {
		return nil, err
	}
	w, h := raster.Size(baked)
	underlay := raster.Canvas(w, h, bakeUnderlay)
	parent, err := e.optional(req.BaseNormal)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		underlay = raster.DrawOver(underlay, parent, w, h)
	}
	return e.maps.Transplant(underlay, baked), nil
}

func (e *Engine) raw(req Request) ([]byte, error) {
	src := e.resolve(req.Input)
	if !e.loader.Exists(src) {
		return nil, fmt.Errorf("%w: %s missing", ErrNoOutput, src)
	}
	if strings.EqualFold(filepath.Ext(src), e.loader.Codec().Extension()) {
		data, err := os.ReadFile(src)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", src, err)
		}
	}
	img, err := e.input(src)
	if err != nil {
		return nil, err
	}
	return e.loader.Codec().Encode(img)
}

func (e *Engine) correct(img image.Image, correction string) (image.Image, error) {
	overlay, err := e.optional(correction)
	if err != nil || overlay == nil {
		return img, err
	}
	return raster.ResizeAndMerge(img, overlay), nil
}

func (e *Engine) pair(input, mask string) (image.Image, image.Image, error) {
	src, err := e.input(input)
	if err != nil {
		return nil, nil, err
	}
	m, err := e.input(mask)
	if err != nil {
		return nil, nil, err
	}
	return src, m, nil
}

// input loads a required image. A missing file becomes ErrNoOutput.
func (e *Engine) input(path string) (image.Image, error) {
	img, err := e.loader.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s missing", ErrNoOutput, displayPath(path))
	}
	return img, err
}

// optional loads an image that recipes can do without.
func (e *Engine) optional(path string) (image.Image, error) {
	if path == "" {
		return nil, nil
	}
	img, err := e.loader.Load(e.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return img, err
}

// resolve joins resource-relative inputs onto the base directory.
func (e *Engine) resolve(path string) string {
	if strings.HasPrefix(path, "res/") || strings.HasPrefix(path, `res\`) {
		return filepath.Join(e.baseDir, filepath.FromSlash(strings.ReplaceAll(path, `\`, "/")))
	}
	return path
}

// layering resolves a layering image, which is always resource-relative
// unless absolute.
func (e *Engine) layering(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.baseDir, filepath.FromSlash(strings.ReplaceAll(path, `\`, "/")))
}

func onCanvas(img image.Image) *image.NRGBA {
	w, h := raster.Size(img)
	return raster.DrawOver(raster.Canvas(w, h, raster.Transparent), img, w, h)
}

func displayPath(path string) string {
	if path == "" {
		return "(none)"
	}
	return path
}
