package export

import (
	"context"
	"path/filepath"
	"strings"

	"texbake/internal/recipe"
	"texbake/internal/texture"
)

// outputPaths computes where each channel of a descriptor is written. dests
// are the destinations of the descriptor that owns the fingerprint, which
// differ from own only for redirected descriptors.
func outputPaths(dests, own texture.Destinations, fingerprint, target string) map[texture.Channel]string {
	paths := make(map[texture.Channel]string, len(texture.ExportChannels))
	for _, ch := range []texture.Channel{texture.Base, texture.Normal, texture.Mask} {
		paths[ch] = texture.DiskPath(dests.For(ch), target, fingerprint)
	}
	paths[texture.Material] = texture.DiskPath(dests.Material, target,
		texture.MaterialID(dests.Material, fingerprint, own))
	return paths
}

// relative returns diskPath relative to target with forward slashes, the
// form group files reference outputs by.
func relative(target, diskPath string) string {
	rel, err := filepath.Rel(target, diskPath)
	if err != nil {
		return filepath.ToSlash(diskPath)
	}
	return filepath.ToSlash(rel)
}

// plan selects the job for one channel of d. produced reports whether the
// channel contributes a file to the group; job is nil when nothing has to
// run.
func (r *run) plan(ch texture.Channel, d *texture.Descriptor, res texture.Resolved, diskPath string) (job func(context.Context) error, produced bool) {
	if diskPath == "" || d.Destinations.For(ch) == "" {
		return nil, false
	}
	var req *recipe.Request
	switch ch {
	case texture.Base:
		req = r.baseRequest(res)
	case texture.Normal:
		req = r.normalRequest(d, res)
	case texture.Mask:
		req = r.maskRequest(d, res)
	case texture.Material:
		return r.materialJob(d, res, diskPath)
	}
	if req == nil {
		return nil, false
	}
	req.Output = diskPath
	return func(ctx context.Context) error {
		return r.p.engine.Export(ctx, *req)
	}, true
}

func (r *run) baseRequest(res texture.Resolved) *recipe.Request {
	if !res.Base.Present() {
		return nil
	}
	return &recipe.Request{
		Recipe:   recipe.Passthrough,
		Input:    res.Base.Path,
		Layering: res.Underlay,
	}
}

func (r *run) normalRequest(d *texture.Descriptor, res texture.Resolved) *recipe.Request {
	eye := strings.Contains(d.Destinations.Base, "eye")
	glow := res.Glow.Path
	alphaOverride := glow
	if eye {
		alphaOverride = ""
	}

	switch {
	case res.Normal.IsProvided():
		if r.opts.GenerateNormals && !d.SkipNormalGeneration && res.Base.Present() {
			return &recipe.Request{
				Recipe:        recipe.MergeNormal,
				Input:         res.Normal.Path,
				BaseNormal:    res.Base.Path,
				Modifier:      d.NormalMask,
				Layering:      res.BackupNormal,
				Correction:    d.NormalCorrection,
				AlphaOverride: alphaOverride,
			}
		}
		return &recipe.Request{
			Recipe:              recipe.Passthrough,
			Input:               res.Normal.Path,
			Layering:            res.BackupNormal,
			AlphaOverride:       alphaOverride,
			InvertAlpha:         d.InvertNormalAlpha || glow != "",
			KeepAlphaOverride:   glow != "",
			BlackoutTransparent: true,
		}

	case (res.Base.Present() || res.Glow.Present()) && r.opts.GenerateNormals:
		if d.SkipNormalGeneration {
			return nil
		}
		if d.Backup != nil {
			return &recipe.Request{
				Recipe:         recipe.MergeNormal,
				Input:          res.Normal.Path,
				BaseNormal:     res.Base.Path,
				Modifier:       d.NormalMask,
				Layering:       res.BackupNormal,
				Correction:     d.NormalCorrection,
				AlphaOverride:  alphaOverride,
				InvertModifier: d.InvertNormalGeneration,
			}
		}
		if eye {
			return nil
		}
		return &recipe.Request{
			Recipe:         recipe.Normal,
			Input:          res.Base.Path,
			Modifier:       d.NormalMask,
			Correction:     d.NormalCorrection,
			AlphaOverride:  glow,
			InvertModifier: d.InvertNormalGeneration,
		}

	case res.Glow.Present():
		if eye {
			return nil
		}
		return &recipe.Request{
			Recipe:              recipe.Passthrough,
			Input:               res.BackupNormal,
			Correction:          d.NormalCorrection,
			AlphaOverride:       glow,
			InvertModifier:      d.InvertNormalGeneration,
			InvertAlpha:         strings.Contains(d.Destinations.Base, "fac_"),
			BlackoutTransparent: true,
		}
	}
	return nil
}

func (r *run) maskRequest(d *texture.Descriptor, res texture.Resolved) *recipe.Request {
	dest := d.Destinations.Mask
	if res.Mask.IsProvided() {
		switch {
		case res.Base.Present() && !strings.Contains(dest, "/eye/") &&
			(strings.Contains(dest, "obj/face") || strings.Contains(dest, "obj/body")):
			return &recipe.Request{Recipe: recipe.DetailMask, Input: res.Mask.Path, Modifier: res.Base.Path}
		case strings.Contains(dest, "etc_") || strings.Contains(dest, "hair"):
			return &recipe.Request{Recipe: recipe.DontManipulate, Input: res.Mask.Path}
		default:
			return &recipe.Request{Recipe: recipe.Passthrough, Input: res.Mask.Path}
		}
	}
	if res.Base.Present() && r.opts.GenerateMultis && !d.SkipMaskGeneration &&
		!strings.Contains(strings.ToLower(dest), "iri") {
		return &recipe.Request{
			Recipe:   recipe.Mask,
			Input:    res.Base.Path,
			Modifier: res.Base.Path,
			Layering: res.BackupBase,
		}
	}
	return nil
}
