package export

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"os"

	"texbake/internal/fileutil"
	"texbake/internal/logging"
	"texbake/internal/material"
	"texbake/internal/raster"
	"texbake/internal/services"
	"texbake/internal/texture"
)

// materialJob returns the material writer for d. Material paths already
// claimed this run produce output without a job.
func (r *run) materialJob(d *texture.Descriptor, res texture.Resolved, diskPath string) (func(context.Context) error, bool) {
	if d.Destinations.Material == "" || !res.Material.Present() {
		return nil, false
	}
	if !r.p.materials.Add(diskPath) {
		return nil, true
	}
	return func(ctx context.Context) error {
		return r.writeMaterial(ctx, d, res, diskPath)
	}, true
}

func (r *run) writeMaterial(ctx context.Context, d *texture.Descriptor, res texture.Resolved, diskPath string) error {
	p := r.p
	data, err := os.ReadFile(res.Material.Path)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "export", "read material", res.Material.Path, err)
	}
	file, err := p.materialCodec.Decode(data)
	if err != nil {
		return services.Wrap(services.ErrValidation, "export", "decode material", res.Material.Path, err)
	}

	var glow *color.NRGBA
	if res.Glow.Present() {
		img, err := p.loader.Load(res.Glow.Path)
		if err != nil {
			return services.Wrap(services.ErrNotFound, "export", "load glow", res.Glow.Path, err)
		}
		c := raster.MajorityColour(img)
		glow = &c
	}

	dests := d.Destinations
	if err := material.Patch(file, dests.Base, dests.Normal, dests.Mask, glow); err != nil {
		return services.Wrap(services.ErrValidation, "export", "patch material", res.Material.Path, err)
	}
	out, err := p.materialCodec.Encode(file)
	if err != nil {
		return fmt.Errorf("encode material: %w", err)
	}

	err = fileutil.WriteLocked(ctx, diskPath, out, p.cfg.MaterialLockWait)
	if errors.Is(err, fileutil.ErrLockWaitExceeded) {
		logging.WarnWithContext(r.logger, "material written without lock", "lock_wait_exceeded",
			logging.String(logging.FieldPath, diskPath),
			logging.Duration("waited", p.cfg.MaterialLockWait),
			logging.String(logging.FieldImpact, "another writer may have overwritten it"),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("write material %s: %w", diskPath, err)
	}
	r.logger.Debug("material written",
		logging.String(logging.FieldDescriptor, d.Name),
		logging.String(logging.FieldPath, diskPath),
		logging.Bool("glow", glow != nil),
	)
	return nil
}
