package export

import (
	"context"
	"errors"
	"image"
	"io/fs"

	"texbake/internal/codec"
	"texbake/internal/fileutil"
	"texbake/internal/logging"
	"texbake/internal/raster"
	"texbake/internal/services"
	"texbake/internal/texture"
)

var layeredChannels = []texture.Channel{texture.Base, texture.Normal, texture.Mask}

// mergeLayers flattens each layered channel of d into its final path. A
// final path already in merged is not written again. Missing layers are
// skipped; a stack with no readable layer produces no file.
func (r *run) mergeLayers(ctx context.Context, d *texture.Descriptor, merged map[string]bool) error {
	for _, ch := range layeredChannels {
		if !d.NeedsMerge(ch) {
			continue
		}
		final := d.Final(ch)
		if merged[final] {
			continue
		}
		merged[final] = true

		layers := make([]image.Image, 0, len(d.LayerStack(ch)))
		for _, path := range d.LayerStack(ch) {
			img, err := r.p.loader.Load(path)
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("layer missing; skipped",
					logging.String(logging.FieldDescriptor, d.Name),
					logging.String(logging.FieldChannel, ch.String()),
					logging.String(logging.FieldPath, path),
				)
				continue
			}
			if err != nil {
				return services.Wrap(services.ErrValidation, "merge", "load layer", path, err)
			}
			layers = append(layers, img)
		}
		if len(layers) == 0 {
			logging.WarnWithContext(r.logger, "no readable layers", "layers_missing",
				logging.String(logging.FieldDescriptor, d.Name),
				logging.String(logging.FieldChannel, ch.String()),
				logging.String(logging.FieldImpact, "channel exports nothing"),
			)
			continue
		}

		// Merged stacks are scratch files, always PNG whatever the output codec.
		data, err := codec.PNG{}.Encode(raster.MergeLayers(layers))
		if err != nil {
			return services.Wrap(services.ErrTransient, "merge", "encode", final, err)
		}
		if err := fileutil.WriteLocked(ctx, final, data, 0); err != nil {
			return services.Wrap(services.ErrTransient, "merge", "write", final, err)
		}
		r.logger.Debug("layers merged",
			logging.String(logging.FieldDescriptor, d.Name),
			logging.String(logging.FieldChannel, ch.String()),
			logging.Int("layers", len(layers)),
			logging.String(logging.FieldPath, final),
		)
	}
	return nil
}
