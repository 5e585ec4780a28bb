package bake

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"texbake/internal/cache"
	"texbake/internal/codec"
	"texbake/internal/fileutil"
	"texbake/internal/logging"
	"texbake/internal/phash"
	"texbake/internal/raster"
	"texbake/internal/services"
	"texbake/internal/texture"
)

// PlaceholderSize is the edge length of the blank images written for
// children that have not been baked yet.
const PlaceholderSize = 1024

// Batcher receives detail-transfer jobs.
type Batcher interface {
	AddToBatch(internal, source, dest string, normal bool)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithHasher overrides the perceptual hash.
func WithHasher(h phash.Hasher) Option {
	return func(s *Scheduler) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithBakes shares the set of child paths already submitted this run.
func WithBakes(set *cache.Set[string]) Option {
	return func(s *Scheduler) {
		if set != nil {
			s.bakes = set
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithProgress receives short status messages while scheduling.
func WithProgress(fn func(string)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.progress = fn
		}
	}
}

// Scheduler queues parent-to-child detail transfers.
type Scheduler struct {
	loader   *codec.Loader
	batcher  Batcher
	finalize bool
	hasher   phash.Hasher
	bakes    *cache.Set[string]
	logger   *slog.Logger
	progress func(string)
}

// NewScheduler builds a scheduler. In finalize mode jobs go to batcher and
// hashes are recorded; otherwise missing children get placeholders.
func NewScheduler(loader *codec.Loader, batcher Batcher, finalize bool, opts ...Option) *Scheduler {
	if loader == nil {
		loader = codec.NewLoader(nil)
	}
	s := &Scheduler{
		loader:   loader,
		batcher:  batcher,
		finalize: finalize,
		hasher:   phash.DHash{},
		bakes:    cache.NewSet[string](),
		logger:   logging.NewNop(),
		progress: func(string) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule compares every bakeable channel of child against parent and
// queues the ones whose parent output changed. Errors from individual
// channels are joined; the remaining channels are still scheduled.
func (s *Scheduler) Schedule(parent, child *texture.Descriptor) error {
	s.progress("Detail transfer batch " + parent.Name)
	var errs []error
	for _, ch := range texture.BakeChannels {
		childPath := child.Final(ch)
		if childPath == "" {
			continue
		}
		parentPath := parent.Final(ch)
		hash, err := s.hash(parentPath)
		if err != nil {
			errs = append(errs, services.Wrap(services.ErrNotFound, "schedule", "hash parent "+ch.String(), parent.Name, err))
			continue
		}
		if last, ok := parent.LastHash(childPath); ok && last == hash {
			s.logger.Debug("child up to date",
				logging.String(logging.FieldChannel, ch.String()),
				logging.String(logging.FieldPath, childPath),
			)
			continue
		}
		if err := s.enqueue(parent, child, ch); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.finalize {
			parent.RecordHash(childPath, hash)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) hash(path string) (uint64, error) {
	name := filepath.Base(path)
	s.progress("Hashing " + name)
	return phash.HashFile(s.hasher, s.loader, path)
}

func (s *Scheduler) enqueue(parent, child *texture.Descriptor, ch texture.Channel) error {
	parentPath := parent.Final(ch)
	childPath := child.Final(ch)
	internal := parent.Destinations.For(ch)
	if ch == texture.Glow {
		internal = parent.Destinations.Normal
	}

	if s.bakes.Has(childPath) {
		return nil
	}
	parentAlpha := texture.ReplaceExtension(texture.AddSuffix(parentPath, "_alpha"), ".png")
	parentRGB := texture.ReplaceExtension(texture.AddSuffix(parentPath, "_rgb"), ".png")

	stale := s.finalize ||
		!fileutil.FileExists(texture.BakedSibling(childPath, "rgb")) ||
		!fileutil.FileExists(texture.BakedSibling(childPath, "alpha"))
	if !stale || !texture.IsBaked(childPath) {
		return nil
	}
	if !s.bakes.Add(childPath) {
		return nil
	}

	src, err := s.loader.Load(parentPath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "schedule", "load parent", parent.Name, err)
	}
	if !fileutil.DirExists(filepath.Dir(parentAlpha)) {
		logging.WarnWithContext(s.logger, "staging directory missing; child not baked", "bake_staging_missing",
			logging.String(logging.FieldPath, filepath.Dir(parentAlpha)),
			logging.String(logging.FieldErrorHint, "check that the parent texture directory still exists"),
		)
		return nil
	}
	if err := writePNG(parentAlpha, raster.ExtractAlpha(src)); err != nil {
		return services.Wrap(services.ErrTransient, "schedule", "split parent alpha", parent.Name, err)
	}
	if err := writePNG(parentRGB, raster.ExtractRGB(src)); err != nil {
		return services.Wrap(services.ErrTransient, "schedule", "split parent rgb", parent.Name, err)
	}

	childAlpha := texture.BakedPart(childPath, "alpha")
	childRGB := texture.BakedPart(childPath, "rgb")
	if s.finalize {
		s.progress("Add to detail transfer")
		s.batcher.AddToBatch(internal, parentAlpha, childAlpha, false)
		s.batcher.AddToBatch(internal, parentRGB, childRGB, ch == texture.Normal)
		s.logger.Info("child queued for detail transfer",
			logging.String(logging.FieldChannel, ch.String()),
			logging.String(logging.FieldDescriptor, child.Name),
			logging.String(logging.FieldPath, childPath),
		)
		return nil
	}

	if fileutil.FileExists(texture.AddSuffix(childPath, "_"+texture.BakedMarker)) {
		return nil
	}
	blank := raster.Canvas(PlaceholderSize, PlaceholderSize, raster.Transparent)
	for _, part := range []string{childAlpha, childRGB} {
		if fileutil.FileExists(part) {
			continue
		}
		if err := writePNG(texture.AddSuffix(part, "_"+texture.BakedMarker), blank); err != nil {
			return services.Wrap(services.ErrTransient, "schedule", "write placeholder", child.Name, err)
		}
	}
	return nil
}

// DiskPath returns where the output for dest is written inside target.
func DiskPath(dest, target, id string) string {
	return texture.DiskPath(dest, target, id)
}

func writePNG(path string, img image.Image) error {
	data, err := codec.PNG{}.Encode(img)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
