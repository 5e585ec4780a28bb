package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"texbake/internal/bake"
	"texbake/internal/cache"
	"texbake/internal/codec"
	"texbake/internal/hashstore"
	"texbake/internal/logging"
	"texbake/internal/material"
	"texbake/internal/packager"
	"texbake/internal/phash"
	"texbake/internal/recipe"
	"texbake/internal/services"
	"texbake/internal/services/transfer"
	"texbake/internal/texture"
)

// DefaultMaterialLockWait bounds how long a material write waits for a
// competing lock before writing anyway.
const DefaultMaterialLockWait = 30 * time.Second

// Config holds the directories and limits a Processor runs with.
type Config struct {
	// BaseDir is the resource root holding backup textures and donor
	// materials. Required.
	BaseDir string
	// WorkDir receives merged layer stacks and transfer manifests.
	WorkDir string
	// Workers bounds concurrent channel jobs. Zero uses runtime.NumCPU.
	Workers int
	// MaterialLockWait bounds material lock waits. Zero uses the default.
	MaterialLockWait time.Duration
}

// Options are the per-run settings of Export.
type Options struct {
	TargetPath        string
	BakeToolOverride  string
	Mode              packager.Mode
	GenerateNormals   bool
	GenerateMultis    bool
	UseExternalBaking bool
}

// Transfer batches detail-transfer jobs and runs them.
type Transfer interface {
	bake.Batcher
	ProcessBatchWith(ctx context.Context, override string) error
	Reset()
}

// HashStore persists child hashes and run history between runs.
type HashStore interface {
	Hydrate(ctx context.Context, descriptors []*texture.Descriptor) error
	Persist(ctx context.Context, descriptors []*texture.Descriptor) error
	RecordRun(ctx context.Context, run hashstore.Run) error
}

// Option configures a Processor.
type Option func(*Processor)

// WithCodec sets the texture codec outputs are encoded with.
func WithCodec(c codec.Codec) Option {
	return func(p *Processor) {
		if c != nil {
			p.codec = c
		}
	}
}

// WithMaps overrides the map-writing functions recipes use.
func WithMaps(m recipe.Maps) Option {
	return func(p *Processor) {
		if m != nil {
			p.maps = m
		}
	}
}

// WithMaterialCodec sets the material file codec.
func WithMaterialCodec(c material.Codec) Option {
	return func(p *Processor) {
		if c != nil {
			p.materialCodec = c
		}
	}
}

// WithHasher overrides the perceptual hash used to detect parent changes.
func WithHasher(h phash.Hasher) Option {
	return func(p *Processor) {
		if h != nil {
			p.hasher = h
		}
	}
}

// WithTransfer sets the detail-transfer client.
func WithTransfer(t Transfer) Option {
	return func(p *Processor) {
		if t != nil {
			p.transfer = t
		}
	}
}

// WithObserver receives progress notifications.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		if o != nil {
			p.observer = o
		}
	}
}

// WithLogger sets the processor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithHashStore persists child hashes and records runs.
func WithHashStore(store HashStore) Option {
	return func(p *Processor) {
		if store != nil {
			p.store = store
		}
	}
}

// Processor runs exports. Runs on one Processor are serialized.
type Processor struct {
	cfg Config

	codec         codec.Codec
	maps          recipe.Maps
	materialCodec material.Codec
	hasher        phash.Hasher
	transfer      Transfer
	observer      Observer
	logger        *slog.Logger
	store         HashStore

	loader *codec.Loader
	engine *recipe.Engine

	caches    *recipe.Caches
	materials *cache.Set[string]
	redirects *cache.Store[string, *texture.Descriptor]
	bakes     *cache.Set[string]

	runMu sync.Mutex
}

// New builds a processor.
func New(cfg Config, opts ...Option) (*Processor, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "export", "new", "base directory required", nil)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.MaterialLockWait <= 0 {
		cfg.MaterialLockWait = DefaultMaterialLockWait
	}

	p := &Processor{
		cfg:           cfg,
		codec:         codec.PNG{},
		maps:          recipe.DefaultMaps{},
		materialCodec: material.Binary{},
		hasher:        phash.DHash{},
		observer:      NopObserver{},
		logger:        logging.NewNop(),
		caches:        recipe.NewCaches(),
		materials:     cache.NewSet[string](),
		redirects:     cache.NewStore[string, *texture.Descriptor](),
		bakes:         cache.NewSet[string](),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "export")
	if p.transfer == nil {
		p.transfer = transfer.New("", cfg.BaseDir, cfg.WorkDir, 0,
			transfer.WithLogger(logging.NewComponentLogger(p.logger, "transfer")))
	}
	p.loader = codec.NewLoader(p.codec)
	p.engine = recipe.NewEngine(cfg.BaseDir, p.loader,
		recipe.WithMaps(p.maps),
		recipe.WithCaches(p.caches),
		recipe.WithLogger(logging.NewComponentLogger(p.logger, "recipe")),
	)
	return p, nil
}

// Report summarizes a run.
type Report struct {
	RunID       string
	Target      string
	Mode        packager.Mode
	StartedAt   time.Time
	FinishedAt  time.Time
	Descriptors int
	Jobs        int
	Redirected  int
	GroupFiles  []string
	Groups      int
	Errors      []string
	BakeError   string

	mu sync.Mutex
}

// Duration is how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) addError(msg string) {
	r.mu.Lock()
	r.Errors = append(r.Errors, msg)
	r.mu.Unlock()
}

func (r *Report) run(err error) hashstore.Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := hashstore.Run{
		ID:          r.RunID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Target:      r.Target,
		Mode:        int(r.Mode),
		Descriptors: r.Descriptors,
		Groups:      r.Groups,
		Files:       len(r.GroupFiles),
		Errors:      len(r.Errors),
		Status:      hashstore.RunCompleted,
	}
	if err != nil {
		out.Status = hashstore.RunFailed
		out.Message = err.Error()
	}
	return out
}

// run is the state of one Export call.
type run struct {
	p       *Processor
	opts    Options
	report  *Report
	tracker *Tracker
	logger  *slog.Logger
	sem     chan struct{}
	wg      sync.WaitGroup
}

// Export merges, schedules, renders and packages descriptors into
// opts.TargetPath. overrides maps group names to packaging overrides where 0
// selects opts.Mode and n selects mode n-1. It returns once every channel job
// has finished. Job failures are reported to the observer and collected in
// the report; only driver failures are returned.
func (p *Processor) Export(ctx context.Context, descriptors []*texture.Descriptor, overrides map[string]int, opts Options) (report *Report, err error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	r := &run{
		p:    p,
		opts: opts,
		report: &Report{
			RunID:       runID,
			Target:      opts.TargetPath,
			Mode:        opts.Mode,
			StartedAt:   time.Now(),
			Descriptors: len(descriptors),
		},
		logger: logging.WithContext(ctx, p.logger),
		sem:    make(chan struct{}, p.cfg.Workers),
	}
	r.tracker = NewTracker(len(descriptors)*5, p.observer.Tick)

	defer func() {
		r.wg.Wait()
		r.report.FinishedAt = time.Now()
		if err != nil {
			p.observer.Error(err.Error())
			logging.ErrorWithContext(r.logger, "export failed", services.EventType(err),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inputs and target path, then re-run"),
			)
		}
		p.recordRun(ctx, r, err)
	}()

	if err := validate(opts); err != nil {
		return r.report, err
	}
	p.reset()

	r.logger.Info("export started",
		logging.Int("descriptors", len(descriptors)),
		logging.String("target", opts.TargetPath),
		logging.String("mode", opts.Mode.String()),
		logging.Bool("external_baking", opts.UseExternalBaking),
	)
	p.observer.Progress("Preparing Data")

	for _, d := range descriptors {
		d.Bind(p.cfg.WorkDir)
	}
	if p.store != nil {
		if err := p.store.Hydrate(ctx, descriptors); err != nil {
			logging.WarnWithContext(r.logger, "child hashes unavailable", "hash_store_unavailable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "children are re-baked"),
			)
		}
	}

	groups, err := r.prepare(ctx, descriptors)
	if err != nil {
		return r.report, err
	}

	if opts.UseExternalBaking {
		p.observer.BakeLaunched()
		bakeCtx := services.WithStage(ctx, "bake")
		if err := p.transfer.ProcessBatchWith(bakeCtx, opts.BakeToolOverride); err != nil {
			r.report.BakeError = err.Error()
			r.report.addError(err.Error())
			p.observer.Error(err.Error())
			logging.WarnWithContext(r.logger, "detail transfer failed", services.EventType(err),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check bake.tool_path and the tool's output"),
				logging.String(logging.FieldImpact, "children use their previous bakes"),
			)
		}
	}
	p.observer.StartedProcessing()
	p.observer.Progress("Exporting")

	index := 0
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		written, err := r.exportGroup(ctx, g, overrides, index+1)
		if err != nil {
			return r.report, err
		}
		if len(written) > 0 {
			index++
			r.report.GroupFiles = append(r.report.GroupFiles, written...)
			r.report.Groups++
		}
	}

	if err := r.tracker.Wait(ctx); err != nil {
		return r.report, err
	}
	r.wg.Wait()

	for _, d := range descriptors {
		d.Walk(func(d *texture.Descriptor) {
			if err := d.CleanTempFiles(); err != nil {
				r.logger.Warn("temp file cleanup failed",
					logging.String(logging.FieldDescriptor, d.Name),
					logging.Error(err),
				)
			}
		})
	}
	if p.store != nil {
		if err := p.store.Persist(ctx, descriptors); err != nil {
			logging.WarnWithContext(r.logger, "child hashes not saved", "hash_store_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next run re-bakes children"),
			)
		}
	}

	completed, total := r.tracker.Counts()
	r.logger.Info("export complete",
		logging.Int("groups", r.report.Groups),
		logging.Int("jobs", r.report.Jobs),
		logging.Int("redirected", r.report.Redirected),
		logging.Int("errors", len(r.report.Errors)),
		logging.Int("ticks", completed),
		logging.Int("total", total),
	)
	return r.report, nil
}

func validate(opts Options) error {
	if strings.TrimSpace(opts.TargetPath) == "" {
		return services.Wrap(services.ErrValidation, "export", "validate", "target path required", nil)
	}
	if !opts.Mode.Valid() {
		return services.Wrap(services.ErrValidation, "export", "validate",
			fmt.Sprintf("unknown packaging mode %d", int(opts.Mode)), nil)
	}
	return nil
}

func (p *Processor) reset() {
	p.caches.Reset()
	p.materials.Reset()
	p.redirects.Reset()
	p.bakes.Reset()
	p.transfer.Reset()
}

func (p *Processor) recordRun(ctx context.Context, r *run, runErr error) {
	if p.store == nil {
		return
	}
	// Record even when ctx was cancelled mid-run.
	if err := p.store.RecordRun(context.WithoutCancel(ctx), r.report.run(runErr)); err != nil {
		r.logger.Warn("run history not saved", logging.Error(err))
	}
}

// group is one packaging bucket in first-seen order.
type group struct {
	name        string
	descriptors []*texture.Descriptor
}

// prepare merges layer stacks, buckets descriptors by group and schedules
// child bakes. It ticks once per input descriptor.
func (r *run) prepare(ctx context.Context, descriptors []*texture.Descriptor) ([]*group, error) {
	p := r.p
	ctx = services.WithStage(ctx, "merge")
	scheduler := bake.NewScheduler(p.loader, p.transfer, r.opts.UseExternalBaking,
		bake.WithHasher(p.hasher),
		bake.WithBakes(p.bakes),
		bake.WithLogger(logging.NewComponentLogger(p.logger, "bake")),
		bake.WithProgress(p.observer.Progress),
	)

	merged := make(map[string]bool)
	var groups []*group
	byName := make(map[string]*group)

	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.observer.Progress("Merging Layers " + d.Name)
		var mergeErr error
		d.Walk(func(d *texture.Descriptor) {
			if mergeErr == nil {
				mergeErr = r.mergeLayers(ctx, d, merged)
			}
		})
		if mergeErr != nil {
			return nil, mergeErr
		}

		g, ok := byName[d.Group]
		if !ok {
			g = &group{name: d.Group}
			byName[d.Group] = g
			groups = append(groups, g)
		}
		g.descriptors = append(g.descriptors, d)
		for _, child := range d.Children {
			if child == nil {
				continue
			}
			child.Group = d.Group
			g.descriptors = append(g.descriptors, child)
			r.tracker.Grow(4)
			if err := scheduler.Schedule(d, child); err != nil {
				return nil, services.Wrap(services.ErrNotFound, "schedule", "child "+child.Name, d.Name, err)
			}
		}
		r.tracker.Tick()
	}
	return groups, nil
}

// exportGroup dispatches every descriptor of g and writes its group file as
// the index-th group. It returns the files written.
func (r *run) exportGroup(ctx context.Context, g *group, overrides map[string]int, index int) ([]string, error) {
	p := r.p
	mode := packager.ResolveMode(r.opts.Mode, overrides, g.name)
	builder := packager.NewBuilder(packager.NewGroup(g.name, mode, len(g.descriptors)), mode, len(g.descriptors))
	logger := r.logger.With(logging.String(logging.FieldGroup, g.name))

	for _, d := range g.descriptors {
		fingerprint := d.Fingerprint()
		owner, redirected := p.redirects.PutIfAbsent(fingerprint, d)
		if redirected {
			r.report.Redirected++
			logger.Debug("descriptor redirected",
				logging.String(logging.FieldDescriptor, d.Name),
				logging.String("to", owner.Name),
			)
		}
		paths := outputPaths(owner.Destinations, d.Destinations, fingerprint, r.opts.TargetPath)
		resolved := d.Resolve(p.cfg.BaseDir)

		builder.Begin(d)
		for _, ch := range texture.ExportChannels {
			job, produced := r.plan(ch, d, resolved, paths[ch])
			if produced {
				builder.Add(d, ch, d.Destinations.For(ch), relative(r.opts.TargetPath, paths[ch]))
			}
			// Redirected descriptors reuse every output of the owner.
			if job == nil || redirected {
				r.tracker.Tick()
				continue
			}
			r.dispatch(ctx, d, ch, job)
		}
	}

	written, err := packager.Write(r.opts.TargetPath, index, builder.Group())
	if err != nil {
		return written, services.Wrap(services.ErrTransient, "package", "write group", g.name, err)
	}
	if len(written) > 0 {
		logger.Info("group written",
			logging.Int("options", len(builder.Group().Options)),
			logging.Int("files", len(written)),
		)
	}
	return written, nil
}

// dispatch runs work on the worker pool. The job ticks exactly once.
func (r *run) dispatch(ctx context.Context, d *texture.Descriptor, ch texture.Channel, work func(context.Context) error) {
	r.report.Jobs++
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.tracker.Tick()

		select {
		case r.sem <- struct{}{}:
		case <-ctx.Done():
			return
		}
		defer func() { <-r.sem }()

		jobCtx := services.WithDescriptor(services.WithStage(ctx, "export"), d.Name)
		err := runSafely(jobCtx, work)
		switch {
		case err == nil:
		case errors.Is(err, recipe.ErrNoOutput):
			r.logger.Debug("channel skipped; input missing",
				logging.String(logging.FieldDescriptor, d.Name),
				logging.String(logging.FieldChannel, ch.String()),
				logging.Error(err),
			)
		default:
			msg := fmt.Sprintf("%s %s: %v", d.Name, ch, err)
			r.report.addError(msg)
			r.p.observer.Error(msg)
			logging.WarnWithContext(logging.WithContext(jobCtx, r.p.logger), "channel export failed", services.EventType(err),
				logging.String(logging.FieldChannel, ch.String()),
				logging.Error(err),
				logging.String(logging.FieldImpact, "output for this channel was not written"),
			)
		}
	}()
}

func runSafely(ctx context.Context, work func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return work(ctx)
}
