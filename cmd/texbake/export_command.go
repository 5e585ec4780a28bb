package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"texbake/internal/config"
	"texbake/internal/export"
	"texbake/internal/hashstore"
	"texbake/internal/logging"
	"texbake/internal/packager"
	"texbake/internal/preflight"
	"texbake/internal/project"
	"texbake/internal/services/transfer"
)

type exportFlags struct {
	target        string
	mode          int
	bakeTool      string
	externalBake  bool
	noNormals     bool
	noMultis      bool
	noHashStore   bool
	skipPreflight bool
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export <project.toml>",
		Short: "Export a texture project into the target mod folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			proj, err := project.Load(args[0])
			if err != nil {
				return err
			}
			opts := exportOptions(cmd, cfg, proj, flags)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if !flags.skipPreflight {
				checkCfg := *cfg
				checkCfg.Paths.OutputDir = opts.TargetPath
				checkCfg.Export.UseExternalBaking = opts.UseExternalBaking
				if opts.BakeToolOverride != "" {
					checkCfg.Bake.ToolPath = opts.BakeToolOverride
				}
				if failed := preflight.Failed(preflight.RunAll(&checkCfg)); len(failed) > 0 {
					for _, result := range failed {
						fmt.Fprintln(out, renderResult(result, false, colorize))
					}
					return fmt.Errorf("preflight failed: %d check(s); run 'texbake doctor' for details", len(failed))
				}
			}

			procOpts := []export.Option{
				export.WithLogger(logger),
				export.WithObserver(export.MultiObserver{
					export.NewLogObserver(logger),
					newConsoleObserver(out, colorize),
				}),
				export.WithTransfer(transfer.New(cfg.Bake.ToolPath, cfg.Paths.BaseDir,
					filepath.Join(cfg.Paths.WorkDir, "batches"), cfg.Bake.TimeoutSeconds,
					transfer.WithLogger(logging.NewComponentLogger(logger, "transfer")))),
			}
			if cfg.HashStore.Enabled && !flags.noHashStore {
				store, err := hashstore.OpenConfig(cfg)
				if err != nil {
					return fmt.Errorf("open hash store: %w", err)
				}
				defer store.Close()
				procOpts = append(procOpts, export.WithHashStore(store))
			}

			proc, err := export.New(export.Config{
				BaseDir:          cfg.Paths.BaseDir,
				WorkDir:          cfg.Paths.WorkDir,
				Workers:          cfg.WorkerCount(),
				MaterialLockWait: cfg.MaterialLockWait(),
			}, procOpts...)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, runErr := proc.Export(runCtx, proj.Descriptors, proj.Overrides, opts)
			if report != nil {
				fmt.Fprintln(out, renderReport(proj, report))
				for _, msg := range report.Errors {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, msg, colorize))
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&flags.target, "target", "t", "", "Target mod folder (defaults to the project target, then paths.output_dir)")
	cmd.Flags().IntVarP(&flags.mode, "mode", "m", int(packager.PerDescriptor), "Packaging mode 0-3")
	cmd.Flags().StringVar(&flags.bakeTool, "bake-tool", "", "Detail-transfer tool for this run")
	cmd.Flags().BoolVar(&flags.externalBake, "external-baking", false, "Run the detail-transfer tool for children")
	cmd.Flags().BoolVar(&flags.noNormals, "no-normals", false, "Do not generate missing normal maps")
	cmd.Flags().BoolVar(&flags.noMultis, "no-multis", false, "Do not generate missing masks")
	cmd.Flags().BoolVar(&flags.noHashStore, "no-hash-store", false, "Ignore persisted child hashes")
	cmd.Flags().BoolVar(&flags.skipPreflight, "skip-preflight", false, "Skip preflight checks")
	return cmd
}

// exportOptions layers flags over the project settings over the config.
func exportOptions(cmd *cobra.Command, cfg *config.Config, proj *project.Project, flags exportFlags) export.Options {
	opts := export.Options{
		TargetPath:        cfg.Paths.OutputDir,
		Mode:              packager.Mode(cfg.Export.PackagingMode),
		GenerateNormals:   cfg.Export.GenerateNormals,
		GenerateMultis:    cfg.Export.GenerateMultis,
		UseExternalBaking: cfg.Export.UseExternalBaking,
	}
	if proj.Settings.Target != "" {
		opts.TargetPath = proj.Settings.Target
	}
	if proj.Settings.Mode != nil {
		opts.Mode = packager.Mode(*proj.Settings.Mode)
	}

	changed := cmd.Flags().Changed
	if t := strings.TrimSpace(flags.target); t != "" {
		if expanded, err := config.ExpandPath(t); err == nil {
			t = expanded
		}
		opts.TargetPath = t
	}
	if changed("mode") {
		opts.Mode = packager.Mode(flags.mode)
	}
	if changed("external-baking") {
		opts.UseExternalBaking = flags.externalBake
	}
	if flags.noNormals {
		opts.GenerateNormals = false
	}
	if flags.noMultis {
		opts.GenerateMultis = false
	}
	opts.BakeToolOverride = strings.TrimSpace(flags.bakeTool)
	return opts
}

func renderReport(proj *project.Project, report *export.Report) string {
	title := "Export"
	if proj.Settings.Name != "" {
		title = "Export: " + proj.Settings.Name
	}
	pairs := [][2]string{
		{"Run", report.RunID},
		{"Target", report.Target},
		{"Mode", report.Mode.String()},
		{"Descriptors", strconv.Itoa(report.Descriptors)},
		{"Channel jobs", strconv.Itoa(report.Jobs)},
		{"Redirected", strconv.Itoa(report.Redirected)},
		{"Groups", strconv.Itoa(report.Groups)},
		{"Group files", strconv.Itoa(len(report.GroupFiles))},
		{"Errors", strconv.Itoa(len(report.Errors))},
		{"Bake failed", yesNo(report.BakeError != "")},
		{"Duration", report.Duration().Round(time.Millisecond).String()},
	}
	return renderKeyValues(title, pairs)
}

// consoleObserver prints stage changes and errors. Ticks are left to the
// sampled log observer.
type consoleObserver struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func newConsoleObserver(out io.Writer, colorize bool) *consoleObserver {
	return &consoleObserver{out: out, colorize: colorize}
}

func (o *consoleObserver) print(kind statusKind, label, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.out, renderStatusLine(label, kind, message, o.colorize))
}

func (o *consoleObserver) Tick(int, int) {}

func (o *consoleObserver) Progress(message string) { o.print(statusInfo, "Stage", message) }

func (o *consoleObserver) StartedProcessing() {}

func (o *consoleObserver) BakeLaunched() {
	o.print(statusInfo, "Bake", "detail transfer running")
}

func (o *consoleObserver) Error(message string) { o.print(statusError, "Error", message) }

var _ export.Observer = (*consoleObserver)(nil)
