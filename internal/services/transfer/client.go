package transfer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"texbake/internal/logging"
	"texbake/internal/services"
)

// Job is one detail transfer: bake source onto dest using the internal
// asset's UV layout.
type Job struct {
	Internal string `toml:"internal"`
	Source   string `toml:"source"`
	Dest     string `toml:"destination"`
	Normal   bool   `toml:"normal"`
}

type manifest struct {
	Jobs []Job `toml:"job"`
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, dir, binary string, args []string, onOutput func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger routes tool output to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client batches detail-transfer jobs.
type Client struct {
	binary   string
	baseDir  string
	batchDir string
	timeout  time.Duration
	exec     Executor
	logger   *slog.Logger

	mu   sync.Mutex
	jobs []Job
}

// New constructs a client. baseDir is the tool's working directory and
// batchDir receives manifests. The binary may be empty when every call
// supplies an override.
func New(binary, baseDir, batchDir string, timeoutSeconds int, opts ...Option) *Client {
	client := &Client{
		binary:   strings.TrimSpace(binary),
		baseDir:  baseDir,
		batchDir: batchDir,
		timeout:  time.Duration(timeoutSeconds) * time.Second,
		exec:     commandExecutor{},
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// AddToBatch queues a job for the next ProcessBatch.
func (c *Client) AddToBatch(internal, source, dest string, normal bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, Job{Internal: internal, Source: source, Dest: dest, Normal: normal})
}

// Pending returns a copy of the queued jobs.
func (c *Client) Pending() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Job(nil), c.jobs...)
}

// Reset drops queued jobs without running them.
func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = nil
}

// ProcessBatch runs the configured tool over every queued job and blocks
// until it exits.
func (c *Client) ProcessBatch(ctx context.Context) error {
	return c.ProcessBatchWith(ctx, "")
}

// ProcessBatchWith is ProcessBatch with an optional tool override. The batch
// is cleared whether or not the tool succeeds.
func (c *Client) ProcessBatchWith(ctx context.Context, override string) error {
	c.mu.Lock()
	jobs := c.jobs
	c.jobs = nil
	c.mu.Unlock()

	if len(jobs) == 0 {
		c.logger.Debug("detail transfer skipped; batch empty")
		return nil
	}

	binary := strings.TrimSpace(override)
	if binary == "" {
		binary = c.binary
	}
	if binary == "" {
		return services.Wrap(services.ErrConfiguration, "bake", "resolve tool",
			"no detail-transfer tool configured; set bake.tool_path or TEXBAKE_BAKE_TOOL", nil)
	}

	manifestPath, err := c.writeManifest(jobs)
	if err != nil {
		return services.Wrap(services.ErrTransient, "bake", "write manifest", "", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("detail transfer started",
		logging.String("tool", binary),
		logging.Int("jobs", len(jobs)),
		logging.String("manifest", manifestPath),
	)
	start := time.Now()
	err = c.exec.Run(runCtx, c.baseDir, binary, []string{manifestPath}, func(line string) {
		if line = strings.TrimSpace(line); line != "" {
			c.logger.Info("detail transfer output", logging.String("line", line))
		}
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "bake", "run tool",
				fmt.Sprintf("exceeded %s", c.timeout), err)
		}
		return services.Wrap(services.ErrExternalTool, "bake", "run tool", binary, err)
	}
	_ = os.Remove(manifestPath)
	c.logger.Info("detail transfer finished",
		logging.Int("jobs", len(jobs)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (c *Client) writeManifest(jobs []Job) (string, error) {
	dir := c.batchDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create batch dir: %w", err)
	}
	data, err := toml.Marshal(manifest{Jobs: jobs})
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, "batch-"+uuid.NewString()+".toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest decodes a batch manifest written by ProcessBatch.
func ReadManifest(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return m.Jobs, nil
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, dir, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Dir = dir
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once
	var emit sync.Mutex

	scan := func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onOutput != nil {
				emit.Lock()
				onOutput(scanner.Text())
				emit.Unlock()
			}
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	wg.Add(2)
	go scan(stdout)
	go scan(stderr)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
