package hashstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"texbake/internal/config"
	"texbake/internal/texture"
)

// ErrLocked is returned when another process holds the store.
var ErrLocked = errors.New("hash store locked by another process")

// Store persists child hashes and run history.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenConfig opens the store configured in cfg.
func OpenConfig(cfg *config.Config) (*Store, error) {
	return Open(cfg.HashStore.Path)
}

// Open initializes or connects to the database at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("hash store path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create hash store dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock hash store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string { return s.path }

// Close closes the database and releases the lock.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}
	return err
}

// ParentKey identifies a parent descriptor across runs.
func ParentKey(d *texture.Descriptor) string {
	return d.Group + "\x1f" + d.Name
}

// LoadHashes returns the hashes recorded for a parent.
func (s *Store) LoadHashes(ctx context.Context, parentKey string) (map[string]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT child_path, hash FROM child_hashes WHERE parent_key = ?", parentKey)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]uint64)
	for rows.Next() {
		var child, raw string
		if err := rows.Scan(&child, &raw); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		value, err := strconv.ParseUint(raw, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse hash for %s: %w", child, err)
		}
		hashes[child] = value
	}
	return hashes, rows.Err()
}

// SaveHashes upserts hashes for a parent.
func (s *Store) SaveHashes(ctx context.Context, parentKey string, hashes map[string]uint64) error {
	if len(hashes) == 0 {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin hash tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		for child, hash := range hashes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO child_hashes (parent_key, child_path, hash, updated_at)
                 VALUES (?, ?, ?, ?)
                 ON CONFLICT(parent_key, child_path) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
				parentKey, child, strconv.FormatUint(hash, 16), now,
			); err != nil {
				return fmt.Errorf("save hash for %s: %w", child, err)
			}
		}
		return tx.Commit()
	})
}

// Hydrate loads stored hashes into every parent descriptor.
func (s *Store) Hydrate(ctx context.Context, descriptors []*texture.Descriptor) error {
	for _, d := range descriptors {
		if d == nil || len(d.Children) == 0 {
			continue
		}
		hashes, err := s.LoadHashes(ctx, ParentKey(d))
		if err != nil {
			return err
		}
		d.LoadHashes(hashes)
	}
	return nil
}

// Persist writes every parent descriptor's hashes back to the store.
func (s *Store) Persist(ctx context.Context, descriptors []*texture.Descriptor) error {
	var errs []error
	for _, d := range descriptors {
		if d == nil || len(d.Children) == 0 {
			continue
		}
		if err := s.SaveHashes(ctx, ParentKey(d), d.Hashes()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearHashes forgets every recorded hash, forcing the next finalize run to
// re-bake all children.
func (s *Store) ClearHashes(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM child_hashes")
	if err != nil {
		return 0, fmt.Errorf("clear hashes: %w", err)
	}
	return res.RowsAffected()
}

// CountHashes reports how many child hashes are stored.
func (s *Store) CountHashes(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM child_hashes").Scan(&n); err != nil {
		return 0, fmt.Errorf("count hashes: %w", err)
	}
	return n, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
