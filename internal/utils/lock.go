package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetry is how often a waiting refresh polls the lock file.
const lockRetry = 250 * time.Millisecond

// CacheLock serializes catalog snapshot writers sharing one SQLite file,
// such as a running server and a manual "catalog refresh".
type CacheLock struct {
	lock *flock.Flock
	path string
}

// NewCacheLock returns the lock guarding the cache at dbPath.
func NewCacheLock(dbPath string) (*CacheLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	return &CacheLock{lock: flock.New(absPath + ".lock"), path: absPath + ".lock"}, nil
}

// Lock acquires the lock, waiting until ctx is done.
func (l *CacheLock) Lock(ctx context.Context) error {
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	if ok {
		return nil
	}

	Log.Warn("Another briefedit process is refreshing the catalog cache, waiting for it to finish...")
	ok, err = l.lock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
	}
	if !ok {
		return fmt.Errorf("lock on %s still held", l.path)
	}
	return nil
}

func (l *CacheLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// WithLock runs fn while holding the lock.
func (l *CacheLock) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := l.Lock(ctx); err != nil {
		return err
	}
	defer l.Unlock()
	return fn(ctx)
}

// GetAbsDBPath resolves the cache path, defaulting to ~/.config/briefedit/briefedit.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "briefedit", "briefedit.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
