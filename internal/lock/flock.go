package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrNotAcquired is returned by Acquire when the lock cannot be obtained
// within the timeout and soft mode is off.
var ErrNotAcquired = errors.New("lock not acquired")

// pollInterval is how often Acquire retries a contended lock.
const pollInterval = 50 * time.Millisecond

// Lock is an exclusive advisory flock(2) on a lock file. A Lock obtained in
// soft mode may be un-held; callers must check Held before relying on it.
// Release is idempotent and safe on un-held locks, so `defer l.Release()`
// covers every exit path.
type Lock struct {
	path string
	f    *os.File
}

// Acquire takes an exclusive advisory lock at lockPath, retrying a
// non-blocking flock until timeout elapses. On timeout it returns
// ErrNotAcquired, unless soft is true, in which case it returns an un-held
// Lock and no error so callers can degrade gracefully.
func Acquire(lockPath string, timeout time.Duration, soft bool) (*Lock, error) {
	if lockPath == "" {
		return nil, fmt.Errorf("lock path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &Lock{path: lockPath, f: f}, nil
		}
		if err != syscall.EWOULDBLOCK && err != syscall.EAGAIN {
			_ = f.Close()
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}
		if !time.Now().Before(deadline) {
			_ = f.Close()
			if soft {
				return &Lock{path: lockPath}, nil
			}
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, ErrNotAcquired)
		}
		wait := pollInterval
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		time.Sleep(wait)
	}
}

// Held reports whether the lock is actually held.
func (l *Lock) Held() bool { return l != nil && l.f != nil }

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. Calling it on an un-held or already-released lock
// is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
