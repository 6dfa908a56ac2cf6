package lock

import (
	"fmt"
	"os"
)

// PIDLock is a single-instance daemon lock: an exclusive flock on a PID file,
// kept alive by keeping the descriptor open.
type PIDLock struct {
	lock *Lock
}

// AcquirePIDLock takes the daemon lock at lockPath and writes the current PID
// into the file. It fails immediately if another instance holds the lock.
func AcquirePIDLock(lockPath string) (*PIDLock, error) {
	l, err := Acquire(lockPath, 0, false)
	if err != nil {
		return nil, err
	}

	if err := l.f.Truncate(0); err != nil {
		_ = l.Release()
		return nil, fmt.Errorf("truncate lock file: %w", err)
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		_ = l.Release()
		return nil, fmt.Errorf("seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(l.f, "%d\n", os.Getpid()); err != nil {
		_ = l.Release()
		return nil, fmt.Errorf("write pid: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		_ = l.Release()
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &PIDLock{lock: l}, nil
}

func (p *PIDLock) Path() string {
	if p == nil || p.lock == nil {
		return ""
	}
	return p.lock.Path()
}

func (p *PIDLock) Release() error {
	if p == nil {
		return nil
	}
	return p.lock.Release()
}
