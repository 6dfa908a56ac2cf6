package registry

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
)

// Resolve merges the user's pending records into their durable registry and
// returns the reconciled mapping. With no pending records it is a read-only
// load. The pending-record enumeration, reads, load, merge, dump, and
// pending-record deletion all happen under one lock acquisition, so
// concurrent resolves for the same user serialize and neither loses the
// other's merge. Enumerating or reading outside the lock would race a
// concurrent resolve consuming the same records out from under this one.
//
// Any failure before the dump leaves every pending record on disk for a
// future retry; re-merging a record is idempotent because each record
// governs exactly one path key.
func (s *Store) Resolve(user string) (Registry, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	l, err := s.acquire(user)
	if err != nil {
		return nil, err
	}
	defer l.Release()

	files, err := s.pendingFiles(user)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return s.loadLocked(user)
	}

	pending := make(Registry, len(files))
	for _, fname := range files {
		e, err := readPendingFile(fname)
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(e.File)
		if err != nil {
			return nil, fmt.Errorf("stat artifact for pending path %q: %w", e.Path, err)
		}
		// The artifact's on-disk time is authoritative, not wall-clock now:
		// reconciliation may run long after registration.
		e.Created = float64(st.ModTime().UnixNano()) / 1e9
		if sum, err := checksumFile(e.File); err == nil {
			e.Checksum = sum
		}
		pending[e.Path] = e
	}

	reg, err := s.loadLocked(user)
	if err != nil {
		return nil, err
	}
	maps.Copy(reg, pending)
	if err := s.dumpLocked(user, reg); err != nil {
		return nil, err
	}

	// The merge is durable; consumed records must not be processed again.
	for _, fname := range files {
		if err := os.Remove(fname); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove consumed pending record",
				"user", user, "pending", filepath.Base(fname), "error", err)
		}
	}

	s.logger.Debug("pending records reconciled", "user", user, "merged", len(pending))
	return reg, nil
}
