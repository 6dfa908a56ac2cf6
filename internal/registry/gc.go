package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// GC sweeps every user registry under the store root, deleting artifacts
// whose age exceeds their holding and removing the corresponding entries.
// It returns the accumulated failure messages; an empty slice means the
// whole sweep succeeded. The sweep is best-effort: a busy or failing user is
// reported and skipped, never fatal to the remaining users.
func (s *Store) GC() []string {
	dirents, err := os.ReadDir(s.pathsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("gc: read registry root: %v", err)}
	}

	var msgs []string
	for _, de := range dirents {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, pendingSuffix) {
			continue
		}
		user := strings.TrimSuffix(name, ".json")
		msgs = append(msgs, s.gcUser(user)...)
	}
	return msgs
}

// gcUser sweeps one user's registry under their lock. A lock that cannot be
// acquired skips the whole user with a message; an artifact deletion failure
// retains just that entry. The registry is re-dumped only when at least one
// entry was removed.
func (s *Store) gcUser(user string) []string {
	l, err := s.acquire(user)
	if err != nil {
		return []string{fmt.Sprintf("gc: skipped user %s: %v", user, err)}
	}
	defer l.Release()

	reg, err := s.loadLocked(user)
	if err != nil {
		return []string{fmt.Sprintf("gc: %v", err)}
	}

	now := float64(s.now().UnixNano()) / 1e9

	keys := reg.Paths()
	sort.Strings(keys)

	var msgs []string
	removed := 0
	for _, path := range keys {
		e := reg[path]
		if e.Holding.IsInfinite() {
			continue
		}
		if now-e.Created < e.Holding.Seconds() {
			continue
		}
		// Expired. Only delete entries whose artifact still exists and whose
		// deletion succeeds; anything else stays listed.
		if e.File == "" {
			continue
		}
		if _, err := os.Stat(e.File); err != nil {
			continue
		}
		if err := os.Remove(e.File); err != nil {
			msgs = append(msgs, fmt.Sprintf("gc: user %s path %s: delete artifact %s: %v",
				user, path, e.File, err))
			continue
		}
		delete(reg, path)
		removed++
		s.logger.Info("expired path collected", "user", user, "path", path, "artifact", e.File)
	}

	if removed > 0 {
		if err := s.dumpLocked(user, reg); err != nil {
			msgs = append(msgs, fmt.Sprintf("gc: user %s: %d artifacts removed but registry update failed: %v",
				user, removed, err))
		}
	}
	return msgs
}
