package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const pendingSuffix = "-pending.json"

// WritePending drops a pending record for later reconciliation. The record
// gets a globally-unique, user-scoped filename and is installed atomically so
// a concurrent reconcile never reads a partial record. Returns the record's
// filename within the registry root.
func (s *Store) WritePending(e Entry) (string, error) {
	if err := validateUser(e.User); err != nil {
		return "", err
	}
	if strings.TrimSpace(e.Path) == "" {
		return "", fmt.Errorf("pending record has no path")
	}
	if strings.TrimSpace(e.File) == "" {
		return "", fmt.Errorf("pending record for path %q has no artifact reference", e.Path)
	}

	data, err := json.MarshalIndent(e, "", " ")
	if err != nil {
		return "", fmt.Errorf("serialize pending record for path %q: %w", e.Path, err)
	}

	name := e.User + "-" + uuid.NewString() + pendingSuffix
	full := filepath.Join(s.pathsDir, name)

	tmp, err := os.CreateTemp(s.pathsDir, e.User+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp pending file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write pending record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp pending file: %w", err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("install pending record: %w", err)
	}

	s.logger.Debug("pending record written", "user", e.User, "path", e.Path, "pending", name)
	return name, nil
}

// pendingFiles lists the user's not-yet-merged pending records, sorted so
// reconciliation merges them in a stable order. The glob alone is a prefix
// match, so user "alice" would also pick up "alice-2"'s records; requiring
// the middle token to parse as a UUID pins the filename to exactly one user.
func (s *Store) pendingFiles(user string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.pathsDir, user+"-*"+pendingSuffix))
	if err != nil {
		return nil, fmt.Errorf("enumerate pending records for user %q: %w", user, err)
	}
	files := matches[:0]
	for _, m := range matches {
		token := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), user+"-"), pendingSuffix)
		if _, err := uuid.Parse(token); err == nil {
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func readPendingFile(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, fmt.Errorf("read pending record %s: %w", filepath.Base(path), err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("parse pending record %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(e.Path) == "" {
		return Entry{}, fmt.Errorf("pending record %s has no path", filepath.Base(path))
	}
	return e, nil
}
