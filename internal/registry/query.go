package registry

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Selector picks entries for Info: everything, an explicit path list, or a
// glob pattern. Constructed once at the boundary so the "both supplied"
// illegal state never reaches the store.
type Selector struct {
	paths   []string
	pattern string
}

// SelectAll matches every entry.
func SelectAll() Selector { return Selector{} }

// SelectPaths matches the given path keys, preserving their order.
func SelectPaths(paths ...string) Selector { return Selector{paths: paths} }

// SelectPattern matches path keys against a shell glob.
func SelectPattern(pattern string) Selector { return Selector{pattern: pattern} }

// NewSelector builds a selector from raw request inputs, rejecting the
// mutually exclusive combination before any storage is touched.
func NewSelector(paths []string, pattern string) (Selector, error) {
	if len(paths) > 0 && pattern != "" {
		return Selector{}, ErrSelectorConflict
	}
	if len(paths) > 0 {
		return SelectPaths(paths...), nil
	}
	if pattern != "" {
		return SelectPattern(pattern), nil
	}
	return SelectAll(), nil
}

// compilePattern compiles a shell glob to a full-string matcher. No
// separator is given, so '*' crosses '/' the way logical path names expect.
func compilePattern(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return g, nil
}

// ListPaths reconciles and returns the user's path keys in ascending
// lexicographic order, optionally filtered by a glob pattern.
func (s *Store) ListPaths(user, pattern string) ([]string, error) {
	reg, err := s.Resolve(user)
	if err != nil {
		return nil, err
	}

	paths := reg.Paths()
	sort.Strings(paths)
	if pattern == "" {
		return paths, nil
	}

	g, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	matched := make([]string, 0, len(paths))
	for _, p := range paths {
		if g.Match(p) {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// Info reconciles and returns the selected entries. Path selection preserves
// the caller's order and silently skips unknown keys; pattern and all
// selection sort by path.
func (s *Store) Info(user string, sel Selector) ([]Entry, error) {
	reg, err := s.Resolve(user)
	if err != nil {
		return nil, err
	}

	if len(sel.paths) > 0 {
		out := make([]Entry, 0, len(sel.paths))
		for _, p := range sel.paths {
			if e, ok := reg[p]; ok {
				out = append(out, e)
			}
		}
		return out, nil
	}

	keys := reg.Paths()
	sort.Strings(keys)

	if sel.pattern != "" {
		g, err := compilePattern(sel.pattern)
		if err != nil {
			return nil, err
		}
		out := make([]Entry, 0, len(keys))
		for _, p := range keys {
			if g.Match(p) {
				out = append(out, reg[p])
			}
		}
		return out, nil
	}

	out := make([]Entry, 0, len(keys))
	for _, p := range keys {
		out = append(out, reg[p])
	}
	return out, nil
}

// resolveArtifact reconciles and maps a path to its backing artifact,
// failing on unknown paths, entries without an artifact reference, and
// missing or irregular artifact files.
func (s *Store) resolveArtifact(user, path string) (Entry, error) {
	reg, err := s.Resolve(user)
	if err != nil {
		return Entry{}, err
	}

	e, ok := reg[path]
	if !ok {
		return Entry{}, fmt.Errorf("%q for user %q: %w", path, user, ErrUnknownPath)
	}
	if strings.TrimSpace(e.File) == "" {
		return Entry{}, fmt.Errorf("entry %q has no artifact reference", path)
	}
	st, err := os.Stat(e.File)
	if err != nil {
		return Entry{}, fmt.Errorf("artifact for %q: %w", path, err)
	}
	if !st.Mode().IsRegular() {
		return Entry{}, fmt.Errorf("artifact %s for %q is not a regular file", e.File, path)
	}
	return e, nil
}

// Fetch reconciles and returns the full byte content of the artifact behind
// path.
func (s *Store) Fetch(user, path string) ([]byte, error) {
	e, err := s.resolveArtifact(user, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(e.File)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s for %q: %w", e.File, path, err)
	}
	return data, nil
}

// FetchRef reconciles and returns a retrieval locator for the artifact
// behind path, relative to the artifact root, without reading the file. The
// locator is meaningful to the byte-streaming endpoint.
func (s *Store) FetchRef(user, path string) (string, error) {
	e, err := s.resolveArtifact(user, path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.simsDir, e.File)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("artifact %s for %q is outside the artifact root", e.File, path)
	}
	return "/fetch?file=" + url.QueryEscape(rel), nil
}

// Delete reconciles, removes the backing artifact, then removes the entry
// and re-dumps the registry, all under the user's lock. If the artifact
// removal fails the entry is left untouched. If the registry dump fails
// after the artifact is gone the dangling entry is reported as an explicit
// inconsistent state, never silently recovered.
func (s *Store) Delete(user, path string) error {
	if _, err := s.Resolve(user); err != nil {
		return err
	}

	l, err := s.acquire(user)
	if err != nil {
		return err
	}
	defer l.Release()

	reg, err := s.loadLocked(user)
	if err != nil {
		return err
	}
	e, ok := reg[path]
	if !ok {
		return fmt.Errorf("%q for user %q: %w", path, user, ErrUnknownPath)
	}
	if strings.TrimSpace(e.File) == "" {
		return fmt.Errorf("entry %q has no artifact reference", path)
	}

	if err := os.Remove(e.File); err != nil {
		return fmt.Errorf("delete artifact %s for %q: %w", e.File, path, err)
	}
	delete(reg, path)
	if err := s.dumpLocked(user, reg); err != nil {
		return fmt.Errorf("artifact %s removed but registry update failed (%v): %w",
			e.File, err, ErrInconsistentState)
	}

	s.logger.Info("path deleted", "user", user, "path", path, "artifact", e.File)
	return nil
}
