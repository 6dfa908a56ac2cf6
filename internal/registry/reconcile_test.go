package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initPendingPaths drops raw pending records for user, each backed by an
// artifact under the store's sims root. Holdings exercise the numeric,
// string, and infinite spellings.
func initPendingPaths(t *testing.T, s *Store, user string) []Entry {
	t.Helper()
	fixtures := []struct {
		path    string
		holding string
	}{
		{"/hey", `"inf"`},
		{"/there/is/it", `42.0`},
		{"/me/you/are-looking-for", `"1e300"`},
	}

	entries := make([]Entry, 0, len(fixtures))
	for i, sp := range fixtures {
		artifact := writeArtifact(t, s, fmt.Sprintf("pending-%d.out", i), "simulation output")
		raw := fmt.Sprintf(`{"user": %q, "path": %q, "file": %q, "jobid": "%d", "holding": %s}`,
			user, sp.path, artifact, i, sp.holding)
		name := filepath.Join(s.PathsDir(), user+"-"+uuid.NewString()+pendingSuffix)
		require.NoError(t, os.WriteFile(name, []byte(raw), 0o644))
		entries = append(entries, Entry{Path: sp.path, User: user, File: artifact})
	}
	return entries
}

func pendingOnDisk(t *testing.T, s *Store, user string) []string {
	t.Helper()
	files, err := s.pendingFiles(user)
	require.NoError(t, err)
	return files
}

func TestResolveNoFilesNoRegistry(t *testing.T) {
	s := newTestStore(t)

	reg, err := s.Resolve("inigo")
	require.NoError(t, err)
	assert.Empty(t, reg)
}

func TestResolveNoUserFile(t *testing.T) {
	s := newTestStore(t)
	user := "buttercup"
	pps := initPendingPaths(t, s, user)
	require.Len(t, pendingOnDisk(t, s, user), len(pps))

	reg, err := s.Resolve(user)
	require.NoError(t, err)

	// Pending records are consumed and the registry file is published.
	assert.Empty(t, pendingOnDisk(t, s, user))
	_, err = os.Stat(s.registryFile(user))
	require.NoError(t, err)

	require.Len(t, reg, len(pps))
	for path, e := range reg {
		assert.Equal(t, path, e.Path)
		assert.Equal(t, user, e.User)
		assert.Greater(t, e.Created, 0.0, "created stamped from artifact")
		assert.NotEmpty(t, e.Checksum)
	}
	assert.True(t, reg["/hey"].Holding.IsInfinite())
	assert.Equal(t, 42.0, reg["/there/is/it"].Holding.Seconds())
}

func TestResolveNoPendingIsReadOnly(t *testing.T) {
	s := newTestStore(t)
	user := "fezzik"
	given := initUserPaths(t, s, user, time.Now())

	before, err := os.Stat(s.registryFile(user))
	require.NoError(t, err)

	reg, err := s.Resolve(user)
	require.NoError(t, err)
	assert.Len(t, reg, len(given))
	for path := range reg {
		assert.Contains(t, given, path)
	}

	after, err := os.Stat(s.registryFile(user))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "fast path must not rewrite the registry")
}

func TestResolveMergesPendingOverExisting(t *testing.T) {
	s := newTestStore(t)
	user := "miracle-max"
	given := initUserPaths(t, s, user, time.Now())
	pps := initPendingPaths(t, s, user)

	reg, err := s.Resolve(user)
	require.NoError(t, err)

	assert.Empty(t, pendingOnDisk(t, s, user))

	want := map[string]struct{}{}
	for p := range given {
		want[p] = struct{}{}
	}
	for _, pp := range pps {
		want[pp.Path] = struct{}{}
	}
	got := map[string]struct{}{}
	for p := range reg {
		got[p] = struct{}{}
	}
	assert.Equal(t, want, got)
}

func TestResolvePendingOverwritesCollidingPath(t *testing.T) {
	s := newTestStore(t)
	user := "humperdinck"

	old := writeArtifact(t, s, "old.out", "old")
	require.NoError(t, s.Dump(user, Registry{
		"/dup": {Path: "/dup", User: user, File: old, Holding: 1, Created: 1},
	}))

	updated := writeArtifact(t, s, "new.out", "new")
	raw := fmt.Sprintf(`{"user": %q, "path": "/dup", "file": %q, "holding": "inf"}`, user, updated)
	require.NoError(t, os.WriteFile(
		filepath.Join(s.PathsDir(), user+"-"+uuid.NewString()+pendingSuffix), []byte(raw), 0o644))

	reg, err := s.Resolve(user)
	require.NoError(t, err)
	require.Contains(t, reg, "/dup")
	assert.Equal(t, updated, reg["/dup"].File, "pending record wins on key collision")
	assert.True(t, reg["/dup"].Holding.IsInfinite())
}

func TestResolveAbortKeepsPendingRecords(t *testing.T) {
	s := newTestStore(t)
	user := "valerie"

	// The record references an artifact that does not exist, so stamping
	// created must fail and the record must survive for a future retry.
	raw := fmt.Sprintf(`{"user": %q, "path": "/lost", "file": %q, "holding": 1}`,
		user, filepath.Join(s.SimsDir(), "does-not-exist.out"))
	require.NoError(t, os.WriteFile(
		filepath.Join(s.PathsDir(), user+"-"+uuid.NewString()+pendingSuffix), []byte(raw), 0o644))

	_, err := s.Resolve(user)
	require.Error(t, err)
	assert.Len(t, pendingOnDisk(t, s, user), 1, "failed reconcile must not consume pending records")
}

func TestResolveConcurrentDisjointSetsUnion(t *testing.T) {
	s := newTestStore(t)
	user := "dread-pirate"

	var pathsA, pathsB []string
	for i := 0; i < 5; i++ {
		pathsA = append(pathsA, fmt.Sprintf("/a/%d", i))
		pathsB = append(pathsB, fmt.Sprintf("/b/%d", i))
	}

	writeSet := func(paths []string, tag string) {
		for i, p := range paths {
			artifact := writeArtifact(t, s, fmt.Sprintf("%s-%d.out", tag, i), tag)
			_, err := s.WritePending(Entry{Path: p, User: user, File: artifact, Holding: Infinite()})
			require.NoError(t, err)
		}
	}
	writeSet(pathsA, "a")

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := s.Resolve(user)
		errs <- err
	}()
	go func() {
		defer wg.Done()
		writeSet(pathsB, "b")
		_, err := s.Resolve(user)
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// A final resolve flushes anything the racing pair left behind.
	reg, err := s.Resolve(user)
	require.NoError(t, err)
	for _, p := range append(append([]string{}, pathsA...), pathsB...) {
		assert.Contains(t, reg, p, "no registration may be lost")
	}
	assert.Empty(t, pendingOnDisk(t, s, user))
}

func TestResolveConcurrentSharedPendingSetBothComplete(t *testing.T) {
	s := newTestStore(t)
	user := "westley"

	// Many records with bulky artifacts keep each resolve busy long enough
	// that, without full serialization, the loser would observe the winner
	// consuming records mid-read and fail with ENOENT.
	content := strings.Repeat("as you wish ", 1<<14)
	var paths []string
	for i := 0; i < 40; i++ {
		p := fmt.Sprintf("/run/%02d", i)
		paths = append(paths, p)
		artifact := writeArtifact(t, s, fmt.Sprintf("shared-%02d.out", i), content)
		_, err := s.WritePending(Entry{Path: p, User: user, File: artifact, Holding: 1})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Resolve(user)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err, "a resolve racing over the same pending set must not fail")
	}

	reg, err := s.Load(user)
	require.NoError(t, err)
	for _, p := range paths {
		assert.Contains(t, reg, p)
	}
	assert.Empty(t, pendingOnDisk(t, s, user))
}

func TestResolveScopedToExactUser(t *testing.T) {
	s := newTestStore(t)

	short := writeArtifact(t, s, "short.out", "short")
	_, err := s.WritePending(Entry{Path: "/mine", User: "alice", File: short, Holding: 1})
	require.NoError(t, err)

	long := writeArtifact(t, s, "long.out", "long")
	_, err = s.WritePending(Entry{Path: "/theirs", User: "alice-2", File: long, Holding: 1})
	require.NoError(t, err)

	reg, err := s.Resolve("alice")
	require.NoError(t, err)
	assert.Contains(t, reg, "/mine")
	assert.NotContains(t, reg, "/theirs", "a prefix-sharing user's records must not be merged")
	assert.Len(t, pendingOnDisk(t, s, "alice-2"), 1, "the other user's record must survive")

	reg, err = s.Resolve("alice-2")
	require.NoError(t, err)
	assert.Contains(t, reg, "/theirs")
	assert.NotContains(t, reg, "/mine")
}
