package registry

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outpost-sim/depot/internal/lock"
)

func TestGCCollectsExpiredEntries(t *testing.T) {
	s := newTestStore(t)
	user := "westley"
	now := time.Now()
	given := initUserPaths(t, s, user, now)
	s.now = func() time.Time { return now }

	msgs := s.GC()
	assert.Empty(t, msgs)

	reg, err := s.Load(user)
	require.NoError(t, err)

	// /as holds forever and /wish is younger than its holding; only /you,
	// whose holding is zero, expires.
	assert.Contains(t, reg, "/as")
	assert.Contains(t, reg, "/wish")
	assert.NotContains(t, reg, "/you")

	_, err = os.Stat(given["/you"].File)
	assert.True(t, os.IsNotExist(err), "expired artifact must be deleted")
	_, err = os.Stat(given["/as"].File)
	assert.NoError(t, err)
	_, err = os.Stat(given["/wish"].File)
	assert.NoError(t, err)
}

func TestGCNothingExpiredLeavesRegistryUntouched(t *testing.T) {
	s := newTestStore(t)
	user := "buttercup"
	now := time.Now()
	reg := Registry{
		"/keep": {Path: "/keep", User: user, Holding: 3600,
			Created: float64(now.UnixNano())/1e9 - 10,
			File:    writeArtifact(t, s, "keep.out", "keep")},
	}
	require.NoError(t, s.Dump(user, reg))
	s.now = func() time.Time { return now }

	before, err := os.Stat(s.registryFile(user))
	require.NoError(t, err)

	msgs := s.GC()
	assert.Empty(t, msgs)

	after, err := os.Stat(s.registryFile(user))
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime(), "no removals means no re-dump")
}

func TestGCRetainsExpiredEntryWithMissingArtifact(t *testing.T) {
	s := newTestStore(t)
	user := "fezzik"
	now := time.Now()
	given := initUserPaths(t, s, user, now)
	require.NoError(t, os.Remove(given["/you"].File))
	s.now = func() time.Time { return now }

	msgs := s.GC()
	assert.Empty(t, msgs)

	reg, err := s.Load(user)
	require.NoError(t, err)
	assert.Contains(t, reg, "/you", "expired entry stays listed when its artifact is already gone")
}

func TestGCSkipsBusyUser(t *testing.T) {
	root := t.TempDir()
	s, err := NewStore(root+"/paths", root+"/sims", 100*time.Millisecond,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.SimsDir(), 0o755))

	now := time.Now()
	initUserPaths(t, s, "busy", now)

	other := Registry{
		"/gone": {Path: "/gone", User: "idle", Holding: 0,
			Created: float64(now.UnixNano())/1e9 - 1000,
			File:    writeArtifact(t, s, "idle.out", "idle")},
	}
	require.NoError(t, s.Dump("idle", other))
	s.now = func() time.Time { return now }

	held, err := lock.Acquire(s.lockFile("busy"), time.Second, false)
	require.NoError(t, err)
	defer held.Release()

	msgs := s.GC()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "skipped user busy")

	// The busy user is untouched while the idle user still gets swept.
	busyReg, err := s.loadLocked("busy")
	require.NoError(t, err)
	assert.Len(t, busyReg, 3)

	idleReg, err := s.Load("idle")
	require.NoError(t, err)
	assert.Empty(t, idleReg)
}

func TestGCIgnoresPendingAndForeignFiles(t *testing.T) {
	s := newTestStore(t)
	user := "inigo"
	now := time.Now()
	initUserPaths(t, s, user, now)
	s.now = func() time.Time { return now }

	pending := s.PathsDir() + "/" + user + "-0" + pendingSuffix
	require.NoError(t, os.WriteFile(pending, []byte(`{"path": "/p", "user": "inigo"}`), 0o644))
	require.NoError(t, os.WriteFile(s.PathsDir()+"/notes.txt", []byte("x"), 0o644))

	msgs := s.GC()
	assert.Empty(t, msgs)

	_, err := os.Stat(pending)
	assert.NoError(t, err, "gc must not consume pending records")
}
