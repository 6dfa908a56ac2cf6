package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/outpost-sim/depot/internal/lock"
)

// Store is the durable per-user path registry. One JSON mapping file per
// user lives under pathsDir; backing artifacts live under simsDir and are
// referenced, never owned. All mutation happens under that user's advisory
// lock, which is a sidecar file because dumps replace the data file inode.
type Store struct {
	pathsDir    string
	simsDir     string
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewStore creates a registry store rooted at pathsDir with artifacts under
// simsDir. lockTimeout bounds every lock acquisition.
func NewStore(pathsDir, simsDir string, lockTimeout time.Duration, logger *slog.Logger) (*Store, error) {
	if strings.TrimSpace(pathsDir) == "" {
		return nil, fmt.Errorf("registry paths directory is empty")
	}
	if strings.TrimSpace(simsDir) == "" {
		return nil, fmt.Errorf("artifact directory is empty")
	}
	if lockTimeout <= 0 {
		return nil, fmt.Errorf("lock timeout must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(pathsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create paths directory: %w", err)
	}

	return &Store{
		pathsDir:    filepath.Clean(pathsDir),
		simsDir:     filepath.Clean(simsDir),
		lockTimeout: lockTimeout,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// PathsDir returns the registry root.
func (s *Store) PathsDir() string { return s.pathsDir }

// SimsDir returns the artifact root.
func (s *Store) SimsDir() string { return s.simsDir }

func (s *Store) registryFile(user string) string {
	return filepath.Join(s.pathsDir, user+".json")
}

func (s *Store) lockFile(user string) string {
	return filepath.Join(s.pathsDir, user+".lock")
}

// acquire takes the user's lock, converting a timeout into ErrRegistryBusy so
// callers can distinguish contention from an empty or corrupt registry.
func (s *Store) acquire(user string) (*lock.Lock, error) {
	l, err := lock.Acquire(s.lockFile(user), s.lockTimeout, true)
	if err != nil {
		return nil, fmt.Errorf("lock registry for user %q: %w", user, err)
	}
	if !l.Held() {
		_ = l.Release()
		return nil, fmt.Errorf("user %q: %w", user, ErrRegistryBusy)
	}
	return l, nil
}

// Load returns the user's registry under their lock. A missing registry file
// is an empty registry, not an error; a busy lock is ErrRegistryBusy.
func (s *Store) Load(user string) (Registry, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	l, err := s.acquire(user)
	if err != nil {
		return nil, err
	}
	defer l.Release()
	return s.loadLocked(user)
}

// loadLocked reads the registry file. The caller must hold the user's lock.
func (s *Store) loadLocked(user string) (Registry, error) {
	data, err := os.ReadFile(s.registryFile(user))
	if os.IsNotExist(err) {
		return Registry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry for user %q: %w", user, err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry for user %q: %w", user, err)
	}
	if reg == nil {
		reg = Registry{}
	}
	return reg, nil
}

// Dump serializes and installs the user's registry under their lock.
func (s *Store) Dump(user string, reg Registry) error {
	if err := validateUser(user); err != nil {
		return err
	}
	l, err := s.acquire(user)
	if err != nil {
		return err
	}
	defer l.Release()
	return s.dumpLocked(user, reg)
}

// dumpLocked writes the registry to a scoped temp file and renames it over
// the registry file, so readers never observe a half-written mapping. The
// caller must hold the user's lock.
func (s *Store) dumpLocked(user string, reg Registry) error {
	data, err := json.MarshalIndent(reg, "", " ")
	if err != nil {
		return fmt.Errorf("serialize registry for user %q: %w", user, err)
	}

	tmp, err := os.CreateTemp(s.pathsDir, user+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write registry for user %q: %w", user, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp registry file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp registry file: %w", err)
	}
	if err := os.Rename(tmpName, s.registryFile(user)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("install registry for user %q: %w", user, err)
	}
	return nil
}

func validateUser(user string) error {
	trimmed := strings.TrimSpace(user)
	if trimmed == "" {
		return fmt.Errorf("user is empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("user %q is invalid", user)
	}
	if strings.Contains(trimmed, "/") || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("user %q must not contain path separators", user)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("user %q is invalid", user)
	}
	return nil
}
