package lock

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateLockFilesystemWithDetector_AllowsLocalFS(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "paths")
	err := validateLockFilesystemWithDetector(root, func(path string) (string, error) {
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestValidateLockFilesystemWithDetector_RejectsNetworkFS(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "paths")
	err := validateLockFilesystemWithDetector(root, func(path string) (string, error) {
		return "nfs", nil
	})
	if err == nil {
		t.Fatal("expected network filesystem validation error")
	}

	msg := err.Error()
	for _, want := range []string{"nfs", "advisory locking requires a local filesystem"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected error to contain %q, got %q", want, msg)
		}
	}
}

func TestValidateLockFilesystemWithDetector_UsesNearestExistingPath(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "nested", "dir", "paths")

	var inspectedPath string
	err := validateLockFilesystemWithDetector(nested, func(path string) (string, error) {
		inspectedPath = path
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}

	if inspectedPath != root {
		t.Fatalf("expected detector to inspect nearest existing path %q, got %q", root, inspectedPath)
	}
}

func TestIsNetworkFilesystem(t *testing.T) {
	t.Parallel()

	for _, fsType := range []string{"nfs", "CIFS", " smb2 "} {
		if !isNetworkFilesystem(fsType) {
			t.Fatalf("expected %q to be a network filesystem", fsType)
		}
	}
	for _, fsType := range []string{"ext4", "apfs", "0x9123683e"} {
		if isNetworkFilesystem(fsType) {
			t.Fatalf("expected %q to be local", fsType)
		}
	}
}
