package registry

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// checksumFile computes the hex BLAKE3 digest of an artifact. Stamped onto
// entries at reconcile time so later corruption of shared storage is
// detectable from the registry alone.
func checksumFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact for checksum: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
