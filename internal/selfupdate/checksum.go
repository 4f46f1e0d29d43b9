package selfupdate

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// sha256HexLength is the length of a hex-encoded SHA-256 digest.
const sha256HexLength = 64

// ParseChecksums reads sha256sum output ("<hex>  <name>" per line) into a
// name -> digest map. Malformed lines are skipped.
func ParseChecksums(r io.Reader) (map[string][]byte, error) {
	sums := make(map[string][]byte)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hash, name, ok := strings.Cut(line, "  ")
		if !ok || len(hash) != sha256HexLength {
			continue
		}

		// sha256sum marks binary mode with a leading '*'.
		name = strings.TrimPrefix(strings.TrimSpace(name), "*")
		if name == "" {
			continue
		}

		digest, err := hex.DecodeString(hash)
		if err != nil {
			continue
		}

		sums[name] = digest
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checksums: %w", err)
	}

	return sums, nil
}
