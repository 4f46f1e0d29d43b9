package selfupdate

import (
	"fmt"
	"strings"
)

const (
	// ChecksumsAsset is the optional release asset listing artifact hashes.
	ChecksumsAsset = "checksums.txt"

	// StrategyEnv forces a swap strategy: "helper" or "rename".
	StrategyEnv = "MIAPP_UPDATE_STRATEGY"

	strategyHelper = "helper"
	strategyRename = "rename"
)

// platformAssets maps GOOS to the release asset name built for it.
var platformAssets = map[string]string{
	"linux":   "miapp-linux",
	"darwin":  "miapp-darwin",
	"windows": "miapp-win.exe",
}

// PlatformAsset returns the artifact name for goos.
func PlatformAsset(goos string) (string, error) {
	name, ok := platformAssets[goos]
	if !ok {
		return "", fmt.Errorf("%w: unsupported os %q", ErrArtifactNotFound, goos)
	}

	return name, nil
}

// Capability describes what the platform allows while the binary is running.
type Capability struct {
	// RenameOpenExecutable is true when the live image may be renamed in place.
	RenameOpenExecutable bool
}

// DetectCapability returns the capability of the current platform. All
// supported platforms rename in-use images; StrategyEnv=helper opts out.
func DetectCapability(getenv func(string) string) Capability {
	c := Capability{RenameOpenExecutable: true}

	if getenv == nil {
		return c
	}

	switch strings.ToLower(strings.TrimSpace(getenv(StrategyEnv))) {
	case strategyHelper:
		c.RenameOpenExecutable = false
	case strategyRename, "":
	}

	return c
}
