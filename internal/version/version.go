package version

import (
	"fmt"
	"strings"
)

// devVersion marks binaries built without release metadata.
const devVersion = "dev"

var (
	// Version is the release version without the leading "v". Set via ldflags.
	Version = devVersion
	// Commit is the short git SHA embedded at build time (or "none").
	Commit = "none"
	// BuildTime is the UTC build timestamp embedded at build time.
	BuildTime = "unknown"
)

// Short returns only the version string.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}

// UserAgent is the User-Agent sent to the release feed and business endpoints.
func UserAgent() string {
	return "miapp/" + Version
}

// IsDevelopment reports whether v names a local build that must not self-update.
func IsDevelopment(v string) bool {
	v = strings.TrimSpace(v)

	return v == "" || strings.EqualFold(v, devVersion)
}
