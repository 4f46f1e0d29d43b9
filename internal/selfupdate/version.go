package selfupdate

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// IsNewer reports whether remote sorts strictly after local.
//
// A leading "v" is ignored. Tags that are both valid semver are ordered by
// semver rules. Anything else is split on "." with every unparsable component
// read as 0, and the shorter sequence is padded with zeros, so "1.2" and
// "1.2.0" are equal.
func IsNewer(remote, local string) bool {
	remote, local = normalizeVersion(remote), normalizeVersion(local)

	if semver.IsValid("v"+remote) && semver.IsValid("v"+local) {
		return semver.Compare("v"+remote, "v"+local) > 0
	}

	return compareComponents(parseComponents(remote), parseComponents(local)) > 0
}

func normalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "v")

	return strings.TrimPrefix(v, "V")
}

func parseComponents(v string) []uint64 {
	parts := strings.Split(v, ".")
	components := make([]uint64, len(parts))

	for i, part := range parts {
		n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}

		components[i] = n
	}

	return components
}

func compareComponents(a, b []uint64) int {
	size := max(len(a), len(b))

	for i := range size {
		var x, y uint64

		if i < len(a) {
			x = a[i]
		}

		if i < len(b) {
			y = b[i]
		}

		switch {
		case x > y:
			return 1
		case x < y:
			return -1
		}
	}

	return 0
}
