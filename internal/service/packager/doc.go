// Package packager prepares the checksums.txt published next to release
// artifacts. The updater verifies downloads against it when present.
package packager
