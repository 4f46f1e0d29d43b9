package selfupdate

import (
	"fmt"
	"os"
	"path/filepath"
)

// Suffixes appended to the executable path.
const (
	stagedSuffix = ".new"
	backupSuffix = ".old"
	markerSuffix = ".updating"
)

// Seams for tests.
var (
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// Paths are the files involved in a swap, all next to the executable so that
// renames stay on one filesystem.
type Paths struct {
	// Executable is the canonical path of the live binary.
	Executable string
	// Staged is where the downloaded artifact waits for the swap.
	Staged string
	// Backup receives the previous binary.
	Backup string
	// Marker holds the durable swap record.
	Marker string
}

// PathsFor derives the swap paths from an executable path.
func PathsFor(executable string) Paths {
	executable = filepath.Clean(executable)

	return Paths{
		Executable: executable,
		Staged:     executable + stagedSuffix,
		Backup:     executable + backupSuffix,
		Marker:     executable + markerSuffix,
	}
}

// CurrentPaths resolves the running executable, following symlinks so the
// swap replaces the real file.
func CurrentPaths() (Paths, error) {
	exe, err := osExecutable()
	if err != nil {
		return Paths{}, fmt.Errorf("%w: locate executable: %w", ErrFilesystem, err)
	}

	resolved, err := evalSymlinks(exe)
	if err != nil {
		return Paths{}, fmt.Errorf("%w: resolve executable %s: %w", ErrFilesystem, exe, err)
	}

	return PathsFor(resolved), nil
}
