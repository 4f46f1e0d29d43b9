package packager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/selfupdate"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Files are the release artifacts to hash.
	Files []string
	// Output is the checksums file to write (defaults to checksums.txt).
	Output string
}

// outputPermissions keeps the file world-readable for publishing.
const outputPermissions = 0o644

var (
	errNoFiles        = errors.New("no artifacts to hash")
	errDuplicateNames = errors.New("artifacts share a file name")
)

// entry is one line of the checksums file.
type entry struct {
	name string
	hash string
}

// Run hashes every artifact and writes them in sha256sum format.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "packager")

	if opts == nil || len(opts.Files) == 0 {
		return errNoFiles
	}

	output := opts.Output
	if output == "" {
		output = selfupdate.ChecksumsAsset
	}

	entries, err := hashAll(opts.Files)
	if err != nil {
		return err
	}

	if err = os.WriteFile(output, render(entries), outputPermissions); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	printNextSteps(ctx, output, entries)

	return nil
}

func hashAll(files []string) ([]entry, error) {
	entries := make([]entry, 0, len(files))
	seen := make(map[string]string, len(files))

	for _, path := range files {
		name := filepath.Base(path)
		if previous, ok := seen[name]; ok {
			return nil, fmt.Errorf("%s and %s: %w", previous, path, errDuplicateNames)
		}

		seen[name] = path

		hash, err := fileSHA256(path)
		if err != nil {
			return nil, err
		}

		entries = append(entries, entry{name: name, hash: hash})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	return entries, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}

	defer f.Close()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func render(entries []entry) []byte {
	var b strings.Builder

	for _, e := range entries {
		b.WriteString(e.hash)
		b.WriteString("  ")
		b.WriteString(e.name)
		b.WriteString("\n")
	}

	return []byte(b.String())
}

// printNextSteps logs what to upload, flagging names the updater will not pick.
func printNextSteps(ctx context.Context, output string, entries []entry) {
	var builder strings.Builder

	builder.WriteString("Upload the following files to the release:\n")

	for _, e := range entries {
		builder.WriteString(e.name)
		builder.WriteString(",\n")
	}

	builder.WriteString(filepath.Base(output))

	logger.Info(ctx, builder.String())

	known := make(map[string]bool)

	for _, goos := range []string{"linux", "darwin", "windows"} {
		if name, err := selfupdate.PlatformAsset(goos); err == nil {
			known[name] = true
		}
	}

	for _, e := range entries {
		if !known[e.name] {
			logger.WarnKV(ctx, "Artifact name is not a platform asset, the updater will ignore it", "name", e.name)
		}
	}
}
