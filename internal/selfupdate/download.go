package selfupdate

import (
	"bytes"
	"context"
	"crypto"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/service/common"
	"github.com/shercan/miapp/internal/version"
)

const (
	// ExecutableMode is applied to the staged binary.
	ExecutableMode os.FileMode = 0o755

	// checksumHash must match the digests in checksums.txt.
	checksumHash = crypto.SHA256
)

// Downloader stages the platform artifact of a release next to the executable.
type Downloader struct {
	httpClient *http.Client
	goos       string
}

// DownloaderOption configures a Downloader.
type DownloaderOption func(*Downloader)

// WithDownloadHTTPClient sets the HTTP client.
func WithDownloadHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithGOOS overrides the platform used to pick the artifact.
func WithGOOS(goos string) DownloaderOption {
	return func(d *Downloader) {
		d.goos = goos
	}
}

// NewDownloader creates a Downloader for the running platform.
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		httpClient: common.NewHTTPClient(common.WithUserAgent(version.UserAgent())),
		goos:       runtime.GOOS,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Select returns the artifact built for the downloader's platform.
func (d *Downloader) Select(release *Release) (Artifact, error) {
	name, err := PlatformAsset(d.goos)
	if err != nil {
		return Artifact{}, err
	}

	if release == nil {
		return Artifact{}, fmt.Errorf("%w: %s (no release)", ErrArtifactNotFound, name)
	}

	artifact, ok := release.Find(name)
	if !ok {
		return Artifact{}, fmt.Errorf("%w: %s not published in %s", ErrArtifactNotFound, name, release.Tag)
	}

	return artifact, nil
}

// Download fetches the platform artifact fully into memory and writes it to
// dest with executable permissions. When the release lists checksums.txt the
// artifact is verified while writing. The caller removes dest on failure.
func (d *Downloader) Download(ctx context.Context, release *Release, dest string) (string, error) {
	artifact, err := d.Select(release)
	if err != nil {
		return "", err
	}

	ctx = logger.WithName(ctx, "downloader")
	logger.InfoKV(ctx, "Downloading artifact", "name", artifact.Name, "url", redactURL(artifact.DownloadURL))

	data, err := d.fetch(ctx, artifact.DownloadURL)
	if err != nil {
		return "", err
	}

	expected, err := d.expectedChecksum(ctx, release, artifact.Name)
	if err != nil {
		return "", err
	}

	if err = stage(data, dest, expected); err != nil {
		return "", err
	}

	logger.InfoKV(ctx, "Artifact staged", "path", dest, "bytes", len(data), "verified", expected != nil)

	return dest, nil
}

func (d *Downloader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build download request: %w", ErrNetwork, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", ErrNetwork, redactURL(rawURL), err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: download %s: unexpected status %d", ErrNetwork, redactURL(rawURL), resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s interrupted: %w", ErrNetwork, redactURL(rawURL), err)
	}

	return data, nil
}

// expectedChecksum returns nil when the release carries no checksums.txt.
func (d *Downloader) expectedChecksum(ctx context.Context, release *Release, name string) ([]byte, error) {
	sumsArtifact, ok := release.Find(ChecksumsAsset)
	if !ok {
		logger.Debug(ctx, "Release has no checksums, skipping verification")
		return nil, nil
	}

	data, err := d.fetch(ctx, sumsArtifact.DownloadURL)
	if err != nil {
		return nil, err
	}

	sums, err := ParseChecksums(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	digest, ok := sums[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not listed in %s", ErrChecksumMismatch, name, ChecksumsAsset)
	}

	return digest, nil
}

// stage writes data to dest through go-update, which writes a sibling file
// and renames it over dest.
func stage(data []byte, dest string, expected []byte) error {
	dest = filepath.Clean(dest)

	if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.Create(dest)
		if createErr != nil {
			return fmt.Errorf("%w: create %s: %w", ErrFilesystem, dest, createErr)
		}

		_ = f.Close()
	}

	options := goupdate.Options{
		TargetPath: dest,
		TargetMode: ExecutableMode,
		Checksum:   expected,
		Hash:       checksumHash,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if expected != nil {
			sum := sha256.Sum256(data)
			if !bytes.Equal(sum[:], expected) {
				return fmt.Errorf("%w: %w", ErrChecksumMismatch, err)
			}
		}

		return fmt.Errorf("%w: stage %s: %w", ErrFilesystem, dest, err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(dest, ExecutableMode); err != nil {
			return fmt.Errorf("%w: chmod %s: %w", ErrFilesystem, dest, err)
		}
	}

	return nil
}
