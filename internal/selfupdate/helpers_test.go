package selfupdate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errLaunch = errors.New("launch refused")

type launchCall struct {
	path string
	args []string
}

// fakeLauncher records starts and fails the first `failures` of them.
type fakeLauncher struct {
	mu       sync.Mutex
	calls    []launchCall
	failures int
}

func (f *fakeLauncher) Start(path string, args []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, launchCall{path: path, args: args})

	if f.failures > 0 {
		f.failures--
		return errLaunch
	}

	return nil
}

func (f *fakeLauncher) Calls() []launchCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]launchCall(nil), f.calls...)
}

// releaseServer serves a latest-release document and its artifacts.
type releaseServer struct {
	*httptest.Server

	mu        sync.Mutex
	tag       string
	artifacts map[string][]byte
	requested []string
}

func newReleaseServer(t *testing.T, tag string, artifacts map[string][]byte) *releaseServer {
	t.Helper()

	rs := &releaseServer{tag: tag, artifacts: artifacts}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.serve))
	t.Cleanup(rs.Close)

	return rs
}

func (rs *releaseServer) serve(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.requested = append(rs.requested, r.URL.Path)
	rs.mu.Unlock()

	if r.URL.Path == latestPath {
		_, _ = fmt.Fprintf(w, `{"tag_name":%q,"assets":[`, rs.tag)

		first := true
		for name := range rs.artifacts {
			if !first {
				_, _ = w.Write([]byte(","))
			}

			first = false
			_, _ = fmt.Fprintf(w, `{"name":%q,"browser_download_url":%q}`, name, rs.URL+"/download/"+name)
		}

		_, _ = w.Write([]byte("]}"))

		return
	}

	data, ok := rs.artifacts[filepath.Base(r.URL.Path)]
	if !ok {
		http.NotFound(w, r)
		return
	}

	_, _ = w.Write(data)
}

func (rs *releaseServer) Requested() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	return append([]string(nil), rs.requested...)
}

func (rs *releaseServer) release() *Release {
	r := &Release{Tag: rs.tag}
	for name := range rs.artifacts {
		r.Artifacts = append(r.Artifacts, Artifact{Name: name, DownloadURL: rs.URL + "/download/" + name})
	}

	return r
}

func sha256Line(name string, data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]) + "  " + name + "\n"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return string(data)
}

func requireMissing(t *testing.T, path string) {
	t.Helper()

	_, err := os.Stat(path)
	require.ErrorIs(t, err, os.ErrNotExist, path)
}

func testPaths(t *testing.T) Paths {
	t.Helper()
	return PathsFor(filepath.Join(t.TempDir(), "miapp"))
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
