package selfupdate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const latestPath = "/repos/SHERCAN/AUTOMATIZACION-PRUEBAS/releases/latest"

func newFeedServer(t *testing.T, handler http.HandlerFunc) *FeedClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewFeedClient(WithFeedBaseURL(srv.URL + "/"))
}

func TestFetchLatest(t *testing.T) {
	t.Parallel()

	userAgents := make(chan string, 1)

	client := newFeedServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, latestPath, r.URL.Path)
		userAgents <- r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"tag_name":"v2.0.0","assets":[
			{"name":"miapp-linux","browser_download_url":"https://example.com/miapp-linux"},
			{"name":"miapp-win.exe","browser_download_url":"https://example.com/miapp-win.exe"}]}`))
	})

	release, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v2.0.0", release.Tag)
	require.Len(t, release.Artifacts, 2)
	require.Contains(t, <-userAgents, "miapp/")

	artifact, ok := release.Find("miapp-win.exe")
	require.True(t, ok)
	require.Equal(t, "https://example.com/miapp-win.exe", artifact.DownloadURL)

	_, ok = release.Find("miapp-darwin")
	require.False(t, ok)
}

func TestFetchLatest_FormatErrors(t *testing.T) {
	t.Parallel()

	bodies := []string{
		`not json`,
		`{"assets":[]}`,
		`{"tag_name":"  ","assets":[]}`,
		`{"tag_name":"v1.0.0"}`,
	}

	for _, body := range bodies {
		client := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		})

		_, err := client.FetchLatest(context.Background())
		require.ErrorIs(t, err, ErrFeedFormat, body)
	}
}

func TestFetchLatest_EmptyAssetsIsValid(t *testing.T) {
	t.Parallel()

	client := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"v1.0.0","assets":[]}`))
	})

	release, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Empty(t, release.Artifacts)
}

func TestFetchLatest_NetworkErrors(t *testing.T) {
	t.Parallel()

	client := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.FetchLatest(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
	require.NotErrorIs(t, err, ErrRateLimited)

	limited := newFeedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", "1700000000")
		w.WriteHeader(http.StatusForbidden)
	})

	_, err = limited.FetchLatest(context.Background())
	require.ErrorIs(t, err, ErrRateLimited)
	require.ErrorIs(t, err, ErrNetwork)

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err = NewFeedClient(WithFeedBaseURL(srv.URL)).FetchLatest(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://example.com/a/b", redactURL("https://user:pw@example.com/a/b?token=secret#frag"))
	require.Equal(t, "<invalid url>", redactURL("://bad"))
}
