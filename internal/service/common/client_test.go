//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestNewHTTPClient_UserAgent checks the default header and that explicit ones win.
func TestNewHTTPClient_UserAgent(t *testing.T) {
	t.Parallel()

	seen := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen <- r.UserAgent()
	}))
	defer srv.Close()

	client := NewHTTPClient(WithUserAgent("miapp/2.0.0"))

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "miapp/2.0.0", <-seen)

	req.Header.Set("User-Agent", "custom")

	resp, err = client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, "custom", <-seen)
}

// TestNewHTTPClient_Timeout applies only positive timeouts.
func TestNewHTTPClient_Timeout(t *testing.T) {
	t.Parallel()

	require.Zero(t, NewHTTPClient().Timeout)
	require.Zero(t, NewHTTPClient(WithTimeout(-time.Second)).Timeout)
	require.Equal(t, 5*time.Second, NewHTTPClient(WithTimeout(5*time.Second)).Timeout)
}

// TestNewHTTPClient_InsecureTLS reaches a self-signed server only when allowed.
func TestNewHTTPClient_InsecureTLS(t *testing.T) {
	t.Parallel()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	get := func(client *http.Client) error {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, http.NoBody)
		require.NoError(t, err)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}

		return resp.Body.Close()
	}

	require.Error(t, get(NewHTTPClient()))
	require.NoError(t, get(NewHTTPClient(WithInsecureTLS(true))))

	transport, ok := NewHTTPClient(WithInsecureTLS(true)).Transport.(*http.Transport)
	require.True(t, ok)
	require.Equal(t, &tls.Config{InsecureSkipVerify: true}, transport.TLSClientConfig) //nolint:gosec // Asserting the opt-in.
}
