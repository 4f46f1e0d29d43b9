package submitter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shercan/miapp/internal/config"
)

const testToken = "secret-token"

// apiServer answers the auth endpoint and records business requests.
type apiServer struct {
	*httptest.Server

	mu       sync.Mutex
	order    []string
	bodies   map[string][]map[string]any
	arrivals map[string]int
	// gather is how many requests /gather waits for before answering.
	gather  int
	arrived chan struct{}
}

func newAPIServer(t *testing.T, gather int) *apiServer {
	t.Helper()

	s := &apiServer{
		bodies:   make(map[string][]map[string]any),
		arrivals: make(map[string]int),
		gather:   gather,
		arrived:  make(chan struct{}),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)

	return s
}

func (s *apiServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/auth" {
		var creds map[string]any
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds["user"] != "demo" {
			http.Error(w, "bad credentials", http.StatusUnauthorized)
			return
		}

		_, _ = w.Write([]byte(`{"token":"` + testToken + `"}`))

		return
	}

	if r.Header.Get("Authorization") != "Bearer "+testToken || r.Header.Get("X-Request-ID") == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var reader io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		reader = zr
	}

	var body map[string]any
	_ = json.NewDecoder(reader).Decode(&body)

	s.mu.Lock()
	s.order = append(s.order, r.URL.Path)
	s.bodies[r.URL.Path] = append(s.bodies[r.URL.Path], body)
	s.arrivals[r.URL.Path]++
	count := s.arrivals[r.URL.Path]
	s.mu.Unlock()

	switch r.URL.Path {
	case "/fail":
		http.Error(w, `{"error":"rejected"}`, http.StatusUnprocessableEntity)
	case "/gather":
		if count == s.gather {
			close(s.arrived)
		}

		select {
		case <-s.arrived:
			_, _ = w.Write([]byte(`{"together":true}`))
		case <-time.After(5 * time.Second):
			http.Error(w, "repetitions were not simultaneous", http.StatusGatewayTimeout)
		}
	default:
		_, _ = w.Write([]byte(`{"ok":true,"path":"` + r.URL.Path + `"}`))
	}
}

func (s *apiServer) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}

func stageFolder(t *testing.T, name string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(`{"api":"`+name+`"}`), 0o600))

	return dir
}

func newTestConfig(t *testing.T, baseURL string, apis map[string]*config.API) *config.Config {
	t.Helper()

	cfg := &config.Config{
		BaseURL:      baseURL,
		AuthEndpoint: "/auth",
		AuthData:     map[string]any{"user": "demo"},
		Timeout:      "10s",
		APIs:         apis,
	}
	require.NoError(t, config.Validate(cfg))

	return cfg
}

func TestRun_GroupsAndResponses(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, 0)
	outDir := filepath.Join(t.TempDir(), "respuestas")

	cfg := newTestConfig(t, srv.URL, map[string]*config.API{
		"primero": {Endpoint: "/first", FilesDir: stageFolder(t, "primero"), Concurrency: 1, Repetitions: 2},
		"segundo": {Endpoint: "/second", FilesDir: stageFolder(t, "segundo"), ResponsesDir: outDir, Concurrency: 2, Compress: true},
		"falla":   {Endpoint: "/fail", FilesDir: stageFolder(t, "falla"), Concurrency: 1},
	})

	s, err := New(cfg)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	order := srv.Order()
	require.Len(t, order, 4)
	require.Equal(t, "/second", order[3], "level 2 must start after level 1 finished")

	totals := Summarize(results)
	require.Equal(t, 3, totals.OK)
	require.Equal(t, 1, totals.Failed)

	for _, r := range results {
		switch r.API {
		case "primero":
			require.Equal(t, 1, r.Level)
			require.Equal(t, http.StatusOK, r.Status)
			require.FileExists(t, filepath.Join(cfg.APIs["primero"].FilesDir,
				fmt.Sprintf("primero_envio1_rep%d_res.txt", r.Repetition)))
		case "segundo":
			require.Equal(t, 2, r.Level)
			require.Equal(t, filepath.Join(outDir, "segundo_envio2_rep1_res.txt"), r.File)
		case "falla":
			require.Error(t, r.Err)
			require.Equal(t, http.StatusUnprocessableEntity, r.Status)
			require.True(t, strings.HasSuffix(r.File, "falla_envio1_rep1_res_error.txt"))

			saved, readErr := os.ReadFile(r.File)
			require.NoError(t, readErr)
			require.Contains(t, string(saved), "rejected")
		}
	}

	srv.mu.Lock()
	secondBody := srv.bodies["/second"][0]
	srv.mu.Unlock()
	require.Equal(t, map[string]any{"api": "segundo"}, secondBody["rips"])

	var buf bytes.Buffer
	PrintSummary(&buf, results)
	require.Contains(t, buf.String(), "primero")
	require.Contains(t, buf.String(), "422")
}

func TestRun_RepetitionsFireTogether(t *testing.T) {
	t.Parallel()

	const repetitions = 5

	srv := newAPIServer(t, repetitions)
	cfg := newTestConfig(t, srv.URL, map[string]*config.API{
		"juntas": {Endpoint: "/gather", FilesDir: stageFolder(t, "juntas"), Repetitions: repetitions},
	})

	s, err := New(cfg)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, repetitions)

	for i, r := range results {
		require.NoError(t, r.Err)
		require.Equal(t, i+1, r.Repetition)
	}
}

func TestRun_MissingInputsReported(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, 0)
	cfg := newTestConfig(t, srv.URL, map[string]*config.API{
		"vacia": {Endpoint: "/empty", FilesDir: filepath.Join(t.TempDir(), "vacia")},
		"llena": {Endpoint: "/full", FilesDir: stageFolder(t, "llena")},
	})

	s, err := New(cfg)
	require.NoError(t, err)

	results, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	totals := Summarize(results)
	require.Equal(t, 1, totals.OK)
	require.Equal(t, 1, totals.Failed)
	require.Equal(t, []string{"/full"}, srv.Order())
}

func TestToken_Failures(t *testing.T) {
	t.Parallel()

	srv := newAPIServer(t, 0)
	cfg := newTestConfig(t, srv.URL, map[string]*config.API{
		"x": {Endpoint: "/x", FilesDir: stageFolder(t, "x")},
	})
	cfg.AuthData = map[string]any{"user": "intruder"}

	s, err := New(cfg)
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.ErrorIs(t, err, errUnexpectedStatus)
	require.Empty(t, srv.Order())

	noToken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	t.Cleanup(noToken.Close)

	cfg.BaseURL = noToken.URL

	_, err = s.Token(context.Background())
	require.ErrorIs(t, err, errNoToken)

	_, err = New(nil)
	require.ErrorIs(t, err, errSettingsNotInitialised)
}
