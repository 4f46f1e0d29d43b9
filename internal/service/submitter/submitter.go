package submitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shercan/miapp/internal/config"
	"github.com/shercan/miapp/internal/logger"
	"github.com/shercan/miapp/internal/service/common"
	"github.com/shercan/miapp/internal/version"
)

const (
	responseSuffix      = "_res.txt"
	errorResponseSuffix = "_res_error.txt"

	responsePermissions = 0o644

	// maxTokenResponseBytes bounds the auth response.
	maxTokenResponseBytes = 1 << 20
)

var (
	errSettingsNotInitialised = errors.New("settings are not initialized")
	errNoToken                = errors.New("auth response has no token")
	errUnexpectedStatus       = errors.New("unexpected http status")
)

// Result is the outcome of one request.
type Result struct {
	API        string
	Level      int
	Repetition int
	// Status is the HTTP status, 0 when no response arrived.
	Status   int
	Duration time.Duration
	// File is the response file written, if any.
	File string
	Err  error
}

// OK reports a 2xx response whose body was saved.
func (r Result) OK() bool {
	return r.Err == nil
}

// Submitter runs the configured APIs.
type Submitter struct {
	cfg        *config.Config
	httpClient *http.Client
	newID      func() string
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithHTTPClient replaces the client built from the settings.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Submitter) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// New creates a Submitter for validated settings.
func New(cfg *config.Config, opts ...Option) (*Submitter, error) {
	if cfg == nil {
		return nil, errSettingsNotInitialised
	}

	s := &Submitter{
		cfg: cfg,
		httpClient: common.NewHTTPClient(
			common.WithTimeout(cfg.RequestTimeout()),
			common.WithInsecureTLS(cfg.InsecureTLS),
			common.WithUserAgent(version.UserAgent()),
		),
		newID: uuid.NewString,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// group is the set of APIs sharing a concurrency level.
type group struct {
	level int
	names []string
}

// Run authenticates and submits every group in order. Per-request failures
// are reported in the results; only a token failure or cancellation stops
// the run.
func (s *Submitter) Run(ctx context.Context) ([]Result, error) {
	ctx = logger.WithName(ctx, "submitter")

	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	var results []Result

	for _, g := range s.groups() {
		if err = ctx.Err(); err != nil {
			return results, err
		}

		logger.InfoKV(ctx, "Running group", "level", g.level, "apis", len(g.names))

		results = append(results, s.runGroup(ctx, token, g)...)

		logger.InfoKV(ctx, "Group completed", "level", g.level)
	}

	return results, nil
}

// Token posts auth_data and returns the "token" field of the answer.
func (s *Submitter) Token(ctx context.Context) (string, error) {
	body, err := json.Marshal(s.cfg.AuthData)
	if err != nil {
		return "", fmt.Errorf("encode auth_data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL(s.cfg.AuthEndpoint), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build auth request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", s.newID())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("request token: %w: %d", errUnexpectedStatus, resp.StatusCode)
	}

	var answer struct {
		Token string `json:"token"`
	}

	if err = json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&answer); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	if answer.Token == "" {
		return "", errNoToken
	}

	logger.Info(ctx, "Token obtained")

	return answer.Token, nil
}

func (s *Submitter) groups() []group {
	byLevel := make(map[int][]string)

	for _, name := range s.cfg.APINames() {
		level := s.cfg.APIs[name].Concurrency
		if level <= 0 {
			level = 1
		}

		byLevel[level] = append(byLevel[level], name)
	}

	groups := make([]group, 0, len(byLevel))
	for level, names := range byLevel {
		groups = append(groups, group{level: level, names: names})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].level < groups[j].level })

	return groups
}

// runGroup runs all APIs of the group concurrently and waits for them.
func (s *Submitter) runGroup(ctx context.Context, token string, g group) []Result {
	perAPI := make([][]Result, len(g.names))

	var eg errgroup.Group

	for i, name := range g.names {
		eg.Go(func() error {
			perAPI[i] = s.runAPI(ctx, token, g.level, name)
			return nil
		})
	}

	_ = eg.Wait()

	var results []Result
	for _, r := range perAPI {
		results = append(results, r...)
	}

	return results
}

// runAPI prepares the payload once and releases all repetitions together.
func (s *Submitter) runAPI(ctx context.Context, token string, level int, name string) []Result {
	api := s.cfg.APIs[name]
	ctx = logger.WithKV(ctx, "api", name)

	payload, err := PreparePayload(api.FilesDir, api.Endpoint, api.Compress)
	if err != nil {
		logger.ErrorKV(ctx, "Unable to prepare payload", "error", err)
		return []Result{{API: name, Level: level, Err: err}}
	}

	if err = os.MkdirAll(api.ResponsesDir, dirPermissions); err != nil {
		return []Result{{API: name, Level: level, Err: fmt.Errorf("create %s: %w", api.ResponsesDir, err)}}
	}

	repetitions := max(api.Repetitions, 1)
	results := make([]Result, repetitions)
	start := make(chan struct{})

	logger.InfoKV(ctx, "Firing simultaneous requests", "repetitions", repetitions)

	var eg errgroup.Group

	for i := range repetitions {
		eg.Go(func() error {
			<-start

			results[i] = s.send(ctx, token, name, level, i+1, api, payload)

			return nil
		})
	}

	close(start)

	_ = eg.Wait()

	return results
}

func (s *Submitter) send(
	ctx context.Context,
	token, name string,
	level, repetition int,
	api *config.API,
	payload *Payload,
) Result {
	result := Result{API: name, Level: level, Repetition: repetition}
	prefix := filepath.Join(api.ResponsesDir,
		fmt.Sprintf("%s_envio%d_rep%d", payload.BaseName, level, repetition))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL(api.Endpoint), bytes.NewReader(payload.Body))
	if err != nil {
		result.Err = fmt.Errorf("build request: %w", err)
		return result
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", s.newID())

	if payload.Compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}

	started := time.Now()
	resp, err := s.httpClient.Do(req)

	if err != nil {
		result.Duration = time.Since(started)
		result.Err = fmt.Errorf("post: %w", err)
		result.File = s.save(ctx, prefix+errorResponseSuffix, []byte(err.Error()), &result)

		return result
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	result.Duration = time.Since(started)
	result.Status = resp.StatusCode

	switch {
	case err != nil:
		result.Err = fmt.Errorf("read response: %w", err)
		result.File = s.save(ctx, prefix+errorResponseSuffix, []byte(err.Error()), &result)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		result.Err = fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		result.File = s.save(ctx, prefix+errorResponseSuffix, body, &result)
	default:
		result.File = s.save(ctx, prefix+responseSuffix, body, &result)
	}

	logger.DebugKV(ctx, "Request finished",
		"repetition", repetition,
		"status", result.Status,
		"duration", result.Duration,
		"file", result.File,
	)

	return result
}

// save writes a response file and records a write failure in result.
func (s *Submitter) save(ctx context.Context, path string, data []byte, result *Result) string {
	if err := os.WriteFile(path, data, responsePermissions); err != nil {
		logger.WarnKV(ctx, "Unable to save response", "path", path, "error", err)

		if result.Err == nil {
			result.Err = fmt.Errorf("save response: %w", err)
		}

		return ""
	}

	return path
}
