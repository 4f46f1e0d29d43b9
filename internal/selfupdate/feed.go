package selfupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shercan/miapp/internal/service/common"
	"github.com/shercan/miapp/internal/version"
)

const (
	// feedOwner and feedRepo identify the release stream. They are compiled in
	// so a tampered config file cannot redirect updates.
	feedOwner = "SHERCAN"
	feedRepo  = "AUTOMATIZACION-PRUEBAS"

	defaultFeedBaseURL = "https://api.github.com"

	// maxFeedBytes bounds the release JSON.
	maxFeedBytes = 10 << 20
)

type (
	// Release is the latest published release.
	Release struct {
		// Tag is the release tag, usually "vX.Y.Z".
		Tag string
		// Artifacts are the downloadable files of the release.
		Artifacts []Artifact
	}

	// Artifact is one downloadable file of a release.
	Artifact struct {
		Name        string
		DownloadURL string
	}

	// feedRelease is the wire format of the latest-release endpoint.
	feedRelease struct {
		TagName string      `json:"tag_name"`
		Assets  []feedAsset `json:"assets"`
	}

	feedAsset struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	}

	// FeedClient queries the release feed.
	FeedClient struct {
		httpClient *http.Client
		baseURL    string
	}

	// FeedOption configures a FeedClient.
	FeedOption func(*FeedClient)
)

// WithFeedBaseURL overrides the API base URL. Tests point it at httptest servers.
func WithFeedBaseURL(base string) FeedOption {
	return func(c *FeedClient) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithFeedHTTPClient sets the HTTP client.
func WithFeedHTTPClient(client *http.Client) FeedOption {
	return func(c *FeedClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewFeedClient creates a client for the compiled-in release stream. The
// default HTTP client has no timeout and sends the miapp User-Agent.
func NewFeedClient(opts ...FeedOption) *FeedClient {
	c := &FeedClient{
		httpClient: common.NewHTTPClient(common.WithUserAgent(version.UserAgent())),
		baseURL:    defaultFeedBaseURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// LatestURL returns the latest-release endpoint.
func (c *FeedClient) LatestURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, feedOwner, feedRepo)
}

// FetchLatest returns the latest release.
func (c *FeedClient) FetchLatest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.LatestURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build feed request: %w", ErrNetwork, err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch latest release: %w", ErrNetwork, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if rateLimited(resp) {
			return nil, fmt.Errorf("%w (reset %s)", ErrRateLimited, resp.Header.Get("X-RateLimit-Reset"))
		}

		return nil, fmt.Errorf("%w: fetch latest release: unexpected status %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read latest release: %w", ErrNetwork, err)
	}

	return parseRelease(body)
}

// Find returns the artifact with the exact name.
func (r *Release) Find(name string) (Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Name == name {
			return a, true
		}
	}

	return Artifact{}, false
}

func parseRelease(body []byte) (*Release, error) {
	var wire feedRelease
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFeedFormat, err)
	}

	if strings.TrimSpace(wire.TagName) == "" {
		return nil, fmt.Errorf("%w: missing tag_name", ErrFeedFormat)
	}

	if wire.Assets == nil {
		return nil, fmt.Errorf("%w: missing assets", ErrFeedFormat)
	}

	release := &Release{
		Tag:       strings.TrimSpace(wire.TagName),
		Artifacts: make([]Artifact, 0, len(wire.Assets)),
	}

	for _, a := range wire.Assets {
		release.Artifacts = append(release.Artifacts, Artifact{
			Name:        a.Name,
			DownloadURL: a.BrowserDownloadURL,
		})
	}

	return release, nil
}

func rateLimited(resp *http.Response) bool {
	if resp.StatusCode == http.StatusTooManyRequests {
		return true
	}

	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))

	return err == nil && remaining == 0
}

// redactURL drops query and fragment, which may carry signed tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	return u.String()
}
