//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"crypto/tls"
	"net/http"
	"time"
)

// clientSettings collects the knobs applied by NewHTTPClient.
type clientSettings struct {
	// timeout bounds a whole request including the body read. Zero means none.
	timeout time.Duration
	// userAgent is set on requests that do not carry their own.
	userAgent string
	// insecureTLS disables certificate verification.
	insecureTLS bool
	// transport overrides the base round tripper, mostly for tests.
	transport http.RoundTripper
}

// Option configures the HTTP client.
type Option func(*clientSettings)

// WithTimeout bounds every request made by the client.
func WithTimeout(timeout time.Duration) Option {
	return func(s *clientSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithUserAgent sets the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *clientSettings) {
		s.userAgent = ua
	}
}

// WithInsecureTLS turns off certificate verification. Only business endpoints
// use it; the release feed always verifies TLS.
func WithInsecureTLS(insecure bool) Option {
	return func(s *clientSettings) {
		s.insecureTLS = insecure
	}
}

// WithTransport replaces the base transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *clientSettings) {
		s.transport = rt
	}
}

// NewHTTPClient builds an *http.Client from the options.
func NewHTTPClient(opts ...Option) *http.Client {
	settings := new(clientSettings)
	for _, opt := range opts {
		opt(settings)
	}

	base := settings.transport
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib default.
		if settings.insecureTLS {
			//nolint:gosec // Opt-in through configuration for self-signed test environments.
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}

		base = transport
	}

	var rt http.RoundTripper = base
	if settings.userAgent != "" {
		rt = &userAgentTransport{base: base, userAgent: settings.userAgent}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   settings.timeout,
	}
}

// userAgentTransport sets User-Agent on requests that lack one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

// RoundTrip implements http.RoundTripper.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}

	cloned := req.Clone(req.Context())
	cloned.Header.Set("User-Agent", t.userAgent)

	return t.base.RoundTrip(cloned)
}
