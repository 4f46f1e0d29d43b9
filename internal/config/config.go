package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds the submission settings.
type Config struct {
	// BaseURL prefixes the auth endpoint and every API endpoint.
	BaseURL string `yaml:"base_url" toml:"base_url"`
	// AuthEndpoint receives AuthData and answers with {"token": "..."}.
	AuthEndpoint string `yaml:"auth_endpoint" toml:"auth_endpoint"`
	// AuthData is posted as JSON to the auth endpoint.
	AuthData any `yaml:"auth_data" toml:"auth_data"`
	// InsecureTLS skips certificate verification for business endpoints.
	InsecureTLS bool `yaml:"insecure_tls,omitempty" toml:"insecure_tls,omitempty"`
	// Timeout bounds each business request, e.g. "45s". Defaults to DefaultTimeout.
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	// APIs maps a display name to an endpoint definition.
	APIs map[string]*API `yaml:"apis" toml:"apis"`

	// requestTimeout is Timeout after parsing and defaulting.
	requestTimeout time.Duration
}

// API describes one endpoint and the folder whose files it receives.
type API struct {
	// Endpoint is appended to BaseURL.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`
	// FilesDir holds the staged .json/.xml files.
	FilesDir string `yaml:"carpeta_archivos" toml:"carpeta_archivos"`
	// ResponsesDir receives response files. Defaults to FilesDir.
	ResponsesDir string `yaml:"carpeta_respuestas,omitempty" toml:"carpeta_respuestas,omitempty"`
	// Concurrency is the group level; groups run in ascending order.
	Concurrency int `yaml:"concurrencia,omitempty" toml:"concurrencia,omitempty"`
	// Compress gzips the request body.
	Compress bool `yaml:"comprimir,omitempty" toml:"comprimir,omitempty"`
	// Repetitions is the number of simultaneous posts of the same payload.
	Repetitions int `yaml:"repeticiones,omitempty" toml:"repeticiones,omitempty"`
}

const (
	// DefaultConfigFilename is looked up in the working directory.
	DefaultConfigFilename = "config.yml"

	// DefaultTimeout bounds business requests when the file does not.
	DefaultTimeout = 60 * time.Second

	// DefaultFilePermissions is used when saving settings.
	DefaultFilePermissions = 0o600

	tomlExtension = ".toml"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errBaseURLRequired is returned when base_url is missing.
	errBaseURLRequired = errors.New("base_url must be provided")
	// errAuthEndpointRequired is returned when auth_endpoint is missing.
	errAuthEndpointRequired = errors.New("auth_endpoint must be provided")
	// errNoAPIs is returned when no endpoint is configured.
	errNoAPIs = errors.New("at least one api must be configured")
	// errInvalidAPI is returned for incomplete endpoint definitions.
	errInvalidAPI = errors.New("invalid api definition")
)

// Load reads the file at path (DefaultConfigFilename when empty) and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := new(Config)

	if isTOML(path) {
		err = toml.Unmarshal(contents, cfg)
	} else {
		err = yaml.Unmarshal(contents, cfg)
	}

	if err != nil {
		return nil, fmt.Errorf("unmarshal settings %s: %w", path, err)
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the settings to path in the format implied by its extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)

	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}

	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions, auth_data usually holds credentials.
	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errBaseURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	if strings.TrimSpace(cfg.AuthEndpoint) == "" {
		return errAuthEndpointRequired
	}

	cfg.requestTimeout = DefaultTimeout

	if cfg.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", cfg.Timeout, err)
		}

		if timeout > 0 {
			cfg.requestTimeout = timeout
		}
	}

	if len(cfg.APIs) == 0 {
		return errNoAPIs
	}

	for name, api := range cfg.APIs {
		if err := validateAPI(name, api); err != nil {
			return err
		}
	}

	return nil
}

// RequestTimeout returns the parsed timeout; valid after Validate.
func (c *Config) RequestTimeout() time.Duration {
	if c.requestTimeout <= 0 {
		return DefaultTimeout
	}

	return c.requestTimeout
}

// URL joins BaseURL with an endpoint without doubling the slash.
func (c *Config) URL(endpoint string) string {
	if strings.HasSuffix(c.BaseURL, "/") && strings.HasPrefix(endpoint, "/") {
		return c.BaseURL + strings.TrimPrefix(endpoint, "/")
	}

	return c.BaseURL + endpoint
}

// APINames returns the configured API names in a stable order.
func (c *Config) APINames() []string {
	names := make([]string, 0, len(c.APIs))
	for name := range c.APIs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func validateAPI(name string, api *API) error {
	if api == nil {
		return fmt.Errorf("%s: %w: empty definition", name, errInvalidAPI)
	}

	if strings.TrimSpace(api.Endpoint) == "" {
		return fmt.Errorf("%s: %w: endpoint is required", name, errInvalidAPI)
	}

	if strings.TrimSpace(api.FilesDir) == "" {
		return fmt.Errorf("%s: %w: carpeta_archivos is required", name, errInvalidAPI)
	}

	if api.ResponsesDir == "" {
		api.ResponsesDir = api.FilesDir
	}

	if api.Concurrency <= 0 {
		api.Concurrency = 1
	}

	if api.Repetitions <= 0 {
		api.Repetitions = 1
	}

	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), tomlExtension)
}
