package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/reeldeck/reeldeck/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "reeldeck.json"

	// DefaultPort is the default server port.
	DefaultPort = 8080

	// DefaultHost is the default server host.
	DefaultHost = "localhost"

	// DefaultStateDir is the default local state directory.
	DefaultStateDir = ".reeldeck"

	// DefaultCatalogURL is the default title catalog base URL.
	DefaultCatalogURL = "https://api.themoviedb.org/3"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "REELDECK_"
)

// Config represents the complete reeldeck.json configuration.
type Config struct {
	// Name is the deployment name.
	Name string `json:"name,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server,omitempty"`

	// State contains local state configuration.
	State StateConfig `json:"state,omitempty"`

	// Storage contains account persistence configuration.
	Storage StorageConfig `json:"storage,omitempty"`

	// Identity contains identity provider configuration.
	Identity IdentityConfig `json:"identity,omitempty"`

	// Catalog contains title catalog configuration.
	Catalog CatalogConfig `json:"catalog,omitempty"`

	// Sync contains synchronization tuning.
	Sync SyncConfig `json:"sync,omitempty"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	// Host is the host to bind to.
	Host string `json:"host,omitempty"`

	// Port is the port to listen on.
	Port int `json:"port,omitempty"`

	// ShutdownTimeout bounds graceful shutdown (e.g., "10s").
	ShutdownTimeout string `json:"shutdownTimeout,omitempty"`
}

// StateConfig contains local state settings. The state directory holds the
// anonymous device identity and the optimistic sign-in marker.
type StateConfig struct {
	// Dir is the local state directory.
	Dir string `json:"dir,omitempty"`
}

// StorageConfig contains account persistence settings.
type StorageConfig struct {
	// Backend selects the persistence backend:
	// memory, postgres, sqlite, s3, or redis.
	Backend string `json:"backend,omitempty"`

	// DSN is the database connection string (postgres, sqlite).
	DSN string `json:"dsn,omitempty"`

	// Table is the database table name (postgres, sqlite).
	Table string `json:"table,omitempty"`

	// Bucket is the S3 bucket name.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the key prefix (s3, redis).
	Prefix string `json:"prefix,omitempty"`

	// SaveTimeout bounds each background persist (e.g., "5s").
	SaveTimeout string `json:"saveTimeout,omitempty"`
}

// IdentityConfig contains identity provider settings.
type IdentityConfig struct {
	// IssuerURL is the OpenID Connect issuer.
	IssuerURL string `json:"issuerUrl,omitempty"`

	// ClientID is the OAuth2 client id.
	ClientID string `json:"clientId,omitempty"`

	// ClientSecret is the OAuth2 client secret.
	ClientSecret string `json:"clientSecret,omitempty"`

	// RedirectURL is the OAuth2 redirect URL.
	RedirectURL string `json:"redirectUrl,omitempty"`

	// ConfirmTimeout bounds how long session startup waits for the
	// provider before falling back to guest (e.g., "1500ms").
	ConfirmTimeout string `json:"confirmTimeout,omitempty"`
}

// CatalogConfig contains title catalog settings.
type CatalogConfig struct {
	// BaseURL is the catalog API base URL.
	BaseURL string `json:"baseUrl,omitempty"`

	// APIKey authenticates catalog requests.
	APIKey string `json:"apiKey,omitempty"`

	// RateLimit is the request rate limit in requests per second.
	RateLimit float64 `json:"rateLimit,omitempty"`

	// Burst is the rate limiter burst size.
	Burst int `json:"burst,omitempty"`
}

// SyncConfig contains synchronization tuning.
type SyncConfig struct {
	// Timeout bounds each synchronization run (e.g., "10s").
	Timeout string `json:"timeout,omitempty"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	Enabled bool `json:"enabled,omitempty"`

	// Namespace is the metrics namespace.
	Namespace string `json:"namespace,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ShutdownTimeout: "10s",
		},
		State: StateConfig{
			Dir: DefaultStateDir,
		},
		Storage: StorageConfig{
			Backend:     "memory",
			Table:       "reeldeck_userdata",
			Prefix:      "userdata/",
			SaveTimeout: "5s",
		},
		Identity: IdentityConfig{
			ConfirmTimeout: "1500ms",
		},
		Catalog: CatalogConfig{
			BaseURL:   DefaultCatalogURL,
			RateLimit: 40,
			Burst:     10,
		},
		Sync: SyncConfig{
			Timeout: "10s",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "reeldeck",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for reeldeck.json in the directory.
func Load(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFileName)
	return LoadFile(configPath)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No reeldeck.json found in " + filepath.Dir(path)).
				WithSuggestion("Run 'reeldeck init' or create reeldeck.json manually")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse reeldeck.json: " + err.Error()).
			WithSuggestion("Check that reeldeck.json is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	if c.State.Dir == "" {
		c.State.Dir = DefaultStateDir
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Storage.Table == "" {
		c.Storage.Table = "reeldeck_userdata"
	}
	if c.Storage.Prefix == "" {
		c.Storage.Prefix = "userdata/"
	}
	if c.Storage.SaveTimeout == "" {
		c.Storage.SaveTimeout = "5s"
	}

	if c.Identity.ConfirmTimeout == "" {
		c.Identity.ConfirmTimeout = "1500ms"
	}

	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = DefaultCatalogURL
	}
	if c.Catalog.RateLimit == 0 {
		c.Catalog.RateLimit = 40
	}
	if c.Catalog.Burst == 0 {
		c.Catalog.Burst = 10
	}

	if c.Sync.Timeout == "" {
		c.Sync.Timeout = "10s"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "reeldeck"
	}
}

// applyEnv applies environment variable overrides for the settings that
// carry secrets or routinely differ between deployments.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv(EnvPrefix + "HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPrefix + "STATE_DIR"); v != "" {
		c.State.Dir = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(EnvPrefix + "STORAGE_BUCKET"); v != "" {
		c.Storage.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "OIDC_ISSUER"); v != "" {
		c.Identity.IssuerURL = v
	}
	if v := os.Getenv(EnvPrefix + "OIDC_CLIENT_ID"); v != "" {
		c.Identity.ClientID = v
	}
	if v := os.Getenv(EnvPrefix + "OIDC_CLIENT_SECRET"); v != "" {
		c.Identity.ClientSecret = v
	}
	if v := os.Getenv(EnvPrefix + "CATALOG_API_KEY"); v != "" {
		c.Catalog.APIKey = v
	}
}

// validBackends are the accepted storage backend names.
var validBackends = map[string]bool{
	"memory":   true,
	"postgres": true,
	"sqlite":   true,
	"s3":       true,
	"redis":    true,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New("E102").
			WithDetail("Port must be between 0 and 65535")
	}

	if !validBackends[c.Storage.Backend] {
		return errors.New("E103").
			WithDetail("Unknown backend " + strconv.Quote(c.Storage.Backend))
	}

	switch c.Storage.Backend {
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			return errors.New("E104").
				WithDetail("The " + c.Storage.Backend + " backend requires storage.dsn")
		}
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("E104").
				WithDetail("The s3 backend requires storage.bucket")
		}
	}

	for _, d := range []struct {
		name  string
		value string
	}{
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
		{"storage.saveTimeout", c.Storage.SaveTimeout},
		{"identity.confirmTimeout", c.Identity.ConfirmTimeout},
		{"sync.timeout", c.Sync.Timeout},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return errors.New("E101").
				WithDetail(d.name + " is not a valid duration: " + d.value)
		}
	}

	return nil
}

// Address returns the listen address string.
func (c *Config) Address() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// ShutdownTimeout returns the parsed graceful shutdown bound.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// SaveTimeout returns the parsed background persist bound.
func (c *Config) SaveTimeout() time.Duration {
	return parseDuration(c.Storage.SaveTimeout, 5*time.Second)
}

// ConfirmTimeout returns the parsed identity confirmation bound.
func (c *Config) ConfirmTimeout() time.Duration {
	return parseDuration(c.Identity.ConfirmTimeout, 1500*time.Millisecond)
}

// SyncTimeout returns the parsed synchronization bound.
func (c *Config) SyncTimeout() time.Duration {
	return parseDuration(c.Sync.Timeout, 10*time.Second)
}

// StateDirPath resolves the state directory relative to the config file,
// creating it if needed.
func (c *Config) StateDirPath() (string, error) {
	dir := c.State.Dir
	if !filepath.IsAbs(dir) && c.configPath != "" {
		dir = filepath.Join(c.Dir(), dir)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.New("E110").Wrap(err)
	}
	return dir, nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
