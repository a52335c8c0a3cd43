// Package config provides configuration loading and management for the
// IIIF service.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acdh-oeaw/arche-iiif/iiif"
)

// Config represents the complete service configuration.
type Config struct {
	Listen string      `yaml:"listen"`
	Repo   RepoConfig  `yaml:"repo"`
	IIIF   IIIFConfig  `yaml:"iiif"`
	NATS   NATSConfig  `yaml:"nats"`
	Schema iiif.Schema `yaml:"schema"`
}

// RepoConfig configures the repository the metadata graphs come from.
type RepoConfig struct {
	// BaseURL is the repository API root.
	BaseURL string `yaml:"baseUrl"`
	// AllowedNamespaces restricts which identifiers may be resolved
	// (prefix match). Empty allows all.
	AllowedNamespaces []string `yaml:"allowedNamespaces"`
	// Timeout bounds one repository search request.
	Timeout time.Duration `yaml:"timeout"`
}

// IIIFConfig configures the output builders.
type IIIFConfig struct {
	// ServiceBase is the image service's info.json URL prefix.
	ServiceBase string `yaml:"serviceBase"`
	// BaseURL is the public URL of this service.
	BaseURL string `yaml:"baseUrl"`
	// Profile is the default IIIF Image API profile.
	Profile string `yaml:"profile"`
	// FetchDimensions enables the best-effort info.json lookups.
	FetchDimensions bool `yaml:"fetchDimensions"`
	// DefaultCustomManifest is the placeholder sentinel for the
	// custom-manifest property.
	DefaultCustomManifest string `yaml:"defaultCustomManifest"`
	// DefaultMode is used when a request carries no mode parameter.
	DefaultMode string `yaml:"defaultMode"`
	// FetchTimeout bounds one best-effort or custom-manifest fetch.
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
}

// NATSConfig configures the response cache connection. An empty URL
// disables caching.
type NATSConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cacheTtl"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ":8080",
		Repo: RepoConfig{
			Timeout: 30 * time.Second,
		},
		IIIF: IIIFConfig{
			Profile:      "http://iiif.io/api/image/2/level2.json",
			DefaultMode:  string(iiif.ModeImage),
			FetchTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			CacheTTL: 24 * time.Hour,
		},
		Schema: iiif.DefaultSchema(),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen is required")
	}
	if c.Repo.BaseURL == "" {
		return fmt.Errorf("repo.baseUrl is required")
	}
	if c.IIIF.ServiceBase == "" {
		return fmt.Errorf("iiif.serviceBase is required")
	}
	if c.IIIF.BaseURL == "" {
		return fmt.Errorf("iiif.baseUrl is required")
	}
	if _, err := iiif.ParseMode(c.IIIF.DefaultMode); err != nil {
		return fmt.Errorf("iiif.defaultMode: %w", err)
	}
	return c.Schema.Validate()
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other.Listen != "" {
		c.Listen = other.Listen
	}
	if other.Repo.BaseURL != "" {
		c.Repo.BaseURL = other.Repo.BaseURL
	}
	if len(other.Repo.AllowedNamespaces) > 0 {
		c.Repo.AllowedNamespaces = other.Repo.AllowedNamespaces
	}
	if other.Repo.Timeout != 0 {
		c.Repo.Timeout = other.Repo.Timeout
	}
	if other.IIIF.ServiceBase != "" {
		c.IIIF.ServiceBase = other.IIIF.ServiceBase
	}
	if other.IIIF.BaseURL != "" {
		c.IIIF.BaseURL = other.IIIF.BaseURL
	}
	if other.IIIF.Profile != "" {
		c.IIIF.Profile = other.IIIF.Profile
	}
	if other.IIIF.FetchDimensions {
		c.IIIF.FetchDimensions = true
	}
	if other.IIIF.DefaultCustomManifest != "" {
		c.IIIF.DefaultCustomManifest = other.IIIF.DefaultCustomManifest
	}
	if other.IIIF.DefaultMode != "" {
		c.IIIF.DefaultMode = other.IIIF.DefaultMode
	}
	if other.IIIF.FetchTimeout != 0 {
		c.IIIF.FetchTimeout = other.IIIF.FetchTimeout
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.CacheTTL != 0 {
		c.NATS.CacheTTL = other.NATS.CacheTTL
	}
	c.Schema = c.Schema.Merge(other.Schema)
}

// LoadFromFile loads configuration from a YAML file on top of the
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// ApplyEnv overlays environment variables onto the config. Variable names
// follow the deployment conventions of the original dissemination
// services.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("IIIF_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("REPO_BASE_URL"); v != "" {
		c.Repo.BaseURL = v
	}
	if v := os.Getenv("ALLOWED_NMSP"); v != "" {
		c.Repo.AllowedNamespaces = strings.Split(v, ",")
	}
	if v := os.Getenv("IIIF_SERVICE_BASE"); v != "" {
		c.IIIF.ServiceBase = v
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.IIIF.BaseURL = v
	}
	if v := os.Getenv("PROFILE"); v != "" {
		c.IIIF.Profile = v
	}
	if v := os.Getenv("GET_DIMENSIONS"); v != "" {
		c.IIIF.FetchDimensions = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("DEFAULT_MODE"); v != "" {
		c.IIIF.DefaultMode = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
	}
}
