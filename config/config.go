// Package config loads watsonx credentials and endpoints from a YAML file
// and WATSONX_* environment variables. Environment variables win over file
// values, so a checked-in config can hold endpoints while secrets come from
// the environment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gowatsonx/watsonx"
)

// DefaultPath is where Load looks when no path is given.
const DefaultPath = "watsonx.yaml"

// Config carries everything needed to construct the service clients.
type Config struct {
	APIKey    string `yaml:"api_key"`
	URL       string `yaml:"url"` // regional endpoint, e.g. https://us-south.ml.cloud.ibm.com
	ProjectID string `yaml:"project_id"`
	SpaceID   string `yaml:"space_id"`
	Model     string `yaml:"model"`
	Version   string `yaml:"version"`  // API version date; empty uses the client default
	TokenURL  string `yaml:"iam_url"`  // IAM token endpoint override
	COS       COS    `yaml:"cos"`
}

// COS configures Cloud Object Storage access for file-based operations.
type COS struct {
	Endpoint   string `yaml:"endpoint"`
	InstanceID string `yaml:"instance_id"`
	Bucket     string `yaml:"bucket"`
}

// Load reads the YAML file at path, then applies environment overrides.
// A missing file is not an error when the environment alone is sufficient.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to environment
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	var cfg Config
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setenv(&c.APIKey, "WATSONX_API_KEY")
	setenv(&c.URL, "WATSONX_URL")
	setenv(&c.ProjectID, "WATSONX_PROJECT_ID")
	setenv(&c.SpaceID, "WATSONX_SPACE_ID")
	setenv(&c.Model, "WATSONX_MODEL")
	setenv(&c.Version, "WATSONX_VERSION")
	setenv(&c.TokenURL, "WATSONX_IAM_URL")
	setenv(&c.COS.Endpoint, "WATSONX_COS_ENDPOINT")
	setenv(&c.COS.InstanceID, "WATSONX_COS_INSTANCE_ID")
	setenv(&c.COS.Bucket, "WATSONX_COS_BUCKET")
}

func setenv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks that the fields every client needs are present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("config: api key required: %w", watsonx.ErrValidation)
	}
	if c.URL == "" {
		return fmt.Errorf("config: url required: %w", watsonx.ErrValidation)
	}
	if c.ProjectID == "" && c.SpaceID == "" {
		return fmt.Errorf("config: project or space id required: %w", watsonx.ErrValidation)
	}
	return nil
}
