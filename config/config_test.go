package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gowatsonx/watsonx"
	"github.com/gowatsonx/watsonx/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watsonx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
api_key: key-1
url: https://us-south.ml.cloud.ibm.com
project_id: proj-1
model: ibm/granite-3-8b-instruct
cos:
  endpoint: https://s3.us-south.cloud-object-storage.appdomain.cloud
  instance_id: crn:inst-1
  bucket: docs
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "key-1", cfg.APIKey)
	assert.Equal(t, "https://us-south.ml.cloud.ibm.com", cfg.URL)
	assert.Equal(t, "proj-1", cfg.ProjectID)
	assert.Equal(t, "ibm/granite-3-8b-instruct", cfg.Model)
	assert.Equal(t, "docs", cfg.COS.Bucket)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
api_key: file-key
url: https://us-south.ml.cloud.ibm.com
project_id: proj-1
`)
	t.Setenv("WATSONX_API_KEY", "env-key")
	t.Setenv("WATSONX_PROJECT_ID", "proj-2")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "proj-2", cfg.ProjectID)
	assert.Equal(t, "https://us-south.ml.cloud.ibm.com", cfg.URL)
}

func TestLoad_MissingFileFallsBackToEnv(t *testing.T) {
	t.Setenv("WATSONX_API_KEY", "env-key")
	t.Setenv("WATSONX_URL", "https://eu-de.ml.cloud.ibm.com")
	t.Setenv("WATSONX_SPACE_ID", "space-1")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "space-1", cfg.SpaceID)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "api_key: [unclosed")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"missing api key", config.Config{URL: "https://x", ProjectID: "p"}},
		{"missing url", config.Config{APIKey: "k", ProjectID: "p"}},
		{"missing scope", config.Config{APIKey: "k", URL: "https://x"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.ErrorIs(t, tt.cfg.Validate(), watsonx.ErrValidation)
		})
	}
}
