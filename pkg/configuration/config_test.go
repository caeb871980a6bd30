package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("YARDCHECK_CONFIG_DIR", dir)
	for _, name := range apiKeyEnvVars {
		t.Setenv(name, "")
	}
	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultVisionModel, cfg.VisionModel)
	assert.Equal(t, 1, cfg.VisionImageLimit)
	assert.Equal(t, 1000, cfg.Stages.Before.MaxTokens)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "ollama without base url", mutate: func(c *Config) { c.Provider = ProviderOllama; c.BaseURL = "" }},
		{name: "unknown provider", mutate: func(c *Config) { c.Provider = "bedrock" }, expectError: true, errorMsg: "Provider"},
		{name: "openai without base url", mutate: func(c *Config) { c.BaseURL = "" }, expectError: true, errorMsg: "base_url is required"},
		{name: "missing text model", mutate: func(c *Config) { c.TextModel = "" }, expectError: true, errorMsg: "TextModel"},
		{name: "zero parallelism", mutate: func(c *Config) { c.MaxParallelImages = 0 }, expectError: true, errorMsg: "MaxParallelImages"},
		{name: "stage temperature out of range", mutate: func(c *Config) { c.Stages.Chat.Temperature = 3 }, expectError: true, errorMsg: "Temperature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(filepath.Join(dir, "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().TextModel, cfg.TextModel)
	assert.Empty(t, cfg.APIKey)
}

func TestLoadFileThenEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ConfigFileName)

	fileCfg := DefaultConfig()
	fileCfg.TextModel = "qwen3"
	fileCfg.MaxParallelImages = 2
	require.NoError(t, fileCfg.Save(path))

	t.Setenv("YARDCHECK_VISION_MODEL", "llava:13b")
	t.Setenv("NRP_API_KEY", "secret-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "qwen3", cfg.TextModel)
	assert.Equal(t, 2, cfg.MaxParallelImages)
	assert.Equal(t, "llava:13b", cfg.VisionModel)
	assert.Equal(t, "secret-key", cfg.APIKey)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestResolveAPIKeyFromFile(t *testing.T) {
	isolate(t)
	require.NoError(t, SaveAPIKeys(APIKeys{ProviderOpenAI: "from-file"}))

	key, err := ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-file", key)

	t.Setenv("OPENAI_API_KEY", "from-env")
	key, err = ResolveAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)
}
