package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// apiKeyEnvVars are checked in order when YARDCHECK_API_KEY is not set.
var apiKeyEnvVars = []string{"NRP_API_KEY", "OPENAI_API_KEY"}

// APIKeys is the on-disk key store, keyed by provider name.
type APIKeys map[string]string

// GetAPIKeysPath returns the full path to the API keys file
func GetAPIKeysPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, APIKeysFileName), nil
}

// LoadAPIKeys loads API keys from the file
func LoadAPIKeys() (APIKeys, error) {
	apiKeysPath, err := GetAPIKeysPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(apiKeysPath)
	if errors.Is(err, os.ErrNotExist) {
		return APIKeys{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read API keys file: %w", err)
	}

	var keys APIKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse API keys file: %w", err)
	}
	return keys, nil
}

// SaveAPIKeys saves API keys to file
func SaveAPIKeys(keys APIKeys) error {
	apiKeysPath, err := GetAPIKeysPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(apiKeysPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal API keys: %w", err)
	}

	return os.WriteFile(apiKeysPath, data, 0o600)
}

// ResolveAPIKey looks at the environment first, then at the key file.
// An empty key is not an error: local Ollama needs none.
func ResolveAPIKey() (string, error) {
	for _, name := range apiKeyEnvVars {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}

	keys, err := LoadAPIKeys()
	if err != nil {
		return "", err
	}
	return keys[ProviderOpenAI], nil
}
