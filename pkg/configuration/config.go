package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ConfigDirName   = ".yardcheck"
	ConfigFileName  = "config.json"
	APIKeysFileName = "api_keys.json"
	EnvPrefix       = "YARDCHECK"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	DefaultBaseURL     = "https://llm.nrp-nautilus.io/v1"
	DefaultVisionModel = "llava-onevision"
	DefaultTextModel   = "gemma3"
)

var validate = validator.New()

// GenerationSettings are the sampling parameters for one pipeline stage.
type GenerationSettings struct {
	MaxTokens   int     `json:"max_tokens" validate:"min=1,max=32000"`
	Temperature float64 `json:"temperature" validate:"min=0,max=2"`
}

// StageSettings holds per-stage generation parameters.
type StageSettings struct {
	Before     GenerationSettings `json:"before"`
	AfterImage GenerationSettings `json:"after_image"`
	Synthesis  GenerationSettings `json:"synthesis"`
	Chat       GenerationSettings `json:"chat"`
	Suggest    GenerationSettings `json:"suggest"`
}

// Config is the process configuration. It is loaded once and passed explicitly
// into the gateway, pipeline and server constructors.
type Config struct {
	Provider          string        `json:"provider" envconfig:"PROVIDER" validate:"oneof=openai ollama"`
	BaseURL           string        `json:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey            string        `json:"-" envconfig:"API_KEY"`
	VisionModel       string        `json:"vision_model" envconfig:"VISION_MODEL" validate:"required"`
	VisionImageLimit  int           `json:"vision_image_limit" envconfig:"VISION_IMAGE_LIMIT" validate:"min=1,max=8"`
	TextModel         string        `json:"text_model" envconfig:"TEXT_MODEL" validate:"required"`
	RequestTimeoutSec int           `json:"request_timeout_sec" envconfig:"REQUEST_TIMEOUT_SEC" validate:"min=1,max=3600"`
	MaxParallelImages int           `json:"max_parallel_images" envconfig:"MAX_PARALLEL_IMAGES" validate:"min=1,max=16"`
	MaxRetries        int           `json:"max_retries" envconfig:"MAX_RETRIES" validate:"min=0,max=10"`
	ListenAddr        string        `json:"listen_addr" envconfig:"LISTEN_ADDR" validate:"required"`
	Stages            StageSettings `json:"stages" ignored:"true"`
}

// DefaultConfig returns the built-in defaults used when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		BaseURL:           DefaultBaseURL,
		VisionModel:       DefaultVisionModel,
		VisionImageLimit:  1,
		TextModel:         DefaultTextModel,
		RequestTimeoutSec: 120,
		MaxParallelImages: 1,
		MaxRetries:        0,
		ListenAddr:        ":5000",
		Stages: StageSettings{
			Before:     GenerationSettings{MaxTokens: 1000, Temperature: 0.7},
			AfterImage: GenerationSettings{MaxTokens: 1500, Temperature: 0.7},
			Synthesis:  GenerationSettings{MaxTokens: 1500, Temperature: 0.3},
			Chat:       GenerationSettings{MaxTokens: 800, Temperature: 0.5},
			Suggest:    GenerationSettings{MaxTokens: 600, Temperature: 0.7},
		},
	}
}

// GetConfigDir returns ~/.yardcheck, honouring YARDCHECK_CONFIG_DIR.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("YARDCHECK_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ConfigDirName), nil
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// Load reads the config file at path (defaults when it does not exist), loads a
// .env file from the working directory if present, then applies YARDCHECK_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.APIKey == "" {
		key, err := ResolveAPIKey()
		if err != nil {
			return nil, err
		}
		cfg.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Provider == ProviderOpenAI && c.BaseURL == "" {
		return fmt.Errorf("invalid configuration: base_url is required for the %s provider", ProviderOpenAI)
	}
	return nil
}

// RequestTimeout is the per-call deadline applied by the gateway.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}
