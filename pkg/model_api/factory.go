package api

import (
	"fmt"

	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// NewGatewayFromConfig builds the configured backend, wrapped for retries when
// max_retries is positive.
func NewGatewayFromConfig(cfg *configuration.Config, logger *utils.Logger) (Gateway, error) {
	var (
		gw  Gateway
		err error
	)

	switch cfg.Provider {
	case configuration.ProviderOpenAI:
		gw, err = NewOpenAIGateway(OpenAIConfig{
			DisplayName: "NRP",
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Timeout:     cfg.RequestTimeout(),
		}, logger)
	case configuration.ProviderOllama:
		gw, err = NewOllamaGateway(cfg.BaseURL, cfg.RequestTimeout(), logger)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxRetries > 0 {
		return NewRetryGateway(gw, cfg.MaxRetries, logger), nil
	}
	return gw, nil
}

// VisionModel returns the configured image-capable model.
func VisionModel(cfg *configuration.Config) Model {
	return Model{ID: cfg.VisionModel, MaxImages: cfg.VisionImageLimit}
}

// TextModel returns the configured text-only model.
func TextModel(cfg *configuration.Config) Model {
	return Model{ID: cfg.TextModel}
}
