package prompts

import "fmt"

// Interactive CLI prompts.

func EnterProvider(defaultProvider string) string {
	return fmt.Sprintf("Enter inference provider (openai or ollama) (default: %s): ", defaultProvider)
}

func EnterBaseURL(defaultURL string) string {
	return fmt.Sprintf("Enter API base URL (default: %s): ", defaultURL)
}

func EnterVisionModel(defaultModel string) string {
	return fmt.Sprintf("Enter vision model (default: %s): ", defaultModel)
}

func EnterTextModel(defaultModel string) string {
	return fmt.Sprintf("Enter text model (default: %s): ", defaultModel)
}

func EnterAPIKey() string {
	return "Enter API key (leave empty to skip): "
}

func APIKeySaved(path string) string {
	return fmt.Sprintf("API key saved to %s", path)
}

func ConfigSaved(path string) string {
	return fmt.Sprintf("Configuration written to %s", path)
}

func ConfigLoadFailed(err error) string {
	return fmt.Sprintf("Failed to load config: %v. Using default values.", err)
}

func MissingAPIKey() string {
	return "No API key found. Set NRP_API_KEY (or OPENAI_API_KEY) before calling a hosted endpoint."
}

func ChatWelcome(model string) string {
	return fmt.Sprintf("Ask follow-up questions about the inspection (text model: %s). Type 'exit' to quit.", model)
}
