package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

var initSkipPrompt bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file",
	Long:  `Creates ~/.yardcheck/config.json (or the file named by --config) with the default settings, asking for the provider and models unless --skip-prompt is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			var err error
			if path, err = configuration.GetConfigPath(); err != nil {
				return err
			}
		}

		cfg, err := configuration.Load(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, prompts.ConfigLoadFailed(err))
			cfg = configuration.DefaultConfig()
		}
		var apiKey string
		if !initSkipPrompt && utils.IsInteractive(os.Stdin) {
			apiKey = promptConfig(cfg, os.Stdin, os.Stdout)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Println(prompts.ConfigSaved(path))

		if apiKey != "" {
			return saveAPIKey(apiKey)
		}
		return nil
	},
}

// saveAPIKey adds the key to the key file, keeping any other entries.
func saveAPIKey(key string) error {
	keys, err := configuration.LoadAPIKeys()
	if err != nil {
		return err
	}
	if keys == nil {
		keys = configuration.APIKeys{}
	}
	keys[configuration.ProviderOpenAI] = key
	if err := configuration.SaveAPIKeys(keys); err != nil {
		return err
	}
	keysPath, err := configuration.GetAPIKeysPath()
	if err != nil {
		return err
	}
	fmt.Println(prompts.APIKeySaved(keysPath))
	return nil
}

// promptConfig asks for the fields people most often change. An empty answer
// keeps the default. It returns the API key typed in, if any.
func promptConfig(cfg *configuration.Config, in io.Reader, out io.Writer) string {
	reader := bufio.NewReader(in)
	ask := func(prompt, current string) string {
		fmt.Fprint(out, prompt)
		line, _ := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
		return current
	}

	cfg.Provider = strings.ToLower(ask(prompts.EnterProvider(cfg.Provider), cfg.Provider))
	if cfg.Provider == configuration.ProviderOllama {
		cfg.BaseURL = ""
	}
	cfg.BaseURL = ask(prompts.EnterBaseURL(cfg.BaseURL), cfg.BaseURL)
	cfg.VisionModel = ask(prompts.EnterVisionModel(cfg.VisionModel), cfg.VisionModel)
	cfg.TextModel = ask(prompts.EnterTextModel(cfg.TextModel), cfg.TextModel)
	if cfg.Provider == configuration.ProviderOllama || cfg.APIKey != "" {
		return ""
	}
	return ask(prompts.EnterAPIKey(), "")
}

func init() {
	initCmd.Flags().BoolVar(&initSkipPrompt, "skip-prompt", false, "write defaults without asking")
}
