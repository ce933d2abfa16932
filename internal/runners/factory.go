package runners

import (
	"fmt"
	"sort"

	"github.com/go-viper/mapstructure/v2"

	"github.com/zetareason/reasonbench/internal/models"
)

// runnerOptions are the provider-specific settings carried in
// ModelConfig.Options.
type runnerOptions struct {
	APIKey       string   `mapstructure:"api_key"`
	BaseURL      string   `mapstructure:"base_url"`
	SystemPrompt string   `mapstructure:"system_prompt"`
	Accuracy     *float64 `mapstructure:"accuracy"`
}

// New builds the runner for a model configuration. Unknown providers,
// malformed options, and missing credentials all surface as
// *ConfigurationError so callers can reject the configuration before any
// task runs.
func New(cfg models.ModelConfig) (ModelRunner, error) {
	var opts runnerOptions
	if len(cfg.Options) > 0 {
		if err := mapstructure.Decode(cfg.Options, &opts); err != nil {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("invalid options for %s/%s: %v", cfg.Provider, cfg.ModelID, err),
			}
		}
		if opts.Accuracy != nil && (*opts.Accuracy < 0 || *opts.Accuracy > 1) {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("accuracy must be in [0,1], got %v", *opts.Accuracy),
			}
		}
	}

	if cfg.Provider == "scripted" {
		return newScriptedRunner(cfg, opts), nil
	}
	return newChatRunner(cfg, opts)
}

// Providers lists the registered provider names, scripted included.
func Providers() []string {
	names := make([]string, 0, len(providerEndpoints)+1)
	for name := range providerEndpoints {
		names = append(names, name)
	}
	names = append(names, "scripted")
	sort.Strings(names)
	return names
}
