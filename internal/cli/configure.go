package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/loom/internal/config"
)

var (
	configureProvider     string
	configureModel        string
	configureAnthropicKey string
	configureOpenAIKey    string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the configuration file",
	Long: `Configure updates the configuration file from flags, starting from the
current configuration when one exists. Values without a flag keep their
previous or default value. Keys given here are format-checked before
anything is written.`,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().StringVar(&configureProvider, "provider", "", "default provider (anthropic, openai)")
	configureCmd.Flags().StringVar(&configureModel, "model", "", "default model")
	configureCmd.Flags().StringVar(&configureAnthropicKey, "anthropic-key", "", "Anthropic API key")
	configureCmd.Flags().StringVar(&configureOpenAIKey, "openai-key", "", "OpenAI API key")
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	validator := config.NewValidator()

	if configureAnthropicKey != "" {
		if err := validator.ValidateAPIKey(configureAnthropicKey, "anthropic"); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = configureAnthropicKey
	}
	if configureOpenAIKey != "" {
		if err := validator.ValidateAPIKey(configureOpenAIKey, "openai"); err != nil {
			return err
		}
		cfg.OpenAI.APIKey = configureOpenAIKey
	}
	if configureProvider != "" {
		cfg.Provider = configureProvider
	}
	if configureModel != "" {
		cfg.Model = configureModel
	}

	if err := validator.ValidateLogLevel(cfg.Logging.Level); err != nil {
		return err
	}
	for _, job := range cfg.Jobs {
		if err := validator.ValidateCron(job.Cron); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loader := config.NewLoader(cfgFile)
	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration saved to: %s\n", loader.GetConfigPath())
	return nil
}
