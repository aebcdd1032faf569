package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/eramap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage eramap configuration",
	Long:  `View and initialize eramap configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, the config file and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfgUsed != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", cfgUsed)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		shown := *cfg
		if shown.Resolver.APIKey != "" {
			shown.Resolver.APIKey = "********"
		}
		if shown.Media.Token != "" {
			shown.Media.Token = "********"
		}

		yamlData, err := yaml.Marshal(&shown)
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}

		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out, "  Current Configuration")
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, string(yamlData))
		fmt.Fprintln(out, "═══════════════════════════════════════════════════════════")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Configuration hierarchy (highest to lowest priority):")
		fmt.Fprintln(out, "  1. CLI flags")
		fmt.Fprintf(out, "  2. Environment variables (%s_*, OPENAI_API_KEY, ANTHROPIC_API_KEY, OLLAMA_BASE_URL)\n", config.EnvPrefix)
		fmt.Fprintf(out, "  3. Config file (%s)\n", filepath.Join(config.DefaultDir(), "config.yaml"))
		fmt.Fprintln(out, "  4. Defaults")
		fmt.Fprintln(out)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.eramap/config.yaml with every option set to its default.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		configDir := config.DefaultDir()
		configPath := filepath.Join(configDir, "config.yaml")

		if _, statErr := os.Stat(configPath); statErr == nil {
			return eris.Errorf("config file already exists: %s\nUse 'eramap config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0o755); err != nil {
			return eris.Wrap(err, "create config directory")
		}

		yamlData, err := yaml.Marshal(config.Defaults())
		if err != nil {
			return eris.Wrap(err, "marshal config")
		}

		f, err := os.Create(configPath)
		if err != nil {
			return eris.Wrap(err, "create config file")
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = eris.Wrap(closeErr, "close config file")
			}
		}()

		printf := func(format string, a ...interface{}) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# eramap configuration file\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (%s_*, e.g. %s_RESOLVER_ENDPOINT)\n", config.EnvPrefix, config.EnvPrefix)
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n\n")
		printf("%s", yamlData)
		printf("\n# API keys (recommended to use environment variables instead):\n")
		printf("#   export OPENAI_API_KEY=sk-...\n")
		printf("#   export ANTHROPIC_API_KEY=sk-ant-...\n")
		printf("#   export OLLAMA_BASE_URL=http://localhost:11434\n")
		if err != nil {
			return eris.Wrap(err, "write config file")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  eramap config show\n")
		fmt.Fprintf(out, "\nTo customize, edit the file with your preferred editor:\n")
		fmt.Fprintf(out, "  $EDITOR %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
