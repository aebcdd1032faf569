package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/eramap/internal/config"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile  string
	verbose  bool
	cfg      *config.Config
	cfgUsed  string
	skipInit = map[string]bool{"version": true, "help": true, "completion": true}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eramap",
	Short: "eramap - map historical eras to modern countries",
	Long: `eramap resolves free-text historical eras and civilizations to ISO 3166-1
alpha-2 country codes for map highlighting.

Resolution order (first match wins):
  1. Custom overrides you have set or imported
  2. Built-in table of well-known periods
  3. Keyword and year-range heuristics
  4. Cached AI resolutions
  5. The configured AI resolver (HTTP endpoint or LLM provider)

When nothing matches, eramap reports a fallback with spelling suggestions.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipInit[cmd.Name()] {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of eramap.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "eramap %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.eramap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads configuration and initializes the global logger
func initConfig() error {
	loaded, used, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		loaded.Log.Level = "debug"
	}
	if err := config.InitLogger(loaded.Log); err != nil {
		return err
	}

	cfg = loaded
	cfgUsed = used
	return nil
}
