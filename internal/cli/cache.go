package cli

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var cacheYes bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear cached AI resolutions",
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached AI resolutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.engine.CachedResolutions()
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	},
}

var cacheEvictCmd = &cobra.Command{
	Use:   "evict <period>",
	Short: "Drop one cached resolution so the resolver is asked again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.Evict(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Evicted %q\n", args[0])
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached resolution",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cacheYes {
			return eris.New("refusing to clear the resolution cache without --yes")
		}
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared resolution cache")
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheYes, "yes", false, "confirm clearing the cache")

	cacheCmd.AddCommand(cacheListCmd, cacheEvictCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
