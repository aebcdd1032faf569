package cli

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest <query>",
	Short: "List known period names close to a query",
	Long: `Suggest compares the query against the built-in period table and your
custom overrides and prints the closest names.

Example:
  eramap suggest "Vikng Age"
  eramap suggest "ottoman" --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.Join(args, " ")
		suggestions := a.engine.Suggest(query, suggestLimit)
		if len(suggestions) == 0 {
			return eris.Errorf("no suggestions for %q", query)
		}
		for _, s := range suggestions {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 5, "maximum suggestions")
	rootCmd.AddCommand(suggestCmd)
}
