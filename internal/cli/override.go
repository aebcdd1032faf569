package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
	"github.com/ppiankov/eramap/internal/store"
)

var (
	overrideTimeframe   string
	overrideDescription string
	overrideManual      bool
	overrideYes         bool
	exportFormat        string
	exportOut           string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage custom period overrides",
	Long: `Custom overrides take precedence over every other resolution step.
Keys are matched exactly first, then case-insensitively.`,
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.engine.Overrides()
		if err != nil {
			return err
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	},
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <period> <code> [code...]",
	Short: "Set the countries of a period",
	Long: `Set stores ISO alpha-2 codes for a period. Codes may be separated by
spaces or commas; anything that is not two letters is ignored.

Example:
  eramap override set "Kingdom of Aksum" ET ER
  eramap override set "Hanseatic League" de,se,pl,ee --timeframe "1356–1862"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		period := args[0]
		codes := regions.ParseCodes(strings.Join(args[1:], " "))

		conflicts, err := a.engine.Conflicts(period)
		if err != nil {
			return err
		}
		errOut := cmd.ErrOrStderr()
		for _, c := range conflicts {
			if c.Source == model.SourceCustom && c.Exact {
				fmt.Fprintf(errOut, "! replacing existing override %q (%s)\n", c.Key, strings.Join(c.Countries, " "))
				continue
			}
			fmt.Fprintf(errOut, "! %q also matches %s entry %q (%s)\n", period, c.Source, c.Key, strings.Join(c.Countries, " "))
		}

		if unknown := regions.UnknownCodes(codes); len(unknown) > 0 {
			fmt.Fprintf(errOut, "! not ISO 3166-1 codes: %s\n", strings.Join(unknown, " "))
		}

		src := model.SourceCustom
		if overrideManual {
			src = model.SourceManual
		}
		res, err := a.engine.SetOverride(period, codes, overrideTimeframe, overrideDescription, src)
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

var overrideDeleteCmd = &cobra.Command{
	Use:   "delete <period>",
	Short: "Delete one override (exact key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.DeleteOverride(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted override %q\n", args[0])
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every override",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !overrideYes {
			return eris.New("refusing to clear all overrides without --yes")
		}
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.ClearOverrides(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Cleared all overrides")
		return nil
	},
}

var overrideImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import overrides from JSON",
	Long: `Import accepts a JSON array of {period, countries, timeframe?, description?}
or an object keyed by period. The whole file is validated before anything is
written.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return eris.Wrap(err, "read import file")
		}

		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.ImportOverrides(data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %d overrides\n", n)
		return nil
	},
}

var overrideExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export overrides as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.engine.ExportOverrides()
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, createErr := os.Create(exportOut)
			if createErr != nil {
				return eris.Wrap(createErr, "create export file")
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = eris.Wrap(closeErr, "close export file")
				}
			}()
			w = f
		}

		switch strings.ToLower(exportFormat) {
		case "json":
			return store.WriteJSON(w, entries)
		case "csv":
			return store.WriteCSV(w, entries)
		default:
			return eris.Errorf("unknown export format %q (supported: json, csv)", exportFormat)
		}
	},
}

func printRecords(w io.Writer, records []store.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, rec := range records {
		line := fmt.Sprintf("%s: %s", rec.Period, strings.Join(rec.Entry.Countries, " "))
		if rec.Entry.Source != "" {
			line += fmt.Sprintf(" [%s]", rec.Entry.Source)
		}
		if rec.Entry.Timeframe != "" {
			line += fmt.Sprintf(" (%s)", rec.Entry.Timeframe)
		}
		fmt.Fprintln(w, line)
	}
}

func init() {
	overrideSetCmd.Flags().StringVar(&overrideTimeframe, "timeframe", "", "human-readable date range")
	overrideSetCmd.Flags().StringVar(&overrideDescription, "description", "", "free-text note")
	overrideSetCmd.Flags().BoolVar(&overrideManual, "manual", false, "record the entry as a manual correction")
	overrideClearCmd.Flags().BoolVar(&overrideYes, "yes", false, "confirm deleting every override")
	overrideExportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv)")
	overrideExportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")

	overrideCmd.AddCommand(overrideListCmd, overrideSetCmd, overrideDeleteCmd, overrideClearCmd, overrideImportCmd, overrideExportCmd)
	rootCmd.AddCommand(overrideCmd)
}
