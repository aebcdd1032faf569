package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/worker"
)

var (
	inferStart   int
	inferEnd     int
	inferTitle   string
	inferJSON    bool
	inferWorkers int
	inferTimeout time.Duration
	inferOffline bool
)

// inferCmd represents the infer command
var inferCmd = &cobra.Command{
	Use:   "infer <era> [era...]",
	Short: "Resolve one or more eras to country codes",
	Long: `Infer runs each era through the full resolution order and prints the
resulting ISO alpha-2 codes, where they came from, and how confident eramap is.

Several eras are resolved concurrently; requests for the same era share one
resolver call.

Example:
  eramap infer "Viking Age"
  eramap infer "Late Viking raids" --start 980 --end 1030
  eramap infer "Mali Kingdom" "Angkor" "Golden Horde" --json
  eramap infer "Norse saga" --title "The Northman"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)

	inferCmd.Flags().IntVar(&inferStart, "start", 0, "start year (negative for BCE)")
	inferCmd.Flags().IntVar(&inferEnd, "end", 0, "end year (negative for BCE)")
	inferCmd.Flags().StringVar(&inferTitle, "title", "", "media title used to disambiguate the era")
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "print results as JSON")
	inferCmd.Flags().IntVar(&inferWorkers, "workers", 4, "concurrent inferences when several eras are given (default from config)")
	inferCmd.Flags().DurationVar(&inferTimeout, "timeout", 2*time.Minute, "overall timeout")
	inferCmd.Flags().BoolVar(&inferOffline, "offline", false, "skip the AI resolver")
}

func runInfer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, inferTimeout)
	defer cancel()

	a, err := openApp(!inferOffline)
	if err != nil {
		return err
	}
	defer a.Close()

	queries := make([]model.InferenceQuery, len(args))
	for i, era := range args {
		queries[i] = model.InferenceQuery{Era: era, StartYear: inferStart, EndYear: inferEnd, Title: inferTitle}
	}

	var results []model.InferenceResult
	if len(queries) == 1 {
		results = []model.InferenceResult{a.engine.Infer(ctx, queries[0])}
	} else {
		workers := cfg.Batch.Concurrency
		if cmd.Flags().Changed("workers") || workers <= 0 {
			workers = inferWorkers
		}
		for _, r := range worker.InferAll(ctx, a.engine, queries, workers) {
			if r != nil {
				results = append(results, r.Result)
			}
		}
	}

	out := cmd.OutOrStdout()
	if inferJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}

	unresolved := 0
	for _, res := range results {
		printResult(out, res)
		if !res.Resolved() {
			unresolved++
		}
	}
	if unresolved == len(args) {
		return eris.Errorf("no countries resolved for %d era(s)", unresolved)
	}
	return nil
}

// printResult renders one inference result for a terminal
func printResult(w io.Writer, res model.InferenceResult) {
	if res.Resolved() {
		fmt.Fprintf(w, "✓ %s: %s\n", res.Period, strings.Join(res.Countries, " "))
	} else {
		fmt.Fprintf(w, "✗ %s: no countries\n", res.Period)
	}
	fmt.Fprintf(w, "    source: %s, confidence: %s\n", res.Source, res.Confidence)
	if res.Timeframe != "" {
		fmt.Fprintf(w, "    timeframe: %s\n", res.Timeframe)
	}
	if res.Reasoning != "" {
		fmt.Fprintf(w, "    reasoning: %s\n", res.Reasoning)
	}
	if len(res.Suggestions) > 0 {
		fmt.Fprintf(w, "    did you mean: %s\n", strings.Join(res.Suggestions, ", "))
	}
}
