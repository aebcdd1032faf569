package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ppiankov/eramap/internal/media"
	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/worker"
)

var (
	batchFile    string
	batchEras    string
	batchDelay   time.Duration
	batchApply   bool
	batchSelect  []string
	batchOnlyNew bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Infer countries for every media item in a store",
	Long: `Batch walks media items one at a time, pacing resolver calls, and shows
per-item progress. Interrupting the run (Ctrl-C) stops before the next item;
the item in flight still finishes.

Items come from the configured media store (media.base_url), a local JSON
file (--file), or a plain list of eras, one per line (--eras).

Nothing is written back unless --apply or --select is given.

Example:
  eramap batch --file timeline.json
  eramap batch --file timeline.json --apply
  eramap batch --select 12,19 --delay 500ms
  eramap batch --eras eras.txt`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().StringVar(&batchFile, "file", "", "JSON file of media items (read and updated in place)")
	batchCmd.Flags().StringVar(&batchEras, "eras", "", "text file with one era per line (read only)")
	batchCmd.Flags().DurationVar(&batchDelay, "delay", 0, "pause between items, 0 for none (default from config)")
	batchCmd.Flags().BoolVar(&batchApply, "apply", false, "write every resolved item back to the store")
	batchCmd.Flags().StringSliceVar(&batchSelect, "select", nil, "write back only these item IDs")
	batchCmd.Flags().BoolVar(&batchOnlyNew, "only-missing", false, "skip items that already have countries")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchFile != "" && batchEras != "" {
		return eris.New("--file and --eras are mutually exclusive")
	}
	if batchEras != "" && (batchApply || len(batchSelect) > 0) {
		return eris.New("--eras input cannot be written back; use --file or the media store")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	items, writer, source, err := loadBatchItems(ctx, a.limiter)
	if err != nil {
		return err
	}
	if batchOnlyNew {
		items = withoutCountries(items)
	}

	delay := cfg.BatchDelay()
	if cmd.Flags().Changed("delay") {
		delay = batchDelay
		if delay == 0 {
			delay = -1
		}
	}

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "\n")
	fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(errOut, "  eramap batch inference\n")
	fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(errOut, "\n")
	fmt.Fprintf(errOut, "  Source:       %s\n", source)
	fmt.Fprintf(errOut, "  Items:        %d\n", len(items))
	fmt.Fprintf(errOut, "  Delay:        %v\n", delay)
	fmt.Fprintf(errOut, "\n")

	if len(items) == 0 {
		fmt.Fprintf(errOut, "Nothing to do.\n")
		return nil
	}

	batch := worker.NewBatchItems(items)
	proc := worker.NewBatchProcessor(a.engine, delay)
	proc.OnUpdate = func(index int, item *worker.BatchItem) {
		printBatchProgress(errOut, index, len(batch), item)
	}

	summary := proc.Run(ctx, batch)

	fmt.Fprintf(errOut, "\n")
	fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(errOut, "  Summary\n")
	fmt.Fprintf(errOut, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(errOut, "\n")
	fmt.Fprintf(errOut, "  Run:          %s\n", summary.RunID)
	fmt.Fprintf(errOut, "  Total:        %d\n", summary.Total)
	fmt.Fprintf(errOut, "  Resolved:     %d\n", summary.Done)
	fmt.Fprintf(errOut, "  Failed:       %d\n", summary.Failed)
	if summary.Pending > 0 {
		fmt.Fprintf(errOut, "  Not started:  %d\n", summary.Pending)
	}
	fmt.Fprintf(errOut, "  Duration:     %v\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(errOut, "\n")

	if summary.Cancelled {
		fmt.Fprintf(errOut, "✗ Interrupted: %s\n", summary)
		return nil
	}

	selected := selection(batch)
	if len(selected) == 0 {
		if writer != nil && summary.Done > 0 {
			fmt.Fprintf(errOut, "Review the results above, then re-run with --apply or --select <ids> to save them.\n")
		}
		return nil
	}

	written, err := worker.Apply(context.WithoutCancel(ctx), batch, selected, writer)
	fmt.Fprintf(errOut, "✓ Saved countries for %d item(s)\n", written)
	if err != nil {
		return eris.Wrap(err, "apply results")
	}
	return nil
}

// loadBatchItems returns the items, the writer to apply results with (nil
// when the source is read only) and a label for the banner. The media client
// shares limiter with the resolver but is paced at media.requests_per_second.
func loadBatchItems(ctx context.Context, limiter *worker.Limiter) ([]model.MediaItem, worker.MediaWriter, string, error) {
	switch {
	case batchEras != "":
		items, err := worker.ReadErasFromFile(batchEras)
		if err != nil {
			return nil, nil, "", err
		}
		return items, nil, batchEras, nil
	case batchFile != "":
		fs, err := media.OpenFile(batchFile)
		if err != nil {
			return nil, nil, "", err
		}
		items, err := fs.List(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		return items, fs, batchFile, nil
	default:
		client, err := media.NewClient(media.ClientConfig{
			BaseURL:           cfg.Media.BaseURL,
			Token:             cfg.Media.Token,
			Timeout:           cfg.RequestTimeout(),
			HTTPProxy:         cfg.Resolver.HTTPProxy,
			HTTPSProxy:        cfg.Resolver.HTTPSProxy,
			NoProxy:           cfg.Resolver.NoProxy,
			RequestsPerSecond: cfg.Media.RequestsPerSecond,
			Burst:             cfg.Media.Burst,
		}, limiter)
		if err != nil {
			if eris.Is(err, media.ErrNotConfigured) {
				return nil, nil, "", eris.Wrap(err, "set media.base_url or pass --file/--eras")
			}
			return nil, nil, "", err
		}
		items, err := client.List(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		return items, client, cfg.Media.BaseURL, nil
	}
}

func withoutCountries(items []model.MediaItem) []model.MediaItem {
	out := items[:0:0]
	for _, it := range items {
		if len(it.Countries) == 0 {
			out = append(out, it)
		}
	}
	return out
}

func selection(batch []*worker.BatchItem) map[string]bool {
	selected := make(map[string]bool)
	switch {
	case len(batchSelect) > 0:
		for _, id := range batchSelect {
			if id = strings.TrimSpace(id); id != "" {
				selected[id] = true
			}
		}
	case batchApply:
		for _, item := range worker.Resolved(batch) {
			selected[item.Item.ID] = true
		}
	}
	return selected
}

func printBatchProgress(w io.Writer, index, total int, item *worker.BatchItem) {
	prefix := fmt.Sprintf("[%d/%d] %s", index+1, total, item.Item.ID)
	switch item.Status {
	case model.StatusLoading:
		fmt.Fprintf(w, "⚙️  %s: %s\n", prefix, item.Item.Era)
	case model.StatusDone:
		fmt.Fprintf(w, "✓ %s: %s [%s, %s]\n", prefix, strings.Join(item.Result.Countries, " "), item.Result.Source, item.Result.Confidence)
	case model.StatusError:
		fmt.Fprintf(w, "✗ %s: %v\n", prefix, item.Err)
	}
}
