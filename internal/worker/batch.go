package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/model"
)

// DefaultBatchDelay is the pause between consecutive batch items
const DefaultBatchDelay = 200 * time.Millisecond

// ErrUnresolved marks a batch item whose inference produced no countries
var ErrUnresolved = eris.New("no countries resolved")

// Inferer resolves an inference query. The engine never returns an error;
// failures surface as fallback results.
type Inferer interface {
	Infer(ctx context.Context, q model.InferenceQuery) model.InferenceResult
}

// MediaWriter writes resolved countries back to the media store
type MediaWriter interface {
	UpdateCountries(ctx context.Context, id string, countries []string) error
}

// BatchItem is one media item tracked through a batch run
type BatchItem struct {
	Item   model.MediaItem
	Status model.ItemStatus
	Result *model.InferenceResult
	Err    error
}

// NewBatchItems wraps media items as pending batch items
func NewBatchItems(items []model.MediaItem) []*BatchItem {
	out := make([]*BatchItem, len(items))
	for i, item := range items {
		out[i] = &BatchItem{Item: item, Status: model.StatusPending}
	}
	return out
}

// Resolved reports whether the item finished with at least one country
func (b *BatchItem) Resolved() bool {
	return b.Status == model.StatusDone && b.Result != nil && b.Result.Resolved()
}

// BatchSummary describes one batch run
type BatchSummary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Done      int           `json:"done"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Pending   int           `json:"pending"`
	Cancelled bool          `json:"cancelled"`
	Duration  time.Duration `json:"duration"`
}

// BatchProcessor runs inference over media items one at a time with a
// fixed delay between items
type BatchProcessor struct {
	inferer  Inferer
	delay    time.Duration
	OnUpdate func(index int, item *BatchItem)
}

// NewBatchProcessor creates a batch processor. A negative delay disables pacing.
func NewBatchProcessor(inferer Inferer, delay time.Duration) *BatchProcessor {
	if delay == 0 {
		delay = DefaultBatchDelay
	}
	if delay < 0 {
		delay = 0
	}
	return &BatchProcessor{
		inferer: inferer,
		delay:   delay,
	}
}

// Run processes items in order. Items already done or failed are skipped.
// Cancelling ctx stops the loop before the next item; an item already in
// flight completes and the rest stay pending.
func (b *BatchProcessor) Run(ctx context.Context, items []*BatchItem) BatchSummary {
	start := time.Now()
	summary := BatchSummary{RunID: uuid.NewString(), Total: len(items)}
	logger := zap.L().With(zap.String("run_id", summary.RunID))
	logger.Info("batch started", zap.Int("items", len(items)))

	processed := 0
	for i, item := range items {
		if ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		if item.Status.Terminal() {
			summary.Skipped++
			continue
		}
		if processed > 0 && b.delay > 0 {
			if err := sleepContext(ctx, b.delay); err != nil {
				summary.Cancelled = true
				break
			}
		}
		processed++

		b.process(ctx, i, item)
		if item.Status == model.StatusDone {
			summary.Done++
		} else {
			summary.Failed++
			logger.Debug("batch item failed",
				zap.String("id", item.Item.ID),
				zap.String("era", item.Item.Era),
				zap.Error(item.Err),
			)
		}
	}

	for _, item := range items {
		if !item.Status.Terminal() {
			summary.Pending++
		}
	}
	summary.Duration = time.Since(start)

	logger.Info("batch finished",
		zap.Int("done", summary.Done),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("pending", summary.Pending),
		zap.Bool("cancelled", summary.Cancelled),
		zap.Duration("duration", summary.Duration),
	)
	return summary
}

func (b *BatchProcessor) process(ctx context.Context, index int, item *BatchItem) {
	b.update(index, item, model.StatusLoading, nil, nil)

	// The in-flight call is not interrupted by cancellation
	res, err := b.infer(context.WithoutCancel(ctx), item.Item.Query())
	switch {
	case err != nil:
		b.update(index, item, model.StatusError, nil, err)
	case !res.Resolved() || res.Source == model.SourceFallback:
		b.update(index, item, model.StatusError, &res, eris.Wrap(ErrUnresolved, res.Reasoning))
	default:
		b.update(index, item, model.StatusDone, &res, nil)
	}
}

func (b *BatchProcessor) infer(ctx context.Context, q model.InferenceQuery) (res model.InferenceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("inference panicked: %v", r)
		}
	}()
	return b.inferer.Infer(ctx, q), nil
}

func (b *BatchProcessor) update(index int, item *BatchItem, status model.ItemStatus, res *model.InferenceResult, err error) {
	item.Status = status
	item.Err = err
	if res != nil {
		item.Result = res
	}
	if b.OnUpdate != nil {
		b.OnUpdate(index, item)
	}
}

// Resolved returns the items that finished with at least one country
func Resolved(items []*BatchItem) []*BatchItem {
	var out []*BatchItem
	for _, item := range items {
		if item.Resolved() {
			out = append(out, item)
		}
	}
	return out
}

// Apply writes the countries of selected, resolved items back through w.
// Items not in selected are never written. Write failures do not stop the
// remaining writes; they are returned joined.
func Apply(ctx context.Context, items []*BatchItem, selected map[string]bool, w MediaWriter) (int, error) {
	written := 0
	var errs []error
	for _, item := range items {
		if !selected[item.Item.ID] || !item.Resolved() {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := w.UpdateCountries(ctx, item.Item.ID, item.Result.Countries); err != nil {
			errs = append(errs, eris.Wrapf(err, "update media %s", item.Item.ID))
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// ReadErasFromFile reads one era per line into media items. Blank lines and
// '#' comments are skipped and duplicate eras are dropped. Items are
// numbered by line.
func ReadErasFromFile(filePath string) ([]model.MediaItem, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}
	defer func() { _ = file.Close() }()

	var items []model.MediaItem
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		era := strings.TrimSpace(scanner.Text())
		if era == "" || strings.HasPrefix(era, "#") {
			continue
		}
		if seen[era] {
			continue
		}
		seen[era] = true
		items = append(items, model.MediaItem{ID: "line-" + strconv.Itoa(line), Era: era})
	}

	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "scan file")
	}
	return items, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// String renders the summary on one line
func (s BatchSummary) String() string {
	out := fmt.Sprintf("%d done, %d failed, %d skipped, %d pending", s.Done, s.Failed, s.Skipped, s.Pending)
	if s.Cancelled {
		out += " (cancelled)"
	}
	return out
}
