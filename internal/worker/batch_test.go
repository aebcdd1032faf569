package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
)

func testItems(eras ...string) []*BatchItem {
	media := make([]model.MediaItem, len(eras))
	for i, era := range eras {
		media[i] = model.MediaItem{ID: era, Era: era}
	}
	return NewBatchItems(media)
}

func testInferer() *stubInferer {
	return &stubInferer{codes: map[string][]string{
		"Roman Empire":    {"IT", "FR"},
		"Ming Dynasty":    {"CN"},
		"Mughal Empire":   {"IN", "PK"},
		"Kingdom of Kush": {"SD"},
	}}
}

// panicInferer panics on one era
type panicInferer struct {
	inner *stubInferer
	era   string
}

func (p *panicInferer) Infer(ctx context.Context, q model.InferenceQuery) model.InferenceResult {
	if q.Era == p.era {
		panic("boom")
	}
	return p.inner.Infer(ctx, q)
}

// ctxInferer records whether it saw a cancelled context
type ctxInferer struct {
	inner     *stubInferer
	cancelled bool
}

func (c *ctxInferer) Infer(ctx context.Context, q model.InferenceQuery) model.InferenceResult {
	if ctx.Err() != nil {
		c.cancelled = true
	}
	return c.inner.Infer(ctx, q)
}

func TestBatchProcessor_Run(t *testing.T) {
	processor := NewBatchProcessor(testInferer(), -1)
	items := testItems("Roman Empire", "Lemuria", "Ming Dynasty")

	var transitions []model.ItemStatus
	processor.OnUpdate = func(index int, item *BatchItem) {
		transitions = append(transitions, item.Status)
	}

	summary := processor.Run(context.Background(), items)

	if summary.RunID == "" {
		t.Error("expected run id")
	}
	if summary.Done != 2 || summary.Failed != 1 || summary.Pending != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if items[0].Status != model.StatusDone || items[2].Status != model.StatusDone {
		t.Errorf("expected done items, got %s and %s", items[0].Status, items[2].Status)
	}
	if items[1].Status != model.StatusError {
		t.Errorf("expected error status for unresolved era, got %s", items[1].Status)
	}
	if !eris.Is(items[1].Err, ErrUnresolved) {
		t.Errorf("expected ErrUnresolved, got %v", items[1].Err)
	}
	if items[1].Result == nil || items[1].Result.Source != model.SourceFallback {
		t.Error("expected fallback result kept on failed item")
	}

	expected := []model.ItemStatus{
		model.StatusLoading, model.StatusDone,
		model.StatusLoading, model.StatusError,
		model.StatusLoading, model.StatusDone,
	}
	if len(transitions) != len(expected) {
		t.Fatalf("expected %d transitions, got %d", len(expected), len(transitions))
	}
	for i, status := range transitions {
		if status != expected[i] {
			t.Errorf("transition %d: expected %s, got %s", i, expected[i], status)
		}
	}
}

func TestBatchProcessor_SkipsTerminalItems(t *testing.T) {
	inferer := testInferer()
	processor := NewBatchProcessor(inferer, -1)
	items := testItems("Roman Empire", "Ming Dynasty", "Mughal Empire")
	items[0].Status = model.StatusDone
	items[1].Status = model.StatusError

	summary := processor.Run(context.Background(), items)

	if summary.Skipped != 2 || summary.Done != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if len(inferer.seen) != 1 || inferer.seen[0] != "Mughal Empire" {
		t.Errorf("expected only Mughal Empire inferred, got %v", inferer.seen)
	}
}

func TestBatchProcessor_CancelAfterItems(t *testing.T) {
	inner := testInferer()
	inferer := &ctxInferer{inner: inner}
	processor := NewBatchProcessor(inferer, -1)
	items := testItems("Roman Empire", "Ming Dynasty", "Mughal Empire", "Kingdom of Kush")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor.OnUpdate = func(index int, item *BatchItem) {
		if index == 1 && item.Status == model.StatusLoading {
			cancel()
		}
	}

	summary := processor.Run(ctx, items)

	if !summary.Cancelled {
		t.Error("expected cancelled summary")
	}
	if summary.Done != 2 || summary.Pending != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if items[1].Status != model.StatusDone {
		t.Errorf("in-flight item should complete, got %s", items[1].Status)
	}
	if items[2].Status != model.StatusPending || items[3].Status != model.StatusPending {
		t.Errorf("remaining items should stay pending, got %s and %s", items[2].Status, items[3].Status)
	}
	if inferer.cancelled {
		t.Error("in-flight inference saw a cancelled context")
	}
}

func TestBatchProcessor_CancelDuringDelay(t *testing.T) {
	processor := NewBatchProcessor(testInferer(), time.Hour)
	items := testItems("Roman Empire", "Ming Dynasty")

	ctx, cancel := context.WithCancel(context.Background())
	processor.OnUpdate = func(index int, item *BatchItem) {
		if item.Status == model.StatusDone {
			cancel()
		}
	}

	done := make(chan BatchSummary, 1)
	go func() { done <- processor.Run(ctx, items) }()

	select {
	case summary := <-done:
		if summary.Done != 1 || summary.Pending != 1 || !summary.Cancelled {
			t.Errorf("unexpected summary: %+v", summary)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delay was not interrupted by cancellation")
	}
}

func TestBatchProcessor_Pacing(t *testing.T) {
	delay := 30 * time.Millisecond
	processor := NewBatchProcessor(testInferer(), delay)
	items := testItems("Roman Empire", "Ming Dynasty", "Mughal Empire")

	start := time.Now()
	processor.Run(context.Background(), items)
	elapsed := time.Since(start)

	if elapsed < 2*delay {
		t.Errorf("expected at least %v between three items, got %v", 2*delay, elapsed)
	}
}

func TestBatchProcessor_PanicBecomesError(t *testing.T) {
	processor := NewBatchProcessor(&panicInferer{inner: testInferer(), era: "Ming Dynasty"}, -1)
	items := testItems("Roman Empire", "Ming Dynasty", "Mughal Empire")

	summary := processor.Run(context.Background(), items)

	if items[1].Status != model.StatusError || items[1].Err == nil {
		t.Errorf("expected panicking item in error, got %s (%v)", items[1].Status, items[1].Err)
	}
	if summary.Done != 2 || summary.Failed != 1 {
		t.Errorf("loop should continue after panic: %+v", summary)
	}
}

func TestNewBatchProcessor_DefaultDelay(t *testing.T) {
	if p := NewBatchProcessor(testInferer(), 0); p.delay != DefaultBatchDelay {
		t.Errorf("expected default delay %v, got %v", DefaultBatchDelay, p.delay)
	}
	if p := NewBatchProcessor(testInferer(), -1); p.delay != 0 {
		t.Errorf("expected pacing disabled, got %v", p.delay)
	}
}

// recordingWriter records media writes
type recordingWriter struct {
	writes map[string][]string
	failID string
}

func (w *recordingWriter) UpdateCountries(ctx context.Context, id string, countries []string) error {
	if id == w.failID {
		return errors.New("store rejected update")
	}
	if w.writes == nil {
		w.writes = make(map[string][]string)
	}
	w.writes[id] = countries
	return nil
}

func TestResolvedAndApply(t *testing.T) {
	processor := NewBatchProcessor(testInferer(), -1)
	items := testItems("Roman Empire", "Lemuria", "Ming Dynasty", "Mughal Empire")
	processor.Run(context.Background(), items)

	resolved := Resolved(items)
	if len(resolved) != 3 {
		t.Fatalf("expected 3 resolved items, got %d", len(resolved))
	}

	w := &recordingWriter{}
	selected := map[string]bool{"Roman Empire": true, "Lemuria": true, "Mughal Empire": true}
	written, err := Apply(context.Background(), items, selected, w)
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if written != 2 {
		t.Errorf("expected 2 writes, got %d", written)
	}
	if _, ok := w.writes["Ming Dynasty"]; ok {
		t.Error("unselected item was written")
	}
	if _, ok := w.writes["Lemuria"]; ok {
		t.Error("unresolved item was written")
	}
	if got := w.writes["Roman Empire"]; len(got) != 2 || got[0] != "IT" {
		t.Errorf("unexpected countries written: %v", got)
	}
}

func TestApply_ContinuesAfterFailure(t *testing.T) {
	processor := NewBatchProcessor(testInferer(), -1)
	items := testItems("Roman Empire", "Ming Dynasty")
	processor.Run(context.Background(), items)

	w := &recordingWriter{failID: "Roman Empire"}
	selected := map[string]bool{"Roman Empire": true, "Ming Dynasty": true}
	written, err := Apply(context.Background(), items, selected, w)
	if err == nil {
		t.Error("expected joined error")
	}
	if written != 1 {
		t.Errorf("expected 1 write, got %d", written)
	}
}

func TestReadErasFromFile(t *testing.T) {
	content := "Roman Empire\n# comment\n\n  Ming Dynasty  \nRoman Empire\n"
	path := filepath.Join(t.TempDir(), "eras.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	items, err := ReadErasFromFile(path)
	if err != nil {
		t.Fatalf("ReadErasFromFile failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 eras, got %d", len(items))
	}
	if items[0].Era != "Roman Empire" || items[0].ID != "line-1" {
		t.Errorf("unexpected first item: %+v", items[0])
	}
	if items[1].Era != "Ming Dynasty" || items[1].ID != "line-4" {
		t.Errorf("unexpected second item: %+v", items[1])
	}
}

func TestReadErasFromFile_NonExistent(t *testing.T) {
	if _, err := ReadErasFromFile("no_such_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchSummary_String(t *testing.T) {
	s := BatchSummary{Done: 2, Failed: 1, Pending: 3, Cancelled: true}
	expected := "2 done, 1 failed, 0 skipped, 3 pending (cancelled)"
	if s.String() != expected {
		t.Errorf("expected %q, got %q", expected, s.String())
	}
}
