package inference

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
	"github.com/ppiankov/eramap/internal/store"
)

// SetOverride validates codes and stores them for period in the override
// store with the given provenance (custom or manual).
func (e *Engine) SetOverride(period string, codes []string, timeframe, description string, src model.Source) (model.InferenceResult, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return model.InferenceResult{}, ErrInvalidPeriod
	}
	normalized := regions.NormalizeCodes(codes)
	if len(normalized) == 0 {
		return model.InferenceResult{}, ErrNoCodes
	}
	if src == "" {
		src = model.SourceCustom
	}

	reasoning := "custom override"
	if src == model.SourceManual {
		reasoning = "set manually"
	}
	res := e.result(period, normalized, model.ConfidenceHigh, src, strings.TrimSpace(timeframe), reasoning)

	entry := res.ToEntry()
	entry.Description = strings.TrimSpace(description)
	if err := e.overrides.Set(period, entry); err != nil {
		return model.InferenceResult{}, eris.Wrapf(err, "save override %q", period)
	}
	e.negativeDelete(period)
	return res, nil
}

// DeleteOverride removes the override stored under the exact period key
func (e *Engine) DeleteOverride(period string) error {
	if strings.TrimSpace(period) == "" {
		return ErrInvalidPeriod
	}
	return e.overrides.Delete(period)
}

// ClearOverrides removes every override
func (e *Engine) ClearOverrides() error {
	return e.overrides.Clear()
}

// Overrides lists the override store sorted by period
func (e *Engine) Overrides() ([]store.Record, error) {
	return e.overrides.List()
}

// CachedResolutions lists the resolution cache sorted by period
func (e *Engine) CachedResolutions() ([]store.Record, error) {
	return e.resolutions.List()
}

// ImportOverrides bulk-loads overrides from JSON. Nothing is written when
// the payload is invalid, and a failed write rolls back the earlier ones.
func (e *Engine) ImportOverrides(data []byte) (int, error) {
	return store.Import(e.overrides, data, model.SourceCustom)
}

// ExportOverrides returns the override store in transfer form
func (e *Engine) ExportOverrides() ([]store.TransferEntry, error) {
	return store.Export(e.overrides)
}
