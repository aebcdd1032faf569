package inference

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
)

// Conflict is an existing mapping whose key collides with a period
type Conflict struct {
	Key       string       `json:"key"`
	Source    model.Source `json:"source"` // custom or hardcoded
	Exact     bool         `json:"exact"`
	Countries []string     `json:"countries"`
}

// Conflicts lists override keys and static table names that match period
// case-insensitively. Callers use it to warn before writing an override.
func (e *Engine) Conflicts(period string) ([]Conflict, error) {
	period = strings.TrimSpace(period)
	if period == "" {
		return nil, ErrInvalidPeriod
	}

	var out []Conflict
	records, err := e.overrides.List()
	if err != nil {
		return nil, eris.Wrap(err, "list overrides")
	}
	for _, rec := range records {
		if strings.EqualFold(rec.Period, period) {
			out = append(out, Conflict{
				Key:       rec.Period,
				Source:    model.SourceCustom,
				Exact:     rec.Period == period,
				Countries: rec.Entry.Countries,
			})
		}
	}

	if name, ok := regions.Canonical(period); ok {
		countries, _, _ := regions.Lookup(name)
		out = append(out, Conflict{
			Key:       name,
			Source:    model.SourceHardcoded,
			Exact:     name == period,
			Countries: countries,
		})
	}
	return out, nil
}
