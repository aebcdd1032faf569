package store

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
)

// Import validation errors. Any of them aborts the import before a write.
var (
	ErrImportInvalidJSON = eris.New("import: invalid JSON, expected an array or an object keyed by period")
	ErrImportNoEntries   = eris.New("import: no valid entries found")
	ErrImportNoPeriod    = eris.New("import: entry without a period")
)

// TransferEntry is the bulk import/export shape
type TransferEntry struct {
	Period      string   `json:"period"`
	Countries   []string `json:"countries"`
	Timeframe   string   `json:"timeframe,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ParseImport decodes an array of entries or an object keyed by period.
// Codes are normalized; entries left without any code are dropped.
func ParseImport(data []byte) ([]TransferEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrImportInvalidJSON
	}

	var raw []TransferEntry
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, eris.Wrap(ErrImportInvalidJSON, err.Error())
		}
	case '{':
		var keyed map[string]TransferEntry
		if err := json.Unmarshal(trimmed, &keyed); err != nil {
			return nil, eris.Wrap(ErrImportInvalidJSON, err.Error())
		}
		for period, e := range keyed {
			e.Period = period
			raw = append(raw, e)
		}
	default:
		return nil, ErrImportInvalidJSON
	}

	entries := make([]TransferEntry, 0, len(raw))
	for i, e := range raw {
		e.Period = strings.TrimSpace(e.Period)
		if e.Period == "" {
			return nil, eris.Wrapf(ErrImportNoPeriod, "entry %d", i)
		}
		e.Countries = regions.NormalizeCodes(e.Countries)
		if len(e.Countries) == 0 {
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil, ErrImportNoEntries
	}
	sortTransfer(entries)
	return entries, nil
}

// Import validates data completely, then writes every entry into repo with
// source set to src. It returns the number of entries written. When a write
// fails the entries already written are restored to their previous state, so
// a failed import leaves repo as it was unless the restore itself fails.
func Import(repo Repository, data []byte, src model.Source) (int, error) {
	entries, err := ParseImport(data)
	if err != nil {
		return 0, err
	}

	type prior struct {
		period string
		entry  model.RegionMappingEntry
		ok     bool
	}
	written := make([]prior, 0, len(entries))

	for _, e := range entries {
		old, existed := repo.Get(e.Period)
		entry := model.RegionMappingEntry{
			Countries:   e.Countries,
			Timeframe:   e.Timeframe,
			Description: e.Description,
			Source:      src,
			Confidence:  model.ConfidenceHigh,
		}
		if err := repo.Set(e.Period, entry); err != nil {
			for i := len(written) - 1; i >= 0; i-- {
				p := written[i]
				var undoErr error
				if p.ok {
					undoErr = repo.Set(p.period, p.entry)
				} else {
					undoErr = repo.Delete(p.period)
				}
				if undoErr != nil {
					zap.L().Error("import rollback failed",
						zap.String("period", p.period),
						zap.Error(undoErr),
					)
				}
			}
			return 0, eris.Wrapf(err, "import: write %q", e.Period)
		}
		written = append(written, prior{period: e.Period, entry: old, ok: existed})
	}
	return len(entries), nil
}

// Export returns every entry of repo in transfer form, sorted by period
func Export(repo Repository) ([]TransferEntry, error) {
	records, err := repo.List()
	if err != nil {
		return nil, err
	}
	out := make([]TransferEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, TransferEntry{
			Period:      rec.Period,
			Countries:   rec.Entry.Countries,
			Timeframe:   rec.Entry.Timeframe,
			Description: rec.Entry.Description,
		})
	}
	return out, nil
}

// WriteJSON writes entries as an indented JSON array
func WriteJSON(w io.Writer, entries []TransferEntry) error {
	if entries == nil {
		entries = []TransferEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(entries), "export: encode json")
}

// WriteCSV writes entries with a period,countries,timeframe,description
// header. Codes are space-joined.
func WriteCSV(w io.Writer, entries []TransferEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"period", "countries", "timeframe", "description"}); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, e := range entries {
		row := []string{e.Period, strings.Join(e.Countries, " "), e.Timeframe, e.Description}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write csv row %q", e.Period)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func sortTransfer(entries []TransferEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Period < entries[j].Period })
}
