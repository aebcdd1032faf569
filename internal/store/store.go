package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/eramap/internal/cache"
	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
)

// ErrEmptyPeriod is returned when a write targets a blank period
var ErrEmptyPeriod = eris.New("period must not be empty")

// Record pairs a period with its stored entry
type Record struct {
	Period string                   `json:"period"`
	Entry  model.RegionMappingEntry `json:"entry"`
}

// Repository is the logical contract shared by the custom override store and
// the resolution cache. Keys are exact, case-preserving period strings.
type Repository interface {
	Get(period string) (model.RegionMappingEntry, bool)
	Set(period string, entry model.RegionMappingEntry) error
	Delete(period string) error
	Clear() error
	List() ([]Record, error)
	Keys() ([]string, error)
}

// KVRepository implements Repository on top of a byte-level cache backend
type KVRepository struct {
	name    string
	backend cache.Cache
	now     func() time.Time
}

// NewKVRepository wraps backend; name is used in logs and errors
func NewKVRepository(name string, backend cache.Cache) *KVRepository {
	return &KVRepository{
		name:    name,
		backend: backend,
		now:     time.Now,
	}
}

// Name returns the repository label
func (r *KVRepository) Name() string {
	return r.name
}

// Get returns the entry stored under period. A corrupt value is logged and
// reported as a miss.
func (r *KVRepository) Get(period string) (model.RegionMappingEntry, bool) {
	data, ok := r.backend.Get(period)
	if !ok {
		return model.RegionMappingEntry{}, false
	}
	var entry model.RegionMappingEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		zap.L().Warn("ignoring corrupt region entry",
			zap.String("store", r.name),
			zap.String("period", period),
			zap.Error(err),
		)
		return model.RegionMappingEntry{}, false
	}
	entry.Countries = regions.NormalizeCodes(entry.Countries)
	return entry, true
}

// Set normalizes and persists entry under period, overwriting any previous value.
// The write is synchronous: a following Get observes it.
func (r *KVRepository) Set(period string, entry model.RegionMappingEntry) error {
	if strings.TrimSpace(period) == "" {
		return ErrEmptyPeriod
	}
	entry.Countries = regions.NormalizeCodes(entry.Countries)
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = r.now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrapf(err, "%s: marshal %q", r.name, period)
	}
	if err := r.backend.Set(period, data, cache.NoExpiration); err != nil {
		return eris.Wrapf(err, "%s: set %q", r.name, period)
	}
	return nil
}

// Delete removes one entry; absent periods are a no-op
func (r *KVRepository) Delete(period string) error {
	return eris.Wrapf(r.backend.Delete(period), "%s: delete %q", r.name, period)
}

// Clear removes every entry. Callers are responsible for confirming with the user.
func (r *KVRepository) Clear() error {
	return eris.Wrapf(r.backend.Clear(), "%s: clear", r.name)
}

// Keys returns every stored period without decoding the entries
func (r *KVRepository) Keys() ([]string, error) {
	keys, err := r.backend.Keys()
	if err != nil {
		return nil, eris.Wrapf(err, "%s: keys", r.name)
	}
	return keys, nil
}

// List returns all readable entries sorted by period
func (r *KVRepository) List() ([]Record, error) {
	keys, err := r.Keys()
	if err != nil {
		return nil, err
	}
	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		entry, ok := r.Get(k)
		if !ok {
			continue
		}
		records = append(records, Record{Period: k, Entry: entry})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Period < records[j].Period })
	return records, nil
}

// FindFold returns the stored period matching period, preferring an exact
// match and falling back to a case-insensitive one. Only the matching key is
// decoded; when several keys differ only by case the lowest sorts first.
func FindFold(repo Repository, period string) (string, model.RegionMappingEntry, bool) {
	if entry, ok := repo.Get(period); ok {
		return period, entry, true
	}
	keys, err := repo.Keys()
	if err != nil {
		return "", model.RegionMappingEntry{}, false
	}
	sort.Strings(keys)
	want := strings.TrimSpace(period)
	for _, k := range keys {
		if !strings.EqualFold(k, want) {
			continue
		}
		if entry, ok := repo.Get(k); ok {
			return k, entry, true
		}
	}
	return "", model.RegionMappingEntry{}, false
}

// Periods returns the keys of every record
func Periods(records []Record) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Period
	}
	return out
}
