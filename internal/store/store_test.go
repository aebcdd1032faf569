package store

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/eramap/internal/cache"
	"github.com/ppiankov/eramap/internal/model"
)

func newRepo(t *testing.T) *KVRepository {
	t.Helper()
	return NewKVRepository("overrides", cache.NewMemoryCache(cache.NoExpiration, time.Minute))
}

func TestRepository_SetGetRoundTrip(t *testing.T) {
	repo := newRepo(t)

	err := repo.Set("Viking Age", model.RegionMappingEntry{
		Countries: []string{"no", "SE", "se", " dk ", "xyz"},
		Timeframe: "793–1066 CE",
	})
	require.NoError(t, err)

	got, ok := repo.Get("Viking Age")
	require.True(t, ok)
	assert.Equal(t, []string{"NO", "SE", "DK"}, got.Countries)
	assert.Equal(t, "793–1066 CE", got.Timeframe)
	assert.False(t, got.UpdatedAt.IsZero(), "Set should stamp UpdatedAt")

	_, ok = repo.Get("viking age")
	assert.False(t, ok, "keys are case-preserving")
}

func TestRepository_SetRejectsEmptyPeriod(t *testing.T) {
	repo := newRepo(t)
	err := repo.Set("  ", model.RegionMappingEntry{Countries: []string{"NO"}})
	assert.True(t, eris.Is(err, ErrEmptyPeriod))
}

func TestRepository_DeleteAndClear(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Set("Edo Period", model.RegionMappingEntry{Countries: []string{"JP"}}))
	require.NoError(t, repo.Set("Aztec Empire", model.RegionMappingEntry{Countries: []string{"MX"}}))

	require.NoError(t, repo.Delete("Edo Period"))
	require.NoError(t, repo.Delete("Edo Period"), "second delete is a no-op")
	_, ok := repo.Get("Edo Period")
	assert.False(t, ok)

	records, err := repo.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Aztec Empire"}, Periods(records))

	require.NoError(t, repo.Clear())
	records, err = repo.List()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRepository_CorruptValueIsMiss(t *testing.T) {
	backend := cache.NewMemoryCache(cache.NoExpiration, time.Minute)
	repo := NewKVRepository("resolutions", backend)

	require.NoError(t, backend.Set("Inca Empire", []byte("{broken"), 0))
	require.NoError(t, repo.Set("Maya Civilization", model.RegionMappingEntry{Countries: []string{"MX", "GT"}}))

	_, ok := repo.Get("Inca Empire")
	assert.False(t, ok)

	records, err := repo.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"Maya Civilization"}, Periods(records))
}

func TestFindFold(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Set("Ottoman Empire", model.RegionMappingEntry{Countries: []string{"TR"}}))

	key, entry, ok := FindFold(repo, "ottoman empire")
	require.True(t, ok)
	assert.Equal(t, "Ottoman Empire", key)
	assert.Equal(t, []string{"TR"}, entry.Countries)

	_, _, ok = FindFold(repo, "Ottoman")
	assert.False(t, ok)
}

func TestOpen_Drivers(t *testing.T) {
	for _, driver := range []string{"", "layered", "disk", "memory", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			stores, err := Open(Options{Driver: driver, DataDir: t.TempDir()})
			require.NoError(t, err)
			defer stores.Close()

			require.NoError(t, stores.Overrides.Set("Silk Road", model.RegionMappingEntry{Countries: []string{"CN"}}))
			_, ok := stores.Resolutions.Get("Silk Road")
			assert.False(t, ok, "override and resolution namespaces must be separate")

			got, ok := stores.Overrides.Get("Silk Road")
			require.True(t, ok)
			assert.Equal(t, []string{"CN"}, got.Countries)
		})
	}
}

func TestOpen_SQLitePersistsAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eramap.db")

	first, err := Open(Options{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	require.NoError(t, first.Overrides.Set("Meiji Era", model.RegionMappingEntry{Countries: []string{"JP"}}))
	require.NoError(t, first.Close())

	second, err := Open(Options{Driver: "sqlite", SQLitePath: path})
	require.NoError(t, err)
	defer second.Close()
	got, ok := second.Overrides.Get("Meiji Era")
	require.True(t, ok)
	assert.Equal(t, []string{"JP"}, got.Countries)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "redis", DataDir: t.TempDir()})
	assert.Error(t, err)
}

func TestImport_UppercasesCodes(t *testing.T) {
	repo := newRepo(t)
	data := []byte(`[{"period":"Silk Road","countries":["cn","kz","uz"],"timeframe":"130 BCE–1450s"}]`)

	n, err := Import(repo, data, model.SourceCustom)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := repo.Get("Silk Road")
	require.True(t, ok)
	assert.Equal(t, []string{"CN", "KZ", "UZ"}, got.Countries)
	assert.Equal(t, "130 BCE–1450s", got.Timeframe)
	assert.Equal(t, model.SourceCustom, got.Source)
}

func TestImport_ObjectKeyedByPeriod(t *testing.T) {
	repo := newRepo(t)
	data := []byte(`{"Khmer Empire":{"countries":["KH","TH"]},"Edo Period":{"countries":["jp"],"description":"Tokugawa"}}`)

	n, err := Import(repo, data, model.SourceCustom)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, ok := repo.Get("Edo Period")
	require.True(t, ok)
	assert.Equal(t, []string{"JP"}, got.Countries)
	assert.Equal(t, "Tokugawa", got.Description)
}

// failingBackend rejects writes to one key and counts reads
type failingBackend struct {
	cache.Cache
	failKey string
	gets    int
}

func (b *failingBackend) Get(key string) ([]byte, bool) {
	b.gets++
	return b.Cache.Get(key)
}

func (b *failingBackend) Set(key string, value []byte, ttl time.Duration) error {
	if key == b.failKey {
		return eris.New("disk full")
	}
	return b.Cache.Set(key, value, ttl)
}

func TestImport_RollsBackOnWriteFailure(t *testing.T) {
	backend := &failingBackend{
		Cache:   cache.NewMemoryCache(cache.NoExpiration, time.Minute),
		failKey: "Meiji Era",
	}
	repo := NewKVRepository("overrides", backend)
	require.NoError(t, repo.Set("Edo Period", model.RegionMappingEntry{Countries: []string{"JP"}, Timeframe: "1603-1868"}))

	data := `[{"period":"Edo Period","countries":["CN"]},{"period":"Heian Period","countries":["JP"]},{"period":"Meiji Era","countries":["JP"]}]`
	n, err := Import(repo, []byte(data), model.SourceCustom)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Meiji Era")
	assert.Zero(t, n)

	edo, ok := repo.Get("Edo Period")
	require.True(t, ok)
	assert.Equal(t, []string{"JP"}, edo.Countries, "overwritten entry is restored")
	assert.Equal(t, "1603-1868", edo.Timeframe)

	_, ok = repo.Get("Heian Period")
	assert.False(t, ok, "new entry is removed")
}

func TestFindFold_DecodesOnlyMatch(t *testing.T) {
	backend := &failingBackend{Cache: cache.NewMemoryCache(cache.NoExpiration, time.Minute)}
	repo := NewKVRepository("overrides", backend)
	require.NoError(t, repo.Set("Ottoman Empire", model.RegionMappingEntry{Countries: []string{"TR"}}))
	require.NoError(t, backend.Cache.Set("Broken Realm", []byte("{not json"), cache.NoExpiration))

	key, entry, ok := FindFold(repo, "OTTOMAN EMPIRE")
	require.True(t, ok)
	assert.Equal(t, "Ottoman Empire", key)
	assert.Equal(t, []string{"TR"}, entry.Countries)
	assert.Equal(t, 2, backend.gets, "exact miss plus the folded key, the broken entry is never read")
}

func TestImport_FailsClosed(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"invalid json", `[{"period":`, ErrImportInvalidJSON},
		{"not a collection", `"Viking Age"`, ErrImportInvalidJSON},
		{"empty", ``, ErrImportInvalidJSON},
		{"no valid codes", `[{"period":"Atlantis","countries":["123","x"]}]`, ErrImportNoEntries},
		{"missing period", `[{"period":"Edo Period","countries":["JP"]},{"countries":["NO"]}]`, ErrImportNoPeriod},
		{"empty array", `[]`, ErrImportNoEntries},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepo(t)
			_, err := Import(repo, []byte(tt.data), model.SourceCustom)
			require.Error(t, err)
			assert.True(t, eris.Is(err, tt.want), "got %v", err)

			records, err := repo.List()
			require.NoError(t, err)
			assert.Empty(t, records, "a failed import must not write anything")
		})
	}
}

func TestExportClearReimport_RoundTrip(t *testing.T) {
	repo := newRepo(t)
	require.NoError(t, repo.Set("Viking Age", model.RegionMappingEntry{Countries: []string{"NO", "SE", "DK", "IS"}, Timeframe: "793–1066 CE"}))
	require.NoError(t, repo.Set("Edo Period", model.RegionMappingEntry{Countries: []string{"JP"}, Description: "Tokugawa shogunate"}))

	before, err := Export(repo)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, before))
	require.NoError(t, repo.Clear())

	_, err = Import(repo, buf.Bytes(), model.SourceCustom)
	require.NoError(t, err)

	after, err := Export(repo)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestWriteCSV_Quoting(t *testing.T) {
	entries := []TransferEntry{
		{Period: "Austro-Hungarian Empire", Countries: []string{"AT", "HU"}, Timeframe: "1867–1918", Description: `Dual monarchy, "k.u.k."`},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, entries))

	assert.Contains(t, buf.String(), `"Dual monarchy, ""k.u.k."""`)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"period", "countries", "timeframe", "description"}, rows[0])
	assert.Equal(t, "AT HU", rows[1][1])
	assert.Equal(t, `Dual monarchy, "k.u.k."`, rows[1][3])
}
