package media

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/model"
	"github.com/ppiankov/eramap/internal/regions"
)

// FileStore is a media store backed by a local JSON array of items.
// Items without an id are numbered by position.
type FileStore struct {
	path  string
	mu    sync.Mutex
	items []model.MediaItem
	index map[string]int
}

// OpenFile loads media items from a JSON file
func OpenFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read media file")
	}

	var items []model.MediaItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, eris.Wrapf(err, "decode media file %s", filepath.Base(path))
	}

	index := make(map[string]int, len(items))
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = strconv.Itoa(i + 1)
		}
		if _, dup := index[items[i].ID]; dup {
			return nil, eris.Errorf("duplicate media id %q", items[i].ID)
		}
		index[items[i].ID] = i
	}

	return &FileStore{path: path, items: items, index: index}, nil
}

// List returns a copy of the items
func (f *FileStore) List(ctx context.Context) ([]model.MediaItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.MediaItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

// UpdateCountries sets the countries of one item and rewrites the file
func (f *FileStore) UpdateCountries(ctx context.Context, id string, countries []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.index[id]
	if !ok {
		return eris.Errorf("media item %q not found", id)
	}
	f.items[i].Countries = regions.NormalizeCodes(countries)
	return f.save()
}

func (f *FileStore) save() error {
	data, err := json.MarshalIndent(f.items, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal media items")
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrap(err, "write media file")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return eris.Wrap(err, "replace media file")
	}
	return nil
}
