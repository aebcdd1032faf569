package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const diskSuffix = ".cache"

// DiskCache implements persistent disk-based caching, one JSON file per key
type DiskCache struct {
	dir string
	ttl time.Duration
	mu  sync.Mutex
}

// NewDiskCache creates a new disk cache rooted at dir
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir: dir,
		ttl: ttl,
	}
}

type cacheEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero = never
}

func (e cacheEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Get retrieves a value from the disk cache. Unreadable or corrupt files are
// treated as a miss.
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	entry, err := readEntry(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("ignoring unreadable cache entry",
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return nil, false
	}

	// Check expiration
	if entry.expired(time.Now()) {
		c.mu.Lock()
		_ = os.Remove(path)
		c.mu.Unlock()
		return nil, false
	}

	return entry.Data, true
}

// Set stores a value in the disk cache
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	entry := cacheEntry{
		Key:  key,
		Data: value,
	}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "disk cache: marshal entry")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Ensure directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return eris.Wrap(err, "disk cache: create dir")
	}

	// Write through a temp file so readers never observe a partial entry
	path := c.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return eris.Wrap(err, "disk cache: write file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrap(err, "disk cache: rename file")
	}

	return nil
}

// Delete removes a value from the disk cache; missing keys are a no-op
func (c *DiskCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "disk cache: delete %q", key)
	}
	return nil
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return eris.Wrap(os.RemoveAll(c.dir), "disk cache: clear")
}

// Keys lists the original keys of all unexpired entries, sorted
func (c *DiskCache) Keys() ([]string, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, eris.Wrap(err, "disk cache: read dir")
	}

	now := time.Now()
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), diskSuffix) {
			continue
		}
		entry, err := readEntry(filepath.Join(c.dir, f.Name()))
		if err != nil || entry.expired(now) {
			continue
		}
		keys = append(keys, entry.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, CacheKey(key)+diskSuffix)
}

func readEntry(path string) (cacheEntry, error) {
	var entry cacheEntry
	data, err := os.ReadFile(path)
	if err != nil {
		return entry, err
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, eris.Wrap(err, "disk cache: unmarshal entry")
	}
	return entry, nil
}
