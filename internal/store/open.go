package store

import (
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ppiankov/eramap/internal/cache"
)

// Namespaces used by the two repositories
const (
	NamespaceOverrides   = "overrides"
	NamespaceResolutions = "resolutions"
)

// Options selects and configures the persistence backend
type Options struct {
	Driver     string // layered (default), disk, sqlite, memory
	DataDir    string // root directory for disk backends
	SQLitePath string // database path for the sqlite driver
}

// Stores bundles the custom override store and the resolution cache
type Stores struct {
	Overrides   *KVRepository
	Resolutions *KVRepository
	db          *sql.DB
}

// Close releases any database handle held by the stores
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Open builds both repositories on the configured backend
func Open(opts Options) (*Stores, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = "layered"
	}

	backend := func(namespace string) cache.Cache {
		dir := filepath.Join(opts.DataDir, namespace)
		switch driver {
		case "disk":
			return cache.NewDiskCache(dir, cache.NoExpiration)
		case "memory":
			return cache.NewMemoryCache(cache.NoExpiration, 10*time.Minute)
		default:
			return cache.NewLayeredCache(cache.NoExpiration, dir, cache.NoExpiration)
		}
	}

	switch driver {
	case "layered", "disk", "memory":
		if driver != "memory" && opts.DataDir == "" {
			return nil, eris.Errorf("store: data dir required for %s driver", driver)
		}
		return &Stores{
			Overrides:   NewKVRepository(NamespaceOverrides, backend(NamespaceOverrides)),
			Resolutions: NewKVRepository(NamespaceResolutions, backend(NamespaceResolutions)),
		}, nil

	case "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = filepath.Join(opts.DataDir, "eramap.db")
		}
		db, err := cache.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		return &Stores{
			Overrides:   NewKVRepository(NamespaceOverrides, cache.NewSQLiteCache(db, NamespaceOverrides, cache.NoExpiration)),
			Resolutions: NewKVRepository(NamespaceResolutions, cache.NewSQLiteCache(db, NamespaceResolutions, cache.NoExpiration)),
			db:          db,
		}, nil

	default:
		return nil, eris.Errorf("store: unknown driver %q (supported: layered, disk, sqlite, memory)", opts.Driver)
	}
}
