package media

import (
	"context"

	"github.com/ppiankov/eramap/internal/model"
)

// Store lists media items and writes back resolved countries
type Store interface {
	List(ctx context.Context) ([]model.MediaItem, error)
	UpdateCountries(ctx context.Context, id string, countries []string) error
}

var (
	_ Store = (*Client)(nil)
	_ Store = (*FileStore)(nil)
)
