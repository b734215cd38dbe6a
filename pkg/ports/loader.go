package ports

import (
	"context"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// PageLoader retrieves page documents by name.
type PageLoader interface {
	// LoadPage returns the page request stored under name.
	LoadPage(ctx context.Context, name string) (*domain.PageRequest, error)

	// ListPages returns the names of all available pages.
	ListPages(ctx context.Context) ([]string, error)
}

// Watchable is implemented by loaders that can notify about changes.
// This is typically used for hot-reload during development.
type Watchable interface {
	// Watch returns a channel that receives the name of every page that
	// changed. The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
