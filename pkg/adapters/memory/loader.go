package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// Loader implements ports.PageLoader using an in-memory map.
type Loader struct {
	pages map[string]*domain.PageRequest
}

// NewLoader creates a loader serving the given page requests by name.
func NewLoader(pages map[string]*domain.PageRequest) *Loader {
	l := &Loader{pages: make(map[string]*domain.PageRequest, len(pages))}
	for name, req := range pages {
		l.pages[name] = clonePageRequest(req)
	}
	return l
}

// NewFromDocuments decodes generic documents (as produced by a YAML or JSON
// decoder) into pages. This improves DX for tests.
func NewFromDocuments(docs map[string]map[string]any) (*Loader, error) {
	l := &Loader{pages: make(map[string]*domain.PageRequest, len(docs))}
	for name, raw := range docs {
		page, err := domain.DecodePage(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode page %s: %w", name, err)
		}
		l.pages[name] = &domain.PageRequest{Page: page}
	}
	return l, nil
}

// LoadPage returns a copy of the named page request.
func (l *Loader) LoadPage(ctx context.Context, name string) (*domain.PageRequest, error) {
	req, ok := l.pages[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPageNotFound, name)
	}
	return clonePageRequest(req), nil
}

// ListPages returns all page names.
func (l *Loader) ListPages(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.pages))
	for k := range l.pages {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}

func clonePageRequest(req *domain.PageRequest) *domain.PageRequest {
	if req == nil {
		return &domain.PageRequest{}
	}
	out := *req
	out.Page = req.Page.Clone()
	return &out
}
