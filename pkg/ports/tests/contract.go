package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/ports"
)

// PageLoaderContractTest is a reusable test suite that verifies if an adapter
// complies with ports.PageLoader. expected maps page names to the node ids
// each page must contain.
func PageLoaderContractTest(t *testing.T, loader ports.PageLoader, expected map[string][]string) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadPage_Success", func(t *testing.T) {
		for name, ids := range expected {
			req, err := loader.LoadPage(ctx, name)
			if err != nil {
				t.Fatalf("unexpected error loading page %s: %v", name, err)
			}
			if req.Page == nil {
				t.Fatalf("page %s has no document", name)
			}
			got := req.Page.NodeIDs()
			if len(got) != len(ids) {
				t.Errorf("page %s: got nodes %v, want %v", name, got, ids)
				continue
			}
			for _, id := range ids {
				if _, _, ok := req.Page.Node(id); !ok {
					t.Errorf("page %s: node %s missing", name, id)
				}
			}
		}
	})

	t.Run("LoadPage_NotFound", func(t *testing.T) {
		_, err := loader.LoadPage(ctx, "non-existent-page")
		if !errors.Is(err, domain.ErrPageNotFound) {
			t.Errorf("expected ErrPageNotFound for non-existent page, got %v", err)
		}
	})

	t.Run("ListPages", func(t *testing.T) {
		names, err := loader.ListPages(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing pages: %v", err)
		}

		if len(names) != len(expected) {
			t.Errorf("expected %d pages, got %d", len(expected), len(names))
		}

		lookup := make(map[string]bool)
		for _, name := range names {
			lookup[name] = true
		}

		for name := range expected {
			if !lookup[name] {
				t.Errorf("page %s missing from list", name)
			}
		}
	})
}
