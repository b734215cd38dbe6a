package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/interactivity"
	"github.com/aretw0/pagebuilder/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage() *domain.Page {
	return &domain.Page{
		WebNodes: map[string]domain.NodeConfig{
			"w1": {
				"viewRepresentation": map[string]any{
					"label":        "Integer",
					"currentValue": map[string]any{"x": 1},
				},
			},
		},
		Configuration: &domain.PageConfiguration{
			SelectionTranslators: []domain.SelectionTranslator{{ID: 1, SourceID: "w1", TargetIDs: []string{"w2"}}},
		},
	}
}

func TestStore_SetPage(t *testing.T) {
	hub := interactivity.NewHub()
	hub.RegisterTranslator(domain.SelectionTranslator{ID: 99, SourceID: "old"})

	var events []*domain.PageEvent
	s := store.New(
		store.WithInteractivity(hub),
		store.WithLifecycleHooks(domain.LifecycleHooks{
			OnPageSet: func(ctx context.Context, e *domain.PageEvent) { events = append(events, e) },
		}),
	)
	ctx := context.Background()
	assert.Equal(t, store.StatusEmpty, s.Status())

	s.SetNodeLoading("w1", true)
	s.SetNodesReExecuting(ctx, []string{"w1"})
	s.SetPage(ctx, domain.PageRequest{Page: testPage()})

	assert.Equal(t, store.StatusLoaded, s.Status())
	assert.Equal(t, uint64(1), s.Generation())
	assert.True(t, s.IsView())
	assert.False(t, s.IsDialog())
	assert.False(t, s.IsReporting())
	assert.Empty(t, s.LoadingNodes(), "loading set is reset")
	assert.Empty(t, s.NodesReExecuting(), "re-executing set is reset")
	assert.Equal(t, 0, s.ReexecutionUpdates())

	translators := hub.Translators()
	require.Len(t, translators, 1, "old translators are cleared")
	assert.Equal(t, 1, translators[0].ID)

	require.Len(t, events, 1)
	assert.Equal(t, []string{"w1"}, events[0].NodeIDs)

	t.Run("Page Is Copied", func(t *testing.T) {
		p := s.Page()
		p.WebNodes["w1"]["mutated"] = true
		cfg, _ := s.NodeConfig(domain.ViewWebNodes, "w1")
		assert.NotContains(t, cfg, "mutated")
	})

	t.Run("Nil Page Empties Store", func(t *testing.T) {
		s.SetPage(ctx, domain.PageRequest{})
		assert.Equal(t, store.StatusEmpty, s.Status())
		assert.Nil(t, s.Page())
	})
}

func TestStore_LayoutFlags(t *testing.T) {
	ctx := context.Background()
	dialogPage := &domain.Page{NodeViews: map[string]domain.NodeConfig{
		"d": {"extensionConfig": map[string]any{"extensionType": "dialog"}},
	}}

	cases := []struct {
		name                    string
		req                     domain.PageRequest
		dialog, reporting, view bool
	}{
		{"Plain View", domain.PageRequest{Page: testPage()}, false, false, true},
		{"Dialog", domain.PageRequest{Page: dialogPage}, true, false, false},
		{"Reporting", domain.PageRequest{Page: testPage(), ReportActionID: "r1"}, false, true, false},
		{"Headless", domain.PageRequest{Page: testPage(), Headless: true}, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := store.New()
			s.SetPage(ctx, tc.req)
			assert.Equal(t, tc.dialog, s.IsDialog())
			assert.Equal(t, tc.reporting, s.IsReporting())
			assert.Equal(t, tc.view, s.IsView())
		})
	}
}

func TestStore_UpdateView_Paths(t *testing.T) {
	ctx := context.Background()
	s := store.New()
	s.SetPage(ctx, domain.PageRequest{Page: testPage()})

	err := s.UpdateView(ctx, domain.ViewUpdate{
		NodeID: "w1",
		Update: map[string]any{
			"viewRepresentation.currentValue.x":    2,
			"viewRepresentation.newField.deep":     "created",
			"viewRepresentation..broken":           "skipped",
			"viewRepresentation.currentValue.list": []any{1, 2},
		},
	})
	require.NoError(t, err)

	cfg, ok := s.NodeConfig(domain.ViewWebNodes, "w1")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"x": 2, "list": []any{1, 2}}, cfg.CurrentValue())
	assert.Equal(t, map[string]any{"deep": "created"}, cfg.Representation()["newField"])
	assert.Equal(t, "Integer", cfg.Representation()["label"], "untouched keys stay")

	t.Run("Unknown Node Is Created", func(t *testing.T) {
		require.NoError(t, s.UpdateView(ctx, domain.ViewUpdate{
			NodeID:   "v9",
			ViewType: domain.ViewNodeViews,
			Update:   map[string]any{"a.b": 1},
		}))
		cfg, ok := s.NodeConfig(domain.ViewNodeViews, "v9")
		require.True(t, ok)
		assert.Equal(t, domain.NodeConfig{"a": map[string]any{"b": 1}}, cfg)
	})

	t.Run("Missing Node ID", func(t *testing.T) {
		assert.Error(t, s.UpdateView(ctx, domain.ViewUpdate{Update: map[string]any{"a": 1}}))
	})
}

func TestStore_UpdateView_ReplaceStripsRequired(t *testing.T) {
	ctx := context.Background()
	s := store.New()
	s.SetPage(ctx, domain.PageRequest{Page: testPage()})

	replacement := domain.NodeConfig{"viewRepresentation": map[string]any{"required": true, "label": "New"}}
	require.NoError(t, s.UpdateView(ctx, domain.ViewUpdate{NodeID: "w1", Config: replacement}))

	cfg, _ := s.NodeConfig(domain.ViewWebNodes, "w1")
	assert.False(t, cfg.Required())
	assert.Equal(t, "New", cfg.Representation()["label"])
	assert.True(t, replacement.Required(), "caller's config is not mutated")

	require.NoError(t, s.UpdateView(ctx, domain.ViewUpdate{NodeID: "w1"}))
	_, ok := s.NodeConfig(domain.ViewWebNodes, "w1")
	assert.False(t, ok, "nil config removes the node")
}

func TestStore_UpdatePage(t *testing.T) {
	ctx := context.Background()
	hub := interactivity.NewHub()
	var updated [][]string
	s := store.New(
		store.WithInteractivity(hub),
		store.WithLifecycleHooks(domain.LifecycleHooks{
			OnViewUpdated: func(ctx context.Context, e *domain.PageEvent) { updated = append(updated, e.NodeIDs) },
		}),
	)
	s.SetPage(ctx, domain.PageRequest{Page: testPage()})

	incoming := &domain.Page{
		WebNodes: map[string]domain.NodeConfig{
			"w1": {"viewRepresentation": map[string]any{"label": "Re-executed", "required": true}},
			"w2": {"viewRepresentation": map[string]any{"label": "Ignored"}},
		},
		Configuration: &domain.PageConfiguration{
			SelectionTranslators: []domain.SelectionTranslator{{ID: 5, SourceID: "w1"}},
		},
	}
	s.UpdatePage(ctx, incoming, []string{"w1", "missing"})

	cfg, _ := s.NodeConfig(domain.ViewWebNodes, "w1")
	assert.Equal(t, "Re-executed", cfg.Representation()["label"])
	assert.False(t, cfg.Required())
	_, ok := s.NodeConfig(domain.ViewWebNodes, "w2")
	assert.False(t, ok, "only listed nodes are merged")

	assert.Len(t, hub.Translators(), 2)
	assert.Equal(t, [][]string{{"w1"}}, updated)
}

func TestStore_SetNodesReExecuting(t *testing.T) {
	ctx := context.Background()
	var changes int
	s := store.New(store.WithLifecycleHooks(domain.LifecycleHooks{
		OnReexecutingChanged: func(ctx context.Context, ids []string) { changes++ },
	}))
	s.SetPage(ctx, domain.PageRequest{Page: &domain.Page{WebNodes: map[string]domain.NodeConfig{"a": {}, "b": {}}}})

	assert.True(t, s.SetNodesReExecuting(ctx, []string{"a"}))
	assert.Equal(t, 1, s.ReexecutionUpdates())
	assert.Equal(t, store.StatusUpdating, s.Status())

	assert.False(t, s.SetNodesReExecuting(ctx, []string{"a"}), "same set is suppressed")
	assert.Equal(t, 1, s.ReexecutionUpdates())

	assert.True(t, s.SetAllNodesReExecuting(ctx))
	assert.ElementsMatch(t, []string{"a", "b"}, s.NodesReExecuting())
	assert.Equal(t, 2, s.ReexecutionUpdates())
	assert.False(t, s.SetNodesReExecuting(ctx, []string{"b", "a"}), "order does not matter")

	assert.True(t, s.SetNodesReExecuting(ctx, nil))
	assert.Equal(t, 0, s.ReexecutionUpdates())
	assert.False(t, s.IsNodeReExecuting("a"))
	assert.Equal(t, 3, changes)
}

func TestStore_SetNodesReExecutingDuplicates(t *testing.T) {
	ctx := context.Background()
	s := store.New()

	assert.True(t, s.SetNodesReExecuting(ctx, []string{"a", "b"}))
	assert.True(t, s.SetNodesReExecuting(ctx, []string{"a", "a"}), "b left the set")
	assert.Equal(t, []string{"a"}, s.NodesReExecuting())

	assert.False(t, s.SetNodesReExecuting(ctx, []string{"a"}))
	assert.True(t, s.SetNodesReExecuting(ctx, []string{"a", "b", "b"}))
	assert.Equal(t, []string{"a", "b"}, s.NodesReExecuting())
	assert.Equal(t, 3, s.ReexecutionUpdates())
}

func TestStore_WaitForMount(t *testing.T) {
	ctx := context.Background()

	t.Run("Not Loading Returns Immediately", func(t *testing.T) {
		s := store.New()
		assert.NoError(t, s.WaitForMount(ctx, "w1"))
	})

	t.Run("Released When Loading Ends", func(t *testing.T) {
		s := store.New(store.WithMountBarrier(100, 10*time.Millisecond))
		s.SetNodeLoading("w1", true)
		go func() {
			time.Sleep(20 * time.Millisecond)
			s.SetNodeLoading("w1", false)
		}()
		assert.NoError(t, s.WaitForMount(ctx, "w1"))
		assert.False(t, s.IsLoading("w1"))
	})

	t.Run("Bounded Wait", func(t *testing.T) {
		s := store.New(store.WithMountBarrier(3, 5*time.Millisecond))
		s.SetNodeLoading("w1", true)
		err := s.WaitForMount(ctx, "w1")
		var timeout *domain.MountTimeoutError
		require.ErrorAs(t, err, &timeout)
		assert.Equal(t, "w1", timeout.NodeID)
		assert.Equal(t, 15*time.Millisecond, timeout.Waited)
	})

	t.Run("Page Replacement Invalidates Wait", func(t *testing.T) {
		s := store.New(store.WithMountBarrier(100, 10*time.Millisecond))
		s.SetNodeLoading("w1", true)
		go func() {
			time.Sleep(10 * time.Millisecond)
			s.SetPage(ctx, domain.PageRequest{Page: testPage()})
		}()
		err := s.WaitForMount(ctx, "w1")
		assert.True(t, errors.Is(err, domain.ErrStalePage))
	})
}

func TestStore_Reporting(t *testing.T) {
	ctx := context.Background()
	s := store.New()
	s.SetPage(ctx, domain.PageRequest{Page: testPage(), ReportActionID: "report-1"})

	s.AddImageGenerationWaiting("w1")
	assert.False(t, s.ReportReady())

	s.ResolveImageGeneration("w1", "<svg/>")
	assert.True(t, s.ReportReady())
	assert.Equal(t, map[string]any{"w1": "<svg/>"}, s.ReportingContent())

	s.SetPage(ctx, domain.PageRequest{Page: testPage()})
	assert.Empty(t, s.ReportingContent(), "bookkeeping is reset on replacement")
	assert.False(t, s.ReportReady())
}
