package reexec_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/pagebuilder/pkg/adapters/memory"
	"github.com/aretw0/pagebuilder/pkg/dirty"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/reexec"
	"github.com/aretw0/pagebuilder/pkg/registry"
	"github.com/aretw0/pagebuilder/pkg/rpc"
	"github.com/aretw0/pagebuilder/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	registry *registry.Registry
	tracker  *dirty.Tracker
	store    *store.Store
	alerts   *memory.AlertCollector
	updated  [][]string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry: registry.NewRegistry(),
		tracker:  dirty.NewTracker(),
		alerts:   memory.NewAlertCollector(),
	}
	f.store = store.New(store.WithLifecycleHooks(domain.LifecycleHooks{
		OnViewUpdated: func(ctx context.Context, e *domain.PageEvent) {
			f.updated = append(f.updated, e.NodeIDs)
		},
	}))
	f.store.SetPage(context.Background(), domain.PageRequest{Page: &domain.Page{
		WebNodes: map[string]domain.NodeConfig{
			"n1": {"viewRepresentation": map[string]any{"currentValue": map[string]any{"v": 1}}},
			"a":  {},
			"b":  {},
		},
	}})
	return f
}

func (f *fixture) coordinator(backend *memory.Backend, opts ...reexec.Option) *reexec.Coordinator {
	base := []reexec.Option{
		reexec.WithAlertSink(f.alerts),
		reexec.WithPollInterval(time.Millisecond),
	}
	if backend != nil {
		base = append(base, reexec.WithBackend(backend))
	}
	return reexec.New(f.registry, f.tracker, f.store, append(base, opts...)...)
}

func valid() registry.Validator {
	return registry.ValidatorFunc(func(context.Context) (registry.Validity, error) {
		return registry.Validity{Valid: true}, nil
	})
}

func value(v any) registry.ValueProvider {
	return registry.ValueFunc(func(context.Context) (any, error) { return v, nil })
}

func finished(ids ...string) memory.Response {
	nodes := make(map[string]domain.NodeConfig, len(ids))
	for _, id := range ids {
		nodes[id] = domain.NodeConfig{"viewRepresentation": map[string]any{"label": "re-executed", "required": true}}
	}
	return memory.Response{Result: &domain.ReexecutionResult{
		ReexecutedNodes: ids,
		Page:            &domain.Page{WebNodes: nodes},
	}}
}

func TestTriggerReExecution_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.RegisterValidator("n1", valid())
	f.registry.RegisterProvider("n1", value(map[string]any{"v": 5}))
	backend := memory.NewBackend(finished("n1"))

	err := f.coordinator(backend).TriggerReExecution(ctx, "n1")
	require.NoError(t, err)

	assert.Empty(t, f.alerts.Alerts())
	assert.Equal(t, [][]string{{"n1"}}, f.updated, "updatePage is called for the re-executed node")
	assert.Empty(t, f.store.NodesReExecuting())
	assert.Equal(t, 0, f.store.ReexecutionUpdates())

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, rpc.MethodReexecutePage, calls[0].Method)
	assert.Equal(t, "n1", calls[0].NodeID)
	assert.Equal(t, map[string]any{"n1": map[string]any{"v": 5}}, calls[0].Values)

	cfg, _ := f.store.NodeConfig(domain.ViewWebNodes, "n1")
	assert.Equal(t, "re-executed", cfg.Representation()["label"])
	assert.False(t, cfg.Required(), "re-execution never makes a field required")

	assert.False(t, f.tracker.HasBaseline("n1"), "the clean value waits for the widget to settle")
	assert.True(t, f.store.IsLoading("n1"))
	assert.False(t, f.store.IsLoading("a"), "widgets that are not mounted are not waited for")
}

func TestTriggerReExecution_ReleasesCleanValues(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.RegisterProvider("n1", value(1))
	require.NoError(t, f.tracker.MarkClean("n1", 1))
	require.NoError(t, f.tracker.MarkClean("b", "restored"))
	backend := memory.NewBackend(finished("n1", "b"))

	require.NoError(t, f.coordinator(backend).TriggerReExecution(ctx, "n1"))

	assert.Empty(t, f.tracker.IDs())
	assert.Equal(t, []string{"n1"}, f.store.LoadingNodes())
}

func TestTriggerReExecution_ValidationFailure(t *testing.T) {
	cases := map[string]registry.Validator{
		"Validator Error": registry.ValidatorFunc(func(context.Context) (registry.Validity, error) {
			return registry.Validity{}, errors.New("widget crashed")
		}),
		"Invalid Value": registry.ValidatorFunc(func(context.Context) (registry.Validity, error) {
			return registry.Validity{Valid: false, Message: "required"}, nil
		}),
	}
	for name, validator := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			var valuesCalled atomic.Bool
			f.registry.RegisterValidator("n1", validator)
			f.registry.RegisterProvider("n1", registry.ValueFunc(func(context.Context) (any, error) {
				valuesCalled.Store(true)
				return 1, nil
			}))
			backend := memory.NewBackend(finished("n1"))

			err := f.coordinator(backend).TriggerReExecution(context.Background(), "n1")

			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.False(t, valuesCalled.Load(), "values are never fetched")
			assert.Empty(t, backend.Calls())
			alerts := f.alerts.Alerts()
			require.Len(t, alerts, 1)
			assert.Equal(t, "Client-side validation failed. Please check the page for errors.", alerts[0].Message)
			assert.Equal(t, domain.AlertError, alerts[0].Level)
		})
	}
}

func TestTriggerReExecution_RetrievalFailure(t *testing.T) {
	f := newFixture(t)
	f.registry.RegisterValidator("n1", valid())
	f.registry.RegisterProvider("n1", registry.ValueFunc(func(context.Context) (any, error) {
		return nil, errors.New("not mounted")
	}))
	backend := memory.NewBackend(finished("n1"))

	err := f.coordinator(backend).TriggerReExecution(context.Background(), "n1")

	var rerr *domain.ValueRetrievalError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "n1", rerr.NodeID)
	assert.Empty(t, backend.Calls())
	alerts := f.alerts.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Retrieving page values failed. Please check the page for errors.", alerts[0].Message)
}

func TestApplyResult_PartialResetWithoutPage(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(nil)

	shouldPoll, err := c.ApplyResult(context.Background(), &domain.ReexecutionResult{
		ResetNodes:      []string{"a", "b"},
		ReexecutedNodes: []string{"b"},
	})
	require.NoError(t, err)
	assert.True(t, shouldPoll)
	assert.Equal(t, []string{"a"}, f.store.NodesReExecuting())
	assert.Equal(t, 1, f.store.ReexecutionUpdates())
	assert.Empty(t, f.updated, "updatePage is not called")
}

func TestApplyResult_PageWithoutReexecutedNodes(t *testing.T) {
	f := newFixture(t)
	c := f.coordinator(nil)

	shouldPoll, err := c.ApplyResult(context.Background(), &domain.ReexecutionResult{
		Page: &domain.Page{WebNodes: map[string]domain.NodeConfig{"a": {"x": 1}, "b": {"x": 2}}},
	})
	require.NoError(t, err)
	assert.False(t, shouldPoll)
	assert.Equal(t, [][]string{{"a", "b"}}, f.updated, "every node of the page is applied")
}

func TestApplyResult_Malformed(t *testing.T) {
	f := newFixture(t)
	f.store.SetNodesReExecuting(context.Background(), []string{"a"})
	c := f.coordinator(nil)

	shouldPoll, err := c.ApplyResult(context.Background(), &domain.ReexecutionResult{})
	assert.ErrorIs(t, err, domain.ErrMalformedResult)
	assert.False(t, shouldPoll)
	assert.Empty(t, f.store.NodesReExecuting())
	assert.Len(t, f.alerts.Alerts(), 1)
}

func TestTriggerReExecution_Polling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.registry.RegisterProvider("n1", value(1))
	backend := memory.NewBackend(
		memory.Response{Result: &domain.ReexecutionResult{ResetNodes: []string{"n1", "a"}}},
		memory.Response{Result: &domain.ReexecutionResult{ResetNodes: []string{"n1", "a"}, ReexecutedNodes: []string{"n1"}}},
		finished("n1", "a"),
	)

	var polls []int
	var pending [][]string
	c := f.coordinator(backend, reexec.WithLifecycleHooks(domain.LifecycleHooks{
		OnReexecutionPoll: func(ctx context.Context, e *domain.ReexecutionEvent) {
			polls = append(polls, e.Round)
			pending = append(pending, e.Pending)
		},
	}))

	require.NoError(t, c.TriggerReExecution(ctx, "n1"))

	calls := backend.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, rpc.MethodGetPage, calls[1].Method)
	assert.Equal(t, []string{"n1", "a"}, calls[1].ResetNodes)
	assert.Equal(t, []string{"n1", "a"}, calls[2].ResetNodes)
	assert.Equal(t, []int{1, 2}, polls)
	assert.ElementsMatch(t, []string{"n1", "a"}, pending[0])
	assert.Equal(t, []string{"a"}, pending[1], "finished nodes leave the re-executing set")
	assert.Empty(t, f.store.NodesReExecuting())
	assert.Empty(t, f.alerts.Alerts())
}

func TestTriggerReExecution_RemoteError(t *testing.T) {
	f := newFixture(t)
	before := f.store.Page()
	backend := memory.NewBackend(
		memory.Response{Result: &domain.ReexecutionResult{ResetNodes: []string{"n1"}}},
		memory.Response{Err: &domain.RemoteExecutionError{Method: rpc.MethodGetPage, Message: "Node n1 failed"}},
	)

	err := f.coordinator(backend).TriggerReExecution(context.Background(), "n1")

	var remote *domain.RemoteExecutionError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "n1", remote.NodeID)

	alerts := f.alerts.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, rpc.MethodGetPage, alerts[0].Method)
	assert.Equal(t, "n1", alerts[0].NodeID)
	assert.Equal(t, "Node n1 failed", alerts[0].Message)

	assert.Empty(t, f.store.NodesReExecuting(), "re-executing set is cleared")
	assert.Equal(t, before, f.store.Page(), "page state is untouched")
}

func TestTriggerReExecution_MissingTransport(t *testing.T) {
	f := newFixture(t)

	err := f.coordinator(nil).TriggerReExecution(context.Background(), "n1")

	var unsupported *domain.TransportUnsupportedError
	require.ErrorAs(t, err, &unsupported)
	alerts := f.alerts.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "Current browser is not supported.", alerts[0].Message)
	assert.Equal(t, rpc.MethodReexecutePage, alerts[0].Method)
}

func TestTriggerReExecution_PollLimit(t *testing.T) {
	f := newFixture(t)
	running := memory.Response{Result: &domain.ReexecutionResult{ResetNodes: []string{"n1"}}}
	backend := memory.NewBackend(running, running, running, running)

	err := f.coordinator(backend, reexec.WithMaxPolls(2)).TriggerReExecution(context.Background(), "n1")

	assert.ErrorIs(t, err, reexec.ErrPollLimit)
	assert.Len(t, backend.Calls(), 3)
	assert.Len(t, f.alerts.Alerts(), 1)
	assert.Empty(t, f.store.NodesReExecuting())
}

func TestTriggerReExecution_Cancelled(t *testing.T) {
	f := newFixture(t)
	running := memory.Response{Result: &domain.ReexecutionResult{ResetNodes: []string{"n1"}}}
	backend := memory.NewBackend(running)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.coordinator(backend, reexec.WithPollInterval(time.Hour)).TriggerReExecution(ctx, "n1")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, f.store.NodesReExecuting())
	assert.Empty(t, f.alerts.Alerts(), "cancellation is not a user error")
}

// replacingBackend swaps the page while the request is in flight.
type replacingBackend struct {
	store *store.Store
}

func (b *replacingBackend) ReexecutePage(ctx context.Context, nodeID string, values map[string]any) (*domain.ReexecutionResult, error) {
	b.store.SetPage(ctx, domain.PageRequest{Page: &domain.Page{WebNodes: map[string]domain.NodeConfig{"other": {}}}})
	return &domain.ReexecutionResult{ReexecutedNodes: []string{nodeID}, Page: &domain.Page{
		WebNodes: map[string]domain.NodeConfig{nodeID: {}},
	}}, nil
}

func (b *replacingBackend) GetPage(ctx context.Context, resetNodes []string) (*domain.ReexecutionResult, error) {
	return nil, errors.New("unexpected poll")
}

func TestTriggerReExecution_StalePage(t *testing.T) {
	f := newFixture(t)
	c := reexec.New(f.registry, f.tracker, f.store,
		reexec.WithBackend(&replacingBackend{store: f.store}),
		reexec.WithAlertSink(f.alerts),
	)

	err := c.TriggerReExecution(context.Background(), "n1")

	assert.ErrorIs(t, err, domain.ErrStalePage)
	assert.Empty(t, f.alerts.Alerts())
	assert.Equal(t, []string{"other"}, f.store.NodeIDs(), "the new page is not touched")
}

func TestTriggerReExecution_Hooks(t *testing.T) {
	f := newFixture(t)
	var started, done int
	var doneErr error
	var alerted []domain.Alert
	c := f.coordinator(memory.NewBackend(), reexec.WithLifecycleHooks(domain.LifecycleHooks{
		OnReexecutionStart: func(ctx context.Context, e *domain.ReexecutionEvent) { started++ },
		OnReexecutionDone: func(ctx context.Context, e *domain.ReexecutionEvent) {
			done++
			doneErr = e.Err
		},
		OnAlert: func(ctx context.Context, a domain.Alert) { alerted = append(alerted, a) },
	}))

	err := c.TriggerReExecution(context.Background(), "n1")
	assert.ErrorIs(t, err, memory.ErrScriptExhausted)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, done)
	assert.ErrorIs(t, doneErr, memory.ErrScriptExhausted)
	assert.Len(t, alerted, 1)
	assert.False(t, alerted[0].Time.IsZero())
}

func TestPushValidationErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var got string
	f.registry.RegisterErrorSink("n1", registry.ErrorSinkFunc(func(ctx context.Context, msg string) error {
		got = msg
		return nil
	}))
	f.registry.RegisterErrorSink("n2", registry.ErrorSinkFunc(func(ctx context.Context, msg string) error {
		return errors.New("unmounted")
	}))
	c := f.coordinator(nil)

	assert.True(t, c.PushValidationErrors(ctx, map[string]string{"n1": "too large"}))
	assert.Equal(t, "too large", got)
	assert.False(t, c.PushValidationErrors(ctx, map[string]string{"n1": "x", "n2": "y"}))
}
