package pagebuilder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/dirty"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/interactivity"
	"github.com/aretw0/pagebuilder/pkg/ports"
	"github.com/aretw0/pagebuilder/pkg/reexec"
	"github.com/aretw0/pagebuilder/pkg/registry"
	"github.com/aretw0/pagebuilder/pkg/rpc"
	"github.com/aretw0/pagebuilder/pkg/store"
)

// Widget bundles the callbacks a widget registers when it mounts. Nil
// fields are skipped.
type Widget struct {
	Provider    registry.ValueProvider
	Validator   registry.Validator
	ErrorSink   registry.ErrorSink
	OnSelection interactivity.Listener
}

// App is the state of one page session: the page store, the widget
// registry, the clean value baseline and the re-execution coordinator.
// Safe for concurrent use.
type App struct {
	id          string
	registry    *registry.Registry
	tracker     *dirty.Tracker
	store       *store.Store
	hub         *interactivity.Hub
	coordinator *reexec.Coordinator
	nodes       *rpc.NodeService

	mu           sync.Mutex
	unsubscribes map[string]func()

	cfg    config
	logger *slog.Logger
}

type config struct {
	backend      ports.ReexecutionBackend
	client       *rpc.Client
	target       rpc.Target
	alerts       ports.AlertSink
	hooks        domain.LifecycleHooks
	pollInterval time.Duration
	maxPolls     int
	mountRetries int
	mountDelay   time.Duration
}

// Option configures an App.
type Option func(*App)

// WithLogger sets a custom structured logger for the App and its components.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Repeated calls merge.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *App) {
		a.cfg.hooks = a.cfg.hooks.Merge(hooks)
	}
}

// WithAlertSink sets where user visible alerts go.
func WithAlertSink(s ports.AlertSink) Option {
	return func(a *App) {
		a.cfg.alerts = s
	}
}

// WithBackend sets the re-execution backend directly.
func WithBackend(b ports.ReexecutionBackend) Option {
	return func(a *App) {
		a.cfg.backend = b
	}
}

// WithRPCClient talks to the backend through c for the given workflow.
// It is ignored for re-execution when WithBackend is also set.
func WithRPCClient(c *rpc.Client, target rpc.Target) Option {
	return func(a *App) {
		a.cfg.client = c
		a.cfg.target = target
	}
}

// WithPolling configures the re-execution poll loop. maxPolls 0 is unbounded.
func WithPolling(interval time.Duration, maxPolls int) Option {
	return func(a *App) {
		a.cfg.pollInterval = interval
		a.cfg.maxPolls = maxPolls
	}
}

// WithMountBarrier bounds how long the App waits for a widget to mount.
func WithMountBarrier(retries int, delay time.Duration) Option {
	return func(a *App) {
		a.cfg.mountRetries = retries
		a.cfg.mountDelay = delay
	}
}

// New creates an App for session id.
func New(id string, opts ...Option) *App {
	a := &App{
		id:           id,
		unsubscribes: make(map[string]func()),
		cfg: config{
			pollInterval: reexec.DefaultPollInterval,
			mountRetries: store.DefaultMountRetries,
			mountDelay:   store.DefaultMountDelay,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	logger := a.logger.With("session_id", id)

	a.tracker = dirty.NewTracker(dirty.WithLogger(logger))
	a.registry = registry.NewRegistry(
		registry.WithLogger(logger),
		registry.WithDeregisterHook(a.tracker.Clear),
	)
	a.hub = interactivity.NewHub(interactivity.WithLogger(logger))
	a.store = store.New(
		store.WithLogger(logger),
		store.WithInteractivity(a.hub),
		store.WithMountBarrier(a.cfg.mountRetries, a.cfg.mountDelay),
		store.WithLifecycleHooks(a.cfg.hooks),
	)

	backend := a.cfg.backend
	if a.cfg.client != nil {
		a.nodes = rpc.NewNodeService(a.cfg.client, a.cfg.target)
		if backend == nil {
			backend = rpc.NewReexecutionService(a.cfg.client, a.cfg.target)
		}
	}
	coordOpts := []reexec.Option{
		reexec.WithLogger(logger),
		reexec.WithAlertSink(a.cfg.alerts),
		reexec.WithPollInterval(a.cfg.pollInterval),
		reexec.WithMaxPolls(a.cfg.maxPolls),
		reexec.WithLifecycleHooks(a.cfg.hooks),
	}
	if backend != nil {
		coordOpts = append(coordOpts, reexec.WithBackend(backend))
	}
	a.coordinator = reexec.New(a.registry, a.tracker, a.store, coordOpts...)
	return a
}

// ID returns the session id.
func (a *App) ID() string { return a.id }

// Store returns the page store.
func (a *App) Store() *store.Store { return a.store }

// Registry returns the widget registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Tracker returns the clean value tracker.
func (a *App) Tracker() *dirty.Tracker { return a.tracker }

// Hub returns the selection hub.
func (a *App) Hub() *interactivity.Hub { return a.hub }

// Coordinator returns the re-execution coordinator.
func (a *App) Coordinator() *reexec.Coordinator { return a.coordinator }

// NodeService returns the node service, or nil without an RPC client.
func (a *App) NodeService() *rpc.NodeService { return a.nodes }

// Load replaces the page. Widgets of the previous page are unmounted and
// their clean values forgotten.
func (a *App) Load(ctx context.Context, req domain.PageRequest) {
	a.unmountAll()
	a.tracker.Reset()
	a.store.SetPage(ctx, req)
	a.logger.Info("Page loaded", "session_id", a.id, "nodes", len(a.store.NodeIDs()))
}

// Mount registers the callbacks of widget id. The first value the widget
// reports once it finished loading becomes its clean value; see CaptureClean.
func (a *App) Mount(id string, w Widget) {
	if w.Provider != nil {
		a.registry.RegisterProvider(id, w.Provider)
	}
	if w.Validator != nil {
		a.registry.RegisterValidator(id, w.Validator)
	}
	if w.ErrorSink != nil {
		a.registry.RegisterErrorSink(id, w.ErrorSink)
	}
	if w.OnSelection != nil {
		unsubscribe := a.hub.Subscribe(id, w.OnSelection)
		a.mu.Lock()
		if prev, ok := a.unsubscribes[id]; ok {
			prev()
		}
		a.unsubscribes[id] = unsubscribe
		a.mu.Unlock()
	}
}

// Unmount removes every callback of widget id and its clean value.
func (a *App) Unmount(id string) {
	a.registry.Deregister(id)
	a.tracker.Clear(id)
	a.store.SetNodeLoading(id, false)
	a.mu.Lock()
	if unsubscribe, ok := a.unsubscribes[id]; ok {
		unsubscribe()
		delete(a.unsubscribes, id)
	}
	a.mu.Unlock()
}

func (a *App) unmountAll() {
	a.registry.Clear()
	a.mu.Lock()
	for id, unsubscribe := range a.unsubscribes {
		unsubscribe()
		delete(a.unsubscribes, id)
	}
	a.mu.Unlock()
}

// CaptureClean waits for widget id to finish loading and records its value
// as the clean baseline. A widget that does not mount in time is skipped
// with the soft *domain.MountTimeoutError.
func (a *App) CaptureClean(ctx context.Context, id string) error {
	if err := a.store.WaitForMount(ctx, id); err != nil {
		a.logger.Warn("Clean value not captured", "node_id", id, "err", err)
		return err
	}
	v, err := a.registry.Value(ctx, id)
	if err != nil {
		return err
	}
	return a.tracker.MarkClean(id, v)
}

// Settle marks widget id as loaded. When it has no clean value, as after a
// re-execution replaced its configuration, the value it reports now becomes
// the baseline.
func (a *App) Settle(ctx context.Context, id string) error {
	a.store.SetNodeLoading(id, false)
	if a.tracker.HasBaseline(id) {
		return nil
	}
	return a.CaptureClean(ctx, id)
}

// UpdateView applies a widget update event to the page.
func (a *App) UpdateView(ctx context.Context, u domain.ViewUpdate) error {
	return a.store.UpdateView(ctx, u)
}

// Dirty returns the canonical current value of every widget that differs
// from its clean value.
func (a *App) Dirty(ctx context.Context) (map[string]string, error) {
	return a.tracker.DirtySet(ctx, a.registry.Providers())
}

// IsDirty reports whether any widget differs from its clean value.
func (a *App) IsDirty(ctx context.Context) (bool, error) {
	return a.tracker.IsPageDirty(ctx, a.registry.Providers())
}

// TriggerReExecution re-executes nodeID with the current page values.
func (a *App) TriggerReExecution(ctx context.Context, nodeID string) error {
	if a.store.Page() == nil {
		return domain.ErrNoPage
	}
	return a.coordinator.TriggerReExecution(ctx, nodeID)
}

// PushValidationErrors forwards server side validation messages to widgets.
func (a *App) PushValidationErrors(ctx context.Context, messages map[string]string) bool {
	return a.coordinator.PushValidationErrors(ctx, messages)
}

// PublishSelection forwards a selection made in nodeID to the widgets the
// page's translators target, and to the backend when an RPC client is set.
func (a *App) PublishSelection(ctx context.Context, nodeID, mode string, selection []string) (int, error) {
	delivered := a.hub.Publish(nodeID, selection)
	if a.nodes == nil {
		return delivered, nil
	}
	if _, err := a.nodes.UpdateDataPointSelection(ctx, nodeID, mode, selection); err != nil {
		return delivered, fmt.Errorf("failed to publish selection of %s: %w", nodeID, err)
	}
	return delivered, nil
}

// Snapshot captures the persistent part of the session.
func (a *App) Snapshot() *domain.Snapshot {
	snap := domain.NewSnapshot(a.id)
	snap.Page = a.store.Page()
	snap.ReportActionID = a.store.ReportActionID()
	snap.Headless = a.store.Headless()
	snap.CleanValues = a.tracker.Snapshot()
	return snap
}

// Restore replaces the session with a snapshot taken by Snapshot.
func (a *App) Restore(ctx context.Context, snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	a.Load(ctx, domain.PageRequest{
		Page:           snap.Page,
		ReportActionID: snap.ReportActionID,
		Headless:       snap.Headless,
	})
	a.tracker.Restore(snap.CleanValues)
}
