package reexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/dirty"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/aretw0/pagebuilder/pkg/ports"
	"github.com/aretw0/pagebuilder/pkg/registry"
	"github.com/aretw0/pagebuilder/pkg/rpc"
	"github.com/aretw0/pagebuilder/pkg/store"
)

// DefaultPollInterval is the delay between two poll rounds.
const DefaultPollInterval = 100 * time.Millisecond

// ErrPollLimit is returned when the backend is still re-executing after the
// configured number of polls.
var ErrPollLimit = errors.New("re-execution poll limit reached")

// msgMalformedResult is shown when the backend answers with neither a page
// nor a list of reset nodes.
const msgMalformedResult = "Re-execution returned an invalid result."

// Coordinator runs re-execution rounds for one page session.
type Coordinator struct {
	registry *registry.Registry
	tracker  *dirty.Tracker
	store    *store.Store
	backend  ports.ReexecutionBackend
	alerts   ports.AlertSink

	pollInterval time.Duration
	maxPolls     int
	hooks        domain.LifecycleHooks
	logger       *slog.Logger
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithBackend sets the remote side. Without a backend every round fails
// with domain.TransportUnsupportedError.
func WithBackend(b ports.ReexecutionBackend) Option {
	return func(c *Coordinator) {
		c.backend = b
	}
}

// WithAlertSink sets where user visible alerts go.
func WithAlertSink(s ports.AlertSink) Option {
	return func(c *Coordinator) {
		c.alerts = s
	}
}

// WithPollInterval sets the delay between poll rounds.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.pollInterval = d
	}
}

// WithMaxPolls bounds the number of poll rounds. 0 means unbounded.
func WithMaxPolls(n int) Option {
	return func(c *Coordinator) {
		c.maxPolls = n
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *Coordinator) {
		c.hooks = hooks
	}
}

// New creates a coordinator over the given session components.
func New(reg *registry.Registry, tracker *dirty.Tracker, st *store.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry:     reg,
		tracker:      tracker,
		store:        st,
		pollInterval: DefaultPollInterval,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TriggerReExecution re-executes nodeID with the current values of the page.
// Every failure has already been logged and, where the user must know, raised
// as an alert when it is returned; callers may ignore the error.
func (c *Coordinator) TriggerReExecution(ctx context.Context, nodeID string) (err error) {
	gen := c.store.Generation()
	start := time.Now()
	polls := 0

	c.logger.Info("Re-execution triggered", "node_id", nodeID, "generation", gen)
	if c.hooks.OnReexecutionStart != nil {
		c.hooks.OnReexecutionStart(ctx, c.event(domain.EventReexecutionStart, nodeID))
	}
	defer func() {
		if c.hooks.OnReexecutionDone != nil {
			e := c.event(domain.EventReexecutionDone, nodeID)
			e.Round = polls
			e.Duration = time.Since(start)
			e.Err = err
			c.hooks.OnReexecutionDone(ctx, e)
		}
	}()

	if err := c.validate(ctx); err != nil {
		c.logger.Warn("Re-execution aborted by validation", "node_id", nodeID, "err", err)
		c.alert(ctx, domain.Alert{Level: domain.AlertError, NodeID: nodeID, Message: domain.MsgValidationFailed})
		return err
	}

	values, err := c.registry.Values(ctx)
	if err != nil {
		c.logger.Warn("Re-execution aborted by value retrieval", "node_id", nodeID, "err", err)
		c.alert(ctx, domain.Alert{Level: domain.AlertError, NodeID: nodeID, Message: domain.MsgRetrievalFailed})
		return err
	}

	if c.backend == nil {
		return c.fail(ctx, gen, rpc.MethodReexecutePage, nodeID, &domain.TransportUnsupportedError{})
	}

	c.store.SetNodesReExecuting(ctx, []string{nodeID})
	res, err := c.backend.ReexecutePage(ctx, nodeID, values)
	method := rpc.MethodReexecutePage
	var resetNodes []string

	for {
		if err != nil {
			return c.fail(ctx, gen, method, nodeID, err)
		}
		if c.store.Generation() != gen {
			c.logger.Info("Discarding re-execution result of replaced page", "node_id", nodeID)
			return domain.ErrStalePage
		}
		if res != nil && res.ResetNodes != nil {
			resetNodes = res.ResetNodes
		}

		shouldPoll, applyErr := c.ApplyResult(ctx, res)
		if applyErr != nil {
			return applyErr
		}
		if !shouldPoll {
			c.logger.Info("Re-execution finished", "node_id", nodeID, "polls", polls, "duration", time.Since(start))
			return nil
		}

		if c.maxPolls > 0 && polls >= c.maxPolls {
			return c.fail(ctx, gen, rpc.MethodGetPage, nodeID, fmt.Errorf("%w after %d polls", ErrPollLimit, polls))
		}
		if err := c.sleep(ctx); err != nil {
			c.logger.Info("Re-execution cancelled", "node_id", nodeID, "err", err)
			if c.store.Generation() == gen {
				c.store.SetNodesReExecuting(ctx, nil)
			}
			return err
		}

		polls++
		if c.hooks.OnReexecutionPoll != nil {
			e := c.event(domain.EventReexecutionPoll, nodeID)
			e.Round = polls
			e.Pending = c.store.NodesReExecuting()
			c.hooks.OnReexecutionPoll(ctx, e)
		}
		method = rpc.MethodGetPage
		res, err = c.backend.GetPage(ctx, resetNodes)
	}
}

// ApplyResult merges one backend result into the page. It reports whether
// the caller must poll again. Results pushed by the backend outside of a
// round go through here as well.
func (c *Coordinator) ApplyResult(ctx context.Context, res *domain.ReexecutionResult) (bool, error) {
	if res == nil || (res.Page == nil && res.ResetNodes == nil) {
		c.logger.Error("Malformed re-execution result", "result", res)
		c.alert(ctx, domain.Alert{Level: domain.AlertError, Message: msgMalformedResult})
		c.store.SetNodesReExecuting(ctx, nil)
		return false, domain.ErrMalformedResult
	}

	if res.Page == nil {
		pending := res.Pending()
		c.logger.Debug("Nodes still re-executing", "pending", pending)
		c.store.SetNodesReExecuting(ctx, pending)
		return true, nil
	}

	ids := res.ReexecutedNodes
	if len(ids) == 0 {
		ids = res.Page.NodeIDs()
	}
	c.store.UpdatePage(ctx, res.Page, ids)
	c.store.SetNodesReExecuting(ctx, nil)
	c.releaseClean(ids)
	return false, nil
}

// PushValidationErrors forwards server side validation messages to the
// widgets. It reports whether every widget accepted its message.
func (c *Coordinator) PushValidationErrors(ctx context.Context, messages map[string]string) bool {
	ok := c.registry.PushServerErrors(ctx, messages)
	if !ok {
		c.logger.Warn("Not every widget accepted its server error", "count", len(messages))
	}
	return ok
}

// validate fails when a validator fails or any widget is invalid.
func (c *Coordinator) validate(ctx context.Context) error {
	validity, err := c.registry.Validity(ctx)
	if err != nil {
		return err
	}
	var invalid []string
	for id, ok := range validity {
		if !ok {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &domain.ValidationError{NodeID: invalid[0], Message: fmt.Sprintf("%d invalid widget(s)", len(invalid))}
}

// releaseClean drops the clean values of the re-executed widgets and marks
// the mounted ones loading. The value a widget reports once it settled on
// the applied page becomes its new clean value.
func (c *Coordinator) releaseClean(ids []string) {
	for _, id := range ids {
		if _, ok := c.registry.Provider(id); ok {
			c.store.SetNodeLoading(id, true)
		}
		c.tracker.Clear(id)
	}
}

// fail ends a round on a transport or remote error.
func (c *Coordinator) fail(ctx context.Context, gen uint64, method, nodeID string, err error) error {
	if c.store.Generation() != gen {
		c.logger.Info("Dropping error of replaced page", "node_id", nodeID, "err", err)
		return domain.ErrStalePage
	}
	c.store.SetNodesReExecuting(ctx, nil)

	message := err.Error()
	var remote *domain.RemoteExecutionError
	if errors.As(err, &remote) {
		if remote.NodeID == "" {
			remote.NodeID = nodeID
		}
		method = remote.Method
		message = remote.Message
	}

	c.logger.Error("Re-execution failed", "node_id", nodeID, "method", method, "err", err)
	c.alert(ctx, domain.Alert{Level: domain.AlertError, NodeID: nodeID, Method: method, Message: message})
	return err
}

func (c *Coordinator) alert(ctx context.Context, a domain.Alert) {
	a.Time = time.Now()
	if c.alerts != nil {
		c.alerts.Alert(ctx, a)
	}
	if c.hooks.OnAlert != nil {
		c.hooks.OnAlert(ctx, a)
	}
}

func (c *Coordinator) sleep(ctx context.Context) error {
	timer := time.NewTimer(c.pollInterval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) event(t domain.EventType, nodeID string) *domain.ReexecutionEvent {
	return &domain.ReexecutionEvent{
		EventBase: domain.EventBase{Timestamp: time.Now(), Type: t},
		NodeID:    nodeID,
	}
}
