// Package registry keeps the callbacks widgets register on mount: a value
// provider, a validator and an error sink per node id.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
	"golang.org/x/sync/errgroup"
)

// Validity is the outcome of a validator.
type Validity struct {
	Valid   bool   `json:"isValid"`
	Message string `json:"errorMessage,omitempty"`
}

// ValueProvider returns the value a widget currently shows.
type ValueProvider interface {
	Value(ctx context.Context) (any, error)
}

// Validator checks the value a widget currently shows.
type Validator interface {
	Validate(ctx context.Context) (Validity, error)
}

// ErrorSink receives server side validation messages for a widget.
type ErrorSink interface {
	SetErrorMessage(ctx context.Context, message string) error
}

// ValueFunc adapts a function to ValueProvider.
type ValueFunc func(ctx context.Context) (any, error)

func (f ValueFunc) Value(ctx context.Context) (any, error) { return f(ctx) }

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context) (Validity, error)

func (f ValidatorFunc) Validate(ctx context.Context) (Validity, error) { return f(ctx) }

// ErrorSinkFunc adapts a function to ErrorSink.
type ErrorSinkFunc func(ctx context.Context, message string) error

func (f ErrorSinkFunc) SetErrorMessage(ctx context.Context, message string) error {
	return f(ctx, message)
}

// Registry manages the callbacks of the mounted widgets.
// Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]ValueProvider
	validators map[string]Validator
	sinks      map[string]ErrorSink

	onDeregister func(id string)
	logger       *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithDeregisterHook is called with the node id whenever a value provider
// is removed, so dependent bookkeeping (clean baselines) can follow.
func WithDeregisterHook(fn func(id string)) Option {
	return func(r *Registry) {
		r.onDeregister = fn
	}
}

// NewRegistry creates a new empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		providers:  make(map[string]ValueProvider),
		validators: make(map[string]Validator),
		sinks:      make(map[string]ErrorSink),
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a value provider. An existing one is overwritten.
func (r *Registry) RegisterProvider(id string, p ValueProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[id] = p
}

// RegisterValidator adds a validator. An existing one is overwritten.
func (r *Registry) RegisterValidator(id string, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[id] = v
}

// RegisterErrorSink adds an error sink. An existing one is overwritten.
func (r *Registry) RegisterErrorSink(id string, s ErrorSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = s
}

// DeregisterProvider removes the value provider of id, if any.
func (r *Registry) DeregisterProvider(id string) {
	r.mu.Lock()
	_, existed := r.providers[id]
	delete(r.providers, id)
	hook := r.onDeregister
	r.mu.Unlock()

	if existed && hook != nil {
		hook(id)
	}
}

// DeregisterValidator removes the validator of id, if any.
func (r *Registry) DeregisterValidator(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.validators, id)
}

// DeregisterErrorSink removes the error sink of id, if any.
func (r *Registry) DeregisterErrorSink(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

// Deregister removes every callback of id. Called when a widget unmounts.
func (r *Registry) Deregister(id string) {
	r.DeregisterValidator(id)
	r.DeregisterErrorSink(id)
	r.DeregisterProvider(id)
}

// Clear removes every registration.
func (r *Registry) Clear() {
	for _, id := range r.IDs() {
		r.Deregister(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators = make(map[string]Validator)
	r.sinks = make(map[string]ErrorSink)
}

// IDs returns the ids with a registered value provider, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Providers returns a copy of the registered value providers.
func (r *Registry) Providers() map[string]ValueProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]ValueProvider, len(r.providers))
	for id, p := range r.providers {
		out[id] = p
	}
	return out
}

// Provider returns the value provider of id.
func (r *Registry) Provider(id string) (ValueProvider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// Value fetches the current value of a single widget.
func (r *Registry) Value(ctx context.Context, id string) (any, error) {
	p, ok := r.Provider(id)
	if !ok {
		return nil, NewValueRetrievalError(id, errNotRegistered)
	}
	v, err := p.Value(ctx)
	if err != nil {
		return nil, NewValueRetrievalError(id, err)
	}
	return v, nil
}

// Values invokes every provider registered at call time concurrently.
// The first failure aborts the batch; results of providers still running
// are discarded and no partial map is returned.
func (r *Registry) Values(ctx context.Context) (map[string]any, error) {
	providers := r.Providers()

	var mu sync.Mutex
	values := make(map[string]any, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range providers {
		g.Go(func() error {
			v, err := p.Value(gctx)
			if err != nil {
				return NewValueRetrievalError(id, err)
			}
			mu.Lock()
			values[id] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("Value retrieval failed", "err", err)
		return nil, err
	}
	return values, nil
}

// Validity invokes every validator registered at call time concurrently.
// A validator error fails the batch with a ValidationError. Invalid results
// are reported in the map; callers decide whether they abort.
func (r *Registry) Validity(ctx context.Context) (map[string]bool, error) {
	r.mu.RLock()
	validators := make(map[string]Validator, len(r.validators))
	for id, v := range r.validators {
		validators[id] = v
	}
	r.mu.RUnlock()

	var mu sync.Mutex
	validity := make(map[string]bool, len(validators))

	g, gctx := errgroup.WithContext(ctx)
	for id, v := range validators {
		g.Go(func() error {
			res, err := v.Validate(gctx)
			if err != nil {
				return &domain.ValidationError{NodeID: id, Err: err}
			}
			mu.Lock()
			validity[id] = res.Valid
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Warn("Validation failed", "err", err)
		return nil, err
	}
	return validity, nil
}

// PushServerErrors forwards server side validation messages to the matching
// error sinks. It returns true only if every sink accepted its message.
// Failures are logged, not returned: the messages are hints for the user.
func (r *Registry) PushServerErrors(ctx context.Context, messages map[string]string) bool {
	r.mu.RLock()
	sinks := make(map[string]ErrorSink, len(messages))
	for id := range messages {
		if s, ok := r.sinks[id]; ok {
			sinks[id] = s
		}
	}
	r.mu.RUnlock()

	var g errgroup.Group
	for id, s := range sinks {
		g.Go(func() error {
			if err := s.SetErrorMessage(ctx, messages[id]); err != nil {
				r.logger.Warn("Failed to push server error", "node_id", id, "err", err)
				return err
			}
			return nil
		})
	}
	return g.Wait() == nil
}
