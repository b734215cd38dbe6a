package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// ErrScriptExhausted is returned once every scripted response was consumed.
var ErrScriptExhausted = errors.New("no scripted response left")

// Response is one scripted answer of a Backend.
type Response struct {
	Result *domain.ReexecutionResult
	Err    error
}

// BackendCall records a request received by a Backend.
type BackendCall struct {
	Method     string
	NodeID     string
	Values     map[string]any
	ResetNodes []string
}

// Backend implements ports.ReexecutionBackend by replaying scripted
// responses in order, whatever the method.
type Backend struct {
	mu        sync.Mutex
	responses []Response
	calls     []BackendCall
}

// NewBackend creates a backend that answers with responses in order.
func NewBackend(responses ...Response) *Backend {
	return &Backend{responses: responses}
}

// ReexecutePage records the call and returns the next scripted response.
func (b *Backend) ReexecutePage(ctx context.Context, nodeID string, values map[string]any) (*domain.ReexecutionResult, error) {
	return b.next(BackendCall{Method: "ReexecutionService.reexecutePage", NodeID: nodeID, Values: domain.DeepCopyMap(values)})
}

// GetPage records the call and returns the next scripted response.
func (b *Backend) GetPage(ctx context.Context, resetNodes []string) (*domain.ReexecutionResult, error) {
	return b.next(BackendCall{Method: "ReexecutionService.getPage", ResetNodes: append([]string(nil), resetNodes...)})
}

// Calls returns the recorded requests in arrival order.
func (b *Backend) Calls() []BackendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendCall(nil), b.calls...)
}

func (b *Backend) next(call BackendCall) (*domain.ReexecutionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
	if len(b.responses) == 0 {
		return nil, ErrScriptExhausted
	}
	r := b.responses[0]
	b.responses = b.responses[1:]
	return r.Result, r.Err
}
