package http

import (
	"context"
	"sync"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/pkg/registry"
)

// ValuePush is the body of POST /sessions/{id}/values/{nodeId}: a remote
// widget reporting its current value.
type ValuePush struct {
	Value   any    `json:"value"`
	Valid   *bool  `json:"valid,omitempty"`
	Message string `json:"message,omitempty"`
	Loading bool   `json:"loading,omitempty"`
}

// remoteWidget holds the last value pushed by a widget rendered outside of
// this process and answers the App's callbacks from it.
type remoteWidget struct {
	mu       sync.Mutex
	value    any
	validity registry.Validity
	errorMsg string

	onError     func(nodeID, message string)
	onSelection func(nodeID, sourceID string, selection []string)
	nodeID      string
}

func newRemoteWidget(nodeID string, onError func(string, string), onSelection func(string, string, []string)) *remoteWidget {
	return &remoteWidget{
		nodeID:      nodeID,
		validity:    registry.Validity{Valid: true},
		onError:     onError,
		onSelection: onSelection,
	}
}

func (w *remoteWidget) set(p ValuePush) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value = p.Value
	w.validity = registry.Validity{Valid: true}
	if p.Valid != nil && !*p.Valid {
		w.validity = registry.Validity{Valid: false, Message: p.Message}
	}
}

func (w *remoteWidget) Value(context.Context) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value, nil
}

func (w *remoteWidget) Validate(context.Context) (registry.Validity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.validity, nil
}

func (w *remoteWidget) SetErrorMessage(_ context.Context, message string) error {
	w.mu.Lock()
	w.errorMsg = message
	w.mu.Unlock()
	if w.onError != nil {
		w.onError(w.nodeID, message)
	}
	return nil
}

func (w *remoteWidget) lastError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.errorMsg
}

func (w *remoteWidget) widget() pagebuilder.Widget {
	return pagebuilder.Widget{
		Provider:  w,
		Validator: w,
		ErrorSink: w,
		OnSelection: func(sourceID string, selection []string) {
			if w.onSelection != nil {
				w.onSelection(w.nodeID, sourceID, selection)
			}
		},
	}
}

// widgetSet tracks the remote widgets of every session.
type widgetSet struct {
	mu      sync.Mutex
	widgets map[string]map[string]*remoteWidget // SessionID -> NodeID -> widget
}

func newWidgetSet() *widgetSet {
	return &widgetSet{widgets: make(map[string]map[string]*remoteWidget)}
}

// get returns the widget of nodeID, creating it with mk when absent. created
// reports whether mk was called.
func (s *widgetSet) get(sessionID, nodeID string, mk func() *remoteWidget) (w *remoteWidget, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes, ok := s.widgets[sessionID]
	if !ok {
		nodes = make(map[string]*remoteWidget)
		s.widgets[sessionID] = nodes
	}
	if w, ok := nodes[nodeID]; ok {
		return w, false
	}
	w = mk()
	nodes[nodeID] = w
	return w, true
}

func (s *widgetSet) lookup(sessionID, nodeID string) (*remoteWidget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.widgets[sessionID][nodeID]
	return w, ok
}

func (s *widgetSet) remove(sessionID, nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := s.widgets[sessionID]
	if _, ok := nodes[nodeID]; !ok {
		return false
	}
	delete(nodes, nodeID)
	if len(nodes) == 0 {
		delete(s.widgets, sessionID)
	}
	return true
}

func (s *widgetSet) clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.widgets, sessionID)
}
