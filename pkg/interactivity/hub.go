// Package interactivity routes selection events between the widgets of a
// page through the selection translators the page declares.
package interactivity

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
)

// Listener receives a translated selection for the node it subscribed to.
type Listener func(sourceID string, selection []string)

// Hub holds the translators of the current page and the listeners of the
// mounted widgets. Safe for concurrent use.
type Hub struct {
	mu          sync.RWMutex
	translators map[int]domain.SelectionTranslator
	listeners   map[string]map[int]Listener
	nextID      int
	logger      *slog.Logger
}

// Option configures the Hub.
type Option func(*Hub)

// WithLogger configures a logger for the Hub.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		translators: make(map[int]domain.SelectionTranslator),
		listeners:   make(map[string]map[int]Listener),
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Clear drops every translator. Listeners stay subscribed.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.translators = make(map[int]domain.SelectionTranslator)
}

// RegisterTranslator adds or replaces the translator with the same id.
func (h *Hub) RegisterTranslator(t domain.SelectionTranslator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.translators[t.ID] = t
}

// Translators returns the registered translators ordered by id.
func (h *Hub) Translators() []domain.SelectionTranslator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.SelectionTranslator, 0, len(h.translators))
	for _, t := range h.translators {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe registers a listener for selections forwarded to nodeID.
// The returned function removes it.
func (h *Hub) Subscribe(nodeID string, fn Listener) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	if h.listeners[nodeID] == nil {
		h.listeners[nodeID] = make(map[int]Listener)
	}
	h.listeners[nodeID][id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners[nodeID], id)
		if len(h.listeners[nodeID]) == 0 {
			delete(h.listeners, nodeID)
		}
	}
}

// Publish forwards a selection made in sourceID to every translator target.
// Row keys are mapped when the translator defines a mapping. It returns the
// number of listeners notified.
func (h *Hub) Publish(sourceID string, selection []string) int {
	type delivery struct {
		fn        Listener
		selection []string
	}

	h.mu.RLock()
	var deliveries []delivery
	for _, t := range h.translators {
		if t.SourceID != sourceID {
			continue
		}
		translated := translate(t, selection)
		for _, target := range t.TargetIDs {
			if target == sourceID {
				continue
			}
			for _, fn := range h.listeners[target] {
				deliveries = append(deliveries, delivery{fn: fn, selection: translated})
			}
		}
	}
	h.mu.RUnlock()

	for _, d := range deliveries {
		d.fn(sourceID, d.selection)
	}
	h.logger.Debug("Selection published", "source_id", sourceID, "deliveries", len(deliveries))
	return len(deliveries)
}

func translate(t domain.SelectionTranslator, selection []string) []string {
	if len(t.Mapping) == 0 {
		return append([]string(nil), selection...)
	}
	var out []string
	for _, key := range selection {
		out = append(out, t.Mapping[key]...)
	}
	return out
}
