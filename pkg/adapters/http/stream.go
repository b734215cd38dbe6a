package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/pagebuilder/internal/logging"
	"github.com/aretw0/pagebuilder/pkg/domain"
)

// Event types that only exist on the wire.
const (
	EventSelection       domain.EventType = "selection"
	EventValidationError domain.EventType = "validation_error"
	EventPagesChanged    domain.EventType = "pages_changed"
)

// Event is one server-sent event of a session stream.
type Event struct {
	Type      domain.EventType `json:"type"`
	SessionID string           `json:"session_id,omitempty"`
	Time      time.Time        `json:"time"`
	Data      any              `json:"data,omitempty"`
}

// Message is an encoded Event ready to be written to a stream.
type Message struct {
	Event string
	Data  string
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Message]struct{} // SessionID -> Set of Channels
	buffer      int
	logger      *slog.Logger
}

// NewStreamManager creates a manager whose subscribers buffer up to buffer
// messages before dropping.
func NewStreamManager(buffer int, logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if buffer <= 0 {
		buffer = 16
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan Message]struct{}),
		buffer:      buffer,
		logger:      logger,
	}
}

// Subscribe registers a stream for sessionID. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, sm.buffer)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan Message]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers returns the number of open streams of sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast sends e to every stream of sessionID. Slow streams drop it.
func (sm *StreamManager) Broadcast(sessionID string, e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = sessionID
	data, err := json.Marshal(e)
	if err != nil {
		sm.logger.Error("StreamManager: Event encode failed", "session_id", sessionID, "type", e.Type, "err", err)
		return
	}
	msg := Message{Event: string(e.Type), Data: string(data)}

	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sm.logger.Debug("StreamManager: Broadcasting", "session_id", sessionID, "type", e.Type, "payload_size", len(data))
	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID, "type", e.Type)
		}
	}
}
