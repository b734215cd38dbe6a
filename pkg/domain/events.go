package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPageSet            EventType = "page_set"
	EventViewUpdated        EventType = "view_updated"
	EventReexecutingChanged EventType = "reexecuting_changed"
	EventReexecutionStart   EventType = "reexecution_start"
	EventReexecutionPoll    EventType = "reexecution_poll"
	EventReexecutionDone    EventType = "reexecution_done"
	EventAlert              EventType = "alert"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// PageEvent is emitted after a full page replacement or a partial update.
type PageEvent struct {
	EventBase
	Generation uint64   `json:"generation"`
	NodeIDs    []string `json:"node_ids,omitempty"`
	ViewType   ViewType `json:"view_type,omitempty"`
}

// ReexecutionEvent describes one step of a re-execution round.
type ReexecutionEvent struct {
	EventBase
	NodeID   string        `json:"node_id"`
	Pending  []string      `json:"pending,omitempty"`
	Round    int           `json:"round"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnPageSet            func(context.Context, *PageEvent)
	OnViewUpdated        func(context.Context, *PageEvent)
	OnReexecutingChanged func(context.Context, []string)
	OnReexecutionStart   func(context.Context, *ReexecutionEvent)
	OnReexecutionPoll    func(context.Context, *ReexecutionEvent)
	OnReexecutionDone    func(context.Context, *ReexecutionEvent)
	OnAlert              func(context.Context, Alert)
}

// Merge returns hooks that call h first and then other for every event.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPageSet:            chain(h.OnPageSet, other.OnPageSet),
		OnViewUpdated:        chain(h.OnViewUpdated, other.OnViewUpdated),
		OnReexecutingChanged: chain(h.OnReexecutingChanged, other.OnReexecutingChanged),
		OnReexecutionStart:   chain(h.OnReexecutionStart, other.OnReexecutionStart),
		OnReexecutionPoll:    chain(h.OnReexecutionPoll, other.OnReexecutionPoll),
		OnReexecutionDone:    chain(h.OnReexecutionDone, other.OnReexecutionDone),
		OnAlert:              chain(h.OnAlert, other.OnAlert),
	}
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, v T) {
		a(ctx, v)
		b(ctx, v)
	}
}
