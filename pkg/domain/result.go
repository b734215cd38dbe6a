package domain

// ReexecutionResult is the payload returned by the backend for a
// re-execution request or a subsequent poll.
//
// A result without Page means the listed ResetNodes are still being
// re-executed and the client must poll again. A result with Page carries the
// new configuration of the affected nodes.
type ReexecutionResult struct {
	ResetNodes      []string `json:"resetNodes,omitempty"`
	ReexecutedNodes []string `json:"reexecutedNodes,omitempty"`
	Page            *Page    `json:"page,omitempty"`
}

// Pending returns the reset nodes that have not finished re-executing.
func (r ReexecutionResult) Pending() []string {
	done := make(map[string]struct{}, len(r.ReexecutedNodes))
	for _, id := range r.ReexecutedNodes {
		done[id] = struct{}{}
	}
	pending := make([]string, 0, len(r.ResetNodes))
	for _, id := range r.ResetNodes {
		if _, ok := done[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}

// ViewUpdate is pushed by a widget when its value or configuration changes.
// Update maps dotted property paths to new values; when it is empty the whole
// configuration is replaced by Config.
type ViewUpdate struct {
	NodeID   string         `json:"nodeId"`
	Update   map[string]any `json:"update,omitempty"`
	Config   NodeConfig     `json:"config,omitempty"`
	ViewType ViewType       `json:"viewType,omitempty"`
}
