package domain

import "time"

// Snapshot is the persisted form of a page session: the page document and
// the clean value baseline used for dirty detection.
type Snapshot struct {
	SessionID      string            `json:"session_id"`
	Page           *Page             `json:"page,omitempty"`
	ReportActionID string            `json:"report_action_id,omitempty"`
	Headless       bool              `json:"headless,omitempty"`
	CleanValues    map[string]string `json:"clean_values,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// NewSnapshot creates an empty snapshot for a session.
func NewSnapshot(sessionID string) *Snapshot {
	return &Snapshot{
		SessionID:   sessionID,
		CleanValues: make(map[string]string),
		UpdatedAt:   time.Now(),
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Page = s.Page.Clone()
	out.CleanValues = make(map[string]string, len(s.CleanValues))
	for k, v := range s.CleanValues {
		out.CleanValues[k] = v
	}
	return &out
}
