package store

// AddImageGenerationWaiting registers a widget that still has to deliver an
// image for the report.
func (s *Store) AddImageGenerationWaiting(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imagesWaiting[id] = struct{}{}
}

// ResolveImageGeneration stores the generated image of id and removes it from
// the waiting set.
func (s *Store) ResolveImageGeneration(id string, image any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.imagesWaiting, id)
	s.reportingContent[id] = image
}

// ReportReady reports whether a reporting page has every image it waits for.
func (s *Store) ReportReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReporting && len(s.imagesWaiting) == 0
}

// ReportingContent returns a copy of the generated images keyed by node id.
func (s *Store) ReportingContent() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.reportingContent))
	for k, v := range s.reportingContent {
		out[k] = v
	}
	return out
}
