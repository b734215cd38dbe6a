package domain

import (
	"reflect"
)

// PageDiff represents the changes between two versions of a page.
// It is designed to be serialized to JSON for partial updates on the client.
type PageDiff struct {
	// WebNodes contains only changed or added web node configurations.
	// For deletions, the key is present with a nil value.
	WebNodes map[string]NodeConfig `json:"webNodes,omitempty"`

	// NodeViews follows the same rules as WebNodes.
	NodeViews map[string]NodeConfig `json:"nodeViews,omitempty"`

	// Configuration is set when the page configuration changed.
	Configuration *PageConfiguration `json:"webNodePageConfiguration,omitempty"`

	// Replaced is true when the old page was nil (initial load).
	Replaced bool `json:"replaced,omitempty"`
}

// Diff calculates the difference between oldPage and newPage.
// If oldPage is nil, it returns a diff representing the entire newPage.
// It returns nil when nothing changed.
func Diff(oldPage, newPage *Page) *PageDiff {
	if newPage == nil {
		return nil
	}

	diff := &PageDiff{
		WebNodes:  diffNodes(oldPage.Nodes(ViewWebNodes), newPage.WebNodes),
		NodeViews: diffNodes(oldPage.Nodes(ViewNodeViews), newPage.NodeViews),
		Replaced:  oldPage == nil,
	}

	var oldCfg *PageConfiguration
	if oldPage != nil {
		oldCfg = oldPage.Configuration
	}
	if !reflect.DeepEqual(oldCfg, newPage.Configuration) {
		diff.Configuration = newPage.Configuration
	}

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffNodes(old, new map[string]NodeConfig) map[string]NodeConfig {
	delta := make(map[string]NodeConfig)

	// Check for Added or Modified
	for id, newCfg := range new {
		oldCfg, exists := old[id]
		if !exists || !reflect.DeepEqual(oldCfg, newCfg) {
			delta[id] = newCfg
		}
	}

	// Check for Deletions
	for id := range old {
		if _, exists := new[id]; !exists {
			delta[id] = nil
		}
	}

	// Return nil if delta is empty so omitempty can remove the key
	if len(delta) == 0 {
		return nil
	}
	return delta
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *PageDiff) IsEmpty() bool {
	return !d.Replaced &&
		len(d.WebNodes) == 0 &&
		len(d.NodeViews) == 0 &&
		d.Configuration == nil
}
