package domain

import (
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Page is the root document rendered by the host.
type Page struct {
	WebNodes      map[string]NodeConfig `json:"webNodes,omitempty" yaml:"webNodes,omitempty"`
	NodeViews     map[string]NodeConfig `json:"nodeViews,omitempty" yaml:"nodeViews,omitempty"`
	Configuration *PageConfiguration    `json:"webNodePageConfiguration,omitempty" yaml:"webNodePageConfiguration,omitempty"`
}

// PageConfiguration carries the layout and page-wide interactivity settings.
type PageConfiguration struct {
	Layout               map[string]any        `json:"layout,omitempty" yaml:"layout,omitempty" mapstructure:"layout"`
	SelectionTranslators []SelectionTranslator `json:"selectionTranslators,omitempty" yaml:"selectionTranslators,omitempty" mapstructure:"selectionTranslators"`
}

// SelectionTranslator forwards selection events published by one node to
// others, optionally mapping row keys.
type SelectionTranslator struct {
	ID        int                 `json:"id" yaml:"id" mapstructure:"id"`
	SourceID  string              `json:"sourceID" yaml:"sourceID" mapstructure:"sourceID"`
	TargetIDs []string            `json:"targetIDs" yaml:"targetIDs" mapstructure:"targetIDs"`
	Mapping   map[string][]string `json:"mapping,omitempty" yaml:"mapping,omitempty" mapstructure:"mapping"`
}

// PageRequest is a full page replacement.
type PageRequest struct {
	Page           *Page  `json:"page,omitempty" yaml:"page,omitempty"`
	ReportActionID string `json:"reportActionId,omitempty" yaml:"reportActionId,omitempty"`
	Headless       bool   `json:"headless,omitempty" yaml:"headless,omitempty"`
}

// DecodePageConfiguration converts a loosely typed configuration (as found in
// hand written page files or untyped RPC payloads) into a PageConfiguration.
func DecodePageConfiguration(raw map[string]any) (*PageConfiguration, error) {
	if raw == nil {
		return nil, nil
	}
	var cfg PageConfiguration
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode page configuration: %w", err)
	}
	return &cfg, nil
}

// DecodePage converts a generic document (decoded from YAML or JSON into
// maps) into a Page.
func DecodePage(raw map[string]any) (*Page, error) {
	if raw == nil {
		return nil, nil
	}
	page := &Page{}
	for _, vt := range []ViewType{ViewWebNodes, ViewNodeViews} {
		nodes, ok := raw[string(vt)]
		if !ok || nodes == nil {
			continue
		}
		var decoded map[string]NodeConfig
		if err := mapstructure.Decode(nodes, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", vt, err)
		}
		if vt == ViewWebNodes {
			page.WebNodes = decoded
		} else {
			page.NodeViews = decoded
		}
	}
	if cfgRaw, ok := raw["webNodePageConfiguration"].(map[string]any); ok {
		cfg, err := DecodePageConfiguration(cfgRaw)
		if err != nil {
			return nil, err
		}
		page.Configuration = cfg
	}
	return page, nil
}

// Nodes returns the collection addressed by viewType, or nil.
func (p *Page) Nodes(viewType ViewType) map[string]NodeConfig {
	if p == nil {
		return nil
	}
	if viewType == ViewNodeViews {
		return p.NodeViews
	}
	return p.WebNodes
}

// Node looks a node up in either collection, web nodes first.
func (p *Page) Node(id string) (NodeConfig, ViewType, bool) {
	if p == nil {
		return nil, "", false
	}
	if c, ok := p.WebNodes[id]; ok {
		return c, ViewWebNodes, true
	}
	if c, ok := p.NodeViews[id]; ok {
		return c, ViewNodeViews, true
	}
	return nil, "", false
}

// NodeIDs returns the ids of all nodes on the page, sorted.
func (p *Page) NodeIDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.WebNodes)+len(p.NodeViews))
	for id := range p.WebNodes {
		ids = append(ids, id)
	}
	for id := range p.NodeViews {
		if _, dup := p.WebNodes[id]; !dup {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// HasDialog reports whether any node view is a dialog extension.
func (p *Page) HasDialog() bool {
	if p == nil {
		return false
	}
	for _, c := range p.NodeViews {
		if c.ExtensionType() == ExtensionDialog {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	if p == nil {
		return nil
	}
	out := &Page{
		WebNodes:  cloneNodes(p.WebNodes),
		NodeViews: cloneNodes(p.NodeViews),
	}
	if p.Configuration != nil {
		cfg := *p.Configuration
		cfg.Layout = DeepCopyMap(p.Configuration.Layout)
		cfg.SelectionTranslators = append([]SelectionTranslator(nil), p.Configuration.SelectionTranslators...)
		out.Configuration = &cfg
	}
	return out
}

func cloneNodes(in map[string]NodeConfig) map[string]NodeConfig {
	if in == nil {
		return nil
	}
	out := make(map[string]NodeConfig, len(in))
	for id, c := range in {
		out[id] = c.Clone()
	}
	return out
}
