package domain

import (
	"github.com/aretw0/pagebuilder/pkg/propertypath"
)

// ViewType selects which collection of a Page a node lives in.
type ViewType string

const (
	ViewWebNodes  ViewType = "webNodes"
	ViewNodeViews ViewType = "nodeViews"
)

// ExtensionDialog marks a node view that renders a configuration dialog.
const ExtensionDialog = "dialog"

var (
	pathRepresentation = propertypath.New("viewRepresentation")
	pathCurrentValue   = propertypath.New("viewRepresentation", "currentValue")
	pathDefaultValue   = propertypath.New("viewRepresentation", "defaultValue")
	pathRequired       = propertypath.New("viewRepresentation", "required")
	pathExtensionType  = propertypath.New("extensionConfig", "extensionType")
)

// NodeConfig is the configuration of a single widget as delivered by the
// backend. Its shape varies by widget kind, so it is kept as a document and
// addressed through property paths.
type NodeConfig map[string]any

// Representation returns the widget representation (label, constraints,
// possible values), or nil.
func (c NodeConfig) Representation() map[string]any {
	v, _ := propertypath.Get(map[string]any(c), pathRepresentation)
	m, _ := v.(map[string]any)
	return m
}

// CurrentValue returns the value the widget currently shows.
func (c NodeConfig) CurrentValue() any {
	v, _ := propertypath.Get(map[string]any(c), pathCurrentValue)
	return v
}

// DefaultValue returns the value the widget resets to.
func (c NodeConfig) DefaultValue() any {
	v, _ := propertypath.Get(map[string]any(c), pathDefaultValue)
	return v
}

// Required reports whether the widget must carry a value.
func (c NodeConfig) Required() bool {
	v, _ := propertypath.Get(map[string]any(c), pathRequired)
	b, _ := v.(bool)
	return b
}

// ExtensionType returns the UI extension type of a node view ("dialog", "view").
func (c NodeConfig) ExtensionType() string {
	v, _ := propertypath.Get(map[string]any(c), pathExtensionType)
	s, _ := v.(string)
	return s
}

// WithoutRequired returns a deep copy with any required override removed.
// Re-executed configurations must never turn an optional field into a
// required one.
func (c NodeConfig) WithoutRequired() NodeConfig {
	out := c.Clone()
	if out != nil {
		propertypath.Delete(map[string]any(out), pathRequired)
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c NodeConfig) Clone() NodeConfig {
	if c == nil {
		return nil
	}
	return NodeConfig(DeepCopyMap(c))
}

// DeepCopyMap copies a JSON-like map recursively.
func DeepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = DeepCopy(v)
	}
	return out
}

// DeepCopy copies a JSON-like value recursively. Scalars are returned as is.
func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopyMap(t)
	case NodeConfig:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = DeepCopy(e)
		}
		return out
	default:
		return v
	}
}
