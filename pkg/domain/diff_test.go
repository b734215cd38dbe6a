package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	base := func() *Page {
		return &Page{
			WebNodes: map[string]NodeConfig{
				"1:0:1": {"viewRepresentation": map[string]any{"label": "a"}},
				"1:0:2": {"viewRepresentation": map[string]any{"label": "b"}},
			},
		}
	}

	tests := []struct {
		name     string
		old      *Page
		new      *Page
		wantDiff *PageDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new:  base(),
			wantDiff: &PageDiff{
				WebNodes: base().WebNodes,
				Replaced: true,
			},
		},
		{
			name:     "No Changes",
			old:      base(),
			new:      base(),
			wantDiff: nil,
		},
		{
			name: "Node Modified",
			old:  base(),
			new: func() *Page {
				p := base()
				p.WebNodes["1:0:2"] = NodeConfig{"viewRepresentation": map[string]any{"label": "changed"}}
				return p
			}(),
			wantDiff: &PageDiff{
				WebNodes: map[string]NodeConfig{
					"1:0:2": {"viewRepresentation": map[string]any{"label": "changed"}},
				},
			},
		},
		{
			name: "Node Deletion",
			old:  base(),
			new: func() *Page {
				p := base()
				delete(p.WebNodes, "1:0:1")
				return p
			}(),
			wantDiff: &PageDiff{
				WebNodes: map[string]NodeConfig{"1:0:1": nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if tt.wantDiff == nil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}

			if got == nil {
				t.Fatalf("Diff() = nil, want %v", tt.wantDiff)
			}
			if !reflect.DeepEqual(got.WebNodes, tt.wantDiff.WebNodes) {
				t.Errorf("Diff().WebNodes = %v, want %v", got.WebNodes, tt.wantDiff.WebNodes)
			}
			if got.Replaced != tt.wantDiff.Replaced {
				t.Errorf("Diff().Replaced = %v, want %v", got.Replaced, tt.wantDiff.Replaced)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Deletions as Null", func(t *testing.T) {
		p1 := &Page{WebNodes: map[string]NodeConfig{"a": {"x": 1}, "b": {"x": 2}}}
		p2 := &Page{WebNodes: map[string]NodeConfig{"a": {"x": 1}}}
		diff := Diff(p1, p2)

		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}

		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"b":null`) {
			t.Errorf("JSON should contain 'b':null for deletion, got: %s", string(bytes))
		}
		if strings.Contains(string(bytes), `"nodeViews"`) {
			t.Errorf("JSON should not contain 'nodeViews' when empty, got: %s", string(bytes))
		}
	})
}
