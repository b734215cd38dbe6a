package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/pagebuilder/internal/presentation/graph"
	"github.com/aretw0/pagebuilder/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name     string
		page     *domain.Page
		overlay  *graph.Overlay
		contains []string
	}{
		{
			name: "Node Shapes",
			page: &domain.Page{
				WebNodes: map[string]domain.NodeConfig{
					"plain":    {},
					"required": {"viewRepresentation": map[string]any{"required": true}},
				},
				NodeViews: map[string]domain.NodeConfig{"chart": {}},
			},
			contains: []string{
				"plain[\"plain\"]",
				"required[[\"required\"]]",
				"chart[/\"chart\"/]",
			},
		},
		{
			name: "Label And Sanitization",
			page: &domain.Page{WebNodes: map[string]domain.NodeConfig{
				"root:1.2-a": {"viewRepresentation": map[string]any{"label": `Say "hi"`}},
			}},
			contains: []string{
				`root_1_2_a["root:1.2-a <br/> Say 'hi'"]`,
			},
		},
		{
			name: "Translator Edges",
			page: &domain.Page{
				WebNodes: map[string]domain.NodeConfig{"t": {}, "c1": {}, "c2": {}},
				Configuration: &domain.PageConfiguration{SelectionTranslators: []domain.SelectionTranslator{
					{ID: 1, SourceID: "t", TargetIDs: []string{"c1"}},
					{ID: 2, SourceID: "t", TargetIDs: []string{"c2"}, Mapping: map[string][]string{"r1": {"x"}}},
				}},
			},
			contains: []string{
				"t --> c1",
				"t -. mapped .-> c2",
			},
		},
		{
			name: "Overlay",
			page: &domain.Page{WebNodes: map[string]domain.NodeConfig{"a": {}, "b": {}}},
			overlay: &graph.Overlay{
				DirtyNodes:       []string{"a", "a"},
				ReexecutingNodes: []string{"b"},
			},
			contains: []string{
				"classDef dirty",
				"class a dirty;",
				"class b reexecuting;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.page, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("GenerateMermaid() = \n%v\nWant substring: %v", got, want)
				}
			}
			if strings.Count(got, "class a dirty;") > 1 {
				t.Errorf("overlay classes must be deduplicated:\n%v", got)
			}
		})
	}
}
