package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/pagebuilder/pkg/domain"
)

// Overlay contains live session data to visualize on the graph.
type Overlay struct {
	DirtyNodes       []string
	ReexecutingNodes []string
}

// GenerateMermaid produces a Mermaid flowchart of a page: one vertex per node
// and one edge per selection translator target. It applies semantic styling:
// - Web node: [Rectangle]
// - Node view: [/Parallelogram/]
// - Required input: [[Subroutine]]
// Edges whose translator maps row keys are dotted.
func GenerateMermaid(page *domain.Page, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range page.NodeIDs() {
		cfg, viewType, _ := page.Node(id)
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case cfg.Required():
			opener, closer = "[[", "]]"
		case viewType == domain.ViewNodeViews:
			opener, closer = "[/", "/]"
		}

		text := id
		if label, ok := cfg.Representation()["label"].(string); ok && label != "" {
			text = fmt.Sprintf("%s <br/> %s", id, strings.ReplaceAll(label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, text, closer)
	}

	if page != nil && page.Configuration != nil {
		for _, t := range page.Configuration.SelectionTranslators {
			arrow := "-->"
			if len(t.Mapping) > 0 {
				arrow = "-. mapped .->"
			}
			for _, target := range t.TargetIDs {
				fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(t.SourceID), arrow, sanitizeMermaidID(target))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast regardless of theme
		sb.WriteString("    classDef dirty fill:#fff3e0,stroke:#e65100,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef reexecuting fill:#e1f5fe,stroke:#01579b,stroke-width:4px,color:#000;\n")
		writeClass(&sb, overlay.DirtyNodes, "dirty")
		writeClass(&sb, overlay.ReexecutingNodes, "reexecuting")
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, ids []string, class string) {
	seen := make(map[string]bool)
	for _, id := range ids {
		safeID := sanitizeMermaidID(id)
		if safeID == "" || seen[safeID] {
			continue
		}
		seen[safeID] = true
		fmt.Fprintf(sb, "    class %s %s;\n", safeID, class)
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
