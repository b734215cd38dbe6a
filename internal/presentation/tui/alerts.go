package tui

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/pagebuilder/pkg/domain"
	"github.com/muesli/termenv"
)

// AlertPrinter writes alerts to a terminal, coloured by level. It
// implements ports.AlertSink.
type AlertPrinter struct {
	mu  sync.Mutex
	w   io.Writer
	out *termenv.Output
}

// NewAlertPrinter creates a printer writing to w. Colours are dropped when w
// is not a terminal.
func NewAlertPrinter(w io.Writer) *AlertPrinter {
	return &AlertPrinter{w: w, out: termenv.NewOutput(w)}
}

// Alert prints a.
func (p *AlertPrinter) Alert(_ context.Context, a domain.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, FormatAlert(p.out, a))
}

// FormatAlert renders one alert line.
func FormatAlert(out *termenv.Output, a domain.Alert) string {
	color := "#60a5fa"
	switch a.Level {
	case domain.AlertError:
		color = "#f87171"
	case domain.AlertWarning:
		color = "#fbbf24"
	}
	level := out.String(strings.ToUpper(string(a.Level))).Foreground(out.Color(color)).Bold()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", level, a.Message)
	if a.NodeID != "" {
		fmt.Fprintf(&b, " %s", out.String("node="+a.NodeID).Faint())
	}
	if a.Method != "" {
		fmt.Fprintf(&b, " %s", out.String("method="+a.Method).Faint())
	}
	return b.String()
}

// NodeStatus is the state of one node shown by PrintPage.
type NodeStatus struct {
	ID          string
	ViewType    domain.ViewType
	Label       string
	Dirty       bool
	Reexecuting bool
}

// PrintPage writes one line per node, sorted by id.
func PrintPage(w io.Writer, nodes []NodeStatus) {
	out := termenv.NewOutput(w)
	sorted := append([]NodeStatus(nil), nodes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, n := range sorted {
		var flags []string
		if n.Dirty {
			flags = append(flags, out.String("dirty").Foreground(out.Color("#fbbf24")).String())
		}
		if n.Reexecuting {
			flags = append(flags, out.String("re-executing").Foreground(out.Color("#60a5fa")).String())
		}
		line := fmt.Sprintf("%-24s %-10s %s", n.ID, n.ViewType, n.Label)
		if len(flags) > 0 {
			line += " [" + strings.Join(flags, ", ") + "]"
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}
