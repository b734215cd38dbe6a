package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the PageBuilder banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text  string
		color string
	}{
		{" ___                 ___      _ _    _", "#818cf8"},
		{"| _ \\__ _ __ _ ___  | _ )_  _(_) |__| |___ _ _", "#a78bfa"},
		{"|  _/ _` / _` / -_) | _ \\ || | | / _` / -_) '_|", "#c084fc"},
		{"|_| \\__,_\\__, \\___| |___/\\_,_|_|_\\__,_\\___|_|", "#e879f9"},
		{"         |___/", "#f472b6"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
