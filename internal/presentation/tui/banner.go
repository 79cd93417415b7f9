package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the amrviz banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"    __ _ _ __ ___  _ ____   _(_)____", "#34d399"},
		{"   / _` | '_ ` _ \\| '__\\ \\ / / |_  /", "#2dd4bf"},
		{"  | (_| | | | | | | |   \\ V /| |/ / ", "#22d3ee"},
		{"   \\__,_|_| |_| |_|_|    \\_/ |_/___|", "#38bdf8"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
