package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the simulator banner.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{"  _   _ ___ ___ ___    __ _             ", "#34d399"},
		{" | | | / __/ __|   \\  / _| |_____ __ __", "#2dd4bf"},
		{" | |_| \\__ \\__ \\ |) ||  _| / _ \\ V  V /", "#22d3ee"},
		{"  \\___/|___/___/___/ |_| |_\\___/\\_/\\_/ ", "#38bdf8"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  simulator "+version).Faint())
	fmt.Fprintln(w)
}
