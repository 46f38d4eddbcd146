// Package tui draws the terminal simulator of a handset screen.
package tui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/muesli/termenv"
)

// ScreenWidth is the inner width of the drawn handset display.
const ScreenWidth = 32

// Screen renders replies as a boxed handset display.
type Screen struct {
	w   io.Writer
	out *termenv.Output
}

// NewScreen writes to w. Colors are disabled when w is not a terminal.
func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w, out: termenv.NewOutput(w)}
}

// Reply draws one reply with its gateway framing marker.
func (s *Screen) Reply(reply domain.Reply) {
	marker := s.out.String(" CON ").Background(s.out.Color("#16a34a")).Foreground(s.out.Color("#ffffff"))
	if !reply.Continue {
		marker = s.out.String(" END ").Background(s.out.Color("#dc2626")).Foreground(s.out.Color("#ffffff"))
	}

	border := "+" + strings.Repeat("-", ScreenWidth+2) + "+"
	fmt.Fprintln(s.w, border)
	for _, line := range Wrap(reply.Text, ScreenWidth) {
		pad := ScreenWidth - utf8.RuneCountInString(line)
		fmt.Fprintf(s.w, "| %s%s |\n", line, strings.Repeat(" ", pad))
	}
	fmt.Fprintln(s.w, border)
	fmt.Fprintln(s.w, marker)
}

// Info prints a faint status line.
func (s *Screen) Info(format string, args ...any) {
	fmt.Fprintln(s.w, s.out.String(fmt.Sprintf(format, args...)).Faint())
}

// Error prints an error line.
func (s *Screen) Error(err error) {
	fmt.Fprintln(s.w, s.out.String("error: "+err.Error()).Foreground(s.out.Color("#dc2626")))
}

// Wrap splits text into lines of at most width runes, breaking on spaces
// where possible and keeping existing newlines.
func Wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var cur []rune
		for _, word := range words {
			r := []rune(word)
			for len(r) > width {
				if len(cur) > 0 {
					lines = append(lines, string(cur))
					cur = nil
				}
				lines = append(lines, string(r[:width]))
				r = r[width:]
			}
			switch {
			case len(cur) == 0:
				cur = r
			case len(cur)+1+len(r) <= width:
				cur = append(append(cur, ' '), r...)
			default:
				lines = append(lines, string(cur))
				cur = r
			}
		}
		if len(cur) > 0 {
			lines = append(lines, string(cur))
		}
	}
	return lines
}

// Prompt prints the input cursor.
func (s *Screen) Prompt() {
	fmt.Fprint(s.w, s.out.String("> ").Bold())
}
