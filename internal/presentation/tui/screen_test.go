package tui_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/ussdflow/internal/presentation/tui"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"Short", "Main menu", 20, []string{"Main menu"}},
		{"Newlines Kept", "a\nb", 20, []string{"a", "b"}},
		{"Word Break", "Enter the amount to send", 10, []string{"Enter the", "amount to", "send"}},
		{"Long Word", "abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"Blank Line", "a\n\nb", 5, []string{"a", "", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tui.Wrap(tt.text, tt.width))
		})
	}
}

func TestScreen_Reply(t *testing.T) {
	var buf bytes.Buffer
	s := tui.NewScreen(&buf)

	s.Reply(domain.Reply{Text: "Main menu\n1. Check balance", Continue: true})
	out := buf.String()
	assert.Contains(t, out, "| Main menu")
	assert.Contains(t, out, "| 1. Check balance")
	assert.Contains(t, out, "CON")

	buf.Reset()
	s.Reply(domain.Reply{Text: "Goodbye."})
	assert.Contains(t, buf.String(), "END")
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.HasPrefix(line, "|") {
			assert.Equal(t, tui.ScreenWidth+4, len([]rune(line)))
		}
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "v1.2.3")
	assert.Contains(t, buf.String(), "simulator v1.2.3")
}
