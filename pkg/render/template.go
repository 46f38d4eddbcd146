package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/ussdflow/pkg/formatter"
)

// Placeholder is a single substitution point of a template.
// Positional placeholders ({0}) have Index >= 0; named ones ({name}) have Index == -1.
type Placeholder struct {
	Name  string
	Index int
	// Tag is the optional formatter tag, as in {balance|currency}.
	Tag string
}

func (p Placeholder) String() string {
	if p.Tag == "" {
		return "{" + p.Name + "}"
	}
	return "{" + p.Name + "|" + p.Tag + "}"
}

type segment struct {
	literal     string
	placeholder *Placeholder
}

// Template is a parsed catalog entry.
type Template struct {
	segments []segment
}

// MalformedTemplateError is returned for templates that cannot be parsed.
type MalformedTemplateError struct {
	Offset int
	Reason string
}

func (e *MalformedTemplateError) Error() string {
	return fmt.Sprintf("render: malformed template at offset %d: %s", e.Offset, e.Reason)
}

// Parse compiles template text. Literal braces are written doubled: "{{" and "}}".
func Parse(text string) (*Template, error) {
	t := &Template{}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return nil, &MalformedTemplateError{Offset: i, Reason: "unterminated placeholder"}
			}
			p, err := parsePlaceholder(text[i+1 : i+1+end])
			if err != nil {
				return nil, &MalformedTemplateError{Offset: i, Reason: err.Error()}
			}
			flush()
			t.segments = append(t.segments, segment{placeholder: p})
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &MalformedTemplateError{Offset: i, Reason: "unmatched '}'"}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t, nil
}

func parsePlaceholder(body string) (*Placeholder, error) {
	name, tag, hasTag := strings.Cut(body, "|")
	name = strings.TrimSpace(name)
	tag = strings.TrimSpace(tag)

	if name == "" {
		return nil, fmt.Errorf("empty placeholder name")
	}
	if hasTag && tag == "" {
		return nil, fmt.Errorf("empty formatter tag for %q", name)
	}
	if strings.ContainsAny(name, "{ \t\n") || strings.ContainsAny(tag, "{| \t\n") {
		return nil, fmt.Errorf("invalid placeholder %q", body)
	}

	p := &Placeholder{Name: name, Index: -1, Tag: tag}
	if idx, err := strconv.Atoi(name); err == nil {
		if idx < 0 {
			return nil, fmt.Errorf("negative positional index %d", idx)
		}
		p.Index = idx
	}
	return p, nil
}

// Placeholders returns the placeholders of the template in order of appearance.
func (t *Template) Placeholders() []Placeholder {
	var out []Placeholder
	for _, s := range t.segments {
		if s.placeholder != nil {
			out = append(out, *s.placeholder)
		}
	}
	return out
}

// MissingValueError is returned when a placeholder has no value to substitute.
type MissingValueError struct {
	Placeholder Placeholder
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("render: no value for placeholder %s", e.Placeholder)
}

// Execute substitutes values into the template.
func (t *Template) Execute(reg *formatter.Registry, v Values) (string, error) {
	var b strings.Builder
	for _, s := range t.segments {
		if s.placeholder == nil {
			b.WriteString(s.literal)
			continue
		}
		p := *s.placeholder

		val, ok := v.lookup(p)
		if !ok {
			return "", &MissingValueError{Placeholder: p}
		}

		if p.Tag != "" {
			text, err := reg.Format(p.Tag, val)
			if err != nil {
				return "", fmt.Errorf("placeholder %s: %w", p, err)
			}
			b.WriteString(text)
			continue
		}
		b.WriteString(plain(val))
	}
	return b.String(), nil
}

func plain(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// Values carries the data substituted into a template.
type Values struct {
	// Args fills positional placeholders by index.
	Args []any
	// Named fills named placeholders by key.
	Named map[string]any
}

// Args builds positional values.
func Args(args ...any) Values {
	return Values{Args: args}
}

// Named builds named values.
func Named(named map[string]any) Values {
	return Values{Named: named}
}

func (v Values) lookup(p Placeholder) (any, bool) {
	if p.Index >= 0 {
		if p.Index < len(v.Args) {
			return v.Args[p.Index], v.Args[p.Index] != nil
		}
		return nil, false
	}
	val, ok := v.Named[p.Name]
	return val, ok && val != nil
}
