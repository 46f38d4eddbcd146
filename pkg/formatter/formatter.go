// Package formatter holds the registry of value-to-text conversions
// referenced from template placeholders such as {balance|currency}.
//
// Formatters are selected by tag, never by language, so output is
// locale-stable no matter which translation is being rendered.
package formatter

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Func converts a value into display text.
// It returns a *TypeMismatchError for value types it does not support.
type Func func(value any) (string, error)

// UnknownFormatterError is returned when a placeholder names an unregistered tag.
type UnknownFormatterError struct {
	Tag string
}

func (e *UnknownFormatterError) Error() string {
	return fmt.Sprintf("formatter: unknown formatter tag %q", e.Tag)
}

// TypeMismatchError is returned when a formatter receives a value type it does not declare.
type TypeMismatchError struct {
	Tag   string
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("formatter: %q cannot format value of type %T", e.Tag, e.Value)
}

// Registry maps formatter tags to their functions.
// It is built once at startup and is read-only afterwards, so it is safe for
// concurrent use without locking.
type Registry struct {
	funcs map[string]Func
}

// Option configures a Registry.
type Option func(map[string]Func)

// With registers (or overrides) a formatter tag.
func With(tag string, fn Func) Option {
	return func(m map[string]Func) {
		m[tag] = fn
	}
}

// NewRegistry creates a registry containing the builtin formatters plus opts.
func NewRegistry(opts ...Option) *Registry {
	funcs := map[string]Func{
		"currency": Currency,
		"integer":  Integer,
		"upper":    Upper,
		"lower":    Lower,
		"mask":     Mask,
	}
	for _, opt := range opts {
		opt(funcs)
	}
	return &Registry{funcs: funcs}
}

// Format applies the formatter registered for tag to value.
func (r *Registry) Format(tag string, value any) (string, error) {
	fn, ok := r.funcs[tag]
	if !ok {
		return "", &UnknownFormatterError{Tag: tag}
	}
	return fn(value)
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	_, ok := r.funcs[tag]
	return ok
}

// Tags returns the registered tags in sorted order.
func (r *Registry) Tags() []string {
	return slices.Sorted(maps.Keys(r.funcs))
}

// Currency renders a number as two-decimal fixed point ("1234.50").
// The value is rounded as written in decimal, halves away from zero, so a
// backend balance of 1.005 renders "1.01" although its binary value is below it.
func Currency(value any) (string, error) {
	f, ok := toFloat(value)
	if !ok {
		return "", &TypeMismatchError{Tag: "currency", Value: value}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &TypeMismatchError{Tag: "currency", Value: value}
	}
	exact, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'f', -1, 64))
	if !ok {
		return "", &TypeMismatchError{Tag: "currency", Value: value}
	}
	return exact.FloatString(2), nil
}

// Integer renders a whole number without decimals. Fractions are truncated toward zero.
func Integer(value any) (string, error) {
	f, ok := toFloat(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return "", &TypeMismatchError{Tag: "integer", Value: value}
	}
	return strconv.FormatInt(int64(f), 10), nil
}

// Upper renders a string in upper case.
func Upper(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &TypeMismatchError{Tag: "upper", Value: value}
	}
	return strings.ToUpper(s), nil
}

// Lower renders a string in lower case.
func Lower(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &TypeMismatchError{Tag: "lower", Value: value}
	}
	return strings.ToLower(s), nil
}

// Mask hides the middle of a phone number or address, keeping three
// characters on each side ("0712345678" -> "071****678").
func Mask(value any) (string, error) {
	s, ok := value.(string)
	if !ok {
		return "", &TypeMismatchError{Tag: "mask", Value: value}
	}
	n := utf8.RuneCountInString(s)
	if n <= 6 {
		return strings.Repeat("*", n), nil
	}
	r := []rune(s)
	return string(r[:3]) + strings.Repeat("*", n-6) + string(r[n-3:]), nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
