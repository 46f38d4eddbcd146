package http

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxInputBytes bounds the accumulated input of one request.
// Gateways cap a USSD string at 182 characters.
const DefaultMaxInputBytes = 182

// maxSessionIDBytes bounds the gateway session identifier.
const maxSessionIDBytes = 128

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
	ErrMissingID     = errors.New("session id is required")
)

// SanitizeInput enforces the size limit, validates UTF-8 and strips control
// characters. USSD input is a single line, so newlines go too.
func SanitizeInput(input string, limit int) (string, error) {
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(input, unicode.IsControl) < 0 {
		return input, nil
	}
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

// sanitizeID validates a session identifier without rewriting it.
func sanitizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMissingID
	}
	if len(id) > maxSessionIDBytes {
		return "", fmt.Errorf("%w: session id size=%d limit=%d", ErrInputTooLarge, len(id), maxSessionIDBytes)
	}
	if !utf8.ValidString(id) {
		return "", ErrInvalidUTF8
	}
	if strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", fmt.Errorf("session id contains control characters")
	}
	return id, nil
}
