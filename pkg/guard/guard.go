// Package guard provides the pure predicates that gate flow transitions.
//
// A Guard sees a read-only domain.View and the normalized input token. Guards
// never mutate anything; the transition effect is the only writer.
package guard

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// Guard decides whether a transition may be taken.
type Guard func(v domain.View, input string) bool

// Eval runs g and reports a panic as a failed guard.
func Eval(g Guard, v domain.View, input string) (ok bool) {
	if g == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return g(v, input)
}

// Normalize trims and case-folds an input token.
func Normalize(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// Always passes. Used for catch-all transitions.
func Always(domain.View, string) bool { return true }

// OneOf passes when the normalized input equals one of options.
func OneOf(options ...string) Guard {
	set := make(map[string]struct{}, len(options))
	for _, o := range options {
		set[Normalize(o)] = struct{}{}
	}
	return func(_ domain.View, input string) bool {
		_, ok := set[Normalize(input)]
		return ok
	}
}

// All passes when every guard passes.
func All(guards ...Guard) Guard {
	return func(v domain.View, input string) bool {
		for _, g := range guards {
			if !Eval(g, v, input) {
				return false
			}
		}
		return true
	}
}

// Any passes when at least one guard passes.
func Any(guards ...Guard) Guard {
	return func(v domain.View, input string) bool {
		for _, g := range guards {
			if Eval(g, v, input) {
				return true
			}
		}
		return false
	}
}

// Not inverts a guard. A panicking guard counts as failed, so Not of it passes.
func Not(g Guard) Guard {
	return func(v domain.View, input string) bool {
		return !Eval(g, v, input)
	}
}

// PIN passes for exactly length ASCII digits.
func PIN(length int) Guard {
	return func(_ domain.View, input string) bool {
		input = strings.TrimSpace(input)
		if len(input) != length {
			return false
		}
		for _, r := range input {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// Phone passes for an MSISDN in local or international form.
func Phone() Guard {
	return func(_ domain.View, input string) bool {
		return phonePattern.MatchString(strings.TrimSpace(input))
	}
}

// Amount passes for a positive decimal with at most two fractional digits
// inside [min, max]. A max of zero means unbounded.
func Amount(min, max float64) Guard {
	return func(_ domain.View, input string) bool {
		f, ok := ParseAmount(input)
		if !ok {
			return false
		}
		if f < min {
			return false
		}
		return max <= 0 || f <= max
	}
}

// ParseAmount parses a positive amount with at most two decimals.
func ParseAmount(input string) (float64, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, false
	}
	whole, frac, hasFrac := strings.Cut(input, ".")
	if whole == "" || (hasFrac && (len(frac) == 0 || len(frac) > 2)) {
		return 0, false
	}
	for _, part := range []string{whole, frac} {
		for _, r := range part {
			if r < '0' || r > '9' {
				return 0, false
			}
		}
	}
	f, err := strconv.ParseFloat(input, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

// Text passes for printable free text of min..max runes.
func Text(min, max int) Guard {
	return func(_ domain.View, input string) bool {
		input = strings.TrimSpace(input)
		n := utf8.RuneCountInString(input)
		if n < min || (max > 0 && n > max) {
			return false
		}
		for _, r := range input {
			if !unicode.IsPrint(r) {
				return false
			}
		}
		return true
	}
}

// DataNotEqual passes when the input differs from the string stored under key.
// It only reads the key it was given.
func DataNotEqual(key string) Guard {
	return func(v domain.View, input string) bool {
		stored := v.GetString(key)
		return stored == "" || Normalize(stored) != Normalize(input)
	}
}
