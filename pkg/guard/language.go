package guard

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/aretw0/ussdflow/pkg/domain"
	"golang.org/x/text/language"
)

// LanguageSet describes the languages a caller may select.
//
// Fallback is the language used to resolve missing templates. Whether it is
// also offered as a menu option is a separate knob (FallbackSelectable); the
// two are never conflated.
type LanguageSet struct {
	options  []string
	fallback string
}

// NewLanguageSet builds the selectable option list from the enabled codes.
// When fallbackSelectable is true and fallback is not already enabled, it is
// appended as the last option.
func NewLanguageSet(enabled []string, fallback string, fallbackSelectable bool) (LanguageSet, error) {
	set := LanguageSet{}
	for _, code := range enabled {
		canon, err := canonical(code)
		if err != nil {
			return LanguageSet{}, err
		}
		if !slices.Contains(set.options, canon) {
			set.options = append(set.options, canon)
		}
	}
	if fallback != "" {
		canon, err := canonical(fallback)
		if err != nil {
			return LanguageSet{}, err
		}
		set.fallback = canon
		if fallbackSelectable && !slices.Contains(set.options, canon) {
			set.options = append(set.options, canon)
		}
	}
	if len(set.options) == 0 {
		return LanguageSet{}, fmt.Errorf("no selectable languages configured")
	}
	return set, nil
}

func canonical(code string) (string, error) {
	tag, err := language.Parse(Normalize(code))
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return tag.String(), nil
}

// Options returns the selectable codes in menu order (option 1 first).
func (s LanguageSet) Options() []string {
	return slices.Clone(s.options)
}

// Fallback returns the fallback language code.
func (s LanguageSet) Fallback() string {
	return s.fallback
}

// Resolve maps a menu option ("1") or a language code ("EN") to a selectable code.
func (s LanguageSet) Resolve(input string) (string, bool) {
	input = Normalize(input)
	if input == "" {
		return "", false
	}
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(s.options) {
			return s.options[n-1], true
		}
		return "", false
	}
	tag, err := language.Parse(input)
	if err != nil {
		return "", false
	}
	code := tag.String()
	if slices.Contains(s.options, code) {
		return code, true
	}
	return "", false
}

// Language passes when the input selects one of the set's languages.
func Language(set LanguageSet) Guard {
	return func(_ domain.View, input string) bool {
		_, ok := set.Resolve(input)
		return ok
	}
}
