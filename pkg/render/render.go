// Package render resolves localized templates and substitutes placeholder values.
//
// Resolution follows an explicit chain: requested language, then the
// configured fallback language, then the language-independent default layer.
// A template that resolves nowhere is a *MissingTemplateError, never an
// empty string.
package render

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/formatter"
)

// MissingTemplateError is returned when no language of the chain holds the template.
type MissingTemplateError struct {
	Namespace string
	Key       string
	Tried     []string
}

func (e *MissingTemplateError) Error() string {
	return fmt.Sprintf("render: missing template %s.%s (tried %v)", e.Namespace, e.Key, e.Tried)
}

type templateKey struct {
	lang, namespace, key string
}

// Renderer renders catalog templates. It compiles every template up front and
// is read-only afterwards, so one instance serves all sessions concurrently.
type Renderer struct {
	formatters *formatter.Registry
	fallback   string
	templates  map[templateKey]*Template
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithFallback sets the fallback language used when a template is absent in
// the requested language.
func WithFallback(lang string) Option {
	return func(r *Renderer) {
		r.fallback = lang
	}
}

// WithFormatters replaces the default formatter registry.
func WithFormatters(reg *formatter.Registry) Option {
	return func(r *Renderer) {
		r.formatters = reg
	}
}

// New compiles every template of c. It fails when a template is malformed or
// references a formatter tag the registry does not know.
func New(c *catalog.Catalog, opts ...Option) (*Renderer, error) {
	r := &Renderer{
		formatters: formatter.NewRegistry(),
		templates:  make(map[templateKey]*Template),
	}
	for _, opt := range opts {
		opt(r)
	}

	var errs []error
	err := c.Walk(func(e catalog.Entry) error {
		tmpl, err := Parse(e.Text)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s.%s: %w", e.Language, e.Namespace, e.Key, err))
			return nil
		}
		for _, p := range tmpl.Placeholders() {
			if p.Tag != "" && !r.formatters.Has(p.Tag) {
				errs = append(errs, fmt.Errorf("%s/%s.%s: %w", e.Language, e.Namespace, e.Key,
					&formatter.UnknownFormatterError{Tag: p.Tag}))
			}
		}
		r.templates[templateKey{e.Language, e.Namespace, e.Key}] = tmpl
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Chain returns the ordered list of languages tried for lang.
func (r *Renderer) Chain(lang string) []string {
	chain := make([]string, 0, 3)
	for _, l := range []string{lang, r.fallback, catalog.Default} {
		if l != "" && !slices.Contains(chain, l) {
			chain = append(chain, l)
		}
	}
	return chain
}

// Fallback returns the configured fallback language.
func (r *Renderer) Fallback() string {
	return r.fallback
}

// Render resolves (lang, namespace, key) along the fallback chain and
// substitutes v into it. Identical arguments always yield identical text.
func (r *Renderer) Render(lang, namespace, key string, v Values) (string, error) {
	tmpl, _, err := r.resolve(lang, namespace, key)
	if err != nil {
		return "", err
	}
	return tmpl.Execute(r.formatters, v)
}

// Resolve reports which language of the chain serves (namespace, key).
func (r *Renderer) Resolve(lang, namespace, key string) (string, error) {
	_, resolved, err := r.resolve(lang, namespace, key)
	return resolved, err
}

func (r *Renderer) resolve(lang, namespace, key string) (*Template, string, error) {
	chain := r.Chain(lang)
	for _, l := range chain {
		if tmpl, ok := r.templates[templateKey{l, namespace, key}]; ok {
			return tmpl, l, nil
		}
	}
	return nil, "", &MissingTemplateError{Namespace: namespace, Key: key, Tried: chain}
}
