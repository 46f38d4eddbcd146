package cli

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/aretw0/ussdflow/internal/runtime"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/formatter"
	"github.com/aretw0/ussdflow/pkg/render"
)

// Severity grades a lint finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one catalog finding.
type Issue struct {
	Severity  Severity
	Language  string
	Namespace string
	Key       string
	Message   string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s/%s.%s: %s", i.Severity, i.Language, i.Namespace, i.Key, i.Message)
}

type msgKey struct{ ns, key string }

// LintOptions describes what the catalog must serve.
type LintOptions struct {
	Languages  []string
	Fallback   string
	Formatters *formatter.Registry
	Table      runtime.Table
}

// LintCatalog checks every template and the coverage of each language.
//
// Errors: malformed templates, unknown formatter tags and flow messages that
// resolve in no language of the fallback chain. Warnings: keys a language
// lacks and serves from the fallback.
func LintCatalog(c *catalog.Catalog, opts LintOptions) []Issue {
	reg := opts.Formatters
	if reg == nil {
		reg = formatter.NewRegistry()
	}

	var issues []Issue
	present := map[string]map[msgKey]bool{}
	var all []msgKey

	_ = c.Walk(func(e catalog.Entry) error {
		k := msgKey{e.Namespace, e.Key}
		if present[e.Language] == nil {
			present[e.Language] = map[msgKey]bool{}
		}
		present[e.Language][k] = true
		if e.Language != catalog.Default && !slices.Contains(all, k) {
			all = append(all, k)
		}

		tmpl, err := render.Parse(e.Text)
		if err != nil {
			issues = append(issues, Issue{SeverityError, e.Language, e.Namespace, e.Key, err.Error()})
			return nil
		}
		for _, p := range tmpl.Placeholders() {
			if p.Tag != "" && !reg.Has(p.Tag) {
				issues = append(issues, Issue{SeverityError, e.Language, e.Namespace, e.Key,
					(&formatter.UnknownFormatterError{Tag: p.Tag}).Error()})
			}
		}
		return nil
	})

	slices.SortFunc(all, func(a, b msgKey) int {
		return cmp.Or(cmp.Compare(a.ns, b.ns), cmp.Compare(a.key, b.key))
	})

	for _, lang := range opts.Languages {
		for _, k := range all {
			if present[lang][k] {
				continue
			}
			served := firstServing(present, []string{opts.Fallback, catalog.Default}, k)
			msg := "missing, no fallback serves it"
			if served != "" {
				msg = "missing, falls back to " + served
			}
			issues = append(issues, Issue{SeverityWarning, lang, k.ns, k.key, msg})
		}

		for _, m := range opts.Table.Messages() {
			if m.IsZero() {
				continue
			}
			chain := []string{lang, opts.Fallback, catalog.Default}
			if firstServing(present, chain, msgKey{m.Namespace, m.Key}) == "" {
				issues = append(issues, Issue{SeverityError, lang, m.Namespace, m.Key, "used by the flow but not resolvable"})
			}
		}
	}
	return issues
}

func firstServing(present map[string]map[msgKey]bool, chain []string, k msgKey) string {
	for _, lang := range chain {
		if present[lang][k] {
			return lang
		}
	}
	return ""
}
