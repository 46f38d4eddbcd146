package cli

import (
	"testing"

	"github.com/aretw0/ussdflow"
	"github.com/aretw0/ussdflow/internal/runtime"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorsOf(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

func TestLintCatalog_EmbeddedFlows(t *testing.T) {
	svc, err := ussdflow.New()
	require.NoError(t, err)

	issues := LintCatalog(svc.Catalog(), LintOptions{
		Languages: []string{"en", "sw"},
		Fallback:  "en",
		Table:     svc.Table(),
	})

	assert.Empty(t, errorsOf(issues))
	assert.Contains(t, issues, Issue{
		Severity:  SeverityWarning,
		Language:  "sw",
		Namespace: "helpers",
		Key:       "wallet_unknown_recipient",
		Message:   "missing, falls back to en",
	})
}

func TestLintCatalog_Findings(t *testing.T) {
	c, err := catalog.New(map[string]map[string]map[string]string{
		"en": {"main": {
			"ok":      "Hello {name}",
			"bad_tag": "Balance {balance|bogus}",
			"broken":  "Hello {name",
			"only_en": "x",
		}},
		"fr": {"main": {"ok": "Bonjour {name}"}},
	})
	require.NoError(t, err)

	issues := LintCatalog(c, LintOptions{Languages: []string{"fr"}, Fallback: ""})

	errs := errorsOf(issues)
	require.Len(t, errs, 2)
	assert.Equal(t, "bad_tag", errs[0].Key)
	assert.Contains(t, errs[0].Message, "bogus")
	assert.Equal(t, "broken", errs[1].Key)

	assert.Contains(t, issues, Issue{SeverityWarning, "fr", "main", "only_en", "missing, no fallback serves it"})
}

func TestLintCatalog_UnresolvableFlowMessage(t *testing.T) {
	c, err := catalog.New(map[string]map[string]map[string]string{
		"en": {"main": {"menu": "Menu"}},
	})
	require.NoError(t, err)

	table := runtime.Table{
		Invalid:     runtime.Message{Namespace: "main", Key: "menu"},
		RetryLimit:  runtime.Message{Namespace: "main", Key: "menu"},
		SystemError: runtime.Message{Namespace: "helpers", Key: "system_error"},
	}
	issues := LintCatalog(c, LintOptions{Languages: []string{"en"}, Fallback: "en", Table: table})

	require.Len(t, issues, 1)
	assert.Equal(t, Issue{SeverityError, "en", "helpers", "system_error", "used by the flow but not resolvable"}, issues[0])
}
