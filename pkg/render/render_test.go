package render_test

import (
	"testing"

	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/formatter"
	"github.com/aretw0/ussdflow/pkg/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRenderer(t *testing.T, tree map[string]map[string]map[string]string, opts ...render.Option) *render.Renderer {
	t.Helper()
	c, err := catalog.New(tree)
	require.NoError(t, err)
	r, err := render.New(c, opts...)
	require.NoError(t, err)
	return r
}

func TestRender_CurrencyScenario(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en": {"main": {"balance": "CON Balance: {0|currency} KES"}},
	})

	got, err := r.Render("en", "main", "balance", render.Args(1234.5))
	require.NoError(t, err)
	assert.Equal(t, "CON Balance: 1234.50 KES", got)
}

func TestRender_NamedAndPositional(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en": {"main": {"confirm": "Send {amount|currency} to {recipient|mask}? {0}"}},
	})

	got, err := r.Render("en", "main", "confirm", render.Values{
		Args:  []any{"1. Yes"},
		Named: map[string]any{"amount": 50, "recipient": "0712345678"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Send 50.00 to 071****678? 1. Yes", got)
}

func TestRender_FallbackChain(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en":  {"main": {"menu": "Hello {name}", "only_en": "x"}},
		"sw":  {"main": {"menu": "Habari {name}"}},
		"und": {"helpers": {"system_error": "Error"}},
	}, render.WithFallback("sw"))

	t.Run("exact", func(t *testing.T) {
		got, err := r.Render("en", "main", "menu", render.Named(map[string]any{"name": "Ana"}))
		require.NoError(t, err)
		assert.Equal(t, "Hello Ana", got)
	})

	t.Run("missing language uses fallback with same substitutions", func(t *testing.T) {
		got, err := r.Render("fr", "main", "menu", render.Named(map[string]any{"name": "Ana"}))
		require.NoError(t, err)
		assert.Equal(t, "Habari Ana", got)
	})

	t.Run("language-independent default", func(t *testing.T) {
		got, err := r.Render("en", "helpers", "system_error", render.Values{})
		require.NoError(t, err)
		assert.Equal(t, "Error", got)

		resolved, err := r.Resolve("en", "helpers", "system_error")
		require.NoError(t, err)
		assert.Equal(t, catalog.Default, resolved)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		_, err := r.Render("sw", "main", "nope", render.Values{})
		var missing *render.MissingTemplateError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{"sw", "und"}, missing.Tried)
	})
}

func TestRender_MissingValueFailsLoudly(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en": {"main": {"balance": "Balance: {0|currency} {currency_code}"}},
	})

	_, err := r.Render("en", "main", "balance", render.Args(10.0))

	var missing *render.MissingValueError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "currency_code", missing.Placeholder.Name)
}

func TestRender_FormatterTypeMismatch(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en": {"main": {"balance": "Balance: {0|currency}"}},
	})

	_, err := r.Render("en", "main", "balance", render.Args("lots"))

	var mismatch *formatter.TypeMismatchError
	assert.ErrorAs(t, err, &mismatch)
}

func TestRender_Idempotent(t *testing.T) {
	r := newRenderer(t, map[string]map[string]map[string]string{
		"en": {"main": {"t": "{0} {a|upper} {{literal}}"}},
	})
	v := render.Values{Args: []any{7}, Named: map[string]any{"a": "x"}}

	first, err := r.Render("en", "main", "t", v)
	require.NoError(t, err)
	second, err := r.Render("en", "main", "t", v)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "7 X {literal}", first)
}

func TestNew_RejectsUnknownFormatterAndMalformed(t *testing.T) {
	c, err := catalog.New(map[string]map[string]map[string]string{
		"en": {"main": {
			"bad_tag":  "{0|percent}",
			"unclosed": "Hello {name",
		}},
	})
	require.NoError(t, err)

	_, err = render.New(c)
	require.Error(t, err)

	var unknown *formatter.UnknownFormatterError
	assert.ErrorAs(t, err, &unknown)
	var malformed *render.MalformedTemplateError
	assert.ErrorAs(t, err, &malformed)
}

func TestParse_Placeholders(t *testing.T) {
	tmpl, err := render.Parse("{0} {name|currency} }}")
	require.NoError(t, err)

	ph := tmpl.Placeholders()
	require.Len(t, ph, 2)
	assert.Equal(t, 0, ph[0].Index)
	assert.Equal(t, "name", ph[1].Name)
	assert.Equal(t, -1, ph[1].Index)
	assert.Equal(t, "currency", ph[1].Tag)

	_, err = render.Parse("stray } brace")
	assert.Error(t, err)
}
