package guard_test

import (
	"testing"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/guard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view() domain.View {
	sess := domain.NewSession("s1", "menu", time.Unix(0, 0))
	sess.Data["account_ref"] = "0712345678"
	return sess.View()
}

func TestOneOf(t *testing.T) {
	g := guard.OneOf("1", "Yes")

	assert.True(t, g(view(), "1"))
	assert.True(t, g(view(), " YES "))
	assert.False(t, g(view(), "2"))
	assert.False(t, g(view(), ""))
}

func TestEval_RecoversPanic(t *testing.T) {
	boom := func(domain.View, string) bool { panic("boom") }

	assert.False(t, guard.Eval(boom, view(), "1"))
	assert.False(t, guard.Eval(guard.All(guard.Always, boom), view(), "1"))
	assert.True(t, guard.Eval(guard.Any(boom, guard.Always), view(), "1"))
	assert.True(t, guard.Eval(nil, view(), "1"))
}

func TestPIN(t *testing.T) {
	g := guard.PIN(4)

	assert.True(t, g(view(), "1234"))
	assert.False(t, g(view(), "123"))
	assert.False(t, g(view(), "12a4"))
	assert.False(t, g(view(), "12345"))
}

func TestPhone(t *testing.T) {
	g := guard.Phone()

	assert.True(t, g(view(), "0712345678"))
	assert.True(t, g(view(), "+254712345678"))
	assert.False(t, g(view(), "12345"))
	assert.False(t, g(view(), "07123abc78"))
}

func TestAmount(t *testing.T) {
	g := guard.Amount(10, 1000)

	tests := []struct {
		input string
		want  bool
	}{
		{"10", true},
		{"999.99", true},
		{"1000", true},
		{"1000.01", false},
		{"9.99", false},
		{"0", false},
		{"-50", false},
		{"12.345", false},
		{"12.", false},
		{"abc", false},
		{"1e3", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, g(view(), tt.input))
		})
	}
}

func TestText(t *testing.T) {
	g := guard.Text(1, 5)

	assert.True(t, g(view(), "hello"))
	assert.False(t, g(view(), "   "))
	assert.False(t, g(view(), "too long"))
}

func TestDataNotEqual(t *testing.T) {
	g := guard.DataNotEqual("account_ref")

	assert.False(t, g(view(), "0712345678"))
	assert.True(t, g(view(), "0799999999"))
}

func TestLanguageSet(t *testing.T) {
	set, err := guard.NewLanguageSet([]string{"en", "SW"}, "sw", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "sw"}, set.Options())

	code, ok := set.Resolve("1")
	assert.True(t, ok)
	assert.Equal(t, "en", code)

	code, ok = set.Resolve(" Sw ")
	assert.True(t, ok)
	assert.Equal(t, "sw", code)

	_, ok = set.Resolve("3")
	assert.False(t, ok)
	_, ok = set.Resolve("fr")
	assert.False(t, ok)
}

func TestLanguageSet_FallbackSelectableIsIndependent(t *testing.T) {
	hidden, err := guard.NewLanguageSet([]string{"en"}, "sw", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, hidden.Options())
	assert.Equal(t, "sw", hidden.Fallback())
	assert.False(t, guard.Language(hidden)(view(), "sw"))

	offered, err := guard.NewLanguageSet([]string{"en"}, "sw", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"en", "sw"}, offered.Options())
	assert.True(t, guard.Language(offered)(view(), "2"))
}

func TestNewLanguageSet_Empty(t *testing.T) {
	_, err := guard.NewLanguageSet(nil, "", true)
	assert.Error(t, err)
}
