package catalog_test

import (
	"testing"
	"testing/fstest"

	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_YAMLAndTOML(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en/main.yaml": {Data: []byte(`
locale: en
namespace: main
messages:
  menu: "1. Balance\n2. Send"
`)},
		"locales/sw/main.toml": {Data: []byte(`
locale = "sw"
namespace = "main"

[messages]
menu = "1. Salio\n2. Tuma"
`)},
		"locales/und/helpers.yaml": {Data: []byte(`
messages:
  system_error: "Service unavailable"
`)},
	}

	c, err := catalog.Load(fsys)
	require.NoError(t, err)

	text, ok := c.Lookup("en", "main", "menu")
	require.True(t, ok)
	assert.Equal(t, "1. Balance\n2. Send", text)

	text, ok = c.Lookup("sw", "main", "menu")
	require.True(t, ok)
	assert.Equal(t, "1. Salio\n2. Tuma", text)

	_, ok = c.Lookup(catalog.Default, "helpers", "system_error")
	assert.True(t, ok)

	assert.Equal(t, []string{"en", "sw"}, c.Languages())
	assert.True(t, c.HasLanguage(catalog.Default))
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "no files",
			fsys: fstest.MapFS{"README.md": {Data: []byte("x")}},
		},
		{
			name: "locale mismatch",
			fsys: fstest.MapFS{"locales/en/main.yaml": {Data: []byte("locale: sw\nmessages:\n  a: b\n")}},
		},
		{
			name: "namespace mismatch",
			fsys: fstest.MapFS{"locales/en/main.yaml": {Data: []byte("namespace: settings\nmessages:\n  a: b\n")}},
		},
		{
			name: "missing messages",
			fsys: fstest.MapFS{"locales/en/main.yaml": {Data: []byte("locale: en\n")}},
		},
		{
			name: "invalid language directory",
			fsys: fstest.MapFS{"locales/not_a_language!/main.yaml": {Data: []byte("messages:\n  a: b\n")}},
		},
		{
			name: "duplicate namespace across formats",
			fsys: fstest.MapFS{
				"locales/en/main.yaml": {Data: []byte("messages:\n  a: b\n")},
				"locales/en/main.toml": {Data: []byte("[messages]\na = \"b\"\n")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.Load(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestCanonical(t *testing.T) {
	got, err := catalog.Canonical(" EN ")
	require.NoError(t, err)
	assert.Equal(t, "en", got)

	_, err = catalog.Canonical("")
	assert.Error(t, err)
}

func TestWalk_IsDeterministic(t *testing.T) {
	c, err := catalog.New(map[string]map[string]map[string]string{
		"sw": {"main": {"b": "2", "a": "1"}},
		"en": {"main": {"a": "1"}},
	})
	require.NoError(t, err)

	var visited []string
	err = c.Walk(func(e catalog.Entry) error {
		visited = append(visited, e.Language+"/"+e.Namespace+"/"+e.Key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"en/main/a", "sw/main/a", "sw/main/b"}, visited)
}
