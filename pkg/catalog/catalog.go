// Package catalog loads localized message templates grouped by language and
// feature namespace.
//
// Catalog files live under locales/<language>/<namespace>.yaml (or .toml).
// The special language directory "und" holds language-independent defaults
// used as the last step of the renderer fallback chain.
package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Default is the language directory holding language-independent templates.
var Default = language.Und.String()

type catalogFile struct {
	Locale    string            `yaml:"locale" toml:"locale"`
	Namespace string            `yaml:"namespace" toml:"namespace"`
	Messages  map[string]string `yaml:"messages" toml:"messages"`
}

// Catalog is an immutable set of templates: language -> namespace -> key -> text.
// It is safe for concurrent reads once returned by a loader.
type Catalog struct {
	langs map[string]map[string]map[string]string
}

// LoadDir loads catalog files from a directory on disk.
func LoadDir(dir string) (*Catalog, error) {
	return Load(os.DirFS(dir))
}

// Load loads every catalog file found under locales/ in fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	var paths []string
	for _, pattern := range []string{"locales/*/*.yaml", "locales/*/*.yml", "locales/*/*.toml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob locale catalogs: %w", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	sort.Strings(paths)

	c := &Catalog{langs: map[string]map[string]map[string]string{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", p, err)
		}
		parsed, err := parseFile(p, data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", p, err)
		}
		if err := c.add(p, parsed); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// New builds a catalog from an in-memory tree, validating language codes.
// It is mostly useful for tests and embedding hosts.
func New(tree map[string]map[string]map[string]string) (*Catalog, error) {
	c := &Catalog{langs: map[string]map[string]map[string]string{}}
	for lang, namespaces := range tree {
		for ns, messages := range namespaces {
			file := catalogFile{Locale: lang, Namespace: ns, Messages: messages}
			if err := c.add(path.Join("locales", lang, ns+".yaml"), file); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func parseFile(p string, data []byte) (catalogFile, error) {
	var file catalogFile
	switch path.Ext(p) {
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return file, err
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return file, err
		}
	}
	return file, nil
}

func (c *Catalog) add(p string, file catalogFile) error {
	langFromPath := path.Base(path.Dir(p))
	nsFromPath := strings.TrimSuffix(path.Base(p), path.Ext(p))

	lang, err := Canonical(langFromPath)
	if err != nil {
		return fmt.Errorf("catalog %s: %w", p, err)
	}
	if declared := strings.TrimSpace(file.Locale); declared != "" {
		declaredLang, err := Canonical(declared)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", p, err)
		}
		if declaredLang != lang {
			return fmt.Errorf("catalog %s: locale %q must match path locale %q", p, declared, langFromPath)
		}
	}

	ns := strings.TrimSpace(file.Namespace)
	if ns == "" {
		ns = nsFromPath
	}
	if ns != nsFromPath {
		return fmt.Errorf("catalog %s: namespace %q must match filename namespace %q", p, ns, nsFromPath)
	}
	if file.Messages == nil {
		return fmt.Errorf("catalog %s: messages map is required", p)
	}

	namespaces, ok := c.langs[lang]
	if !ok {
		namespaces = map[string]map[string]string{}
		c.langs[lang] = namespaces
	}
	if _, exists := namespaces[ns]; exists {
		return fmt.Errorf("catalog %s: namespace %q already defined for locale %q", p, ns, lang)
	}

	messages := make(map[string]string, len(file.Messages))
	for key, value := range file.Messages {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			return fmt.Errorf("catalog %s: message key cannot be blank", p)
		}
		messages[trimmed] = value
	}
	namespaces[ns] = messages
	return nil
}

// Canonical normalizes a language code ("EN", " sw ") to its canonical
// BCP 47 form ("en", "sw").
func Canonical(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("empty language code")
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return tag.String(), nil
}

// Lookup returns the raw template for (lang, namespace, key).
func (c *Catalog) Lookup(lang, namespace, key string) (string, bool) {
	namespaces, ok := c.langs[lang]
	if !ok {
		return "", false
	}
	messages, ok := namespaces[namespace]
	if !ok {
		return "", false
	}
	text, ok := messages[key]
	return text, ok
}

// HasLanguage reports whether any template exists for lang.
func (c *Catalog) HasLanguage(lang string) bool {
	_, ok := c.langs[lang]
	return ok
}

// Languages returns the loaded languages in sorted order, excluding the
// language-independent default layer.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.langs))
	for lang := range c.langs {
		if lang != Default {
			out = append(out, lang)
		}
	}
	sort.Strings(out)
	return out
}

// Entry is one template as visited by Walk.
type Entry struct {
	Language  string
	Namespace string
	Key       string
	Text      string
}

// Walk visits every template in deterministic order.
func (c *Catalog) Walk(fn func(Entry) error) error {
	langs := make([]string, 0, len(c.langs))
	for lang := range c.langs {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	for _, lang := range langs {
		namespaces := c.langs[lang]
		nsNames := make([]string, 0, len(namespaces))
		for ns := range namespaces {
			nsNames = append(nsNames, ns)
		}
		sort.Strings(nsNames)
		for _, ns := range nsNames {
			keys := make([]string, 0, len(namespaces[ns]))
			for k := range namespaces[ns] {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				if err := fn(Entry{Language: lang, Namespace: ns, Key: k, Text: namespaces[ns][k]}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
