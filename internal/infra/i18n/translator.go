package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// DefaultLang backs up keys a catalog does not define.
const DefaultLang = "en"

// Message keys used by the premium flow.
const (
	KeyActivated        = "premium.activated"
	KeyActivationFailed = "premium.activation_failed"
	KeyCancelled        = "premium.cancelled"
	KeyLoginRequired    = "premium.login_required"
)

// RequiredKeys must resolve in the default catalog.
var RequiredKeys = []string{KeyActivated, KeyActivationFailed, KeyCancelled, KeyLoginRequired}

type catalog map[string]string

type Translator struct {
	lang     string
	messages catalog
	fallback catalog
}

// NewTranslator loads locales/<lang>.yaml from fsys. For a language other than
// DefaultLang the default catalog is loaded too, when present, and consulted
// for keys the language lacks.
func NewTranslator(fsys fs.FS, lang string) (*Translator, error) {
	messages, err := readCatalog(fsys, lang)
	if err != nil {
		return nil, err
	}
	t := &Translator{lang: lang, messages: messages}
	if lang != DefaultLang {
		if fb, err := readCatalog(fsys, DefaultLang); err == nil {
			t.fallback = fb
		}
	}
	return t, nil
}

func readCatalog(fsys fs.FS, lang string) (catalog, error) {
	p := path.Join("locales", lang+".yaml")
	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", p, err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (catalog, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return c, nil
}

// Missing lists the keys that resolve in neither catalog.
func (t *Translator) Missing(keys ...string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := t.lookup(k); !ok {
			out = append(out, k)
		}
	}
	return out
}

func (t *Translator) lookup(key string) (string, bool) {
	if v, ok := t.messages[key]; ok {
		return v, true
	}
	v, ok := t.fallback[key]
	return v, ok
}

// T returns the message for key, formatted with args. Unknown keys return the key itself.
func (t *Translator) T(key string, args ...any) string {
	format, ok := t.lookup(key)
	if !ok {
		return key
	}
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (t *Translator) Lang() string { return t.lang }
