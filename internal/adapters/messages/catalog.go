package messages

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the fallback for every lookup.
const DefaultLanguage = "en"

// Errors
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNoFallback      = errors.New("catalog has no bundle for the fallback language")
)

//go:embed catalog/*.yaml
var embedded embed.FS

// bundle is one language file.
type bundle struct {
	Language string            `yaml:"language"`
	DateTime dateTimeFormat    `yaml:"datetime"`
	Messages map[string]string `yaml:"messages"`
}

type dateTimeFormat struct {
	Layout string   `yaml:"layout"` // tokens: {time} {day} {month} {year}
	Months []string `yaml:"months"`
}

// Catalog holds localised message texts keyed by message name.
// It is read-only after construction and safe for concurrent use.
type Catalog struct {
	bundles map[language.Tag]*bundle
	tags    []language.Tag // tags[0] is the fallback
	matcher language.Matcher
}

// Load returns the catalog compiled into the binary.
// PRE: none
// POST: Returns a catalog with DefaultLanguage as fallback
func Load() (*Catalog, error) {
	return LoadFS(embedded, "catalog", DefaultLanguage)
}

// LoadFS reads every *.yaml bundle in dir.
// PRE: fsys contains a bundle whose language is fallback
// POST: Returns a ready catalog or an error naming the bad file
func LoadFS(fsys fs.FS, dir, fallback string) (*Catalog, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog files: %w", err)
	}

	fallbackTag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("invalid fallback language %q: %w", fallback, err)
	}

	c := &Catalog{bundles: make(map[language.Tag]*bundle)}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f, err)
		}
		b := &bundle{}
		if err := yaml.Unmarshal(data, b); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f, err)
		}
		tag, err := language.Parse(b.Language)
		if err != nil {
			return nil, fmt.Errorf("invalid language %q in %s: %w", b.Language, f, err)
		}
		c.bundles[tag] = b
	}

	if _, ok := c.bundles[fallbackTag]; !ok {
		return nil, ErrNoFallback
	}

	c.tags = append(c.tags, fallbackTag)
	var others []language.Tag
	for tag := range c.bundles {
		if tag != fallbackTag {
			others = append(others, tag)
		}
	}
	sort.Slice(others, func(i, j int) bool { return others[i].String() < others[j].String() })
	c.tags = append(c.tags, others...)
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// chain returns the bundles to consult for locale, most specific first.
func (c *Catalog) chain(locale string) []*bundle {
	fallback := c.bundles[c.tags[0]]
	tag, err := language.Parse(locale)
	if err != nil {
		return []*bundle{fallback}
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No || idx == 0 {
		return []*bundle{fallback}
	}
	return []*bundle{c.bundles[c.tags[idx]], fallback}
}

// Lookup returns the raw text of key in locale, falling back to the default language.
// PRE: none
// POST: ok is false if no bundle in the chain defines key
func (c *Catalog) Lookup(key, locale string) (string, bool) {
	for _, b := range c.chain(locale) {
		if text, ok := b.Messages[key]; ok {
			return text, true
		}
	}
	return "", false
}

// Exists reports whether key is defined for locale or its fallback.
func (c *Catalog) Exists(key, locale string) bool {
	_, ok := c.Lookup(key, locale)
	return ok
}

// Render looks up key and applies subs to it.
// PRE: subs keys include their sigil, e.g. "$1" or "$PAGEEDITOR"
// POST: Returns the substituted text, or ErrMessageNotFound
func (c *Catalog) Render(key, locale string, subs map[string]string) (string, error) {
	text, ok := c.Lookup(key, locale)
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrMessageNotFound, key, locale)
	}
	return Substitute(text, subs), nil
}

// FormatDateTime renders t with the locale's date layout, e.g. "14:05, 2 March 2026".
// PRE: none
// POST: Returns a non-empty string; t's own location is used
func (c *Catalog) FormatDateTime(locale string, t time.Time) string {
	var f dateTimeFormat
	for _, b := range c.chain(locale) {
		if b.DateTime.Layout != "" {
			f = b.DateTime
			break
		}
	}
	if f.Layout == "" {
		return t.Format("15:04, 2 January 2006")
	}
	month := t.Month().String()
	if len(f.Months) == 12 {
		month = f.Months[t.Month()-1]
	}
	return strings.NewReplacer(
		"{time}", t.Format("15:04"),
		"{day}", strconv.Itoa(t.Day()),
		"{month}", month,
		"{year}", strconv.Itoa(t.Year()),
	).Replace(f.Layout)
}

// Substitute replaces every key of subs in text. At each position the longest matching key wins,
// so "$PAGEEDITOR_EMAIL" is not clobbered by "$PAGEEDITOR". Replaced text is not rescanned.
// PRE: none
// POST: Returns text unchanged if subs is empty
func Substitute(text string, subs map[string]string) string {
	if len(subs) == 0 {
		return text
	}
	keys := make([]string, 0, len(subs))
	for k := range subs {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, subs[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Params maps positional arguments to "$1", "$2", ...
func Params(args ...string) map[string]string {
	m := make(map[string]string, len(args))
	for i, a := range args {
		m["$"+strconv.Itoa(i+1)] = a
	}
	return m
}
