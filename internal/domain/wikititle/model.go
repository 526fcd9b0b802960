package wikititle

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Namespace numbers as stored in the wiki's link and watchlist tables.
const (
	NSMedia         = -2
	NSSpecial       = -1
	NSMain          = 0
	NSTalk          = 1
	NSUser          = 2
	NSUserTalk      = 3
	NSProject       = 4
	NSProjectTalk   = 5
	NSFile          = 6
	NSFileTalk      = 7
	NSMediaWiki     = 8
	NSMediaWikiTalk = 9
	NSTemplate      = 10
	NSTemplateTalk  = 11
	NSHelp          = 12
	NSHelpTalk      = 13
	NSCategory      = 14
	NSCategoryTalk  = 15
)

// namespaceNames maps the built-in namespace numbers to their canonical prefixes.
// Extension and site-defined namespaces (100 and up) are not listed; their prefix comes from the caller.
var namespaceNames = map[int]string{
	NSMedia:         "Media",
	NSSpecial:       "Special",
	NSMain:          "",
	NSTalk:          "Talk",
	NSUser:          "User",
	NSUserTalk:      "User talk",
	NSProject:       "Project",
	NSProjectTalk:   "Project talk",
	NSFile:          "File",
	NSFileTalk:      "File talk",
	NSMediaWiki:     "MediaWiki",
	NSMediaWikiTalk: "MediaWiki talk",
	NSTemplate:      "Template",
	NSTemplateTalk:  "Template talk",
	NSHelp:          "Help",
	NSHelpTalk:      "Help talk",
	NSCategory:      "Category",
	NSCategoryTalk:  "Category talk",
}

// Domain errors
var (
	ErrEmptyTitle       = errors.New("title cannot be empty")
	ErrIllegalCharacter = errors.New("title contains an illegal character")
	ErrUnknownNamespace = errors.New("unknown namespace")
	ErrInvalidPrefix    = errors.New("namespace prefix is invalid")
)

// illegalChars cannot appear in any title.
const illegalChars = "#<>[]|{}"

// Title identifies a wiki page by namespace and normalised text.
type Title struct {
	Namespace int
	Text      string // normalised: spaces, no leading/trailing whitespace, first letter upper-cased
	Prefix    string // namespace prefix as the wiki displays it; empty means the canonical name
}

// New builds a Title from raw text in the given namespace.
// Non-negative namespaces without a canonical name are accepted and display without a prefix;
// use NewWithPrefix when the wiki supplies one.
// PRE: none
// POST: Returns a normalised Title or an error if the text is empty, illegal, or the namespace is an unknown virtual one
func New(namespace int, text string) (Title, error) {
	if _, ok := namespaceNames[namespace]; !ok && namespace < 0 {
		return Title{}, ErrUnknownNamespace
	}
	norm := Normalize(text)
	if norm == "" {
		return Title{}, ErrEmptyTitle
	}
	if strings.ContainsAny(norm, illegalChars) {
		return Title{}, ErrIllegalCharacter
	}
	return Title{Namespace: namespace, Text: norm}, nil
}

// NewWithPrefix is New with the wiki's own name for the namespace, e.g. a localised
// "Datei" for File or "Recipe" for a site-defined namespace. An empty prefix falls back to New.
// PRE: none
// POST: Returns a Title whose PrefixedText starts with the normalised prefix
func NewWithPrefix(namespace int, prefix, text string) (Title, error) {
	t, err := New(namespace, text)
	if err != nil {
		return Title{}, err
	}
	if strings.TrimSpace(prefix) == "" {
		return t, nil
	}
	if namespace == NSMain || strings.ContainsAny(prefix, illegalChars+":") {
		return Title{}, ErrInvalidPrefix
	}
	t.Prefix = Normalize(prefix)
	return t, nil
}

// Category is shorthand for New(NSCategory, name).
func Category(name string) (Title, error) {
	return New(NSCategory, name)
}

// Normalize converts a raw title or DB key into its canonical display form.
// Underscores become spaces, runs of whitespace collapse, and the first letter is upper-cased.
// PRE: none
// POST: Returns "" if s contains nothing but whitespace and underscores
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// DBKey returns the normalised name with spaces replaced by underscores.
func DBKey(s string) string {
	return strings.ReplaceAll(Normalize(s), " ", "_")
}

// DBKey returns the title text in storage form.
// INVARIANT: Title fields are not mutated
func (t Title) DBKey() string {
	return strings.ReplaceAll(t.Text, " ", "_")
}

// PrefixedText returns the title with its namespace prefix, e.g. "Category:Birds of prey".
// INVARIANT: Title fields are not mutated
func (t Title) PrefixedText() string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = namespaceNames[t.Namespace]
	}
	if prefix == "" {
		return t.Text
	}
	return prefix + ":" + t.Text
}

// PrefixedDBKey returns PrefixedText in storage form.
// INVARIANT: Title fields are not mutated
func (t Title) PrefixedDBKey() string {
	return strings.ReplaceAll(t.PrefixedText(), " ", "_")
}

// String implements fmt.Stringer.
func (t Title) String() string {
	return t.PrefixedText()
}

// Linker builds absolute URLs for titles on one wiki.
type Linker struct {
	BaseURL     string // e.g. "https://wiki.example.org"
	ArticlePath string // e.g. "/wiki/$1"
	ScriptPath  string // e.g. "/index.php"
}

// FullURL returns the canonical view URL of t.
// PRE: BaseURL is set
// POST: Returns BaseURL + ArticlePath with $1 replaced by the encoded prefixed DB key
func (l Linker) FullURL(t Title) string {
	path := l.ArticlePath
	if path == "" {
		path = "/wiki/$1"
	}
	return strings.TrimRight(l.BaseURL, "/") + strings.Replace(path, "$1", encode(t.PrefixedDBKey()), 1)
}

// ActionURL returns the script URL that performs action on t, e.g. action=unwatch.
// PRE: BaseURL is set; action is non-empty
// POST: Returns an absolute index.php URL
func (l Linker) ActionURL(t Title, action string) string {
	script := l.ScriptPath
	if script == "" {
		script = "/index.php"
	}
	return strings.TrimRight(l.BaseURL, "/") + script + "?title=" + encode(t.PrefixedDBKey()) + "&action=" + url.QueryEscape(action)
}

// UserPageURL returns the URL of a user's page.
func (l Linker) UserPageURL(name string) string {
	return l.FullURL(Title{Namespace: NSUser, Text: Normalize(name)})
}

// EmailUserURL returns the URL of the Special:EmailUser form for name.
func (l Linker) EmailUserURL(name string) string {
	return l.FullURL(Title{Namespace: NSSpecial, Text: "EmailUser/" + Normalize(name)})
}

// encode escapes a DB key the way the wiki does for URLs: path-escaped, keeping ':' and '/'.
func encode(key string) string {
	return strings.ReplaceAll(url.PathEscape(key), "%2F", "/")
}
