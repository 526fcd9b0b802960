package orchestrators

import (
	"fmt"
	"html"
	"log/slog"
	"maps"
	"strings"
	"time"

	"categorywatch/internal/adapters/messages"
	"categorywatch/internal/adapters/render"
	"categorywatch/internal/domain/category"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/wikititle"
)

// Message keys used when composing category notifications.
const (
	msgSubject    = "categorywatch-emailsubject"
	msgMoveIn     = "categorywatch-catmovein"
	msgAdded      = "categorywatch-catadd"
	msgChanged    = "changed"
	msgMinorEdit  = "minoredit"
	msgAnonEditor = "enotif_anon_editor"
	msgNoEmail    = "noemailtitle"
	msgBody       = "enotif_body"
	msgBodyHTML   = "enotif_body_html"
)

// MessageCatalog renders localised message templates.
type MessageCatalog interface {
	Render(key, locale string, subs map[string]string) (string, error)
	Exists(key, locale string) bool
	FormatDateTime(locale string, t time.Time) string
}

// HTMLTransformer turns substituted HTML template text into the final mail HTML.
type HTMLTransformer interface {
	Transform(markup string) (string, error)
}

// ComposeDeps holds dependencies for composing notifications.
type ComposeDeps struct {
	Messages       MessageCatalog
	Transformer    HTMLTransformer
	Linker         wikititle.Linker
	Locale         string
	SiteName       string
	HelpPageURL    string
	ServerLocation *time.Location // zone used when a recipient has no time correction
	UseRealName    bool           // address recipients by real name
}

// CategoryNotice is the part of a notification shared by every watcher of one category.
// It is built once per category and read concurrently afterwards.
type CategoryNotice struct {
	category  wikititle.Title
	subject   string
	keys      map[string]string
	htmlKeys  map[string]string
	hasHTML   bool
	timestamp time.Time
	sender    notification.AddressPair
	deps      ComposeDeps
}

// BuildCategoryNotice prepares the shared substitution table, subject and intro for target.
// PRE: target is one of nctx.Change.Targets()
// POST: Returns a notice ready for ComposeFor, or an error wrapping notification.ErrTemplateMissing
func BuildCategoryNotice(nctx notification.Context, target string, deps ComposeDeps) (*CategoryNotice, error) {
	catTitle, err := wikititle.Category(target)
	if err != nil {
		return nil, fmt.Errorf("%w: category %q: %v", notification.ErrLookupFailure, target, err)
	}
	r := renderer{messages: deps.Messages, locale: deps.Locale}
	link := deps.Linker

	pageURL := nctx.PageURL
	if pageURL == "" {
		pageURL = link.FullURL(nctx.Page)
	}
	pageLabel := fmt.Sprintf("%s (%s)", nctx.Page.PrefixedText(), pageURL)
	pageAnchor := anchor(pageURL, nctx.Page.PrefixedText())
	editorName := nctx.Editor.Name

	var intro, introHTML string
	switch nctx.Change.Kind {
	case category.Move:
		from, err := wikititle.Category(nctx.Change.From)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %v", notification.ErrLookupFailure, nctx.Change.From, err)
		}
		intro = r.render(msgMoveIn, messages.Params(pageLabel, friendlyCategory(link, catTitle), friendlyCategory(link, from), editorName))
		introHTML = r.render(msgMoveIn, messages.Params(
			pageAnchor,
			anchor(link.FullURL(catTitle), catTitle.Text),
			anchor(link.FullURL(from), from.Text),
			htmlValue(editorName),
		))
	default:
		intro = r.render(msgAdded, messages.Params(pageLabel, friendlyCategory(link, catTitle), editorName))
		introHTML = r.render(msgAdded, messages.Params(
			pageAnchor,
			anchor(link.FullURL(catTitle), catTitle.Text),
			htmlValue(editorName),
		))
	}

	summary := nctx.Summary
	if summary == "" {
		summary = " - "
	}
	minor := ""
	if nctx.Minor {
		minor = r.render(msgMinorEdit, nil)
	}

	keys := map[string]string{
		"$PAGEINTRO":        intro,
		"$NOFURTHERNOTICE":  "",
		"$UNWATCHURL":       link.ActionURL(catTitle, "unwatch"),
		"$NEWPAGE":          "",
		"$PAGETITLE":        catTitle.PrefixedText(),
		"$CHANGEDORCREATED": r.render(msgChanged, nil),
		"$PAGETITLE_URL":    link.FullURL(catTitle),
		"$PAGEEDITOR_WIKI":  link.UserPageURL(editorName),
		"$PAGESUMMARY":      summary,
		"$PAGEMINOREDIT":    minor,
		"$OLDID":            "",
		"$HELPPAGE":         deps.HelpPageURL,
		"$SITENAME":         deps.SiteName,
	}

	editorText := editorName
	if nctx.Editor.IsAnonymous() {
		editorText = r.render(msgAnonEditor, messages.Params(editorName))
		keys["$PAGEEDITOR_EMAIL"] = r.render(msgNoEmail, nil)
	} else {
		keys["$PAGEEDITOR_EMAIL"] = link.EmailUserURL(editorName)
	}
	keys["$PAGEEDITOR"] = editorText

	subject := r.render(msgSubject, map[string]string{
		"$1":          catTitle.PrefixedText(),
		"$PAGEEDITOR": editorText,
	})
	if r.err != nil {
		return nil, fmt.Errorf("%w: %v", notification.ErrTemplateMissing, r.err)
	}

	n := &CategoryNotice{
		category:  catTitle,
		subject:   subject,
		keys:      keys,
		hasHTML:   deps.Messages.Exists(msgBodyHTML, deps.Locale),
		timestamp: nctx.Timestamp,
		sender:    nctx.Sender,
		deps:      deps,
	}
	if n.hasHTML {
		n.htmlKeys = make(map[string]string, len(keys)+1)
		for k, v := range keys {
			n.htmlKeys[k] = htmlValue(v)
		}
		n.htmlKeys["$DIFF"] = ""
		n.htmlKeys["$PAGEINTRO"] = introHTML
	}
	return n, nil
}

// Category returns the category this notice is about.
func (n *CategoryNotice) Category() wikititle.Title {
	return n.category
}

// Subject returns the shared mail subject.
func (n *CategoryNotice) Subject() string {
	return n.subject
}

// HasHTML reports whether messages built from n carry an HTML alternative.
func (n *CategoryNotice) HasHTML() bool {
	return n.hasHTML
}

// ComposeFor builds the message for one recipient.
// The shared table is copied, so concurrent calls are safe.
// PRE: recipient.CanReceiveWatchNotification()
// POST: Returns a message with a wrapped plain body, or an error wrapping notification.ErrTemplateMissing
func (n *CategoryNotice) ComposeFor(recipient user.User) (notification.OutboundMessage, error) {
	locale := n.deps.Locale
	server := n.deps.ServerLocation
	if server == nil {
		server = time.UTC
	}

	perRecipient := map[string]string{
		"$WATCHINGUSERNAME": recipient.DisplayName(n.deps.UseRealName),
		"$PAGEEDITDATE":     n.deps.Messages.FormatDateTime(locale, recipient.LocalTime(n.timestamp, server)),
	}

	keys := maps.Clone(n.keys)
	maps.Copy(keys, perRecipient)
	body, err := n.deps.Messages.Render(msgBody, locale, keys)
	if err != nil {
		return notification.OutboundMessage{}, fmt.Errorf("%w: %v", notification.ErrTemplateMissing, err)
	}

	msg := notification.OutboundMessage{
		RecipientID: recipient.ID,
		To:          recipient.MailAddress(),
		From:        n.sender.From,
		ReplyTo:     n.sender.ReplyTo,
		Subject:     n.subject,
		Text:        render.Wrap(body, render.MailLineWidth),
	}

	if n.hasHTML {
		htmlKeys := maps.Clone(n.htmlKeys)
		for k, v := range perRecipient {
			htmlKeys[k] = htmlValue(v)
		}
		markup, err := n.deps.Messages.Render(msgBodyHTML, locale, htmlKeys)
		if err != nil {
			return notification.OutboundMessage{}, fmt.Errorf("%w: %v", notification.ErrTemplateMissing, err)
		}
		out, err := n.deps.Transformer.Transform(markup)
		if err != nil {
			// the plain body is still deliverable
			slog.Warn("catwatch_event", "event", "html_transform_failed", "category", n.category.Text, "recipient_id", recipient.ID, "error", err)
		} else {
			msg.HTML = out
		}
	}
	return msg, nil
}

// renderer renders several messages and keeps the first error.
type renderer struct {
	messages MessageCatalog
	locale   string
	err      error
}

func (r *renderer) render(key string, subs map[string]string) string {
	if r.err != nil {
		return ""
	}
	text, err := r.messages.Render(key, r.locale, subs)
	if err != nil {
		r.err = err
		return ""
	}
	return text
}

// friendlyCategory formats a category as "Category:Name (URL)".
func friendlyCategory(link wikititle.Linker, t wikititle.Title) string {
	return fmt.Sprintf("%s (%s)", t.PrefixedText(), link.FullURL(t))
}

// markdownEscaper backslash-escapes the punctuation Markdown gives meaning to.
var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `{`, `\{`, `}`, `\}`,
	`[`, `\[`, `]`, `\]`, `(`, `\(`, `)`, `\)`, `#`, `\#`, `+`, `\+`,
	`-`, `\-`, `.`, `\.`, `!`, `\!`, `|`, `\|`, `~`, `\~`,
)

// htmlValue prepares a substitution value for the Markdown HTML template.
// The result renders as the literal value, including inside link destinations.
func htmlValue(v string) string {
	return html.EscapeString(markdownEscaper.Replace(v))
}

func anchor(href, text string) string {
	return `<a href="` + html.EscapeString(href) + `">` + htmlValue(text) + `</a>`
}
