package orchestrators

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"categorywatch/internal/adapters/messages"
	"categorywatch/internal/domain/category"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/wikititle"
)

func moveContext(t *testing.T, editor user.User) notification.Context {
	t.Helper()
	change := category.Classify(category.Diff([]string{"Birds of prey"}, []string{"Falcons"}))
	require.Equal(t, category.Move, change.Kind)
	return notification.Context{
		DispatchID: "d1",
		Editor:     editor,
		Page:       mustTitle(t, wikititle.NSMain, "Peregrine falcon"),
		Summary:    "recategorise",
		Timestamp:  testNow,
		Sender:     testPolicy().Resolve(editor),
		Change:     change,
	}
}

func addContext(t *testing.T, editor user.User, added ...string) notification.Context {
	t.Helper()
	change := category.Classify(category.Diff(nil, added))
	return notification.Context{
		DispatchID: "d2",
		Editor:     editor,
		Page:       mustTitle(t, wikititle.NSMain, "Peregrine falcon"),
		Timestamp:  testNow,
		Sender:     testPolicy().Resolve(editor),
		Change:     change,
	}
}

func TestBuildCategoryNotice_MoveSubjectAndBody(t *testing.T) {
	nctx := moveContext(t, watcher(1, "Ada"))
	notice, err := BuildCategoryNotice(nctx, "Falcons", testComposeDeps(t))
	require.NoError(t, err)

	assert.Equal(t, "Falcons", notice.Category().Text)
	assert.Equal(t, `Activity involving watched category "Category:Falcons" by Ada`, notice.Subject())
	assert.True(t, notice.HasHTML())

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	body := flat(msg.Text)

	assert.Contains(t, body, "Dear Grace,")
	assert.Contains(t, body, "Peregrine falcon (https://wiki.example.org/wiki/Peregrine_falcon) has moved into "+
		"Category:Falcons (https://wiki.example.org/wiki/Category:Falcons) from "+
		"Category:Birds of prey (https://wiki.example.org/wiki/Category:Birds_of_prey).")
	assert.Contains(t, body, "Category:Falcons, which you are watching, was changed on 14:05, 2 March 2026 by Ada.")
	assert.Contains(t, body, "Editor's summary: recategorise")
	assert.Contains(t, body, "mail: https://wiki.example.org/wiki/Special:EmailUser/Ada")
	assert.Contains(t, body, "wiki: https://wiki.example.org/wiki/User:Ada")
	assert.Contains(t, body, "https://wiki.example.org/index.php?title=Category:Falcons&action=unwatch")
	assert.Contains(t, body, "https://wiki.example.org/wiki/Help:Contents")
	assert.Contains(t, body, "Your friendly Example Wiki notification system")
	assert.NotContains(t, body, "$")

	assert.Equal(t, int64(2), msg.RecipientID)
	assert.Equal(t, `"Grace" <grace@example.org>`, msg.To)
	assert.Equal(t, nctx.Sender.From, msg.From)
	assert.Equal(t, nctx.Sender.ReplyTo, msg.ReplyTo)
}

func TestBuildCategoryNotice_AdditionIntro(t *testing.T) {
	nctx := addContext(t, watcher(1, "Ada"), "Falcons", "Raptors")
	notice, err := BuildCategoryNotice(nctx, "Raptors", testComposeDeps(t))
	require.NoError(t, err)

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "Peregrine falcon (https://wiki.example.org/wiki/Peregrine_falcon) has been added to "+
		"Category:Raptors (https://wiki.example.org/wiki/Category:Raptors) by Ada.")
	assert.Contains(t, flat(msg.Text), "Editor's summary: - ")
}

func TestComposeFor_WrapsPlainBody(t *testing.T) {
	notice, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", testComposeDeps(t))
	require.NoError(t, err)
	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)

	for _, line := range strings.Split(msg.Text, "\n") {
		if strings.Contains(line, " ") {
			assert.LessOrEqual(t, runewidth.StringWidth(line), 72, line)
		}
	}
}

func TestComposeFor_PerRecipientFields(t *testing.T) {
	deps := testComposeDeps(t)
	deps.UseRealName = true
	notice, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", deps)
	require.NoError(t, err)

	grace := watcher(2, "Grace")
	grace.RealName = "Grace Hopper"
	grace.TimeCorrection = "Offset|120"
	msg, err := notice.ComposeFor(grace)
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "Dear Grace Hopper,")
	assert.Contains(t, flat(msg.Text), "on 16:05, 2 March 2026 by Ada")

	// no real name: the handle is used; the shared table is not polluted by the previous recipient
	msg, err = notice.ComposeFor(watcher(3, "Linus"))
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "Dear Linus,")
	assert.Contains(t, flat(msg.Text), "on 14:05, 2 March 2026 by Ada")
	assert.NotContains(t, msg.Text, "Grace")
}

func TestBuildCategoryNotice_AnonymousEditor(t *testing.T) {
	nctx := moveContext(t, user.Anonymous("10.0.0.1"))
	notice, err := BuildCategoryNotice(nctx, "Falcons", testComposeDeps(t))
	require.NoError(t, err)
	assert.Equal(t, `Activity involving watched category "Category:Falcons" by anonymous user 10.0.0.1`, notice.Subject())

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "by anonymous user 10.0.0.1.")
	assert.Contains(t, flat(msg.Text), "mail: No email address")
	assert.NotContains(t, msg.Text, "Special:EmailUser")
}

func TestBuildCategoryNotice_MinorEdit(t *testing.T) {
	nctx := moveContext(t, watcher(1, "Ada"))
	nctx.Minor = true
	notice, err := BuildCategoryNotice(nctx, "Falcons", testComposeDeps(t))
	require.NoError(t, err)
	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "recategorise This is a minor edit.")
}

func TestComposeFor_HTMLEscapesValues(t *testing.T) {
	nctx := moveContext(t, watcher(1, "Ada"))
	nctx.Summary = "<b>bold</b> move"
	notice, err := BuildCategoryNotice(nctx, "Falcons", testComposeDeps(t))
	require.NoError(t, err)

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	require.True(t, msg.HasHTML())

	assert.Contains(t, msg.HTML, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, msg.HTML, "<b>")
	assert.Contains(t, msg.HTML, `<a href="https://wiki.example.org/wiki/Category:Falcons"`)
	assert.Contains(t, msg.HTML, `<a href="https://wiki.example.org/wiki/Peregrine_falcon"`)
	assert.Contains(t, msg.HTML, "Dear Grace,")
	assert.NotContains(t, msg.HTML, "$DIFF")
	assert.Contains(t, msg.Text, "<b>bold</b>")
}

func TestComposeFor_HTMLKeepsMarkdownLiteral(t *testing.T) {
	nctx := moveContext(t, watcher(1, "Ada"))
	nctx.Summary = `fix *all* typos in C:\*nix paths, see [here](https://evil.example)`
	notice, err := BuildCategoryNotice(nctx, "Falcons", testComposeDeps(t))
	require.NoError(t, err)

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	require.True(t, msg.HasHTML())

	assert.Contains(t, msg.HTML, `fix *all* typos in C:\*nix paths, see [here](https://evil.example)`)
	assert.NotContains(t, msg.HTML, "<em>")
	assert.NotContains(t, msg.HTML, "evil.example\"")
	// escaped values still work as link destinations
	assert.Contains(t, msg.HTML, `href="https://wiki.example.org/wiki/User:Ada"`)
	assert.Contains(t, msg.HTML, `href="https://wiki.example.org/index.php?title=Category:Falcons&amp;action=unwatch"`)
}

const minimalCatalog = `language: en
messages:
  categorywatch-emailsubject: 'Watched "$1" changed by $PAGEEDITOR'
  categorywatch-catmovein: "$1 moved to $2 from $3."
  categorywatch-catadd: "$1 added to $2 by $3."
  changed: changed
  minoredit: minor
  enotif_anon_editor: "anon $1"
  noemailtitle: "no mail"
  enotif_body: "Hi $WATCHINGUSERNAME. $PAGEINTRO"
`

func catalogFrom(t *testing.T, yaml string) *messages.Catalog {
	t.Helper()
	c, err := messages.LoadFS(fstest.MapFS{"cat/en.yaml": {Data: []byte(yaml)}}, "cat", "en")
	require.NoError(t, err)
	return c
}

func TestComposeFor_NoHTMLWithoutTemplate(t *testing.T) {
	deps := testComposeDeps(t)
	deps.Messages = catalogFrom(t, minimalCatalog)

	notice, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", deps)
	require.NoError(t, err)
	assert.False(t, notice.HasHTML())

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	assert.False(t, msg.HasHTML())
	assert.Equal(t, `Watched "Category:Falcons" changed by Ada`, msg.Subject)
	assert.True(t, strings.HasPrefix(msg.Text, "Hi Grace. Peregrine falcon"))
}

func TestBuildCategoryNotice_MissingSharedTemplate(t *testing.T) {
	deps := testComposeDeps(t)
	deps.Messages = catalogFrom(t, strings.Replace(minimalCatalog, "categorywatch-emailsubject", "other", 1))

	_, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", deps)
	assert.ErrorIs(t, err, notification.ErrTemplateMissing)
	assert.ErrorIs(t, err, messages.ErrMessageNotFound)
}

func TestComposeFor_MissingBodyTemplate(t *testing.T) {
	deps := testComposeDeps(t)
	deps.Messages = catalogFrom(t, strings.Replace(minimalCatalog, "enotif_body", "other", 1))

	notice, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", deps)
	require.NoError(t, err)
	_, err = notice.ComposeFor(watcher(2, "Grace"))
	assert.ErrorIs(t, err, notification.ErrTemplateMissing)
}

func TestBuildCategoryNotice_GermanLocale(t *testing.T) {
	deps := testComposeDeps(t)
	deps.Locale = "de"
	notice, err := BuildCategoryNotice(moveContext(t, watcher(1, "Ada")), "Falcons", deps)
	require.NoError(t, err)

	msg, err := notice.ComposeFor(watcher(2, "Grace"))
	require.NoError(t, err)
	assert.Contains(t, flat(msg.Text), "2. März 2026, 14:05")
}
