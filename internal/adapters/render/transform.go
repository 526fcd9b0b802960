package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Transformer turns substituted message markup into mail-safe HTML.
// Message templates are Markdown with inline HTML anchors; the output is sanitised
// so that nothing but basic formatting and links reaches the recipient.
type Transformer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewTransformer creates a Transformer.
// PRE: none
// POST: Returns a ready-to-use, concurrency-safe transformer
func NewTransformer() *Transformer {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(false)
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Transformer{
		md: goldmark.New(
			goldmark.WithRendererOptions(
				goldmarkHTML.WithHardWraps(),
				// intro sentences carry pre-escaped <a> anchors
				goldmarkHTML.WithUnsafe(),
			),
		),
		policy: policy,
	}
}

// Transform renders markup to HTML and sanitises the result.
// PRE: all untrusted values in markup are already HTML-escaped
// POST: Returns sanitised HTML or a render error
func (t *Transformer) Transform(markup string) (string, error) {
	var buf bytes.Buffer
	if err := t.md.Convert([]byte(markup), &buf); err != nil {
		return "", fmt.Errorf("failed to render message markup: %w", err)
	}
	return t.policy.Sanitize(buf.String()), nil
}
