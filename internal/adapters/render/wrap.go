package render

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// MailLineWidth is the column limit for plain-text mail bodies.
const MailLineWidth = 72

// Wrap breaks each line of text at spaces so that no line exceeds width display columns.
// Existing line breaks are kept. A single word wider than width stays on its own line unbroken.
// PRE: width > 0
// POST: Returns text with the same words in the same order
func Wrap(text string, width int) string {
	lines := strings.Split(text, "\n")
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		wrapLine(&b, line, width)
	}
	return b.String()
}

func wrapLine(b *strings.Builder, line string, width int) {
	if runewidth.StringWidth(line) <= width {
		b.WriteString(line)
		return
	}
	col := 0
	for i, word := range strings.Split(line, " ") {
		w := runewidth.StringWidth(word)
		switch {
		case i == 0:
			b.WriteString(word)
			col = w
		case col+1+w <= width:
			b.WriteByte(' ')
			b.WriteString(word)
			col += 1 + w
		default:
			b.WriteByte('\n')
			b.WriteString(word)
			col = w
		}
	}
}
