package templates

import (
	"html"
	"strings"

	"github.com/flosch/pongo2/v6"
	"github.com/microcosm-cc/bluemonday"
)

var paragraphPolicy = bluemonday.NewPolicy().AllowElements("p", "br")

// Paragraphs escapes plain text and lays it out as HTML. Blank lines
// separate paragraphs and single newlines become line breaks.
func Paragraphs(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var b strings.Builder
	for _, block := range strings.Split(s, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>"))
		b.WriteString("</p>")
	}
	return paragraphPolicy.Sanitize(b.String())
}

func filterParagraphs(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(Paragraphs(in.String())), nil
}
