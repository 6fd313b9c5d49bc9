package projection

import (
	"regexp"
	"strings"

	"disaster-posts-viewer/models"

	"golang.org/x/net/html"
)

const markOpen = `<mark class="hl">`
const markClose = `</mark>`

// Highlight returns text as escaped HTML with every case-insensitive
// occurrence of query wrapped in a mark element.
func Highlight(text, query string) string {
	q := strings.TrimSpace(query)
	if text == "" || q == "" {
		return html.EscapeString(text)
	}

	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(q))
	if err != nil {
		return html.EscapeString(text)
	}

	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:m[0]]))
		b.WriteString(markOpen)
		b.WriteString(html.EscapeString(text[m[0]:m[1]]))
		b.WriteString(markClose)
		last = m[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
	return b.String()
}

// Annotate returns copies of posts with Highlighted set from snippet(p).
// Nothing is set when query is blank.
func Annotate(posts []models.Post, query string, snippet func(models.Post) string) []models.Post {
	out := make([]models.Post, len(posts))
	copy(out, posts)
	if strings.TrimSpace(query) == "" {
		return out
	}
	for i := range out {
		out[i].Highlighted = Highlight(snippet(out[i]), query)
	}
	return out
}
