// Package views turns posts and list state into the values the templates
// render: defaulted strings, relative times, percentages and snippets.
package views

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"golang.org/x/net/html"
)

const (
	SnippetRunes = 160
	Ellipsis     = "…"
	NoTime       = "—"
	NotAvailable = "N/A"

	absoluteLayout = "Jan 2, 2006, 3:04:05 PM"
)

// RelativeTime describes t relative to now. Anything a week or older is
// printed as an absolute timestamp.
func RelativeTime(t, now time.Time) string {
	secs := int64(now.Sub(t) / time.Second)
	mins := secs / 60
	hours := mins / 60
	days := hours / 24

	switch {
	case secs < 45:
		return "just now"
	case mins < 60:
		return fmt.Sprintf("%d %s ago", mins, plural(mins, "min"))
	case hours < 24:
		return fmt.Sprintf("%d %s ago", hours, plural(hours, "hour"))
	case days < 7:
		return fmt.Sprintf("%d %s ago", days, plural(days, "day"))
	}
	return Absolute(t)
}

func Absolute(t time.Time) string {
	return t.Local().Format(absoluteLayout)
}

func plural(n int64, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// Percent maps a 0..1 score to a whole percentage, rounding halves up
func Percent(v float64) int {
	return int(math.Floor(v*100 + 0.5))
}

func Clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func Count(n int) string {
	return humanize.Comma(int64(n))
}

// Initial is the avatar letter for user
func Initial(user string) string {
	r, size := utf8.DecodeRuneInString(user)
	if size == 0 || r == utf8.RuneError {
		return "U"
	}
	return strings.ToUpper(string(r))
}

// Snippet reduces text to plain words and cuts it to SnippetRunes runes
func Snippet(text string) string {
	plain := StripHTMLToText(text)
	if utf8.RuneCountInString(plain) <= SnippetRunes {
		return plain
	}
	runes := []rune(plain)
	return string(runes[:SnippetRunes]) + Ellipsis
}

// StripHTMLToText drops any markup and collapses whitespace
func StripHTMLToText(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return strings.Join(strings.Fields(input), " ")
	}

	doc, err := html.Parse(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}

	var b strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}
				b.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return strings.Join(strings.Fields(b.String()), " ")
}
