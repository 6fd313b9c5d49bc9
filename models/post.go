package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// PostID is the opaque post identifier. Upstream may send it as a JSON
// string or a JSON number; the original form is kept for re-encoding.
type PostID struct {
	text    string
	numeric bool
}

func NewPostID(s string) PostID {
	return PostID{text: s}
}

func (id PostID) String() string { return id.text }

func (id PostID) IsZero() bool { return id.text == "" }

func (id *PostID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = PostID{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = PostID{text: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = PostID{text: n.String(), numeric: true}
	return nil
}

func (id PostID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.text), nil
	}
	return json.Marshal(id.text)
}

// Media is one attachment of a post
type Media struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

func (m Media) IsVideo() bool { return m.Type == "video" }

// Post is a community post as delivered by the posts API. Every field
// except ID is optional; the Display* helpers hold the defaulting rules.
type Post struct {
	ID           PostID   `json:"id"`
	User         *string  `json:"user,omitempty"`
	Text         *string  `json:"text,omitempty"`
	CreatedAt    *string  `json:"created_at,omitempty"`
	Likes        *int     `json:"likes,omitempty"`
	Retweets     *int     `json:"retweets,omitempty"`
	LocationText *string  `json:"location_text,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Media        []Media  `json:"media,omitempty"`
	NLP          *NLP     `json:"nlp,omitempty"`

	// Highlighted is the escaped snippet with search matches marked.
	// Set on copies for rendering only.
	Highlighted string `json:"-"`
}

const (
	UnknownUser     = "Unknown"
	NoContent       = "No content available."
	UnknownLocation = "N/A"
)

func (p Post) UserOrEmpty() string { return deref(p.User) }

func (p Post) TextOrEmpty() string { return deref(p.Text) }

func (p Post) LocationOrEmpty() string { return deref(p.LocationText) }

func (p Post) CreatedAtOrEmpty() string { return deref(p.CreatedAt) }

func (p Post) DisplayUser() string {
	if u := p.UserOrEmpty(); u != "" {
		return u
	}
	return UnknownUser
}

func (p Post) DisplayText() string {
	if t := p.TextOrEmpty(); t != "" {
		return t
	}
	return NoContent
}

func (p Post) DisplayLocation() string {
	if l := p.LocationOrEmpty(); l != "" {
		return l
	}
	return UnknownLocation
}

func (p Post) LikesOrZero() int {
	if p.Likes == nil {
		return 0
	}
	return *p.Likes
}

func (p Post) RetweetsOrZero() int {
	if p.Retweets == nil {
		return 0
	}
	return *p.Retweets
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// CreatedTime parses created_at. ok is false when the field is missing or
// in no known layout.
func (p Post) CreatedTime() (t time.Time, ok bool) {
	s := strings.TrimSpace(p.CreatedAtOrEmpty())
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Page is one fetched batch of posts plus the reported total
type Page struct {
	Posts []Post `json:"posts"`
	Total int    `json:"total"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
