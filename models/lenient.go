package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// The posts API is loosely typed. Optional fields holding the wrong JSON
// type decode as absent instead of failing the whole post.

func object(b []byte) (map[string]json.RawMessage, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	return m, true
}

func array(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func optString(raw json.RawMessage) *string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

// optFloat accepts numbers and numeric strings
func optFloat(raw json.RawMessage) *float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}
	if s := optString(raw); s != nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return &f
		}
	}
	return nil
}

func optInt(raw json.RawMessage) *int {
	f := optFloat(raw)
	if f == nil || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

// text renders strings and numbers; anything else is empty
func text(raw json.RawMessage) string {
	if s := optString(raw); s != nil {
		return *s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func (p *Post) UnmarshalJSON(b []byte) error {
	*p = Post{}
	m, ok := object(b)
	if !ok {
		return nil
	}

	if raw, ok := m["id"]; ok {
		var id PostID
		if id.UnmarshalJSON(raw) == nil {
			p.ID = id
		}
	}
	p.User = optString(m["user"])
	p.Text = optString(m["text"])
	p.CreatedAt = optString(m["created_at"])
	p.Likes = optInt(m["likes"])
	p.Retweets = optInt(m["retweets"])
	p.LocationText = optString(m["location_text"])
	p.Confidence = optFloat(m["confidence"])

	for _, item := range array(m["media"]) {
		mm, ok := object(item)
		if !ok {
			continue
		}
		p.Media = append(p.Media, Media{Type: text(mm["type"]), URL: text(mm["url"])})
	}

	if raw, ok := m["nlp"]; ok {
		var nlp NLP
		if ok, _ := nlp.decode(raw); ok {
			p.NLP = &nlp
		}
	}
	return nil
}

func (n *NLP) UnmarshalJSON(b []byte) error {
	_, err := n.decode(b)
	return err
}

func (n *NLP) decode(b []byte) (bool, error) {
	*n = NLP{}
	m, ok := object(b)
	if !ok {
		return false, nil
	}

	n.Sentiment = optString(m["sentiment"])
	n.SentimentScore = optFloat(m["sentiment_score"])

	for _, item := range array(m["keywords"]) {
		if k := text(item); k != "" {
			n.Keywords = append(n.Keywords, k)
		}
	}
	for _, item := range array(m["entities"]) {
		em, ok := object(item)
		if !ok {
			continue
		}
		n.Entities = append(n.Entities, Entity{
			Type:  text(em["type"]),
			Text:  text(em["text"]),
			Score: optFloat(em["score"]),
		})
	}
	for _, item := range array(m["categories"]) {
		cm, ok := object(item)
		if !ok {
			continue
		}
		n.Categories = append(n.Categories, Category{
			Name:  text(cm["name"]),
			Score: optFloat(cm["score"]),
		})
	}
	if raw, ok := m["toxicity"]; ok {
		var tox Toxicity
		if tox.UnmarshalJSON(raw) == nil {
			n.Toxicity = tox
		}
	}
	return true, nil
}

// UnmarshalJSON skips entries of posts that are not objects and reads a
// missing or unusable total as 0.
func (pg *Page) UnmarshalJSON(b []byte) error {
	*pg = Page{Posts: []Post{}}
	m, ok := object(b)
	if !ok {
		return nil
	}

	for _, item := range array(m["posts"]) {
		if _, ok := object(item); !ok {
			continue
		}
		var p Post
		if err := p.UnmarshalJSON(item); err != nil {
			return err
		}
		pg.Posts = append(pg.Posts, p)
	}
	if total := optInt(m["total"]); total != nil && *total > 0 {
		pg.Total = *total
	}
	return nil
}
