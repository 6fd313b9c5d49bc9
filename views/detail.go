package views

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"disaster-posts-viewer/models"
)

const (
	maxMedia      = 4
	maxKeywords   = 10
	maxEntities   = 8
	maxCategories = 6
	maxToxicity   = 6

	defaultEntityType   = "ENTITY"
	defaultCategoryName = "Category"
)

type MediaItem struct {
	URL   string
	Video bool
	Alt   string
}

type EntityRow struct {
	Type  string
	Text  string
	Score string
}

// Bar is a labelled 0..100 meter
type Bar struct {
	Label    string
	Pct      int
	HasScore bool
}

// Detail is the detail page of one post
type Detail struct {
	ID       string
	User     string
	Initial  string
	When     string
	Text     string
	HasText  bool
	Likes    string
	Retweets string
	Location string

	Confidence string
	Media      []MediaItem

	HasNLP       bool
	Sentiment    string
	HasSentiment bool
	SentimentPct int
	HasScore     bool
	Keywords     []string
	Entities     []EntityRow
	Categories   []Bar
	Toxicity     []Bar
	RawNLP       string
}

func NewDetail(p models.Post, now time.Time) Detail {
	user := p.DisplayUser()
	d := Detail{
		ID:       p.ID.String(),
		User:     user,
		Initial:  Initial(user),
		When:     detailWhen(p, now),
		Text:     p.DisplayText(),
		HasText:  p.TextOrEmpty() != "",
		Location: p.DisplayLocation(),
	}

	if p.Likes != nil {
		d.Likes = Count(*p.Likes)
	}
	if p.Retweets != nil {
		d.Retweets = Count(*p.Retweets)
	}
	if p.Confidence != nil {
		d.Confidence = fmt.Sprintf("%d%%", Percent(*p.Confidence))
	}

	for i, m := range limit(p.Media, maxMedia) {
		d.Media = append(d.Media, MediaItem{
			URL:   m.URL,
			Video: m.IsVideo(),
			Alt:   fmt.Sprintf("media %d", i+1),
		})
	}

	if p.NLP != nil {
		d.addNLP(p.NLP)
	}
	return d
}

func (d *Detail) addNLP(nlp *models.NLP) {
	d.HasNLP = true

	if nlp.Sentiment != nil && *nlp.Sentiment != "" {
		d.Sentiment = strings.ToUpper(*nlp.Sentiment)
	}
	if nlp.SentimentScore != nil {
		d.HasScore = true
		d.SentimentPct = Percent(Clamp01(*nlp.SentimentScore))
	}
	d.HasSentiment = d.Sentiment != "" || d.HasScore

	d.Keywords = limit(nlp.Keywords, maxKeywords)

	for _, e := range limit(nlp.Entities, maxEntities) {
		row := EntityRow{Type: e.Type, Text: e.Text}
		if row.Type == "" {
			row.Type = defaultEntityType
		}
		if e.Score != nil {
			row.Score = fmt.Sprintf("%d%%", Percent(*e.Score))
		}
		d.Entities = append(d.Entities, row)
	}

	for _, c := range limit(nlp.Categories, maxCategories) {
		bar := Bar{Label: c.Name}
		if bar.Label == "" {
			bar.Label = defaultCategoryName
		}
		if c.Score != nil {
			bar.HasScore = true
			bar.Pct = Percent(*c.Score)
		}
		d.Categories = append(d.Categories, bar)
	}

	for _, t := range limit(nlp.Toxicity, maxToxicity) {
		d.Toxicity = append(d.Toxicity, Bar{
			Label:    t.Label,
			Pct:      Percent(Clamp01(t.Value)),
			HasScore: true,
		})
	}

	if raw, err := json.MarshalIndent(nlp, "", "  "); err == nil {
		d.RawNLP = string(raw)
	}
}

func detailWhen(p models.Post, now time.Time) string {
	raw := p.CreatedAtOrEmpty()
	if raw == "" {
		return NotAvailable
	}
	t, ok := p.CreatedTime()
	if !ok {
		return raw
	}
	return fmt.Sprintf("%s (%s)", RelativeTime(t, now), Absolute(t))
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
