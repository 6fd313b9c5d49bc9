package views

import (
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/models"
	"disaster-posts-viewer/projection"
)

// Card is one post in the list grid
type Card struct {
	ID       string
	User     string
	Initial  string
	When     string
	Body     template.HTML
	Text     string
	Likes    string
	Retweets string
	Location string
}

func NewCard(p models.Post, now time.Time) Card {
	user := p.DisplayUser()
	c := Card{
		ID:       p.ID.String(),
		User:     user,
		Initial:  Initial(user),
		When:     NoTime,
		Text:     p.TextOrEmpty(),
		Location: p.LocationOrEmpty(),
	}

	if t, ok := p.CreatedTime(); ok {
		c.When = RelativeTime(t, now)
	}

	// Highlighted is already escaped by the projection.
	if p.Highlighted != "" {
		c.Body = template.HTML(p.Highlighted)
	} else {
		c.Body = template.HTML(template.HTMLEscapeString(Snippet(p.TextOrEmpty())))
	}

	if p.Likes != nil {
		c.Likes = Count(*p.Likes)
	}
	if p.Retweets != nil {
		c.Retweets = Count(*p.Retweets)
	}
	return c
}

// CardSnippet is the text a card shows, used as the highlight source
func CardSnippet(p models.Post) string {
	return Snippet(p.TextOrEmpty())
}

// List is everything the list page and its live fragment render
type List struct {
	Page       int
	PerPage    int
	TotalPages int
	Total      string
	Range      string
	Badge      string
	Updated    string

	Loading bool
	Err     string
	Empty   bool
	Cards   []Card

	CanPrev  bool
	CanNext  bool
	PrevPage int
	NextPage int

	Query          string
	Sort           projection.SortKey
	SortKeys       []projection.SortKey
	PerPageOptions []int
	Version        uint64
}

// NewList builds the list view from coordinator state. posts is the
// projected (filtered, sorted, annotated) page.
func NewList(s feed.State, posts []models.Post, query string, sortBy projection.SortKey, perPageOptions []int, now time.Time) List {
	l := List{
		Page:           s.Page,
		PerPage:        s.PerPage,
		TotalPages:     s.TotalPages(),
		Total:          Count(s.Total),
		Loading:        s.Loading,
		Err:            s.Err,
		CanPrev:        s.CanPrev(),
		CanNext:        s.CanNext(),
		PrevPage:       max(1, s.Page-1),
		NextPage:       min(s.TotalPages(), s.Page+1),
		Query:          query,
		Sort:           sortBy,
		SortKeys:       projection.SortKeys,
		PerPageOptions: perPageOptions,
		Version:        s.Version,
	}

	start, end := s.Range()
	l.Range = fmt.Sprintf("%d–%d", start, end)

	if s.Total > 0 {
		l.Badge = fmt.Sprintf("Page %d of %d", s.Page, l.TotalPages)
	} else {
		l.Badge = "Ready"
	}

	if !s.LastUpdated.IsZero() {
		l.Updated = s.LastUpdated.Local().Format("3:04:05 PM")
	}

	if !l.Loading && l.Err == "" {
		l.Cards = make([]Card, 0, len(posts))
		for _, p := range posts {
			l.Cards = append(l.Cards, NewCard(p, now))
		}
		l.Empty = len(l.Cards) == 0
	}
	return l
}

// URL links to page of this list with the same size, query and sort
func (l List) URL(page int) string {
	return "/posts?" + l.values(page).Encode()
}

// ExportURL links to the download of this page in format ("json" or "csv")
func (l List) ExportURL(format string) string {
	return "/export/page." + format + "?" + l.values(l.Page).Encode()
}

func (l List) values(page int) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(page))
	v.Set("per_page", strconv.Itoa(l.PerPage))
	if l.Query != "" {
		v.Set("q", l.Query)
	}
	v.Set("sort", string(l.Sort))
	return v
}

// Skeleton is the number of placeholder cards shown while loading
func (l List) Skeleton() []struct{} {
	return make([]struct{}, 6)
}
