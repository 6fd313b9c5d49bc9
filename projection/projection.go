// Package projection derives the filtered, sorted list that the list view
// renders from the loaded page and the local search and sort inputs.
package projection

import (
	"slices"
	"strings"

	"disaster-posts-viewer/models"
)

type SortKey string

const (
	SortRecent   SortKey = "recent"
	SortLikes    SortKey = "likes"
	SortRetweets SortKey = "retweets"
)

var SortKeys = []SortKey{SortRecent, SortLikes, SortRetweets}

// ParseSortKey maps user input to a SortKey; anything unknown sorts by recency
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortLikes:
		return SortLikes
	case SortRetweets:
		return SortRetweets
	default:
		return SortRecent
	}
}

// Apply filters posts by query and sorts them by sortBy. The input slice is
// never modified. Equal elements keep their input order.
func Apply(posts []models.Post, query string, sortBy SortKey) []models.Post {
	out := Filter(posts, query)

	switch sortBy {
	case SortLikes:
		slices.SortStableFunc(out, func(a, b models.Post) int {
			return b.LikesOrZero() - a.LikesOrZero()
		})
	case SortRetweets:
		slices.SortStableFunc(out, func(a, b models.Post) int {
			return b.RetweetsOrZero() - a.RetweetsOrZero()
		})
	default:
		slices.SortStableFunc(out, newestFirst)
	}
	return out
}

// Filter returns a copy of the posts whose text or user contains query,
// ignoring case. An empty query keeps everything.
func Filter(posts []models.Post, query string) []models.Post {
	q := normalize(query)
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if q == "" ||
			strings.Contains(strings.ToLower(p.TextOrEmpty()), q) ||
			strings.Contains(strings.ToLower(p.UserOrEmpty()), q) {
			out = append(out, p)
		}
	}
	return out
}

// newestFirst orders by created_at descending. Posts without a usable
// timestamp count as the oldest.
func newestFirst(a, b models.Post) int {
	ta, okA := a.CreatedTime()
	tb, okB := b.CreatedTime()
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return tb.Compare(ta)
}

func normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
