// Package export renders the projected page of posts as downloadable files.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"disaster-posts-viewer/models"
)

var csvHeader = []string{"user", "created_at", "location", "likes", "retweets", "text"}

func JSONFilename(page int) string {
	return fmt.Sprintf("posts_page_%d.json", page)
}

func CSVFilename(page int) string {
	return fmt.Sprintf("posts_page_%d.csv", page)
}

// JSON encodes posts as an indented array, two spaces per level
func JSON(posts []models.Post) ([]byte, error) {
	if posts == nil {
		posts = []models.Post{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(posts); err != nil {
		return nil, fmt.Errorf("encode posts: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CSV renders one header row and one row per post, joined by "\n" with no
// trailing newline. Text columns are always quoted; counts never are.
func CSV(posts []models.Post) string {
	lines := make([]string, 0, len(posts)+1)
	lines = append(lines, strings.Join(csvHeader, ","))

	for _, p := range posts {
		lines = append(lines, strings.Join([]string{
			quote(p.UserOrEmpty()),
			quote(p.CreatedAtOrEmpty()),
			quote(p.LocationOrEmpty()),
			strconv.Itoa(p.LikesOrZero()),
			strconv.Itoa(p.RetweetsOrZero()),
			quote(p.TextOrEmpty()),
		}, ","))
	}
	return strings.Join(lines, "\n")
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
