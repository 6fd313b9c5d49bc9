package handlers

import (
	"errors"
	"log"
	"net/http"

	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/upstream"
	"disaster-posts-viewer/views"

	"github.com/gin-gonic/gin"
)

// Detail renders a single post with its NLP annotations
func (h *Handler) Detail(c *gin.Context) {
	postID := c.Param("id")
	p := h.loadPrefs(c)
	v := h.viewer(clientID(c))

	state := v.feed.State()
	back := views.List{PerPage: state.PerPage, Query: p.Query, Sort: v.sortKey()}

	data := h.page(c, "Post", p.Theme)
	data.BackURL = back.URL(state.Page)

	post, err := v.detail.Load(c.Request.Context(), postID)
	if errors.Is(err, feed.ErrSuperseded) {
		// The browser has already asked for another post.
		log.Printf("[detail] load %s superseded", postID)
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Printf("[detail] load %s failed: %v", postID, err)
		data.Err = upstream.Message(err, upstream.DetailFallback)
		cached, ok := v.feed.Cache().FindPost(postID)
		if !ok {
			c.HTML(statusFor(err), "detail.html", data)
			return
		}
		// Show the copy from the list without fresh annotations.
		post = &cached
	}

	detail := views.NewDetail(*post, h.now())
	data.Title = detail.User
	data.Detail = &detail

	c.HTML(http.StatusOK, "detail.html", data)
}

// statusFor passes client errors of the posts API through and reports
// everything else as a bad gateway.
func statusFor(err error) int {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}
