package handlers

import (
	"errors"
	"net/http"
	"time"

	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/models"
	"disaster-posts-viewer/projection"

	"github.com/gin-gonic/gin"
)

type viewResponse struct {
	Page        int                `json:"page"`
	PerPage     int                `json:"per_page"`
	Total       int                `json:"total"`
	TotalPages  int                `json:"total_pages"`
	Loading     bool               `json:"loading"`
	LastUpdated *time.Time         `json:"last_updated,omitempty"`
	Query       string             `json:"query"`
	Sort        projection.SortKey `json:"sort"`
	Posts       []models.Post      `json:"posts"`
}

// View returns the projected page as JSON. It takes the same parameters as
// the list page.
func (h *Handler) View(c *gin.Context) {
	state, params, err := h.current(c)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, feed.ErrInvalidPage) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	resp := viewResponse{
		Page:       state.Page,
		PerPage:    state.PerPage,
		Total:      state.Total,
		TotalPages: state.TotalPages(),
		Loading:    state.Loading,
		Query:      params.Query,
		Sort:       params.Sort,
		Posts:      h.project(state, params),
	}
	if !state.LastUpdated.IsZero() {
		resp.LastUpdated = &state.LastUpdated
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
