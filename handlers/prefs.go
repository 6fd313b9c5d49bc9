package handlers

import (
	"log"
	"net/http"
	"strings"

	"disaster-posts-viewer/prefs"

	"github.com/gin-gonic/gin"
)

// SetTheme stores the chosen colour theme and returns to the page the
// form was posted from.
func (h *Handler) SetTheme(c *gin.Context) {
	theme, ok := prefs.ParseTheme(c.PostForm("theme"))
	if !ok {
		h.renderError(c, http.StatusBadRequest, "Unknown theme")
		return
	}

	if err := h.prefs.SetTheme(c.Request.Context(), clientID(c), theme); err != nil {
		log.Printf("Failed to save theme: %v", err)
		h.renderError(c, http.StatusInternalServerError, "Failed to save theme")
		return
	}

	c.Redirect(http.StatusSeeOther, localPath(c.PostForm("back")))
}

// localPath keeps redirects on this site
func localPath(back string) string {
	if !strings.HasPrefix(back, "/") || strings.HasPrefix(back, "//") || strings.HasPrefix(back, "/\\") {
		return "/posts"
	}
	return back
}
