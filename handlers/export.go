package handlers

import (
	"fmt"
	"log"
	"net/http"

	"disaster-posts-viewer/export"
	"disaster-posts-viewer/feed"

	"github.com/gin-gonic/gin"
)

// current loads the page named by the request (or the viewer's visible
// page) without touching stored preferences.
func (h *Handler) current(c *gin.Context) (feed.State, listParams, error) {
	v := h.viewer(clientID(c))
	params, _, _ := h.resolveParams(c, h.loadPrefs(c), v)

	state, err := h.load(c, v, params)
	if err != nil {
		return state, params, err
	}
	if state.Err != "" {
		return state, params, fmt.Errorf("%s", state.Err)
	}
	return state, params, nil
}

func (h *Handler) ExportJSON(c *gin.Context) {
	state, params, err := h.current(c)
	if err != nil {
		h.renderError(c, http.StatusBadGateway, err.Error())
		return
	}

	data, err := export.JSON(h.project(state, params))
	if err != nil {
		log.Printf("Failed to export page %d: %v", state.Page, err)
		h.renderError(c, http.StatusInternalServerError, "Export failed")
		return
	}

	attachment(c, export.JSONFilename(state.Page))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func (h *Handler) ExportCSV(c *gin.Context) {
	state, params, err := h.current(c)
	if err != nil {
		h.renderError(c, http.StatusBadGateway, err.Error())
		return
	}

	attachment(c, export.CSVFilename(state.Page))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(export.CSV(h.project(state, params))))
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
}
