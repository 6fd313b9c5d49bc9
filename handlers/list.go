package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/models"
	"disaster-posts-viewer/prefs"
	"disaster-posts-viewer/projection"
	"disaster-posts-viewer/views"

	"github.com/gin-gonic/gin"
)

// listParams selects a page and how it is projected
type listParams struct {
	Page    int
	PerPage int
	Query   string
	Sort    projection.SortKey
}

// resolveParams reads page, per_page, q and sort from the request. Missing
// values come from the stored preferences and the viewer's current page.
// A new page size starts over at page 1.
func (h *Handler) resolveParams(c *gin.Context, p prefs.Preferences, v *viewer) (params listParams, perPageChanged, queryChanged bool) {
	params = listParams{
		PerPage: p.PerPage,
		Query:   p.Query,
		Sort:    v.sortKey(),
	}

	if raw, ok := param(c, "per_page"); ok {
		if n, err := strconv.Atoi(raw); err == nil && h.cfg.AllowsPerPage(n) && n != p.PerPage {
			params.PerPage = n
			perPageChanged = true
		}
	}
	if q, ok := param(c, "q"); ok && q != p.Query {
		params.Query = q
		queryChanged = true
	}
	if raw, ok := param(c, "sort"); ok {
		params.Sort = projection.ParseSortKey(raw)
	}

	state := v.feed.State()
	switch {
	case perPageChanged:
		params.Page = 1
	default:
		if raw, ok := param(c, "page"); ok {
			if n, err := strconv.Atoi(raw); err == nil && n >= 1 {
				params.Page = n
			}
		}
		if params.Page == 0 && state.PerPage == params.PerPage {
			params.Page = state.Page
		}
		if params.Page == 0 {
			params.Page = 1
		}
	}
	return params, perPageChanged, queryChanged
}

// param looks in the POST form first, then the query string
func param(c *gin.Context, key string) (string, bool) {
	if v, ok := c.GetPostForm(key); ok {
		return v, true
	}
	return c.GetQuery(key)
}

// load makes the requested page visible on the viewer's coordinator and
// starts prefetching the next one.
func (h *Handler) load(c *gin.Context, v *viewer, params listParams) (feed.State, error) {
	v.setSort(params.Sort)

	state, err := v.feed.LoadPage(c.Request.Context(), params.Page, params.PerPage)
	switch {
	case errors.Is(err, feed.ErrSuperseded):
		// A newer request of the same viewer took over; show what it shows.
		return v.feed.State(), nil
	case errors.Is(err, feed.ErrInvalidPage):
		return state, err
	case err == nil:
		v.feed.PrefetchNext()
	}
	// Upstream failures are carried in state.Err.
	return state, nil
}

func (h *Handler) project(state feed.State, params listParams) []models.Post {
	return projection.Apply(state.Posts, params.Query, params.Sort)
}

func (h *Handler) listView(state feed.State, params listParams) views.List {
	posts := projection.Annotate(h.project(state, params), params.Query, views.CardSnippet)
	return views.NewList(state, posts, params.Query, params.Sort, h.cfg.List.PerPageOptions, h.now())
}

// List renders one page of posts. Changes to the page size or the search
// query are remembered for the viewer.
func (h *Handler) List(c *gin.Context) {
	ctx := c.Request.Context()
	id := clientID(c)
	p := h.loadPrefs(c)
	v := h.viewer(id)

	params, perPageChanged, queryChanged := h.resolveParams(c, p, v)
	if perPageChanged {
		if err := h.prefs.SetPerPage(ctx, id, params.PerPage); err != nil {
			log.Printf("Failed to save page size: %v", err)
		}
	}
	if queryChanged {
		if err := h.prefs.SetQuery(ctx, id, params.Query); err != nil {
			log.Printf("Failed to save query: %v", err)
		}
	}

	state, err := h.load(c, v, params)
	if err != nil {
		h.renderError(c, http.StatusBadRequest, err.Error())
		return
	}

	list := h.listView(state, params)
	data := h.page(c, "Posts", p.Theme)
	data.List = &list
	data.Refresh = state.Loading

	c.HTML(http.StatusOK, "list.html", data)
}

// Refresh drops the cached copy of a page and sends the browser back to it,
// so the page is fetched again. Retry uses it too.
func (h *Handler) Refresh(c *gin.Context) {
	p := h.loadPrefs(c)
	v := h.viewer(clientID(c))

	params, _, _ := h.resolveParams(c, p, v)
	v.feed.Invalidate(params.Page, params.PerPage)

	list := views.List{PerPage: params.PerPage, Query: params.Query, Sort: params.Sort}
	c.Redirect(http.StatusSeeOther, list.URL(params.Page))
}
