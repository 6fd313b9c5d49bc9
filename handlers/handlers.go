package handlers

import (
	"html/template"
	"log"
	"net/http"
	"sync"
	"time"

	"disaster-posts-viewer/config"
	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/prefs"
	"disaster-posts-viewer/projection"
	"disaster-posts-viewer/views"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Upstream is the part of the posts API the handlers use
type Upstream interface {
	feed.Fetcher
	feed.PostFetcher
}

// Handler serves every route of the viewer. Each browser session gets its
// own viewer: a page coordinator plus a detail slot.
type Handler struct {
	cfg       *config.Config
	upstream  Upstream
	prefs     *prefs.Store
	templates *template.Template
	now       func() time.Time

	mu      sync.Mutex
	viewers *lru.Cache[string, *viewer]
}

type viewer struct {
	feed   *feed.Coordinator
	detail *feed.Detail

	mu   sync.Mutex
	sort projection.SortKey
}

func (v *viewer) sortKey() projection.SortKey {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sort
}

func (v *viewer) setSort(k projection.SortKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sort = k
}

func (v *viewer) close() {
	v.feed.Close()
	v.detail.Close()
}

func New(cfg *config.Config, up Upstream, store *prefs.Store, templates *template.Template) (*Handler, error) {
	viewers, err := lru.NewWithEvict[string, *viewer](cfg.List.MaxSessions, func(_ string, v *viewer) {
		v.close()
	})
	if err != nil {
		return nil, err
	}
	return &Handler{
		cfg:       cfg,
		upstream:  up,
		prefs:     store,
		templates: templates,
		now:       time.Now,
		viewers:   viewers,
	}, nil
}

// Register mounts all routes on r
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/posts")
	})

	r.GET("/posts", h.List)
	r.POST("/posts/refresh", h.Refresh)
	r.GET("/posts/:id", h.Detail)

	r.GET("/export/page.json", h.ExportJSON)
	r.GET("/export/page.csv", h.ExportCSV)

	r.POST("/prefs/theme", h.SetTheme)

	r.GET("/live", h.Live)

	api := r.Group("/api")
	{
		api.GET("/view", h.View)
	}

	r.GET("/health", h.Health)
}

// Close tears down every viewer
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewers.Purge()
}

func (h *Handler) viewer(clientID string) *viewer {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v, ok := h.viewers.Get(clientID); ok {
		return v
	}
	v := &viewer{
		feed:   feed.New(h.upstream, h.cfg.List.DefaultPerPage, nil),
		detail: feed.NewDetail(h.upstream),
		sort:   projection.SortRecent,
	}
	h.viewers.Add(clientID, v)
	return v
}

// pageData is what every full page template receives
type pageData struct {
	Title   string
	Theme   prefs.Theme
	Themes  []prefs.Theme
	Back    string
	BackURL string
	Refresh bool

	List   *views.List
	Detail *views.Detail
	Err    string
}

// loadPrefs returns the viewer's preferences, or the defaults when the
// store cannot be read.
func (h *Handler) loadPrefs(c *gin.Context) prefs.Preferences {
	p, err := h.prefs.Load(c.Request.Context(), clientID(c))
	if err != nil {
		log.Printf("Failed to load preferences: %v", err)
		return h.prefs.Defaults()
	}
	return p
}

func (h *Handler) page(c *gin.Context, title string, theme prefs.Theme) pageData {
	return pageData{
		Title:  title,
		Theme:  theme,
		Themes: prefs.Themes,
		Back:   c.Request.URL.RequestURI(),
	}
}

func (h *Handler) renderError(c *gin.Context, status int, msg string) {
	data := h.page(c, "Error", h.loadPrefs(c).Theme)
	data.Err = msg
	c.HTML(status, "error.html", data)
}
