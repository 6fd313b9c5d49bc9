package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"disaster-posts-viewer/config"
	"disaster-posts-viewer/database"
	"disaster-posts-viewer/prefs"
	"disaster-posts-viewer/upstream"
	"disaster-posts-viewer/web"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves totalPosts posts. Every fifth post mentions a flood.
type fakeAPI struct {
	mu       sync.Mutex
	requests map[string]int
	fail     string

	// failDetail fails only single-post requests
	failDetail string
	// hold blocks a single-post request until its channel is closed
	hold map[int]chan struct{}
}

const totalPosts = 25

func newFakeAPI() *fakeAPI {
	return &fakeAPI{requests: map[string]int{}}
}

func fakePost(i int) map[string]any {
	text := fmt.Sprintf("calm day %d", i)
	if i%5 == 0 {
		text = fmt.Sprintf("flood warning %d", i)
	}
	return map[string]any{
		"id":         i,
		"user":       fmt.Sprintf("user%02d", i),
		"text":       text,
		"likes":      i,
		"retweets":   totalPosts - i,
		"created_at": time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}
}

func (f *fakeAPI) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[key]
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()

	if fail != "" {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": fail})
		return
	}

	if id, ok := strings.CutPrefix(r.URL.Path, "/api/posts/"); ok {
		f.mu.Lock()
		failDetail := f.failDetail
		f.mu.Unlock()
		if failDetail != "" {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"message": failDetail})
			return
		}

		n, err := strconv.Atoi(id)
		f.mu.Lock()
		f.requests["post-"+id]++
		gate := f.hold[n]
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if err != nil || n < 1 || n > totalPosts {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "Post not found"})
			return
		}
		post := fakePost(n)
		post["nlp"] = map[string]any{"sentiment": "negative", "keywords": []string{"water"}}
		json.NewEncoder(w).Encode(post)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	f.mu.Lock()
	f.requests[fmt.Sprintf("%d-%d", page, perPage)]++
	f.mu.Unlock()

	posts := []map[string]any{}
	for i := (page-1)*perPage + 1; i <= page*perPage && i <= totalPosts; i++ {
		posts = append(posts, fakePost(i))
	}
	json.NewEncoder(w).Encode(map[string]any{"posts": posts, "total": totalPosts})
}

func newTestRouter(t *testing.T, api *fakeAPI) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.Upstream.BaseURL = srv.URL
	cfg.List.SearchDebounce = 20 * time.Millisecond

	db, err := database.Open(filepath.Join(t.TempDir(), "viewer.db"))
	require.NoError(t, err)

	templates, err := web.Templates()
	require.NoError(t, err)

	store := prefs.NewStore(db, cfg.List.DefaultPerPage, cfg.List.PerPageOptions)
	h, err := New(cfg, upstream.NewClient(srv.URL, 5*time.Second), store, templates)
	require.NoError(t, err)
	t.Cleanup(h.Close)

	r := gin.New()
	r.SetHTMLTemplate(templates)
	r.Use(SecurityHeaders())
	r.Use(sessions.Sessions("viewer", cookie.NewStore([]byte("test-secret"))))
	r.Use(ClientID())
	h.Register(r)
	return r
}

// browser keeps the session cookie between requests
type browser struct {
	r       http.Handler
	cookies []*http.Cookie
}

func (b *browser) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	b.r.ServeHTTP(w, req)
	if cs := w.Result().Cookies(); len(cs) > 0 {
		b.cookies = cs
	}
	return w
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(http.MethodGet, target, nil)
}

func TestHealth(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRootRedirects(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/posts", w.Header().Get("Location"))
}

func TestList(t *testing.T) {
	api := newFakeAPI()
	b := &browser{r: newTestRouter(t, api)}

	w := b.get("/posts")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "<strong>1–10</strong> of <strong>25</strong>")
	assert.Contains(t, body, "Page 1 of 3")
	assert.Contains(t, body, "user10")
	assert.Less(t, strings.Index(body, "user10"), strings.Index(body, "user01"), "newest first")
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	assert.Eventually(t, func() bool { return api.count("2-10") == 1 }, time.Second, 5*time.Millisecond,
		"next page is prefetched")

	w = b.get("/posts?page=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>11–20</strong>")
	assert.Equal(t, 1, api.count("2-10"), "prefetched page is served from cache")

	b.get("/posts?page=1")
	assert.Equal(t, 1, api.count("1-10"), "revisited page is served from cache")
}

func TestListRemembersPerPageAndQuery(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/posts?page=2&per_page=20&q=flood")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<strong>1–20</strong>", "a new page size starts at page 1")

	w = b.get("/posts")
	body := w.Body.String()
	assert.Contains(t, body, `value="flood"`)
	assert.Contains(t, body, `<mark class="hl">flood</mark> warning 20`)
	assert.NotContains(t, body, "calm day")
	assert.Contains(t, body, `<option value="20" selected>`)

	other := &browser{r: b.r}
	assert.NotContains(t, other.get("/posts").Body.String(), `value="flood"`)
}

func TestListUpstreamError(t *testing.T) {
	api := newFakeAPI()
	api.fail = "database unavailable"
	b := &browser{r: newTestRouter(t, api)}

	w := b.get("/posts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "database unavailable")
	assert.Contains(t, w.Body.String(), "Retry")
}

func TestRefresh(t *testing.T) {
	api := newFakeAPI()
	b := &browser{r: newTestRouter(t, api)}

	b.get("/posts")
	require.Equal(t, 1, api.count("1-10"))

	w := b.do(http.MethodPost, "/posts/refresh", url.Values{"page": {"1"}, "per_page": {"10"}, "sort": {"likes"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/posts?page=1&per_page=10&sort=likes", location)

	b.get(location)
	assert.Equal(t, 2, api.count("1-10"))
}

func TestDetail(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/posts/7")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "user07")
	assert.Contains(t, body, "calm day 7")
	assert.Contains(t, body, "NEGATIVE")
	assert.Contains(t, body, "🏷 water")

	w = b.get("/posts/99")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Post not found")
	assert.Contains(t, w.Body.String(), "Retry")
}

func TestDetailFallsBackToListedPost(t *testing.T) {
	api := newFakeAPI()
	b := &browser{r: newTestRouter(t, api)}

	w := b.get("/posts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `data-copy="calm day 7"`)

	api.mu.Lock()
	api.failDetail = "annotations offline"
	api.mu.Unlock()

	w = b.get("/posts/7")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "annotations offline")
	assert.Contains(t, body, "user07")
	assert.Contains(t, body, `data-copy="calm day 7"`)
	assert.NotContains(t, body, "🏷 water", "the listed copy has no annotations")

	w = b.get("/posts/23")
	assert.Equal(t, http.StatusBadGateway, w.Code, "posts never listed have no fallback")
	assert.Contains(t, w.Body.String(), "annotations offline")
	assert.NotContains(t, w.Body.String(), "user23")
}

func TestDetailTabsDoNotCancelEachOther(t *testing.T) {
	api := newFakeAPI()
	api.hold = map[int]chan struct{}{3: make(chan struct{})}
	b := &browser{r: newTestRouter(t, api)}
	b.get("/health")
	require.NotEmpty(t, b.cookies)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		tab := &browser{r: b.r, cookies: b.cookies}
		first <- tab.get("/posts/3")
	}()
	require.Eventually(t, func() bool { return api.count("post-3") == 1 }, time.Second, 5*time.Millisecond)

	second := &browser{r: b.r, cookies: b.cookies}
	w := second.get("/posts/4")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user04")

	close(api.hold[3])
	w = <-first
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user03")
}

func TestExport(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/export/page.csv?page=1&per_page=10&q=flood&sort=likes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="posts_page_1.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(w.Body.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "user,created_at,location,likes,retweets,text", lines[0])
	assert.Equal(t, `"user10","2024-01-01T10:00:00Z","",10,15,"flood warning 10"`, lines[1])
	assert.Equal(t, `"user05","2024-01-01T05:00:00Z","",5,20,"flood warning 5"`, lines[2])

	w = b.get("/export/page.json?page=2&per_page=10&sort=retweets")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="posts_page_2.json"`, w.Header().Get("Content-Disposition"))

	var posts []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &posts))
	require.Len(t, posts, 10)
	assert.Equal(t, "user11", posts[0]["user"])
}

func TestExportFollowsVisiblePage(t *testing.T) {
	api := newFakeAPI()
	b := &browser{r: newTestRouter(t, api)}

	b.get("/posts?page=3")
	w := b.get("/export/page.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="posts_page_3.json"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, 1, api.count("3-10"))
}

func TestTheme(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.do(http.MethodPost, "/prefs/theme", url.Values{"theme": {"nature-dark"}, "back": {"/posts?page=2"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/posts?page=2", w.Header().Get("Location"))
	assert.Contains(t, b.get("/posts").Body.String(), `data-theme="nature-dark"`)

	w = b.do(http.MethodPost, "/prefs/theme", url.Values{"theme": {"neon"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = b.do(http.MethodPost, "/prefs/theme", url.Values{"theme": {"system"}, "back": {"//evil.example"}})
	assert.Equal(t, "/posts", w.Header().Get("Location"))
}

func TestView(t *testing.T) {
	b := &browser{r: newTestRouter(t, newFakeAPI())}

	w := b.get("/api/view?sort=likes&q=user0")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Page       int    `json:"page"`
		PerPage    int    `json:"per_page"`
		Total      int    `json:"total"`
		TotalPages int    `json:"total_pages"`
		Query      string `json:"query"`
		Sort       string `json:"sort"`
		Posts      []struct {
			User  string `json:"user"`
			Likes int    `json:"likes"`
		} `json:"posts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 10, resp.PerPage)
	assert.Equal(t, 25, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, "likes", resp.Sort)
	require.Len(t, resp.Posts, 9)
	assert.Equal(t, "user09", resp.Posts[0].User)
	assert.Equal(t, "user01", resp.Posts[8].User)
}

func TestViewUpstreamError(t *testing.T) {
	api := newFakeAPI()
	api.fail = "boom"
	b := &browser{r: newTestRouter(t, api)}

	w := b.get("/api/view")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"error":"boom"}`, w.Body.String())
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/posts?page=2", localPath("/posts?page=2"))
	assert.Equal(t, "/posts", localPath("https://evil.example/"))
	assert.Equal(t, "/posts", localPath("//evil.example"))
	assert.Equal(t, "/posts", localPath(""))
}
