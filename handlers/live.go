package handlers

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"disaster-posts-viewer/feed"
	"disaster-posts-viewer/prefs"
	"disaster-posts-viewer/projection"
	"disaster-posts-viewer/views"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const liveWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// liveEvent is one user action sent by the live page
type liveEvent struct {
	Type    string `json:"type"`
	Page    int    `json:"page,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
	Query   string `json:"query,omitempty"`
	Sort    string `json:"sort,omitempty"`
}

// liveFrame carries a rendered list. Frames are numbered so the page can
// ignore one that arrives late.
type liveFrame struct {
	Version uint64 `json:"version"`
	HTML    string `json:"html"`
}

type loadResult struct {
	key feed.Key
	err error
}

// Live serves the live list page, or the websocket behind it when the
// request asks for an upgrade.
func (h *Handler) Live(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		h.livePage(c)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[live] upgrade failed: %v", err)
		return
	}

	s := &liveSession{
		h:        h,
		conn:     conn,
		clientID: clientID(c),
		changed:  make(chan struct{}, 1),
		queries:  make(chan string),
		loads:    make(chan loadResult),
	}
	s.run(c.Request.Context(), h.loadPrefs(c))
}

func (h *Handler) livePage(c *gin.Context) {
	p := h.loadPrefs(c)
	state := feed.State{Page: 1, PerPage: p.PerPage, Loading: true}
	list := views.NewList(state, nil, p.Query, projection.SortRecent, h.cfg.List.PerPageOptions, h.now())

	data := h.page(c, "Posts (live)", p.Theme)
	data.List = &list
	c.HTML(http.StatusOK, "live.html", data)
}

// liveSession is one websocket connection with its own coordinator. All
// state below is owned by the run loop.
type liveSession struct {
	h        *Handler
	conn     *websocket.Conn
	clientID string
	feed     *feed.Coordinator
	debounce *projection.Debouncer

	changed chan struct{}
	queries chan string
	loads   chan loadResult

	page    int
	perPage int
	typed   string
	query   string
	sort    projection.SortKey
	frame   uint64
}

func (s *liveSession) run(parent context.Context, p prefs.Preferences) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer s.conn.Close()

	s.feed = feed.New(s.h.upstream, p.PerPage, func(feed.State) {
		select {
		case s.changed <- struct{}{}:
		default:
		}
	})
	defer s.feed.Close()

	s.debounce = projection.NewDebouncer(s.h.cfg.List.SearchDebounce, func(q string) {
		select {
		case s.queries <- q:
		case <-ctx.Done():
		}
	})
	defer s.debounce.Stop()

	s.typed, s.query, s.sort = p.Query, p.Query, projection.SortRecent

	events := make(chan liveEvent)
	go s.read(ctx, cancel, events)

	s.startLoad(ctx, 1, p.PerPage)

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			err = s.handle(ctx, ev)
		case q := <-s.queries:
			s.query = q
			err = s.render()
		case <-s.changed:
			err = s.render()
		case r := <-s.loads:
			if r.err == nil && r.key == (feed.Key{Page: s.page, PerPage: s.perPage}) {
				s.feed.PrefetchNext()
			}
		}
		if err != nil {
			log.Printf("[live] write failed: %v", err)
			return
		}
	}
}

func (s *liveSession) read(ctx context.Context, cancel context.CancelFunc, events chan<- liveEvent) {
	defer cancel()
	for {
		var ev liveEvent
		if err := s.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[live] read failed: %v", err)
			}
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (s *liveSession) handle(ctx context.Context, ev liveEvent) error {
	switch ev.Type {
	case "page":
		if ev.Page >= 1 {
			s.startLoad(ctx, ev.Page, s.perPage)
		}
	case "next":
		if s.target().CanNext() {
			s.startLoad(ctx, s.page+1, s.perPage)
		}
	case "prev":
		if s.target().CanPrev() {
			s.startLoad(ctx, s.page-1, s.perPage)
		}
	case "per_page":
		if ev.PerPage == s.perPage || !s.h.cfg.AllowsPerPage(ev.PerPage) {
			return nil
		}
		if err := s.h.prefs.SetPerPage(ctx, s.clientID, ev.PerPage); err != nil {
			log.Printf("[live] save page size: %v", err)
		}
		s.startLoad(ctx, 1, ev.PerPage)
	case "query":
		s.typed = ev.Query
		if err := s.h.prefs.SetQuery(ctx, s.clientID, ev.Query); err != nil {
			log.Printf("[live] save query: %v", err)
		}
		s.debounce.Push(ev.Query)
	case "sort":
		s.sort = projection.ParseSortKey(ev.Sort)
		return s.render()
	case "refresh":
		s.feed.Invalidate(s.page, s.perPage)
		s.startLoad(ctx, s.page, s.perPage)
	default:
		log.Printf("[live] unknown event %q", ev.Type)
	}
	return nil
}

// target is the last requested page, with the total last reported
func (s *liveSession) target() feed.State {
	return feed.State{Page: s.page, PerPage: s.perPage, Total: s.feed.State().Total}
}

// startLoad begins the load on the loop, so loads start in event order and
// the latest one wins. Only the network wait runs off the loop.
func (s *liveSession) startLoad(ctx context.Context, page, perPage int) {
	key := feed.Key{Page: page, PerPage: perPage}
	_, finish, err := s.feed.Begin(ctx, page, perPage)
	if err != nil {
		log.Printf("[live] load %s: %v", key, err)
		return
	}
	s.page, s.perPage = page, perPage

	if finish == nil {
		s.feed.PrefetchNext()
		return
	}
	go func() {
		_, err := finish()
		if errors.Is(err, feed.ErrSuperseded) {
			return
		}
		select {
		case s.loads <- loadResult{key: key, err: err}:
		case <-ctx.Done():
		}
	}()
}

func (s *liveSession) render() error {
	st := s.feed.State()
	posts := projection.Annotate(projection.Apply(st.Posts, s.query, s.sort), s.query, views.CardSnippet)
	list := views.NewList(st, posts, s.typed, s.sort, s.h.cfg.List.PerPageOptions, s.h.now())

	var buf bytes.Buffer
	if err := s.h.templates.ExecuteTemplate(&buf, "list_body", list); err != nil {
		return err
	}

	s.frame++
	if err := s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(liveFrame{Version: s.frame, HTML: buf.String()})
}
