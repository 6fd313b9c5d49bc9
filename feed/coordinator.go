package feed

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"disaster-posts-viewer/models"
	"disaster-posts-viewer/upstream"
)

var (
	// ErrSuperseded is returned by a load whose request was cancelled,
	// either by a newer load or by teardown. It never reaches the user.
	ErrSuperseded  = errors.New("feed: request superseded")
	ErrInvalidPage = errors.New("feed: page must be >= 1 and per page > 0")
)

// Fetcher loads one page of posts
type Fetcher interface {
	ListPosts(ctx context.Context, page, perPage int) (*models.Page, error)
}

// State is what the list view renders
type State struct {
	Page        int
	PerPage     int
	Posts       []models.Post
	Total       int
	Loading     bool
	Err         string
	LastUpdated time.Time

	// Version increases with every change; snapshots delivered out of
	// order can be dropped by comparing it.
	Version uint64
}

func (s State) TotalPages() int {
	if s.PerPage <= 0 {
		return 1
	}
	n := (s.Total + s.PerPage - 1) / s.PerPage
	if n < 1 {
		return 1
	}
	return n
}

func (s State) CanPrev() bool { return s.Page > 1 }

func (s State) CanNext() bool { return s.Page < s.TotalPages() }

// Range returns the 1-based positions of the first and last post on the page
func (s State) Range() (start, end int) {
	if s.Total == 0 {
		return 0, 0
	}
	start = (s.Page-1)*s.PerPage + 1
	end = s.Page * s.PerPage
	if end > s.Total {
		end = s.Total
	}
	return start, end
}

// Coordinator owns the page cache of one list view and the requests
// filling it. At most one visible load is in flight; starting another
// cancels it.
type Coordinator struct {
	fetcher Fetcher
	cache   *PageCache
	notify  func(State)
	now     func() time.Time

	life     context.Context
	shutdown context.CancelFunc

	mu    sync.Mutex
	state State
	gen   uint64
	// shown is the key state.Posts belongs to
	shown Key

	cancel context.CancelFunc

	prefetchCancel context.CancelFunc
	prefetchKey    Key
	prefetchDone   chan struct{}
}

// New creates a Coordinator positioned on page 1. notify, if not nil, is
// called with a snapshot after every visible change. It must not call back
// into the Coordinator synchronously.
func New(fetcher Fetcher, perPage int, notify func(State)) *Coordinator {
	life, shutdown := context.WithCancel(context.Background())
	return &Coordinator{
		fetcher:  fetcher,
		cache:    NewPageCache(),
		notify:   notify,
		now:      time.Now,
		life:     life,
		shutdown: shutdown,
		state:    State{Page: 1, PerPage: perPage},
		shown:    Key{Page: 1, PerPage: perPage},
	}
}

// State returns a snapshot of the current view state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cache exposes the page cache for reads
func (c *Coordinator) Cache() *PageCache {
	return c.cache
}

// LoadPage makes (page, perPage) the visible page. A cached page is shown
// without a request. Otherwise the page is fetched; if that request is
// cancelled before it is applied, ErrSuperseded is returned and the state
// is left alone.
func (c *Coordinator) LoadPage(ctx context.Context, page, perPage int) (State, error) {
	s, finish, err := c.Begin(ctx, page, perPage)
	if err != nil || finish == nil {
		return s, err
	}
	return finish()
}

// Begin is the synchronous half of LoadPage. It cancels the previous load
// and either applies the cached page (finish is nil) or marks the state as
// loading and returns finish, which performs the request. Calls to Begin
// decide which load wins: only the last begun one is ever applied, no
// matter when its finish runs.
func (c *Coordinator) Begin(ctx context.Context, page, perPage int) (s State, finish func() (State, error), err error) {
	if page < 1 || perPage <= 0 {
		return c.State(), nil, ErrInvalidPage
	}
	key := Key{Page: page, PerPage: perPage}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	gen := c.gen

	c.state.Page = page
	c.state.PerPage = perPage
	c.state.Err = ""

	if cached, ok := c.cache.Get(key); ok {
		c.state.Posts = cached.Posts
		c.state.Total = cached.Total
		c.state.Loading = false
		c.shown = key
		s = c.changedLocked()
		c.mu.Unlock()
		c.emit(s)
		return s, nil, nil
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.life, cancel)
	c.cancel = cancel
	c.state.Loading = true
	s = c.changedLocked()
	c.mu.Unlock()
	c.emit(s)

	finish = func() (State, error) {
		defer cancel()
		result, err := c.fetcher.ListPosts(fetchCtx, page, perPage)
		stop()
		return c.apply(gen, key, fetchCtx, result, err)
	}
	return s, finish, nil
}

func (c *Coordinator) apply(gen uint64, key Key, fetchCtx context.Context, result *models.Page, err error) (State, error) {
	c.mu.Lock()
	if fetchCtx.Err() != nil || upstream.IsCanceled(err) {
		if c.gen != gen {
			s := c.state
			c.mu.Unlock()
			return s, ErrSuperseded
		}
		// Nobody replaced this load; the caller or the view went away.
		// Go back to the page whose posts are still held.
		c.cancel = nil
		c.state.Page = c.shown.Page
		c.state.PerPage = c.shown.PerPage
		c.state.Loading = false
		s := c.changedLocked()
		c.mu.Unlock()
		c.emit(s)
		return s, ErrSuperseded
	}
	if c.gen != gen {
		s := c.state
		c.mu.Unlock()
		return s, ErrSuperseded
	}
	c.cancel = nil

	if err != nil {
		c.state.Err = upstream.Message(err, upstream.ListFallback)
		c.state.Loading = false
		s := c.changedLocked()
		c.mu.Unlock()
		log.Printf("[feed] load %s failed: %v", key, err)
		c.emit(s)
		return s, err
	}

	c.cache.Put(key, *result)
	c.state.Posts = result.Posts
	c.state.Total = result.Total
	c.state.LastUpdated = c.now()
	c.state.Loading = false
	c.shown = key
	s := c.changedLocked()
	c.mu.Unlock()
	c.emit(s)
	return s, nil
}

// PrefetchNext fetches the page after the visible one into the cache in the
// background. It does nothing past the last page or when the page is
// already cached. Failures are dropped. The returned channel is closed once
// the attempt is over.
func (c *Coordinator) PrefetchNext() <-chan struct{} {
	c.mu.Lock()
	s := c.state
	next := Key{Page: s.Page + 1, PerPage: s.PerPage}

	if c.life.Err() != nil || s.PerPage <= 0 || next.Page > s.TotalPages() || c.cache.Has(next) {
		c.mu.Unlock()
		return closedChan()
	}
	if c.prefetchDone != nil && c.prefetchKey == next {
		done := c.prefetchDone
		c.mu.Unlock()
		return done
	}
	if c.prefetchCancel != nil {
		c.prefetchCancel()
	}

	ctx, cancel := context.WithCancel(c.life)
	done := make(chan struct{})
	c.prefetchCancel = cancel
	c.prefetchKey = next
	c.prefetchDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		page, err := c.fetcher.ListPosts(ctx, next.Page, next.PerPage)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.prefetchDone == done {
			c.prefetchCancel = nil
			c.prefetchDone = nil
		}
		if err != nil {
			if !upstream.IsCanceled(err) {
				log.Printf("[feed] prefetch %s dropped: %v", next, err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		c.cache.Put(next, *page)
	}()

	return done
}

// Invalidate drops the cached page so the next load goes to the network
func (c *Coordinator) Invalidate(page, perPage int) {
	c.cache.Delete(Key{Page: page, PerPage: perPage})
}

// Refresh re-fetches the visible page. It backs both the refresh and the
// retry actions.
func (c *Coordinator) Refresh(ctx context.Context) (State, error) {
	s := c.State()
	c.Invalidate(s.Page, s.PerPage)
	return c.LoadPage(ctx, s.Page, s.PerPage)
}

// Close cancels every outstanding request of this view
func (c *Coordinator) Close() {
	c.shutdown()
}

func (c *Coordinator) changedLocked() State {
	c.state.Version++
	return c.state
}

func (c *Coordinator) emit(s State) {
	if c.notify != nil {
		c.notify(s)
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
