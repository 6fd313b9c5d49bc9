package feed

import (
	"context"
	"sync"

	"disaster-posts-viewer/models"
	"disaster-posts-viewer/upstream"
)

// PostFetcher loads a single post
type PostFetcher interface {
	GetPost(ctx context.Context, id string) (*models.Post, error)
}

// Detail tracks the detail requests of one viewer. A second load of the
// same post cancels the one still in flight; loads of different posts
// run side by side, so two open tabs do not cancel each other.
type Detail struct {
	fetcher PostFetcher

	mu       sync.Mutex
	inflight map[string]*detailLoad
}

type detailLoad struct {
	cancel context.CancelFunc
}

func NewDetail(fetcher PostFetcher) *Detail {
	return &Detail{fetcher: fetcher, inflight: make(map[string]*detailLoad)}
}

func (d *Detail) Load(ctx context.Context, id string) (*models.Post, error) {
	d.mu.Lock()
	if prev, ok := d.inflight[id]; ok {
		prev.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	load := &detailLoad{cancel: cancel}
	d.inflight[id] = load
	d.mu.Unlock()

	post, err := d.fetcher.GetPost(fetchCtx, id)

	d.mu.Lock()
	defer d.mu.Unlock()
	superseded := fetchCtx.Err() != nil || upstream.IsCanceled(err)
	cancel()
	if d.inflight[id] == load {
		delete(d.inflight, id)
	}
	if superseded {
		return nil, ErrSuperseded
	}
	return post, err
}

// InFlight reports how many posts are being loaded
func (d *Detail) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

func (d *Detail) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, load := range d.inflight {
		load.cancel()
		delete(d.inflight, id)
	}
}
