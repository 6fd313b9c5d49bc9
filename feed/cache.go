package feed

import (
	"fmt"
	"sync"

	"disaster-posts-viewer/models"
)

// Key identifies one fetched batch
type Key struct {
	Page    int
	PerPage int
}

func (k Key) String() string {
	return fmt.Sprintf("%d-%d", k.Page, k.PerPage)
}

// PageCache maps a Key to the last page fetched for it. It has no size
// bound and no expiry; it lives as long as the Coordinator owning it.
type PageCache struct {
	mu    sync.RWMutex
	pages map[Key]models.Page
}

func NewPageCache() *PageCache {
	return &PageCache{pages: make(map[Key]models.Page)}
}

func (c *PageCache) Get(k Key) (models.Page, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pages[k]
	return p, ok
}

func (c *PageCache) Has(k Key) bool {
	_, ok := c.Get(k)
	return ok
}

// Put stores p under k, replacing any previous entry
func (c *PageCache) Put(k Key, p models.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[k] = p
}

func (c *PageCache) Delete(k Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pages, k)
}

func (c *PageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pages)
}

// FindPost looks id up in every cached page
func (c *PageCache) FindPost(id string) (models.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, page := range c.pages {
		for _, p := range page.Posts {
			if !p.ID.IsZero() && p.ID.String() == id {
				return p, true
			}
		}
	}
	return models.Post{}, false
}
