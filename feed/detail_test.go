package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"disaster-posts-viewer/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedPosts struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls map[string]int
}

func (g *gatedPosts) GetPost(ctx context.Context, id string) (*models.Post, error) {
	g.mu.Lock()
	g.calls[id]++
	gate := g.gates[id]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	text := "post " + id
	return &models.Post{ID: models.NewPostID(id), Text: &text}, nil
}

func (g *gatedPosts) called(id string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[id]
}

// stallFirst blocks the first request until it is cancelled
type stallFirst struct {
	mu      sync.Mutex
	calls   int
	stalled chan struct{}
}

func (f *stallFirst) GetPost(ctx context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	f.calls++
	first := f.calls == 1
	f.mu.Unlock()
	if first {
		close(f.stalled)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &models.Post{ID: models.NewPostID(id)}, nil
}

func TestDetailSupersede(t *testing.T) {
	f := &stallFirst{stalled: make(chan struct{})}
	d := NewDetail(f)
	defer d.Close()

	stale := make(chan error, 1)
	go func() {
		_, err := d.Load(context.Background(), "a")
		stale <- err
	}()
	<-f.stalled

	post, err := d.Load(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", post.ID.String())
	assert.ErrorIs(t, <-stale, ErrSuperseded)
	assert.Equal(t, 0, d.InFlight())
}

func TestDetailOtherPostsRunSideBySide(t *testing.T) {
	g := &gatedPosts{gates: map[string]chan struct{}{"a": make(chan struct{})}, calls: map[string]int{}}
	d := NewDetail(g)
	defer d.Close()

	first := make(chan error, 1)
	go func() {
		post, err := d.Load(context.Background(), "a")
		if err == nil {
			assert.Equal(t, "a", post.ID.String())
		}
		first <- err
	}()
	require.Eventually(t, func() bool { return g.called("a") == 1 }, time.Second, time.Millisecond)

	post, err := d.Load(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", post.ID.String())
	assert.Equal(t, 1, d.InFlight())

	close(g.gates["a"])
	assert.NoError(t, <-first)
	assert.Equal(t, 0, d.InFlight())
}
