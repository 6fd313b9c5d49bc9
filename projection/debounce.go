package projection

import (
	"sync"
	"time"

	"github.com/bep/debounce"
)

// DefaultDebounce is the quiet period before a search term is committed
const DefaultDebounce = 250 * time.Millisecond

// Debouncer commits the last value pushed once no new value arrived for
// the configured delay.
type Debouncer struct {
	debounced func(f func())
	commit    func(string)

	mu      sync.Mutex
	latest  string
	stopped bool
}

func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{
		debounced: debounce.New(delay),
		commit:    commit,
	}
}

func (d *Debouncer) Push(v string) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.latest = v
	d.mu.Unlock()

	d.debounced(d.flush)
}

// Stop drops any pending value; later pushes are ignored
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	v := d.latest
	d.mu.Unlock()

	d.commit(v)
}
