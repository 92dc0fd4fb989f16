package workflow

import (
	"sync"
	"time"
)

// minDebounce is the floor on how fast external change signals may fan out as
// refresh broadcasts.
const minDebounce = 2 * time.Second

// Debouncer collapses bursts of change signals into one trailing-edge
// callback carrying the distinct keys seen during the quiet window. Used to
// turn per-save notifications into at most one refresh per window.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	timer   *time.Timer
	pending map[string]bool
	fire    func(keys []string)
}

// NewDebouncer clamps wait to the 2s floor.
func NewDebouncer(wait time.Duration, fire func(keys []string)) *Debouncer {
	if wait < minDebounce {
		wait = minDebounce
	}
	return &Debouncer{
		wait:    wait,
		pending: map[string]bool{},
		fire:    fire,
	}
}

// Signal records a change for key and (re)starts the quiet window. Signals
// arriving while the window is open extend it; the callback fires once, after
// the burst ends.
func (d *Debouncer) Signal(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[key] = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	d.pending = map[string]bool{}
	d.timer = nil
	d.mu.Unlock()
	if len(keys) > 0 && d.fire != nil {
		d.fire(keys)
	}
}

// Stop cancels any open window without firing.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = map[string]bool{}
}
