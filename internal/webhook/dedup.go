package webhook

import (
	"sync"
	"time"
)

const (
	// maxTrackedEvents caps the dedup set so rotating event IDs cannot
	// exhaust memory.
	maxTrackedEvents = 4096

	// dedupWindow is how long a seen event ID stays blocked. Gateways
	// re-deliver within seconds, not hours.
	dedupWindow = 10 * time.Minute
)

// Deduper drops re-delivered events by their gateway message ID.
// Safe for concurrent use.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]time.Time)}
}

// Seen records the ID and reports whether it was already present within the
// window. Empty IDs are never deduplicated.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()

	if len(d.seen) >= maxTrackedEvents {
		for k, at := range d.seen {
			if now.Sub(at) >= dedupWindow {
				delete(d.seen, k)
			}
		}
		for len(d.seen) >= maxTrackedEvents {
			for k := range d.seen {
				delete(d.seen, k)
				break
			}
		}
	}

	at, ok := d.seen[id]
	if ok && now.Sub(at) < dedupWindow {
		return true
	}
	d.seen[id] = now
	return false
}
