package signalbus

import (
	"sync"
	"time"
)

const (
	defaultWindowMaxItems = 100
	defaultWindowMaxAge   = 10 * time.Minute
)

// WindowEntry is one item retained in a named sliding window.
type WindowEntry struct {
	Signal     Signal
	Processed  bool
	insertedAt time.Time
}

// WindowConfig bounds a single named Window.
type WindowConfig struct {
	MaxItems int
	MaxAge   time.Duration
}

func (c WindowConfig) withDefaults() WindowConfig {
	if c.MaxItems <= 0 {
		c.MaxItems = defaultWindowMaxItems
	}

	if c.MaxAge <= 0 {
		c.MaxAge = defaultWindowMaxAge
	}

	return c
}

// Window is a named sliding collection of signals bounded by item count and
// age, evicted age-first then LRU (least-recently-sampled first).
type Window struct {
	mu      sync.Mutex
	cfg     WindowConfig
	now     func() time.Time
	entries []*WindowEntry
	lastUse map[*WindowEntry]time.Time
}

// Window returns (creating if needed) the named window on this sink.
func (s *Sink) Window(name string, cfg WindowConfig) *Window {
	s.windowsMu.Lock()
	defer s.windowsMu.Unlock()

	if w, ok := s.windows[name]; ok {
		return w
	}

	w := &Window{
		cfg:     cfg.withDefaults(),
		now:     s.cfg.Now,
		lastUse: make(map[*WindowEntry]time.Time),
	}
	s.windows[name] = w

	return w
}

// WindowAdd appends sig to the window, evicting as needed.
func (w *Window) WindowAdd(sig Signal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	entry := &WindowEntry{Signal: sig, insertedAt: now}
	w.entries = append(w.entries, entry)
	w.lastUse[entry] = now

	w.evictLocked(now)
}

// evictLocked drops expired entries first, then the least-recently-sampled
// entries until the window is within MaxItems. Caller holds w.mu.
func (w *Window) evictLocked(now time.Time) {
	kept := w.entries[:0]

	for _, e := range w.entries {
		if now.Sub(e.insertedAt) > w.cfg.MaxAge {
			delete(w.lastUse, e)

			continue
		}

		kept = append(kept, e)
	}

	w.entries = kept

	for len(w.entries) > w.cfg.MaxItems {
		oldestIdx := 0
		oldestUse := w.lastUse[w.entries[0]]

		for i, e := range w.entries {
			if use := w.lastUse[e]; use.Before(oldestUse) {
				oldestUse = use
				oldestIdx = i
			}
		}

		delete(w.lastUse, w.entries[oldestIdx])
		w.entries = append(w.entries[:oldestIdx], w.entries[oldestIdx+1:]...)
	}
}

// WindowQuery returns a snapshot of every entry currently retained, oldest
// first, and marks them as sampled for LRU purposes.
func (w *Window) WindowQuery() []WindowEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	out := make([]WindowEntry, len(w.entries))

	for i, e := range w.entries {
		out[i] = *e
		w.lastUse[e] = now
	}

	return out
}

// WindowSample returns up to n entries, most recent first, marking them
// sampled.
func (w *Window) WindowSample(n int) []WindowEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()

	if n <= 0 || n > len(w.entries) {
		n = len(w.entries)
	}

	out := make([]WindowEntry, 0, n)

	for i := len(w.entries) - 1; i >= 0 && len(out) < n; i-- {
		e := w.entries[i]
		out = append(out, *e)
		w.lastUse[e] = now
	}

	return out
}

// WindowStats summarizes occupancy of the window.
type WindowStats struct {
	Count        int
	Capacity     int
	OldestAge    time.Duration
	UnprocessedN int
}

// WindowStats reports the window's current occupancy.
func (w *Window) WindowStats() WindowStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	stats := WindowStats{Count: len(w.entries), Capacity: w.cfg.MaxItems}

	if len(w.entries) > 0 {
		stats.OldestAge = now.Sub(w.entries[0].insertedAt)
	}

	for _, e := range w.entries {
		if !e.Processed {
			stats.UnprocessedN++
		}
	}

	return stats
}

// GetUnprocessed returns entries not yet marked Processed, oldest first,
// and marks them Processed.
func (w *Window) GetUnprocessed() []WindowEntry {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	out := make([]WindowEntry, 0, len(w.entries))

	for _, e := range w.entries {
		if e.Processed {
			continue
		}

		out = append(out, *e)
		e.Processed = true
		w.lastUse[e] = now
	}

	return out
}
