package respcache

import (
	"sync"

	"github.com/danielloader/beng-proxy/internal/streams"
)

// pendingFetch represents one in-flight upstream fetch that concurrent
// cache misses for the same fingerprint attach to.
//
// Each Attach call splits the current tail stream in two via
// streams.NewTee: one half becomes the new tail (available to the next
// attacher), the other is handed to the caller. This chains into a
// fan-out tree instead of a flat broadcast, but every branch still only
// pays for one upstream read since tee shares a single buffer per split.
type pendingFetch struct {
	mu      sync.Mutex
	tail    streams.Stream
	waiters int
}

// Coalescer tracks one pendingFetch per fingerprint.
type Coalescer struct {
	mu      sync.Mutex
	pending map[string]*pendingFetch
}

func NewCoalescer() *Coalescer {
	return &Coalescer{pending: make(map[string]*pendingFetch)}
}

// Begin registers src as the body stream for an in-flight fetch of
// fingerprint. The caller fetching from upstream must consume the stream
// returned from pf.Tail() (via a later Attach-less read) rather than src
// directly once any Attach call has occurred; done removes the
// registration once the fetch (and all derived branches) are finished.
func (c *Coalescer) Begin(fingerprint string, src streams.Stream) (tail func() streams.Stream, done func()) {
	pf := &pendingFetch{tail: src}
	c.mu.Lock()
	c.pending[fingerprint] = pf
	c.mu.Unlock()

	done = func() {
		c.mu.Lock()
		delete(c.pending, fingerprint)
		c.mu.Unlock()
	}

	return pf.Tail, done
}

// Attach returns a stream branch for fingerprint if a fetch is already
// in flight, or ok=false if the caller should start its own.
func (c *Coalescer) Attach(fingerprint string) (branch streams.Stream, ok bool) {
	c.mu.Lock()
	pf, found := c.pending[fingerprint]
	c.mu.Unlock()
	if !found {
		return nil, false
	}
	pf.mu.Lock()
	defer pf.mu.Unlock()
	a, b := streams.NewTee(pf.tail)
	pf.tail = a
	pf.waiters++
	return b, true
}

// Tail returns the stream the original fetcher should consume to fill
// the cache entry, after all concurrent Attach calls have split their
// branches off.
func (pf *pendingFetch) Tail() streams.Stream {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	return pf.tail
}
