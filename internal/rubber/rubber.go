// Package rubber implements the large-object arena backing the response
// cache's body storage. The original maps memory
// anonymously via mmap and compacts in place; Go's garbage collector
// already manages memory safely, so this arena is a plain slice-backed
// allocator that reproduces the original's handle/compaction semantics
// (stable ids, brutto/netto accounting, auto-compact at a 3:1 ratio)
// without the original's raw pointer arithmetic.
package rubber

import (
	"sync"

	"github.com/danielloader/beng-proxy/internal/perror"
)

// compactRatio is the brutto:netto threshold that triggers an automatic
// compaction.
const compactRatio = 3

type slot struct {
	data []byte
	live bool // false once Remove'd; the id stays reserved until Compact
}

// Arena is the handle-addressed large-object store.
type Arena struct {
	mu         sync.Mutex
	slots      []slot
	bruttoSize int64
	nettoSize  int64
}

func NewArena() *Arena {
	return &Arena{}
}

// Add reserves a new allocation of size bytes and returns its stable id.
func (a *Arena) Add(size int) (int, error) {
	if size < 0 {
		return 0, perror.New(perror.KindCache, "negative_size", nil)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := len(a.slots)
	a.slots = append(a.slots, slot{data: make([]byte, size), live: true})
	a.bruttoSize += int64(size)
	a.nettoSize += int64(size)
	return id, nil
}

// WriteAt writes p into allocation id starting at byte offset off. A
// write that would end past the allocation's current size (as set by Add,
// or reduced by Shrink) fails; an allocation never grows.
func (a *Arena) WriteAt(id int, off int, p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.get(id)
	if err != nil {
		return err
	}
	end := off + len(p)
	if end > len(s.data) {
		return perror.New(perror.KindCache, "write_out_of_bounds", nil)
	}
	copy(s.data[off:end], p)
	return nil
}

// Read returns a copy of allocation id's current contents.
func (a *Arena) Read(id int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.get(id)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, nil
}

// Shrink reduces allocation id's live size to n bytes, adjusting netto
// accounting.
func (a *Arena) Shrink(id int, n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, err := a.get(id)
	if err != nil {
		return err
	}
	if n < 0 || n > len(s.data) {
		return perror.New(perror.KindCache, "shrink_out_of_range", nil)
	}
	a.nettoSize -= int64(len(s.data) - n)
	a.slots[id].data = s.data[:n]
	return nil
}

// Remove drops allocation id from the netto size and makes it unreadable;
// the id stays reserved, and its storage stays counted in the brutto
// size, until the next Compact.
func (a *Arena) Remove(id int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id < 0 || id >= len(a.slots) || !a.slots[id].live {
		return
	}
	a.nettoSize -= int64(len(a.slots[id].data))
	a.slots[id].live = false
	a.maybeAutoCompact()
}

// Compact reclaims storage for removed allocations. Because this arena
// is slice-backed rather than a raw mmap region, compaction here means
// dropping dead slots' backing arrays so the GC can reclaim them; live
// ids are never renumbered.
func (a *Arena) Compact() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compactLocked()
}

func (a *Arena) compactLocked() {
	var brutto int64
	for i := range a.slots {
		if a.slots[i].live {
			brutto += int64(cap(a.slots[i].data))
		} else {
			a.slots[i].data = nil
		}
	}
	a.bruttoSize = brutto
}

func (a *Arena) maybeAutoCompact() {
	if a.nettoSize > 0 && a.bruttoSize >= a.nettoSize*compactRatio {
		a.compactLocked()
	}
}

func (a *Arena) get(id int) (*slot, error) {
	if id < 0 || id >= len(a.slots) || !a.slots[id].live {
		return nil, perror.New(perror.KindCache, "invalid_handle", nil)
	}
	return &a.slots[id], nil
}

// Sizes returns the current brutto/netto totals.
func (a *Arena) Sizes() (brutto, netto int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bruttoSize, a.nettoSize
}
