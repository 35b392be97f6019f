// Package upstream implements the connection pool, balancer, and failure
// table that sit between the orchestrator and concrete backend sockets,
// generalized from "one registry" to "an AddressList per resource".
package upstream

import (
	"sync"
	"time"
)

// Status is a backend address's health.
type Status int

const (
	StatusOK Status = iota
	StatusFade
	StatusFailed
	StatusMonitor
)

// severity orders statuses so a less-serious one cannot displace a
// more-serious one until the more-serious entry expires.
func (s Status) severity() int {
	switch s {
	case StatusMonitor:
		return 3
	case StatusFailed:
		return 2
	case StatusFade:
		return 1
	default:
		return 0
	}
}

type failureEntry struct {
	status Status
	expiry time.Time // zero value means "never expires" (only valid for Monitor)
}

// FailureTable is the fixed-size hash table keyed by backend address.
type FailureTable struct {
	mu      sync.Mutex
	entries [64]map[string]*failureEntry
}

func NewFailureTable() *FailureTable {
	ft := &FailureTable{}
	for i := range ft.entries {
		ft.entries[i] = make(map[string]*failureEntry)
	}
	return ft
}

func (ft *FailureTable) slot(addr string) int {
	var h uint32
	for i := 0; i < len(addr); i++ {
		h = h*31 + uint32(addr[i])
	}
	return int(h % uint32(len(ft.entries)))
}

// Set records status for addr with the given duration until expiry.
// Monitor never expires (duration is ignored for it).
func (ft *FailureTable) Set(addr string, status Status, duration time.Duration) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	m := ft.entries[ft.slot(addr)]
	existing, ok := m[addr]
	if ok && !existing.expired() && existing.status.severity() > status.severity() {
		return // more serious status still in effect, don't displace it
	}
	entry := &failureEntry{status: status}
	if status != StatusMonitor {
		entry.expiry = time.Now().Add(duration)
	}
	m[addr] = entry
}

// Clear removes any recorded failure for addr except a Monitor status,
// which stays in place.
func (ft *FailureTable) Clear(addr string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	m := ft.entries[ft.slot(addr)]
	if e, ok := m[addr]; ok && e.status != StatusMonitor {
		delete(m, addr)
	}
}

// Get returns addr's current status, treating an expired entry as OK.
func (ft *FailureTable) Get(addr string) Status {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	m := ft.entries[ft.slot(addr)]
	e, ok := m[addr]
	if !ok {
		return StatusOK
	}
	if e.expired() {
		delete(m, addr)
		return StatusOK
	}
	return e.status
}

func (e *failureEntry) expired() bool {
	return !e.expiry.IsZero() && time.Now().After(e.expiry)
}
