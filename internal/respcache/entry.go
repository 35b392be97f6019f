package respcache

import (
	"net/http"
	"time"
)

// Entry is the heap-resident metadata for one cached response.
type Entry struct {
	Method string
	URI    string
	Status int
	Header http.Header

	Vary []string

	RubberID int // handle into the local rubber.Arena
	BodySize int64

	RemoteKey string // set instead of RubberID when stored in a remote backend

	ETag         string
	LastModified string

	Expires time.Time
}

// Stale reports whether the entry's freshness lifetime has elapsed and a
// revalidation is due.
func (e *Entry) Stale() bool {
	return !e.Expires.IsZero() && time.Now().After(e.Expires)
}
