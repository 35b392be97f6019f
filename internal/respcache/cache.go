package respcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielloader/beng-proxy/internal/perror"
	"github.com/danielloader/beng-proxy/internal/rubber"
)

// Backend is the optional remote large-object store an Entry's body can
// live in instead of the local rubber arena — the Go-native analogue of
// the original's memcached-backed alternative storage.
type Backend interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Remove(ctx context.Context, key string)
}

// Cache is the response cache: admission, keying, storage, single-flight,
// and revalidation.
type Cache struct {
	Arena   *rubber.Arena
	Remote  Backend
	MaxBody int64

	mu          sync.RWMutex
	entries     map[string]*Entry
	varyByURI   map[string][]string
	coalescer   *Coalescer
}

func New(arena *rubber.Arena, remote Backend) *Cache {
	return &Cache{
		Arena:     arena,
		Remote:    remote,
		entries:   make(map[string]*Entry),
		varyByURI: make(map[string][]string),
		coalescer: NewCoalescer(),
	}
}

// Fingerprint computes the composite cache key: method, canonical URI,
// and the tuple of values of each header named in vary.
func Fingerprint(method, uri string, vary []string, headerValues map[string][]string) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(uri))
	names := append([]string(nil), vary...)
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		for _, v := range headerValues[name] {
			h.Write([]byte{0})
			h.Write([]byte(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup finds a cached entry for method/uri given the caller's header
// values, using the most recently stored Vary list for that URI to form
// the composite key (mirrors internal/translation's regex-free exact
// lookup path).
func (c *Cache) Lookup(method, uri string, headerValues map[string][]string) (*Entry, bool) {
	c.mu.RLock()
	vary := c.varyByURI[uri]
	c.mu.RUnlock()

	key := Fingerprint(method, uri, vary, headerValues)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	return e, ok
}

// Body reads an entry's payload back, from the local arena or the remote
// backend depending on where Store put it.
func (c *Cache) Body(ctx context.Context, e *Entry) ([]byte, error) {
	if e.RemoteKey != "" {
		if c.Remote == nil {
			return nil, perror.New(perror.KindCache, "remote_backend_unavailable", nil)
		}
		return c.Remote.Get(ctx, e.RemoteKey)
	}
	return c.Arena.Read(e.RubberID)
}

// Store admits and saves a response, choosing the rubber arena by
// default and the remote backend when useRemote is set.
func (c *Cache) Store(ctx context.Context, method, uri string, status int, header http.Header, body []byte, headerValues map[string][]string, maxAge time.Duration, useRemote bool) error {
	maxBody := c.MaxBody
	if !Admit(method, status, header, int64(len(body)), maxBody) {
		return perror.New(perror.KindCache, "not_admissible", nil)
	}

	vary := splitVary(header.Get("Vary"))
	key := Fingerprint(method, uri, vary, headerValues)

	e := &Entry{
		Method:       method,
		URI:          uri,
		Status:       status,
		Header:       header.Clone(),
		Vary:         vary,
		BodySize:     int64(len(body)),
		ETag:         header.Get("ETag"),
		LastModified: header.Get("Last-Modified"),
	}
	if maxAge > 0 {
		e.Expires = time.Now().Add(maxAge)
	}

	if useRemote && c.Remote != nil {
		if err := c.Remote.Put(ctx, key, body); err != nil {
			return err
		}
		e.RemoteKey = key
	} else {
		id, err := c.Arena.Add(len(body))
		if err != nil {
			return err
		}
		if err := c.Arena.WriteAt(id, 0, body); err != nil {
			c.Arena.Remove(id)
			return err
		}
		e.RubberID = id
	}

	c.mu.Lock()
	c.entries[key] = e
	c.varyByURI[uri] = vary
	c.mu.Unlock()
	return nil
}

// Revalidate replaces or refreshes an existing entry depending on the
// conditional-GET outcome.
func (c *Cache) Revalidate(ctx context.Context, e *Entry, status int, header http.Header, body []byte, maxAge time.Duration) error {
	if status == http.StatusNotModified {
		c.mu.Lock()
		e.Header = header.Clone()
		e.ETag = header.Get("ETag")
		e.LastModified = header.Get("Last-Modified")
		if maxAge > 0 {
			e.Expires = time.Now().Add(maxAge)
		}
		c.mu.Unlock()
		return nil
	}
	return c.Store(ctx, e.Method, e.URI, status, header, body, nil, maxAge, e.RemoteKey != "")
}

// Coalescer exposes the single-flight coordinator for callers wiring up
// a concurrent-miss fetch.
func (c *Cache) Coalescer() *Coalescer { return c.coalescer }

func splitVary(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, field := range strings.Split(v, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}
