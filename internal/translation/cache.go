package translation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// cacheEntry pairs a cached Response with its absolute expiry.
type cacheEntry struct {
	resp    *Response
	expires time.Time
}

// regexEntry is a cache item keyed by a compiled regex instead of an
// exact string match, linearly scanned on lookup.
type regexEntry struct {
	pattern *regexp.Regexp
	invert  bool
	entry   cacheEntry
	tag     string
}

// Cache is the LRU translation-response cache keyed by canonical URI plus
// any headers the server declared as Vary.
// Coalesces concurrent identical lookups with singleflight so a cache
// stampede only reaches the translation server once.
type Cache struct {
	client *Client

	exact *lru.Cache[string, cacheEntry]

	mu          sync.Mutex
	regexItems  []regexEntry
	tagsByEntry map[string][]string // invalidation tag -> exact keys sharing it

	sf singleflight.Group
}

func NewCache(client *Client, maxEntries int) (*Cache, error) {
	exact, err := lru.New[string, cacheEntry](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		client:      client,
		exact:       exact,
		tagsByEntry: make(map[string][]string),
	}, nil
}

// key derives the composite cache key: canonical URI plus the values of
// any headers Vary names, hashed to bound key length.
func key(uri string, varyHeaders map[string][]string, vary []string) string {
	h := sha256.New()
	h.Write([]byte(uri))
	names := append([]string(nil), vary...)
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte{0})
		h.Write([]byte(name))
		for _, v := range varyHeaders[name] {
			h.Write([]byte{0})
			h.Write([]byte(v))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup consults the cache, falling back to the translation client on a
// miss and storing the result if the response carries a MaxAge.
func (c *Cache) Lookup(ctx context.Context, req *Request, headerValues map[string][]string) (*Response, error) {
	// A first pass has to use a vary-less key since we don't yet know
	// which headers the server will declare as variant; regex items are
	// checked first since they can't be exact-matched.
	if resp, ok := c.lookupRegex(req.URI); ok {
		return resp, nil
	}

	approxKey := key(req.URI, headerValues, nil)
	if entry, ok := c.exact.Get(approxKey); ok && time.Now().Before(entry.expires) {
		if len(entry.resp.Vary) == 0 {
			return entry.resp, nil
		}
		// The vary-less entry records which headers the server declared;
		// the second pass looks up the key that includes their values.
		if hit, ok := c.exact.Get(key(req.URI, headerValues, entry.resp.Vary)); ok && time.Now().Before(hit.expires) {
			return hit.resp, nil
		}
	}

	v, err, _ := c.sf.Do(approxKey, func() (interface{}, error) {
		return c.client.Request(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	resp := v.(*Response)

	finalKey := key(req.URI, headerValues, resp.Vary)
	if resp.MaxAge > 0 {
		c.exact.Add(finalKey, cacheEntry{resp: resp, expires: time.Now().Add(resp.MaxAge)})
		if len(resp.Vary) > 0 {
			c.exact.Add(approxKey, cacheEntry{resp: resp, expires: time.Now().Add(resp.MaxAge)})
		}
	}
	if resp.Regex != "" {
		c.addRegex(resp.Regex, false, resp)
	}
	if resp.InverseRegex != "" {
		c.addRegex(resp.InverseRegex, true, resp)
	}

	return resp, nil
}

func (c *Cache) addRegex(pattern string, invert bool, resp *Response) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regexItems = append(c.regexItems, regexEntry{
		pattern: re,
		invert:  invert,
		entry:   cacheEntry{resp: resp, expires: time.Now().Add(resp.MaxAge)},
	})
}

func (c *Cache) lookupRegex(uri string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range c.regexItems {
		if time.Now().After(item.entry.expires) {
			continue
		}
		matched := item.pattern.MatchString(uri)
		if item.invert {
			matched = !matched
		}
		if matched {
			return item.entry.resp, true
		}
	}
	return nil, false
}

// Invalidate purges every cached entry whose tag matches tag.
func (c *Cache) Invalidate(tag string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.tagsByEntry[tag] {
		c.exact.Remove(k)
	}
	delete(c.tagsByEntry, tag)

	kept := c.regexItems[:0]
	for _, item := range c.regexItems {
		if item.tag != tag {
			kept = append(kept, item)
		}
	}
	c.regexItems = kept
}
