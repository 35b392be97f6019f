package session

import (
	"container/list"
	"strings"
	"sync"
)

// CookieJar accumulates Set-Cookie values per backend host, replaying
// them as a single Cookie header ordered newest-first.
type CookieJar struct {
	mu      sync.Mutex
	order   *list.List               // of *cookiePair, front = newest
	byName  map[string]*list.Element
}

type cookiePair struct {
	name  string
	value string
}

func newCookieJar() *CookieJar {
	return &CookieJar{order: list.New(), byName: make(map[string]*list.Element)}
}

// Update folds a batch of Set-Cookie header values into the jar, in the
// order the server sent them; each is pushed to the front, so the last
// one processed ends up first (scenario A's c=d ends up ahead of a=b).
func (j *CookieJar) Update(setCookieValues []string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, sc := range setCookieValues {
		name, value, ok := parseSetCookie(sc)
		if !ok {
			continue
		}
		if el, exists := j.byName[name]; exists {
			j.order.Remove(el)
		}
		el := j.order.PushFront(&cookiePair{name: name, value: value})
		j.byName[name] = el
	}
}

// Header renders the jar's current contents as a Cookie header value.
func (j *CookieJar) Header() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var parts []string
	for el := j.order.Front(); el != nil; el = el.Next() {
		cp := el.Value.(*cookiePair)
		parts = append(parts, cp.name+"="+cp.value)
	}
	return strings.Join(parts, "; ")
}

// parseSetCookie extracts the name=value pair from a Set-Cookie header,
// discarding attributes (Path, Expires, and so on).
func parseSetCookie(sc string) (name, value string, ok bool) {
	first, _, _ := strings.Cut(sc, ";")
	first = strings.TrimSpace(first)
	name, value, found := strings.Cut(first, "=")
	if !found {
		return "", "", false
	}
	return strings.TrimSpace(name), strings.TrimSpace(value), true
}
