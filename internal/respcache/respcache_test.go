package respcache

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/danielloader/beng-proxy/internal/rubber"
)

func TestAdmitRejectsNonCacheableMethod(t *testing.T) {
	h := http.Header{}
	if Admit(http.MethodPost, 200, h, 10, 0) {
		t.Fatal("expected POST to be rejected")
	}
}

func TestAdmitRejectsNoStore(t *testing.T) {
	h := http.Header{"Cache-Control": {"no-store"}}
	if Admit(http.MethodGet, 200, h, 10, 0) {
		t.Fatal("expected no-store to be rejected")
	}
}

func TestAdmitRejectsVaryStar(t *testing.T) {
	h := http.Header{"Vary": {"*"}}
	if Admit(http.MethodGet, 200, h, 10, 0) {
		t.Fatal("expected Vary: * to be rejected")
	}
}

func TestAdmitRejectsOversizedBody(t *testing.T) {
	h := http.Header{}
	if Admit(http.MethodGet, 200, h, MaxCacheableBody+1, 0) {
		t.Fatal("expected oversized body to be rejected")
	}
}

func TestAdmitAcceptsPlainGet200(t *testing.T) {
	h := http.Header{}
	if !Admit(http.MethodGet, 200, h, 10, 0) {
		t.Fatal("expected plain GET 200 to be admitted")
	}
}

func TestStoreThenLookupThenBodyRoundTrips(t *testing.T) {
	c := New(rubber.NewArena(), nil)
	ctx := context.Background()
	header := http.Header{"Content-Type": {"text/plain"}}
	if err := c.Store(ctx, "GET", "/a", 200, header, []byte("payload"), nil, time.Minute, false); err != nil {
		t.Fatal(err)
	}
	e, ok := c.Lookup("GET", "/a", nil)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	body, err := c.Body(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "payload" {
		t.Fatalf("got %q", body)
	}
}

func TestLookupMissOnDistinctVaryValue(t *testing.T) {
	c := New(rubber.NewArena(), nil)
	ctx := context.Background()
	header := http.Header{"Vary": {"Accept-Encoding"}}
	values := map[string][]string{"Accept-Encoding": {"gzip"}}
	if err := c.Store(ctx, "GET", "/b", 200, header, []byte("gz"), values, time.Minute, false); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup("GET", "/b", map[string][]string{"Accept-Encoding": {"br"}}); ok {
		t.Fatal("expected a miss for a different Accept-Encoding value")
	}
	if _, ok := c.Lookup("GET", "/b", values); !ok {
		t.Fatal("expected a hit for the matching Accept-Encoding value")
	}
}

func TestRevalidate304KeepsOldBody(t *testing.T) {
	c := New(rubber.NewArena(), nil)
	ctx := context.Background()
	if err := c.Store(ctx, "GET", "/c", 200, http.Header{}, []byte("orig"), nil, time.Minute, false); err != nil {
		t.Fatal(err)
	}
	e, _ := c.Lookup("GET", "/c", nil)
	if err := c.Revalidate(ctx, e, http.StatusNotModified, http.Header{"ETag": {`"v2"`}}, nil, time.Minute); err != nil {
		t.Fatal(err)
	}
	body, err := c.Body(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "orig" {
		t.Fatalf("expected body to survive a 304, got %q", body)
	}
	if e.ETag != `"v2"` {
		t.Fatalf("expected metadata to refresh, got %q", e.ETag)
	}
}
