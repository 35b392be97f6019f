package orchestrator

import (
	"net/http"
	"testing"

	"github.com/danielloader/beng-proxy/internal/http1"
	"github.com/danielloader/beng-proxy/internal/session"
)

func TestToHTTPHeaderCanonicalizesKeys(t *testing.T) {
	h := http1.Header{}
	h.Add("content-type", "text/plain")
	h.Add("x-cm4all-beng-user", "bob")

	got := toHTTPHeader(h)
	if got.Get("Content-Type") != "text/plain" {
		t.Fatalf("got %q", got.Get("Content-Type"))
	}
	if got.Get("X-Cm4all-Beng-User") != "bob" {
		t.Fatalf("got %q", got.Get("X-Cm4all-Beng-User"))
	}
}

func TestToHTTP1HeaderLowercasesKeys(t *testing.T) {
	h := http.Header{}
	h.Add("Content-Type", "text/plain")
	h.Add("Content-Type", "charset=utf-8")

	got := toHTTP1Header(h)
	if len(got["content-type"]) != 2 {
		t.Fatalf("got %v", got)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	orig := http1.Header{}
	orig.Add("host", "example.com")
	orig.Add("accept", "text/html")

	back := toHTTP1Header(toHTTPHeader(orig))
	if back.Get("Host") != "example.com" || back.Get("Accept") != "text/html" {
		t.Fatalf("got %v", back)
	}
}

func TestExtractCookie(t *testing.T) {
	cases := []struct {
		header string
		name   string
		want   string
		wantOK bool
	}{
		{"foo=bar; " + SessionCookieName + "=abc123", SessionCookieName, "abc123", true},
		{SessionCookieName + "=abc123", SessionCookieName, "abc123", true},
		{"foo=bar", SessionCookieName, "", false},
		{"", SessionCookieName, "", false},
	}
	for _, c := range cases {
		got, ok := extractCookie(c.header, c.name)
		if got != c.want || ok != c.wantOK {
			t.Errorf("extractCookie(%q, %q) = (%q, %v), want (%q, %v)", c.header, c.name, got, ok, c.want, c.wantOK)
		}
	}
}

func TestSessionLanguageAndUserNilSafe(t *testing.T) {
	if got := sessionLanguage(nil); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := sessionUser(nil); got != "" {
		t.Fatalf("got %q", got)
	}

	st := session.NewStore()
	s := st.New()
	s.Language = "en"
	s.User = "alice"
	if got := sessionLanguage(s); got != "en" {
		t.Fatalf("got %q", got)
	}
	if got := sessionUser(s); got != "alice" {
		t.Fatalf("got %q", got)
	}
}
