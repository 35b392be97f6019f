package headers

import (
	"net/http"
	"testing"
)

func TestClassifyRequestHeaderBasicsAndGroups(t *testing.T) {
	cases := []struct {
		name string
		want Group
	}{
		{"Accept", GroupBasicAlways},
		{"Cookie", GroupCookie},
		{"Authorization", GroupAuth},
		{"Referer", GroupLink},
		{"X-Forwarded-For", GroupSpecial},
		{"Connection", GroupSpecial},
		{"X-Custom-Thing", GroupOther},
	}
	for _, c := range cases {
		if got := ClassifyRequestHeader(c.name, true, false); got != c.want {
			t.Errorf("%s: got %v, want %v", c.name, got, c.want)
		}
	}
}

func TestForwardRequestDropsNoModeGroups(t *testing.T) {
	src := http.Header{"Authorization": {"Bearer xyz"}}
	dest := ForwardRequest(src, Settings{GroupAuth: ModeNo}, RequestContext{WithBody: true})
	if dest.Get("Authorization") != "" {
		t.Fatal("expected Authorization dropped under ModeNo")
	}
}

func TestForwardRequestYesModeForwards(t *testing.T) {
	src := http.Header{"Authorization": {"Bearer xyz"}}
	dest := ForwardRequest(src, Settings{GroupAuth: ModeYes}, RequestContext{WithBody: true})
	if dest.Get("Authorization") != "Bearer xyz" {
		t.Fatalf("expected Authorization forwarded, got %q", dest.Get("Authorization"))
	}
}

func TestForwardRequestBothModeExcludesSessionCookie(t *testing.T) {
	src := http.Header{"Cookie": {"sid=abc123; theme=dark"}}
	dest := ForwardRequest(src, Settings{GroupCookie: ModeBoth}, RequestContext{
		WithBody:          true,
		SessionCookieName: "sid",
	})
	got := dest.Get("Cookie")
	if got == "" {
		t.Fatal("expected theme=dark to still be forwarded")
	}
	if got != "theme=dark" {
		t.Fatalf("got %q", got)
	}
}

func TestForwardRequestMangleAppendsXFF(t *testing.T) {
	src := http.Header{"X-Forwarded-For": {"1.2.3.4"}}
	dest := ForwardRequest(src, Settings{GroupIdentity: ModeMangle}, RequestContext{
		WithBody:   true,
		RemoteHost: "5.6.7.8",
	})
	want := "1.2.3.4, 5.6.7.8"
	if got := dest.Get("X-Forwarded-For"); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestForwardResponseStripsOwnSessionCookie(t *testing.T) {
	src := http.Header{"Set-Cookie": {"sid=abc; Path=/", "other=val; Path=/"}}
	dest := ForwardResponse(200, src, Settings{GroupCookie: ModeBoth}, ResponseContext{
		SessionCookieName: "sid",
	})
	got := dest.Values("Set-Cookie")
	if len(got) != 1 || got[0] != "other=val; Path=/" {
		t.Fatalf("got %v", got)
	}
}

func TestForwardResponseRelocatesLocationUnderMangle(t *testing.T) {
	src := http.Header{"Location": {"http://backend.internal/x"}}
	dest := ForwardResponse(200, src, Settings{GroupLink: ModeMangle}, ResponseContext{
		Relocate: func(uri string) (string, bool) {
			return "https://public.example/x", true
		},
	})
	if got := dest.Get("Location"); got != "https://public.example/x" {
		t.Fatalf("got %q", got)
	}
}
