package session

import "testing"

func TestCookieRoundTripScenarioA(t *testing.T) {
	jar := newCookieJar()

	if got := jar.Header(); got != "" {
		t.Fatalf("expected empty jar initially, got %q", got)
	}

	jar.Update([]string{"foo=bar; Path=/"})
	if got := jar.Header(); got != "foo=bar" {
		t.Fatalf("after request 1, got %q", got)
	}

	jar.Update([]string{"a=b; Path=/", "c=d; Path=/"})
	want := "c=d; a=b; foo=bar"
	if got := jar.Header(); got != want {
		t.Fatalf("after request 2, got %q, want %q", got, want)
	}
}

func TestCookieJarUpdateReplacesExistingNameAndMovesItToFront(t *testing.T) {
	jar := newCookieJar()
	jar.Update([]string{"a=1"})
	jar.Update([]string{"b=2"})
	jar.Update([]string{"a=9"}) // re-set a: must move to front with the new value
	if got := jar.Header(); got != "a=9; b=2" {
		t.Fatalf("got %q", got)
	}
}

func TestStoreGetOrCreateReplaysSessionID(t *testing.T) {
	st := NewStore()
	s1 := st.GetOrCreate("abc123")
	s2 := st.GetOrCreate("abc123")
	if s1 != s2 {
		t.Fatal("expected the same session object for a replayed id")
	}
}

func TestWidgetStatePersistsPerIDPath(t *testing.T) {
	st := NewStore()
	s := st.New()
	s.SetWidgetState("root/child", WidgetState{PathInfo: "/x", QueryString: "y=1"})
	got, ok := s.WidgetState("root/child")
	if !ok || got.PathInfo != "/x" || got.QueryString != "y=1" {
		t.Fatalf("got %+v %v", got, ok)
	}
	if _, ok := s.WidgetState("root/other"); ok {
		t.Fatal("expected no state for an unrelated widget path")
	}
}
