package upstream

import (
	"net"
	"testing"
	"time"
)

func TestFailureTableExpiresEntries(t *testing.T) {
	ft := NewFailureTable()
	ft.Set("10.0.0.1:80", StatusFailed, 10*time.Millisecond)
	if got := ft.Get("10.0.0.1:80"); got != StatusFailed {
		t.Fatalf("expected Failed immediately after Set, got %v", got)
	}
	time.Sleep(20 * time.Millisecond)
	if got := ft.Get("10.0.0.1:80"); got != StatusOK {
		t.Fatalf("expected expired entry to read as OK, got %v", got)
	}
}

func TestFailureTableMonitorNeverExpires(t *testing.T) {
	ft := NewFailureTable()
	ft.Set("10.0.0.2:80", StatusMonitor, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if got := ft.Get("10.0.0.2:80"); got != StatusMonitor {
		t.Fatalf("expected Monitor to persist, got %v", got)
	}
}

func TestFailureTableClearRemovesNonMonitor(t *testing.T) {
	ft := NewFailureTable()
	ft.Set("10.0.0.3:80", StatusFade, time.Minute)
	ft.Clear("10.0.0.3:80")
	if got := ft.Get("10.0.0.3:80"); got != StatusOK {
		t.Fatalf("expected cleared entry to read as OK, got %v", got)
	}
}

func TestFailureTableSeverityPrecedence(t *testing.T) {
	ft := NewFailureTable()
	ft.Set("10.0.0.4:80", StatusFailed, time.Minute)
	ft.Set("10.0.0.4:80", StatusFade, time.Minute) // less severe, must not displace
	if got := ft.Get("10.0.0.4:80"); got != StatusFailed {
		t.Fatalf("expected Failed to survive a less severe Set, got %v", got)
	}
}

func TestStickyPickIsStable(t *testing.T) {
	addrs := []string{"a:1", "b:2", "c:3", "d:4"}
	b := NewBalancer(NewFailureTable())
	first, err := b.Pick(addrs, "session-abc")
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Pick(addrs, "session-abc")
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("sticky pick must be stable: %q vs %q", first, second)
	}
}

func TestBalancerSkipsFailedAddresses(t *testing.T) {
	ft := NewFailureTable()
	addrs := []string{"a:1", "b:2"}
	ft.Set("a:1", StatusFailed, time.Minute)
	b := NewBalancer(ft)
	for i := 0; i < 10; i++ {
		picked, err := b.Pick(addrs, "")
		if err != nil {
			t.Fatal(err)
		}
		if picked == "a:1" {
			t.Fatalf("balancer picked failed address a:1")
		}
	}
}

func TestBalancerFallsBackWhenAllFailed(t *testing.T) {
	ft := NewFailureTable()
	addrs := []string{"a:1", "b:2"}
	ft.Set("a:1", StatusFailed, time.Minute)
	ft.Set("b:2", StatusFailed, time.Minute)
	b := NewBalancer(ft)
	picked, err := b.Pick(addrs, "")
	if err != nil {
		t.Fatal(err)
	}
	if picked != "a:1" && picked != "b:2" {
		t.Fatalf("expected a candidate even with all addresses failed, got %q", picked)
	}
}

func TestPoolReusesThenEvictsIdle(t *testing.T) {
	p := NewPool(1)
	c1, c2 := net.Pipe()
	defer c2.Close()
	p.Put("x:1", c1)
	got := p.Get("x:1")
	if got != c1 {
		t.Fatal("expected to get back the connection just put")
	}
	if p.Get("x:1") != nil {
		t.Fatal("expected empty pool after draining")
	}
}

func TestPoolDropsOverCapacity(t *testing.T) {
	p := NewPool(1)
	a1, a2 := net.Pipe()
	b1, b2 := net.Pipe()
	defer a2.Close()
	defer b2.Close()
	p.Put("x:1", a1)
	p.Put("x:1", b1) // capacity 1 already reached, b1 gets closed immediately
	got := p.Get("x:1")
	if got != a1 {
		t.Fatalf("expected a1 to remain pooled since b1 was dropped over capacity, got %v", got)
	}
	if p.Get("x:1") != nil {
		t.Fatal("expected nothing left")
	}
}
