package orchestrator

import (
	"context"
	"testing"
)

type fakeCloser struct {
	name   string
	closed *[]string
}

func (f *fakeCloser) Close() error {
	*f.closed = append(*f.closed, f.name)
	return nil
}

func TestCancelHandleClosesClosersInLIFOOrder(t *testing.T) {
	var closed []string
	h := NewCancelHandle(context.Background())
	h.Defer(&fakeCloser{name: "outer", closed: &closed})
	h.Defer(&fakeCloser{name: "inner", closed: &closed})

	h.Cancel()

	want := []string{"inner", "outer"}
	if len(closed) != len(want) {
		t.Fatalf("got %v, want %v", closed, want)
	}
	for i := range want {
		if closed[i] != want[i] {
			t.Fatalf("got %v, want %v", closed, want)
		}
	}
}

func TestCancelHandleCancelsContext(t *testing.T) {
	h := NewCancelHandle(context.Background())
	select {
	case <-h.Done():
		t.Fatal("expected context not yet cancelled")
	default:
	}
	h.Cancel()
	select {
	case <-h.Done():
	default:
		t.Fatal("expected context cancelled after Cancel")
	}
}

func TestCancelHandleCancelIsIdempotent(t *testing.T) {
	var closed []string
	h := NewCancelHandle(context.Background())
	h.Defer(&fakeCloser{name: "a", closed: &closed})
	h.Cancel()
	h.Cancel()
	if len(closed) != 1 {
		t.Fatalf("expected exactly one close, got %v", closed)
	}
}
