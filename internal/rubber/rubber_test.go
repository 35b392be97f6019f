package rubber

import "testing"

func TestAddWriteReadRoundTrips(t *testing.T) {
	a := NewArena()
	id, err := a.Add(5)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.WriteAt(id, 0, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := a.Read(id)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestShrinkReducesNettoSize(t *testing.T) {
	a := NewArena()
	id, _ := a.Add(100)
	_, netto0 := a.Sizes()
	if netto0 != 100 {
		t.Fatalf("expected netto 100, got %d", netto0)
	}
	if err := a.Shrink(id, 10); err != nil {
		t.Fatal(err)
	}
	_, netto1 := a.Sizes()
	if netto1 != 10 {
		t.Fatalf("expected netto 10 after shrink, got %d", netto1)
	}
}

func TestRemoveThenReadFails(t *testing.T) {
	a := NewArena()
	id, _ := a.Add(10)
	a.Remove(id)
	if _, err := a.Read(id); err == nil {
		t.Fatal("expected error reading a removed handle")
	}
}

func TestIdsStableAcrossCompact(t *testing.T) {
	a := NewArena()
	id1, _ := a.Add(10)
	id2, _ := a.Add(20)
	a.Remove(id1)
	a.Compact()
	got, err := a.Read(id2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 20 {
		t.Fatalf("expected id2 to remain readable at its original id, got len %d", len(got))
	}
}

func TestAutoCompactTriggersAtThreeToOneRatio(t *testing.T) {
	a := NewArena()
	id1, _ := a.Add(300)
	_, _ = a.Add(100)
	a.Remove(id1) // netto drops to 100, brutto stays 400: 4:1 triggers compact
	brutto, netto := a.Sizes()
	if netto != 100 {
		t.Fatalf("expected netto 100, got %d", netto)
	}
	if brutto > netto*compactRatio {
		t.Fatalf("expected auto-compact to bring brutto within 3:1 of netto, got brutto=%d netto=%d", brutto, netto)
	}
}
