package ids

import "testing"

func TestNew_UniqueWithinSameMillisecond(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 10000; i++ {
		id := New()
		if len(id) != 26 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id generated: %q", id)
		}
		seen[id] = true
	}
}

func TestNew_Sortable(t *testing.T) {
	a := New()
	b := New()
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}
