package hash

import "testing"

func TestWeightedSelectorSingleEntry(t *testing.T) {
	s := NewWeightedSelector([]WeightedEntry{{Address: "a:1", Weight: 1}})
	for i := 0; i < 10; i++ {
		if got := s.Pick(); got != "a:1" {
			t.Fatalf("expected a:1, got %q", got)
		}
	}
}

func TestWeightedSelectorEmpty(t *testing.T) {
	s := NewWeightedSelector(nil)
	if got := s.Pick(); got != "" {
		t.Fatalf("expected empty pick on empty selector, got %q", got)
	}
}

func TestWeightedSelectorHonorsUnequalWeights(t *testing.T) {
	s := NewWeightedSelector([]WeightedEntry{
		{Address: "heavy:1", Weight: 99},
		{Address: "light:1", Weight: 1},
	})

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		counts[s.Pick()]++
	}
	if counts["heavy:1"] <= counts["light:1"] {
		t.Fatalf("expected heavy endpoint to dominate, got %v", counts)
	}
}

func TestWeightedSelectorAddresses(t *testing.T) {
	s := NewWeightedSelector([]WeightedEntry{
		{Address: "a:1", Weight: 1},
		{Address: "b:1", Weight: 1},
	})
	addrs := s.Addresses()
	if len(addrs) != 2 || addrs[0] != "a:1" || addrs[1] != "b:1" {
		t.Fatalf("unexpected addresses: %v", addrs)
	}
}
