package shuffle

import "testing"

// TestAntiRepetition verifies that over many draws with N=8
// capacity, no index appears twice within any window of 8 consecutive
// selections when initial weights are uniform and items > 8.
func TestAntiRepetition(t *testing.T) {
	const items = 12
	const draws = 10000
	s := New(items, 1, DefaultCapacity)

	var history []int
	for i := 0; i < draws; i++ {
		history = append(history, s.Next())
	}

	for i := 0; i < len(history); i++ {
		window := map[int]bool{}
		for j := i; j < i+DefaultCapacity && j < len(history); j++ {
			if window[history[j]] {
				t.Fatalf("index %d repeated within window starting at %d", history[j], i)
			}
			window[history[j]] = true
		}
	}
}

func TestWeightRestoredAfterEviction(t *testing.T) {
	s := New(3, 1, 2)
	first := s.Next()
	if s.weights[first] != 0 {
		t.Fatalf("weight after first draw = %d, want 0", s.weights[first])
	}
	s.Next()
	s.Next() // this should evict `first` from the window and restore its weight
	if s.weights[first] != 1 {
		t.Fatalf("weight after eviction = %d, want 1 (restored)", s.weights[first])
	}
}

func TestDegenerateFallbackIsUniform(t *testing.T) {
	s := New(3, 1, DefaultCapacity)
	seen := map[int]bool{}
	for i := 0; i < 20; i++ {
		idx := s.Next()
		seen[idx] = true
		// With a window of 8 over 3 items of weight 1, every weight is 0
		// after three draws and nothing leaves the window before the
		// ninth, so the draws in between go through the uniform
		// fallback. Exercise just asserts Next never panics and stays
		// in range.
		if idx < 0 || idx >= 3 {
			t.Fatalf("index out of range: %d", idx)
		}
	}
}

func TestResetRestoresBaseline(t *testing.T) {
	s := New(4, 2, DefaultCapacity)
	for i := 0; i < 4; i++ {
		s.Next()
	}
	s.Reset()
	for _, w := range s.weights {
		if w != 2 {
			t.Fatalf("weight after reset = %d, want 2", w)
		}
	}
}
