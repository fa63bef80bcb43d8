package pick

import (
	"sync"
	"testing"
)

func TestOne_Deterministic(t *testing.T) {
	items := []string{"lightgray", "lightpink", "lightblue"}
	a, b := NewLocked(42), NewLocked(42)
	for i := 0; i < 20; i++ {
		if x, y := One(a, items), One(b, items); x != y {
			t.Fatalf("draw %d: %q != %q with same seed", i, x, y)
		}
	}
}

func TestOne_Empty(t *testing.T) {
	if got := One[string](NewLocked(1), nil); got != "" {
		t.Fatalf("empty: got %q", got)
	}
}

func TestOne_CoversAll(t *testing.T) {
	items := []int{0, 1, 2}
	seen := map[int]bool{}
	src := NewLocked(7)
	for i := 0; i < 200; i++ {
		seen[One(src, items)] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected all items drawn, got %v", seen)
	}
}

func TestLocked_Concurrent(t *testing.T) {
	src := NewTimeSeeded()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if n := src.IntN(5); n < 0 || n >= 5 {
					t.Errorf("out of range: %d", n)
				}
			}
		}()
	}
	wg.Wait()
}
