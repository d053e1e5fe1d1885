package reconcile

import (
	"sort"
	"sync"
	"testing"
)

func TestPendingSet_AddRemove(t *testing.T) {
	p := NewPendingSet()

	if !p.Add("ref_a") {
		t.Fatal("first Add should succeed")
	}
	if p.Add("ref_a") {
		t.Fatal("second Add of same ref should be refused")
	}
	if !p.Contains("ref_a") {
		t.Fatal("ref_a should be in flight")
	}

	p.Remove("ref_a")
	if p.Contains("ref_a") {
		t.Fatal("ref_a should be gone after Remove")
	}
	if !p.Add("ref_a") {
		t.Fatal("Add after Remove should succeed")
	}
}

func TestPendingSet_Snapshot(t *testing.T) {
	p := NewPendingSet()
	p.Add("b")
	p.Add("a")
	p.Add("c")
	p.Remove("b")

	got := p.Snapshot()
	sort.Strings(got)

	want := []string{"a", "c"}
	if len(got) != len(want) {
		t.Fatalf("snapshot length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot = %v, want %v", got, want)
		}
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
}

func TestPendingSet_ConcurrentAdd(t *testing.T) {
	p := NewPendingSet()

	const goroutines = 50
	wins := make(chan bool, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- p.Add("contested")
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("exactly one goroutine should win Add, got %d", won)
	}
}
