package engine

import (
	"fmt"
	"sync"
	"testing"
)

func TestSlot_ColdAndWarm(t *testing.T) {
	var s Slot[int]
	if _, ok := s.Load(); ok {
		t.Fatal("Expected new slot to be cold")
	}
	if s.Update(func(cur []int) []int { return append(cur, 1) }) {
		t.Error("Update on a cold slot should report false")
	}

	s.Store(nil)
	got, ok := s.Load()
	if !ok || got == nil || len(got) != 0 {
		t.Errorf("Expected warm empty slot, got %v (ok=%v)", got, ok)
	}

	s.Reset()
	if _, ok := s.Load(); ok {
		t.Error("Expected slot to be cold after Reset")
	}
}

func TestSlot_SnapshotsAreIndependent(t *testing.T) {
	var s Slot[string]
	src := []string{"a", "b"}
	s.Store(src)
	src[0] = "changed"

	first, _ := s.Load()
	if first[0] != "a" {
		t.Errorf("Store should copy its input, got %v", first)
	}
	first[1] = "mutated"

	second, _ := s.Load()
	if second[1] != "b" {
		t.Errorf("Load should return a copy, got %v", second)
	}
}

func TestSlot_UpdateKeepsOldSnapshot(t *testing.T) {
	var s Slot[int]
	s.Store([]int{1, 2, 3})
	before, _ := s.Load()

	s.Update(func(cur []int) []int { return append(cur, 4) })

	after, _ := s.Load()
	if len(before) != 3 || len(after) != 4 {
		t.Fatalf("Expected 3 then 4 items, got %v then %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Prior items should keep their order, got %v then %v", before, after)
		}
	}
}

func TestSlot_ConcurrentUpdatesAreNotLost(t *testing.T) {
	var s Slot[int]
	s.Store(nil)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update(func(cur []int) []int { return append(cur, i) })
		}(i)
	}
	wg.Wait()

	got, _ := s.Load()
	if len(got) != n {
		t.Errorf("Expected %d items after concurrent appends, got %d", n, len(got))
	}
}

func TestMapSlot_PutGetDelete(t *testing.T) {
	var m MapSlot[string, int]
	if _, ok := m.Get("a"); ok {
		t.Error("Expected empty map slot")
	}
	m.Put("a", 1)
	m.Put("b", 2)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Expected 1, got %v (ok=%v)", v, ok)
	}
	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Error("Expected a to be deleted")
	}
	if v, _ := m.Get("b"); v != 2 {
		t.Errorf("Delete should not touch other keys, got %v", v)
	}
	m.Reset()
	if _, ok := m.Get("b"); ok {
		t.Error("Expected Reset to drop every key")
	}
}

func TestMapSlot_ConcurrentUpdates(t *testing.T) {
	var m MapSlot[string, int]
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Update("count", func(cur int, _ bool) (int, bool) { return cur + 1, true })
			m.Put(fmt.Sprintf("k%d", i), i)
		}(i)
	}
	wg.Wait()

	if v, _ := m.Get("count"); v != 100 {
		t.Errorf("Expected counter 100, got %d", v)
	}
	for i := 0; i < 100; i++ {
		if v, ok := m.Get(fmt.Sprintf("k%d", i)); !ok || v != i {
			t.Errorf("Expected k%d=%d, got %v (ok=%v)", i, i, v, ok)
		}
	}
}
