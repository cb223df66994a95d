package util

import (
	"sort"
	"testing"
)

// TestNewHoldHeap tests the creation of a new HoldHeap
func TestNewHoldHeap(t *testing.T) {
	hh := NewHoldHeap[string]()

	if hh == nil {
		t.Fatal("NewHoldHeap() returned nil")
	}

	if hh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", hh.Len())
	}

	if _, ok := hh.Peek(); ok {
		t.Error("Peek() on an empty heap should return false")
	}
}

// TestHoldHeapAddItem tests that the oldest generation is always on top
func TestHoldHeapAddItem(t *testing.T) {
	hh := NewHoldHeap[string]()

	hh.AddItem(1, 7, "a")
	hh.AddItem(2, 9, "b")
	hh.AddItem(3, 3, "c")

	if hh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", hh.Len())
	}

	for _, key := range []uint64{1, 2, 3} {
		if !hh.Contains(key) {
			t.Errorf("Heap should contain key %d", key)
		}
	}

	item, exists := hh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}
	if item.Key != 3 || item.Generation != 3 || item.Value != "c" {
		t.Errorf("Expected oldest item to be (3,3,c), got %s", item)
	}
}

// TestHoldHeapUpdateItem tests that re-adding a key moves it in the heap
func TestHoldHeapUpdateItem(t *testing.T) {
	hh := NewHoldHeap[string]()

	hh.AddItem(1, 1, "a")
	hh.AddItem(2, 5, "b")
	hh.AddItem(1, 10, "a2")

	if hh.Len() != 2 {
		t.Fatalf("Update should not add an item, got length %d", hh.Len())
	}

	item, exists := hh.GetByKey(1)
	if !exists {
		t.Fatal("Item with key 1 should exist")
	}
	if item.Generation != 10 || item.Value != "a2" {
		t.Errorf("Expected updated item (10,a2), got (%d,%s)", item.Generation, item.Value)
	}

	top, _ := hh.Peek()
	if top.Key != 2 {
		t.Errorf("Expected key 2 on top after update, got %d", top.Key)
	}
}

// TestHoldHeapPopBelow tests that only items retired before the limit are released
func TestHoldHeapPopBelow(t *testing.T) {
	hh := NewHoldHeap[int]()

	generations := []uint64{5, 1, 4, 2, 8, 3, 3}
	for i, gen := range generations {
		hh.AddItem(uint64(i), gen, int(gen))
	}

	var released []int
	n := hh.PopBelow(4, func(v int) { released = append(released, v) })

	if n != 4 {
		t.Errorf("Expected 4 released items, got %d", n)
	}
	expected := []int{1, 2, 3, 3}
	for i, v := range expected {
		if released[i] != v {
			t.Errorf("Release order mismatch at %d: expected %d, got %d", i, v, released[i])
		}
	}

	if hh.Len() != 3 {
		t.Errorf("Expected 3 remaining items, got %d", hh.Len())
	}

	// nothing below the same limit is left
	if n := hh.PopBelow(4, func(int) {}); n != 0 {
		t.Errorf("Second PopBelow should release nothing, released %d", n)
	}
}

// TestHoldHeapPopAll tests force release of every held item
func TestHoldHeapPopAll(t *testing.T) {
	hh := NewHoldHeap[int]()

	hh.AddItem(1, ^uint64(0), 1)
	hh.AddItem(2, 0, 2)
	hh.AddItem(3, 17, 3)

	var released []int
	if n := hh.PopAll(func(v int) { released = append(released, v) }); n != 3 {
		t.Errorf("Expected 3 released items, got %d", n)
	}
	if hh.Len() != 0 {
		t.Errorf("Heap should be empty after PopAll, has %d items", hh.Len())
	}
	if len(released) != 3 || released[0] != 2 || released[2] != 1 {
		t.Errorf("Unexpected release order %v", released)
	}
}

// TestHoldHeapRemoveByKey tests removing arbitrary items
func TestHoldHeapRemoveByKey(t *testing.T) {
	hh := NewHoldHeap[int]()

	for i := uint64(0); i < 10; i++ {
		hh.AddItem(i, 100-i, int(i))
	}

	gen, ok := hh.RemoveByKey(4)
	if !ok || gen != 96 {
		t.Errorf("RemoveByKey(4) = (%d,%v), expected (96,true)", gen, ok)
	}
	if hh.Contains(4) {
		t.Error("Key 4 should have been removed")
	}
	if _, ok := hh.RemoveByKey(4); ok {
		t.Error("Removing a missing key should return false")
	}

	var order []uint64
	for hh.Len() > 0 {
		item, _ := hh.PopItem()
		order = append(order, item.Generation)
	}
	if !sort.SliceIsSorted(order, func(i, j int) bool { return order[i] < order[j] }) {
		t.Errorf("Items were not popped in generation order: %v", order)
	}
}
