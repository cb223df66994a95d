// Package util
//
// This file provides the priority queue behind the hold lists of the multi-value mapping.
//
// A HoldHeap combines a binary min-heap ordered by generation with a hash map keyed by a
// hold id. The writer adds every retired value list with the generation it was retired in
// and later pops everything whose generation lies below the oldest generation still in use.
//
// Time Complexity:
//   - O(log n) for Push, Pop and Fix
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// Concurrency Considerations:
//   - This implementation is not thread-safe.
//   - It is owned by the single writer of a column; readers never touch it.
//
// Example usage:
//
//	held := NewHoldHeap[*entry]()
//
//	// retire an entry in generation 7
//	held.AddItem(nextHoldID, 7, e)
//
//	// free everything retired before generation 9
//	held.PopBelow(9, func(e *entry) { free(e) })
package util

import (
	"container/heap"
	"strconv"
)

// HoldItem is a held value together with the generation it was retired in.
type HoldItem[V any] struct {
	Key        uint64 // Unique hold id
	Generation uint64 // Generation the value was retired in (heap priority)
	Value      V      // The held value
	index      int    // Index in the heap, maintained by heap package
}

func (i *HoldItem[V]) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Generation: " + strconv.FormatUint(i.Generation, 10) + "}"
}

// HoldHeap is a min-heap of held values ordered by generation with key-based access.
type HoldHeap[V any] struct {
	items    []*HoldItem[V]          // The actual heap slice
	itemsMap map[uint64]*HoldItem[V] // Map for O(1) access by key
}

// NewHoldHeap creates an empty hold heap.
func NewHoldHeap[V any]() *HoldHeap[V] {
	return &HoldHeap[V]{
		items:    make([]*HoldItem[V], 0),
		itemsMap: make(map[uint64]*HoldItem[V]),
	}
}

// --------------------------------------------------------------------------
// heap.Interface
// --------------------------------------------------------------------------

// Len returns the number of held items (part of heap.Interface)
func (hh *HoldHeap[V]) Len() int { return len(hh.items) }

// Less orders items by generation, oldest first (part of heap.Interface)
func (hh *HoldHeap[V]) Less(i, j int) bool {
	return hh.items[i].Generation < hh.items[j].Generation
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (hh *HoldHeap[V]) Swap(i, j int) {
	hh.items[i], hh.items[j] = hh.items[j], hh.items[i]
	hh.items[i].index = i
	hh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface, use AddItem instead)
func (hh *HoldHeap[V]) Push(x any) {
	n := len(hh.items)
	item := x.(*HoldItem[V])
	item.index = n
	hh.items = append(hh.items, item)
	hh.itemsMap[item.Key] = item
}

// Pop removes and returns the last item (part of heap.Interface, use PopItem instead)
func (hh *HoldHeap[V]) Pop() any {
	old := hh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	hh.items = old[:n-1]
	delete(hh.itemsMap, item.Key)
	return item
}

// --------------------------------------------------------------------------
// Hold list operations
// --------------------------------------------------------------------------

// AddItem holds a value retired in the given generation.
// If the key is already held, its generation and value are replaced.
func (hh *HoldHeap[V]) AddItem(key, generation uint64, value V) {
	if item, exists := hh.itemsMap[key]; exists {
		item.Generation = generation
		item.Value = value
		heap.Fix(hh, item.index)
		return
	}

	heap.Push(hh, &HoldItem[V]{
		Key:        key,
		Generation: generation,
		Value:      value,
	})
}

// Peek returns the oldest item without removing it.
func (hh *HoldHeap[V]) Peek() (*HoldItem[V], bool) {
	if len(hh.items) == 0 {
		return nil, false
	}
	return hh.items[0], true
}

// PopItem removes and returns the oldest item.
func (hh *HoldHeap[V]) PopItem() (*HoldItem[V], bool) {
	if len(hh.items) == 0 {
		return nil, false
	}
	return heap.Pop(hh).(*HoldItem[V]), true
}

// PopBelow removes every item retired in a generation strictly below limit and passes
// its value to fn, oldest first. It returns the number of removed items.
func (hh *HoldHeap[V]) PopBelow(limit uint64, fn func(V)) int {
	removed := 0
	for {
		item, exists := hh.Peek()
		if !exists || item.Generation >= limit {
			return removed
		}
		heap.Pop(hh)
		fn(item.Value)
		removed++
	}
}

// PopAll removes every item regardless of its generation, oldest first.
func (hh *HoldHeap[V]) PopAll(fn func(V)) int {
	removed := 0
	for {
		item, ok := hh.PopItem()
		if !ok {
			return removed
		}
		fn(item.Value)
		removed++
	}
}

// RemoveByKey removes an item by its key and returns its generation.
func (hh *HoldHeap[V]) RemoveByKey(key uint64) (uint64, bool) {
	item, exists := hh.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(hh, item.index)
	return item.Generation, true
}

// Contains checks if a key is held.
func (hh *HoldHeap[V]) Contains(key uint64) bool {
	_, exists := hh.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it.
func (hh *HoldHeap[V]) GetByKey(key uint64) (*HoldItem[V], bool) {
	item, exists := hh.itemsMap[key]
	return item, exists
}
