// Package util provides the support components used by the attribute packages.
//
// The package contains:
//   - holdheap: A generation ordered priority queue with key-based access that backs the hold lists of the multi-value mapping
//   - eventqueue: A lock-free Multi-Producer Single-Consumer (MPSC) queue used to hand commit events to the statistics goroutine
//   - statistics: Summary statistics and a ValueCountHistogram for tracking how many values documents hold
//
// None of the components know about attributes; they are plain data structures and can be
// tested in isolation. Thread-safety is documented per type: the hold heap is writer-owned,
// the event queue accepts concurrent producers and the histogram is guarded by a RWMutex.
package util
