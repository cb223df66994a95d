// Package generation provides the epoch bookkeeping that lets readers traverse
// attribute storage without locks while a single writer replaces and frees it.
//
// The writer advances the generation once per commit. Readers pin the generation
// that is current when they start by acquiring a Guard and release it when they
// are done. Storage that the writer retires while generation G is current may only
// be freed once no guard pins a generation <= G, which the writer learns by asking
// the Handler for the oldest generation still in use.
//
// Key Components:
//
//   - Handler: Issues generations, tracks live readers per generation and computes
//     the oldest generation in use. Every generation gets a hold slot with an atomic
//     reader counter. Slots form a chain from the oldest one still in use to the
//     current one; the writer drops slots from the front once their counter is zero.
//
//   - Guard: Pins one generation. Release is idempotent and should be deferred
//     right after acquisition so that every exit path (including panics) releases it.
//
// Thread-safety:
//   - AcquireGuard, Guard.Release, CurrentGeneration, OldestUsedGeneration and the
//     introspection methods may be called concurrently from any number of goroutines.
//   - Advance and UpdateOldestUsedGeneration are writer-only and must not be called
//     concurrently with each other.
//
// Example usage:
//
//	h := generation.NewHandler()
//
//	// reader
//	guard := h.AcquireGuard()
//	defer guard.Release()
//	// ... read storage visible at guard.Generation()
//
//	// writer (once per commit)
//	retiredAt := h.CurrentGeneration()
//	h.Advance()
//	if h.OldestUsedGeneration() > retiredAt {
//	    // storage retired at retiredAt can be freed
//	}
package generation
