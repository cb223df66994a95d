package multivalue

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ValentinKolb/mvattr/lib/attribute"
	"github.com/ValentinKolb/mvattr/lib/attribute/mvmapping"
	"github.com/ValentinKolb/mvattr/lib/generation"
)

// --------------------------------------------------------------------------
// Search Contexts
// --------------------------------------------------------------------------

// searchContext evaluates a term against the committed state pinned by its guard.
// Arrays report the number of matching elements as weight, weighted sets the weight of the
// matching element.
type searchContext[T attribute.Numeric] struct {
	mapping  *mvmapping.Mapping[attribute.Multivalue[T]]
	guard    *generation.Guard
	term     attribute.Term[T]
	limit    uint32
	weighted bool
}

// NewSearchContext picks the search context matching the collection type of the column.
func (c *column[T]) NewSearchContext(term attribute.Term[T]) (attribute.SearchContext, error) {
	if c.cfg.Collection == attribute.WeightedSet {
		return c.NewSetSearchContext(term)
	}
	return c.NewArraySearchContext(term)
}

// NewArraySearchContext fails with attribute.ErrConfigMismatch for weighted set columns.
func (c *column[T]) NewArraySearchContext(term attribute.Term[T]) (attribute.SearchContext, error) {
	if c.cfg.Collection != attribute.Array {
		return nil, fmt.Errorf("array search context on %s column %s: %w", c.cfg.Collection, c.name, attribute.ErrConfigMismatch)
	}
	return c.newSearchContext(term, false)
}

// NewSetSearchContext fails with attribute.ErrConfigMismatch for array columns.
func (c *column[T]) NewSetSearchContext(term attribute.Term[T]) (attribute.SearchContext, error) {
	if c.cfg.Collection != attribute.WeightedSet {
		return nil, fmt.Errorf("set search context on %s column %s: %w", c.cfg.Collection, c.name, attribute.ErrConfigMismatch)
	}
	return c.newSearchContext(term, true)
}

func (c *column[T]) newSearchContext(term attribute.Term[T], weighted bool) (*searchContext[T], error) {
	if term == nil {
		return nil, fmt.Errorf("search context without term: %w", attribute.ErrInvalidOperation)
	}
	if c.closed.Load() {
		return nil, attribute.ErrClosed
	}
	guard := c.handler.AcquireGuard()
	return &searchContext[T]{
		mapping:  c.mapping.Load(),
		guard:    guard,
		term:     term,
		limit:    c.committedLimit.Load(),
		weighted: weighted,
	}, nil
}

func (sc *searchContext[T]) values(doc attribute.DocId) []attribute.Multivalue[T] {
	if doc >= sc.limit || !sc.guard.Valid() {
		return nil
	}
	return sc.mapping.Get(sc.guard, doc)
}

func (sc *searchContext[T]) Find(doc attribute.DocId, elemID int) (int, int32) {
	values := sc.values(doc)
	for i := max(elemID, 0); i < len(values); i++ {
		if sc.term.Match(values[i].Value) {
			return i, values[i].Weight
		}
	}
	return -1, 0
}

func (sc *searchContext[T]) Matches(doc attribute.DocId) (bool, int32) {
	if sc.weighted {
		idx, weight := sc.Find(doc, 0)
		return idx >= 0, weight
	}

	var count int32
	for _, mv := range sc.values(doc) {
		if sc.term.Match(mv.Value) {
			count++
		}
	}
	return count > 0, count
}

func (sc *searchContext[T]) FindMatches() *roaring.Bitmap {
	result := roaring.New()
	for doc := attribute.DocId(0); doc < sc.limit; doc++ {
		if ok, _ := sc.Matches(doc); ok {
			result.Add(doc)
		}
	}
	return result
}

func (sc *searchContext[T]) Close() {
	sc.guard.Release()
}
