package attribute

// TermFunc adapts a function to the Term interface.
type TermFunc[T Numeric] func(v T) bool

func (f TermFunc[T]) Match(v T) bool { return f(v) }

// Exact matches one value.
func Exact[T Numeric](want T) Term[T] {
	return TermFunc[T](func(v T) bool { return v == want })
}

// Range matches values in the closed interval [lo, hi].
func Range[T Numeric](lo, hi T) Term[T] {
	return TermFunc[T](func(v T) bool { return v >= lo && v <= hi })
}

// AnyOf matches any of the given values.
func AnyOf[T Numeric](values ...T) Term[T] {
	set := make(map[T]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return TermFunc[T](func(v T) bool {
		_, ok := set[v]
		return ok
	})
}
