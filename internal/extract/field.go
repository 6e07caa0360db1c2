package extract

// Field is an optional attribute slot. A zero Field is "not found", which is
// distinct from a found zero value or a found false.
type Field[T any] struct {
	Value T
	Found bool
	// Rule names the pattern that produced the value. Debugging only.
	Rule string
}

func found[T any](v T, rule string) Field[T] {
	return Field[T]{Value: v, Found: true, Rule: rule}
}

// Get returns the value and whether it was found.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Found
}

// Or returns the value, or def when the field was not found.
func (f Field[T]) Or(def T) T {
	if !f.Found {
		return def
	}
	return f.Value
}

// Any returns the value boxed for a flat attribute record, or nil when not found.
func (f Field[T]) Any() any {
	if !f.Found {
		return nil
	}
	return f.Value
}
