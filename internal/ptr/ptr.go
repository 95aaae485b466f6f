// Package ptr holds generic helpers for optional (pointer) fields.
package ptr

// To returns a pointer to the given value.
func To[T any](v T) *T {
	return &v
}

// Deref dereferences p and returns the value it points to if not nil,
// or else returns def.
func Deref[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}

// Equal reports whether two optional values are both nil or point to equal values.
func Equal[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
