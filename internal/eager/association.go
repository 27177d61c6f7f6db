package eager

import "errors"

var (
	// ErrNotLoaded is returned when an association is read before its
	// relation was loaded. It indicates a resolver bug.
	ErrNotLoaded = errors.New("association not loaded")
	// ErrMissing is returned when the relation was loaded but no row
	// matched the parent's key.
	ErrMissing = errors.New("associated record not found")
)

// Association holds the preloaded child of a many-to-one relation.
// The zero value is unloaded.
type Association[T any] struct {
	loaded bool
	found  bool
	value  T
}

// Set records a loaded child.
func (a *Association[T]) Set(value T) {
	a.loaded = true
	a.found = true
	a.value = value
}

// SetMissing records that the relation was loaded without a match.
func (a *Association[T]) SetMissing() {
	var zero T
	a.loaded = true
	a.found = false
	a.value = zero
}

// Loaded reports whether the relation has been loaded.
func (a *Association[T]) Loaded() bool {
	return a.loaded
}

// Get returns the child, ErrNotLoaded, or ErrMissing.
func (a *Association[T]) Get() (T, error) {
	var zero T
	if !a.loaded {
		return zero, ErrNotLoaded
	}
	if !a.found {
		return zero, ErrMissing
	}
	return a.value, nil
}
