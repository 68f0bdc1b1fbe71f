// Package cscache contains cache interfaces, helpers, and implementations.
package cscache

// Interface is the cache interface.
type Interface[K, T any] interface {
	// Set sets key and val as cache pair.
	Set(key K, val T)

	// Get gets val from the cache using key.
	Get(key K) (val T, ok bool)

	// Clear completely clears cache.
	Clear()

	// Len returns the number of items in the cache.
	Len() (n int)
}

// Empty is an [Interface] implementation that does nothing.
type Empty[K, T any] struct{}

// type check
var _ Interface[any, any] = Empty[any, any]{}

// Set implements the [Interface] interface for Empty.
func (c Empty[K, T]) Set(key K, val T) {}

// Get implements the [Interface] interface for Empty.
func (c Empty[K, T]) Get(key K) (val T, ok bool) {
	return val, false
}

// Clear implements the [Interface] interface for Empty.
func (c Empty[K, T]) Clear() {}

// Len implements the [Interface] interface for Empty.  n is always zero.
func (c Empty[K, T]) Len() (n int) {
	return 0
}
