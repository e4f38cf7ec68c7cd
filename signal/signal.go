// Package signal provides double-buffered registers for clocked models.
//
// A Signal holds a committed value, which every reader observes during an
// edge, and a pending value, which writers schedule. Commit moves the pending
// value into the committed half once per edge.
package signal

// Committer is anything that applies scheduled values at a clock edge.
type Committer interface {
	// Commit applies the pending value and reports whether the committed
	// value changed.
	Commit() bool
}

// Signal is a register with a current and a pending half.
type Signal[T comparable] struct {
	cur  T
	next T
}

// New creates a signal with both halves set to init.
func New[T comparable](init T) *Signal[T] {
	return &Signal[T]{cur: init, next: init}
}

// Value returns the committed value.
func (s *Signal[T]) Value() T {
	return s.cur
}

// Next returns the pending value.
func (s *Signal[T]) Next() T {
	return s.next
}

// SetNext schedules v for the next commit.
func (s *Signal[T]) SetNext(v T) {
	s.next = v
}

// Drive sets both halves at once. It is used for combinational values that
// settle within an edge, and reports whether the value changed.
func (s *Signal[T]) Drive(v T) bool {
	changed := s.cur != v
	s.cur = v
	s.next = v

	return changed
}

// Commit moves the pending value into the committed half.
func (s *Signal[T]) Commit() bool {
	changed := s.cur != s.next
	s.cur = s.next

	return changed
}

// Reset sets both halves to v.
func (s *Signal[T]) Reset(v T) {
	s.cur = v
	s.next = v
}
