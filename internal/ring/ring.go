// internal/ring/ring.go

// Package ring provides a fixed-capacity FIFO buffer with a drop-oldest
// eviction law: appending to a full buffer evicts exactly the oldest element
// to admit the new one. It backs the event bus history, the per-session push
// queues, and the session log tails. Buffers are not safe for concurrent use;
// owners guard them with their own locks.
package ring

// Buffer is a bounded FIFO ring over elements of type T.
type Buffer[T any] struct {
	buf  []T
	head int
	size int
}

// New returns an empty buffer holding at most capacity elements. Capacities
// below 1 are raised to 1 so the eviction law always holds.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Append adds v as the newest element. If the buffer is full the oldest
// element is evicted and returned with dropped=true.
func (b *Buffer[T]) Append(v T) (evicted T, dropped bool) {
	if b.size == len(b.buf) {
		evicted = b.buf[b.head]
		dropped = true
		b.buf[b.head] = v
		b.head = (b.head + 1) % len(b.buf)
		return evicted, true
	}
	b.buf[(b.head+b.size)%len(b.buf)] = v
	b.size++
	return evicted, false
}

// PopFront removes and returns the oldest element.
func (b *Buffer[T]) PopFront() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	v := b.buf[b.head]
	b.buf[b.head] = zero
	b.head = (b.head + 1) % len(b.buf)
	b.size--
	return v, true
}

// Len returns the number of buffered elements.
func (b *Buffer[T]) Len() int {
	return b.size
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.buf)
}

// Items returns a copy of the buffered elements, oldest first.
func (b *Buffer[T]) Items() []T {
	out := make([]T, 0, b.size)
	for i := 0; i < b.size; i++ {
		out = append(out, b.buf[(b.head+i)%len(b.buf)])
	}
	return out
}

// Tail returns a copy of the newest n elements, oldest first. If n exceeds
// Len, all elements are returned.
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	out := make([]T, 0, n)
	start := b.size - n
	for i := start; i < b.size; i++ {
		out = append(out, b.buf[(b.head+i)%len(b.buf)])
	}
	return out
}
