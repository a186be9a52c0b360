package ring

import "sync"

const defaultCapacity = 1000

// Buffer keeps the newest Cap items. Every pushed item gets a monotonically
// increasing sequence number so readers can ask for "everything after N"
// without caring how many items were evicted in between.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	head  int
	size  int
	seq   uint64
}

func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v and returns its sequence number (starting at 1).
func (b *Buffer[T]) Push(v T) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := (b.head + b.size) % len(b.items)
	if b.size == len(b.items) {
		b.items[b.head] = v
		b.head = (b.head + 1) % len(b.items)
	} else {
		b.items[idx] = v
		b.size++
	}
	b.seq++
	return b.seq
}

func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Seq is the sequence number of the newest item, 0 when nothing was pushed.
func (b *Buffer[T]) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Items returns the retained items oldest first.
func (b *Buffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tailLocked(b.size)
}

// Last returns up to n newest items, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n > b.size {
		n = b.size
	}
	return b.tailLocked(n)
}

// Since returns retained items whose sequence is greater than seq, plus the
// number of such items that were already evicted.
func (b *Buffer[T]) Since(seq uint64) (items []T, dropped uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if seq >= b.seq {
		return nil, 0
	}
	want := b.seq - seq
	if want > uint64(b.size) {
		dropped = want - uint64(b.size)
		want = uint64(b.size)
	}
	return b.tailLocked(int(want)), dropped
}

func (b *Buffer[T]) tailLocked(n int) []T {
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, n)
	start := b.size - n
	for i := start; i < b.size; i++ {
		out = append(out, b.items[(b.head+i)%len(b.items)])
	}
	return out
}
