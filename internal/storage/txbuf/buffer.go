// Package txbuf buffers the writes of one unit of work over a committed base
// so that stores without native transactions can offer commit, rollback and
// savepoints.
package txbuf

type entry[V any] struct {
	value   V
	deleted bool
}

type undo[K comparable, V any] struct {
	key     K
	prev    entry[V]
	existed bool
}

// Buffer holds pending writes keyed by K. It is not safe for concurrent use.
type Buffer[K comparable, V any] struct {
	writes  map[K]entry[V]
	journal []undo[K, V]
}

func New[K comparable, V any]() *Buffer[K, V] {
	return &Buffer[K, V]{writes: make(map[K]entry[V])}
}

// Get reports the pending write for key. found is false when the unit has not
// touched key and the caller must read the committed base.
func (b *Buffer[K, V]) Get(key K) (value V, deleted bool, found bool) {
	e, ok := b.writes[key]
	if !ok {
		return value, false, false
	}
	return e.value, e.deleted, true
}

func (b *Buffer[K, V]) Put(key K, value V) {
	b.record(key)
	b.writes[key] = entry[V]{value: value}
}

func (b *Buffer[K, V]) Delete(key K) {
	b.record(key)
	var zero V
	b.writes[key] = entry[V]{value: zero, deleted: true}
}

func (b *Buffer[K, V]) record(key K) {
	prev, existed := b.writes[key]
	b.journal = append(b.journal, undo[K, V]{key: key, prev: prev, existed: existed})
}

// Savepoint marks the current journal position.
func (b *Buffer[K, V]) Savepoint() int {
	return len(b.journal)
}

// RollbackTo undoes every write recorded after savepoint.
func (b *Buffer[K, V]) RollbackTo(savepoint int) {
	if savepoint < 0 || savepoint > len(b.journal) {
		return
	}
	for i := len(b.journal) - 1; i >= savepoint; i-- {
		u := b.journal[i]
		if u.existed {
			b.writes[u.key] = u.prev
		} else {
			delete(b.writes, u.key)
		}
	}
	b.journal = b.journal[:savepoint]
}

// Each calls fn for every pending write.
func (b *Buffer[K, V]) Each(fn func(key K, value V, deleted bool)) {
	for k, e := range b.writes {
		fn(k, e.value, e.deleted)
	}
}

func (b *Buffer[K, V]) Len() int {
	return len(b.writes)
}

// Reset drops all pending writes.
func (b *Buffer[K, V]) Reset() {
	clear(b.writes)
	b.journal = b.journal[:0]
}
