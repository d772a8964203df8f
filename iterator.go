package skipmap

import "iter"

// Iterator walks the entries of a Map in ascending key order.
// The typical use is:
//
//	it := m.NewIterator()
//	for it.Next() {
//		key := it.Key()
//		value := it.Value()
//		// ...
//	}
//
// An iterator survives mutations of its map. If the entry under it is
// removed and its slot recycled, the next call to Next resumes at the first
// key above the last one returned. Entries are never returned twice or out
// of order.
//
// Iterator คือโครงสร้างที่ใช้สำหรับวนลูปผ่านรายการใน Map ตามลำดับ key
type Iterator[K any, V any] struct {
	m       *Map[K, V]
	current nodeID // node the iterator stands on
	gen     uint32 // generation of current when it was reached
	key     K      // key of current
	hasKey  bool   // Next has returned true since the last Reset
	done    bool
}

// NewIterator creates an iterator positioned before the first entry.
// A call to Next() is required to advance to the first element.
// NewIterator สร้าง Iterator ใหม่ที่ชี้ไปยังตำแหน่งก่อนรายการแรก ต้องเรียก Next() ก่อน
func (m *Map[K, V]) NewIterator() *Iterator[K, V] {
	return &Iterator[K, V]{m: m}
}

// Next moves the iterator to the next entry and reports whether there is one.
// Next เลื่อน Iterator ไปยังรายการถัดไป คืนค่า false หากไม่มีรายการเหลือแล้ว
func (it *Iterator[K, V]) Next() bool {
	if it.done {
		return false
	}
	m := it.m
	a := m.arena

	var n nodeID
	switch {
	case !it.hasKey:
		if m.header != 0 {
			n = m.firstLive(a.node(m.header).next)
		}
	case a.node(it.current).gen != it.gen:
		// The slot was freed under us.
		n = m.seekAfter(it.key)
	default:
		n = m.firstLive(a.node(it.current).next)
	}

	if n == 0 {
		it.done = true
		it.current = 0
		return false
	}
	nn := a.node(n)
	it.current, it.gen, it.key, it.hasKey = n, nn.gen, nn.key, true
	return true
}

// Key returns the key of the current entry.
// It should only be called after a call to Next() has returned true.
func (it *Iterator[K, V]) Key() K {
	return it.key
}

// Value returns the value of the current entry, or the zero value if the
// entry has been removed since Next returned it.
// It should only be called after a call to Next() has returned true.
func (it *Iterator[K, V]) Value() V {
	if it.hasKey && !it.done {
		if n := it.m.arena.node(it.current); n.gen == it.gen && n.state == nodeLive {
			return n.value
		}
	}
	var zero V
	return zero
}

// Remove deletes the current entry and reports whether it was still present.
// The entry is only tombstoned here; it is unlinked from the base chain and
// its index column is dropped by later traversals passing over it.
// Remove ลบรายการปัจจุบันแบบ lazy โดยทำเครื่องหมายไว้ก่อน แล้วให้การค้นหาครั้งถัดไปตัดทิ้ง
func (it *Iterator[K, V]) Remove() bool {
	if !it.hasKey || it.done {
		return false
	}
	n := it.m.arena.node(it.current)
	if n.gen != it.gen || n.state != nodeLive {
		return false
	}
	it.m.tombstone(it.current)
	it.m.tryReduceLevel()
	return true
}

// Reset moves the iterator back before the first entry.
// Reset เลื่อน Iterator กลับไปยังสถานะเริ่มต้น (ก่อนรายการแรก)
func (it *Iterator[K, V]) Reset() {
	var zero K
	it.current, it.gen, it.key, it.hasKey, it.done = 0, 0, zero, false, false
}

// Clone creates an independent copy of the iterator at its current position.
func (it *Iterator[K, V]) Clone() *Iterator[K, V] {
	c := *it
	return &c
}

// All returns an iterator over all entries in ascending key order.
// Removing entries from the map while ranging is allowed.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		it := m.NewIterator()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Keys returns an iterator over all keys in ascending order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		it := m.NewIterator()
		for it.Next() {
			if !yield(it.Key()) {
				return
			}
		}
	}
}

// Values returns an iterator over all values in ascending key order.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		it := m.NewIterator()
		for it.Next() {
			if !yield(it.Value()) {
				return
			}
		}
	}
}

// Range calls f for every entry in ascending key order.
// The iteration stops if f returns false.
// Range วนลูปไปตามรายการทั้งหมดตามลำดับ key และหยุดเมื่อ f คืนค่า false
func (m *Map[K, V]) Range(f func(key K, value V) bool) {
	for k, v := range m.All() {
		if !f(k, v) {
			return
		}
	}
}
