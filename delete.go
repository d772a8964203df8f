package skipmap

import "log/slog"

// doRemove deletes key. The caller has already rejected nil keys.
func (m *Map[K, V]) doRemove(key K) (old V, removed bool) {
	b, _ := m.findPredecessor(key)
	if b == 0 {
		return old, false
	}
	b, n, c := m.seekBase(b, key)
	if n == 0 || c != 0 {
		return old, false
	}

	old = m.arena.node(n).value
	m.tombstone(n)
	m.unlinkNode(b, n)
	// The index entries of the removed node all sit on the search path for
	// key, so a second descent unlinks the whole column.
	m.findPredecessor(key)
	m.tryReduceLevel()
	return old, true
}

// tombstone marks n as logically deleted. The node stays on the base chain
// until a traversal unlinks it from its predecessor.
// tombstone ทำเครื่องหมายว่าโหนดถูกลบแล้ว แต่ยังไม่ถูกตัดออกจาก base chain
func (m *Map[K, V]) tombstone(n nodeID) {
	nn := m.arena.node(n)
	var zero V
	nn.value = zero
	nn.state = nodeDeleted
	m.length--
}

// tryReduceLevel shrinks the mesh after a removal. While the top
// shrinkWindow rows hold nothing but the header column, the top shrinkDrop
// rows are dropped. A mesh shorter than the window whose rows are all empty
// falls back to its bottom row. Stale entries right of the header column are
// unlinked first so they do not keep an empty row alive. Once at most one
// entry is left the mesh collapses to a single header entry.
func (m *Map[K, V]) tryReduceLevel() {
	if m.head == 0 {
		return
	}
	before := 0
	if m.log != nil {
		before = m.Height()
	}
	if m.length <= 1 {
		m.collapse()
	} else {
		m.dropEmptyRows()
	}
	if m.log != nil {
		if h := m.Height(); h < before {
			m.log.Debug("skipmap.mesh.shrink",
				slog.Int("from", before), slog.Int("height", h), slog.Int("len", m.length))
		}
	}
}

func (m *Map[K, V]) dropEmptyRows() {
	a := m.arena
	for {
		var rows [maxShrinkWindow]indexID
		n := 0
		for q := m.head; q != 0 && n < m.shrinkWindow; q = a.idx(q).down {
			for r := a.idx(q).right; r != 0 && m.stale(r); r = a.idx(q).right {
				m.unlinkIndex(q, r)
			}
			if a.idx(q).right != 0 {
				return
			}
			rows[n] = q
			n++
		}

		drop := m.shrinkDrop
		if n < m.shrinkWindow {
			drop = n - 1
		}
		if drop <= 0 {
			return
		}
		m.head = rows[drop]
		for _, q := range rows[:drop] {
			a.freeIndex(q)
		}
	}
}

// collapse frees every index entry but the bottom header entry. A single
// remaining node is reachable from the header without any column.
// collapse ลด mesh ให้เหลือเพียงแถวล่างสุดของ header เมื่อเหลือรายการไม่เกินหนึ่งรายการ
func (m *Map[K, V]) collapse() {
	a := m.arena
	q := m.head
	for {
		for r := a.idx(q).right; r != 0; r = a.idx(q).right {
			m.unlinkIndex(q, r)
		}
		d := a.idx(q).down
		if d == 0 {
			break
		}
		a.freeIndex(q)
		q = d
	}
	m.head = q
}
