package skipmap

// Traversals in this file are allowed to mutate: every stale index entry and
// every tombstoned node met on the way is unlinked in place. This is how the
// mesh compacts itself without a separate cleanup pass.

// stale reports whether the index entry id points at a node that was
// tombstoned or whose slot has been freed since the entry was built. A freed
// index slot is always stale.
func (m *Map[K, V]) stale(id indexID) bool {
	x := m.arena.idx(id)
	if !x.live {
		return true
	}
	n := m.arena.node(x.node)
	return n.gen != x.gen || n.state != nodeLive
}

// unlinkIndex removes r, the right neighbour of q, from its row.
func (m *Map[K, V]) unlinkIndex(q, r indexID) {
	m.arena.idx(q).right = m.arena.idx(r).right
	m.arena.freeIndex(r)
}

// unlinkNode removes n, the successor of b, from the base chain.
func (m *Map[K, V]) unlinkNode(b, n nodeID) {
	m.arena.node(b).next = m.arena.node(n).next
	m.arena.freeNode(n)
}

// findPredecessor descends the mesh and returns a base-chain node whose key
// is below key (the header if none is), or 0 on an empty mesh. levels is the
// number of rows passed through before reaching the bottom row.
// findPredecessor ค้นหาโหนดก่อนหน้าของ key ในชั้นล่างสุด พร้อมตัด index ที่ stale ทิ้ง
func (m *Map[K, V]) findPredecessor(key K) (b nodeID, levels int) {
	q := m.head
	if q == 0 {
		return 0, 0
	}
	a := m.arena
	for {
		for r := a.idx(q).right; r != 0; r = a.idx(q).right {
			if m.stale(r) {
				m.unlinkIndex(q, r)
				continue
			}
			if m.compare(key, a.node(a.idx(r).node).key) > 0 {
				q = r
				continue
			}
			break
		}
		d := a.idx(q).down
		if d == 0 {
			return a.idx(q).node, levels
		}
		levels++
		q = d
	}
}

// seekBase walks the base chain right of b and stops at the first node whose
// key is not below key. It returns that node's predecessor, the node itself
// (0 past the tail) and the comparison of key against the node's key.
func (m *Map[K, V]) seekBase(b nodeID, key K) (pred, n nodeID, c int) {
	a := m.arena
	for {
		n = a.node(b).next
		if n == 0 {
			return b, 0, -1
		}
		if a.node(n).state == nodeDeleted {
			m.unlinkNode(b, n)
			continue
		}
		if c = m.compare(key, a.node(n).key); c > 0 {
			b = n
			continue
		}
		return b, n, c
	}
}

// findNode returns the live node holding key, or 0. Unlike findPredecessor
// it stops as soon as an index row holds the key.
func (m *Map[K, V]) findNode(key K) nodeID {
	q := m.head
	if q == 0 {
		return 0
	}
	a := m.arena
	for {
		for r := a.idx(q).right; r != 0; r = a.idx(q).right {
			if m.stale(r) {
				m.unlinkIndex(q, r)
				continue
			}
			target := a.idx(r).node
			c := m.compare(key, a.node(target).key)
			if c > 0 {
				q = r
				continue
			}
			if c == 0 {
				return target
			}
			break
		}
		d := a.idx(q).down
		if d == 0 {
			break
		}
		q = d
	}
	if _, n, c := m.seekBase(a.idx(q).node, key); n != 0 && c == 0 {
		return n
	}
	return 0
}

// firstLive returns id or the first live node after it, skipping tombstones
// without unlinking them.
func (m *Map[K, V]) firstLive(id nodeID) nodeID {
	for id != 0 && m.arena.node(id).state != nodeLive {
		id = m.arena.node(id).next
	}
	return id
}

// seekAfter returns the first live node whose key is above key.
func (m *Map[K, V]) seekAfter(key K) nodeID {
	b, _ := m.findPredecessor(key)
	if b == 0 {
		return 0
	}
	_, n, c := m.seekBase(b, key)
	if n != 0 && c == 0 {
		return m.firstLive(m.arena.node(n).next)
	}
	return n
}

// findLast returns the live node with the largest key, or 0.
func (m *Map[K, V]) findLast() nodeID {
	q := m.head
	if q == 0 {
		return 0
	}
	a := m.arena
	for {
		for r := a.idx(q).right; r != 0; r = a.idx(q).right {
			if m.stale(r) {
				m.unlinkIndex(q, r)
				continue
			}
			q = r
		}
		d := a.idx(q).down
		if d == 0 {
			break
		}
		q = d
	}
	b := a.idx(q).node
	for n := a.node(b).next; n != 0; n = a.node(b).next {
		if a.node(n).state == nodeDeleted {
			m.unlinkNode(b, n)
			continue
		}
		b = n
	}
	if b == m.header {
		return 0
	}
	return b
}
