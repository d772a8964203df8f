package skipmap

import "log/slog"

// doPut inserts or overwrites key. The caller has already rejected nil keys.
// doPut เพิ่มโหนดใหม่เข้า base chain แล้วสุ่มสร้าง index column
func (m *Map[K, V]) doPut(key K, value V) (old V, replaced bool) {
	if m.head == 0 {
		// The mesh is built lazily: a sentinel node and one header row.
		var zeroK K
		var zeroV V
		m.header = m.arena.allocNode(zeroK, zeroV, 0, nodeHeader)
		m.head = m.arena.allocIndex(m.header, 0, 0)
	}

	b, levels := m.findPredecessor(key)
	b, n, c := m.seekBase(b, key)
	if n != 0 && c == 0 {
		// Existing key: overwrite in place, the index mesh is untouched.
		nn := m.arena.node(n)
		old, nn.value = nn.value, value
		return old, true
	}

	z := m.arena.allocNode(key, value, n, nodeLive)
	m.arena.node(b).next = z
	m.length++

	if m.shouldIndex() {
		m.addColumn(z, key, levels)
	}
	return old, false
}

// addColumn builds a bottom-up column of index entries for the new node z
// and splices it into the mesh. levels is the number of rows findPredecessor
// passed through, so the mesh currently has levels+1 rows. When the drawn
// height exceeds them, one new top row is created; the mesh never grows by
// more than one row per insert.
func (m *Map[K, V]) addColumn(z nodeID, key K, levels int) {
	h := m.head
	height := m.columnHeight(levels)
	rows := min(height, levels+1)

	var x indexID
	for range rows {
		x = m.arena.allocIndex(z, x, 0)
	}

	skips := levels + 1 - rows
	if m.addIndices(h, skips, x, key) && height > rows && m.head == h {
		hx := m.arena.allocIndex(z, x, 0)
		m.head = m.arena.allocIndex(m.header, h, hx)
		if m.log != nil {
			m.log.Debug("skipmap.mesh.grow", slog.Int("height", m.Height()), slog.Int("len", m.length))
		}
	}
}

// addIndices splices the column topped by x into the mesh starting at row
// entry q. The first skips rows are descended without linking. Lower rows are
// linked before the current one so a linked entry always has its down chain
// in place. It reports whether x was linked.
func (m *Map[K, V]) addIndices(q indexID, skips int, x indexID, key K) bool {
	if x == 0 || q == 0 {
		return false
	}
	a := m.arena
	retrying := false
	for {
		r := a.idx(q).right
		if r != 0 {
			if m.stale(r) {
				m.unlinkIndex(q, r)
				continue
			}
			c := m.compare(key, a.node(a.idx(r).node).key)
			if c > 0 {
				q = r
				continue
			}
			if c == 0 {
				// Already indexed on this row.
				return false
			}
		}

		// The splice point is between q and r.
		d := a.idx(q).down
		if d != 0 && skips > 0 {
			skips--
			q = d
			continue
		}
		if d != 0 && !retrying && !m.addIndices(d, 0, a.idx(x).down, key) {
			return false
		}
		if a.idx(q).right != r {
			// Linking the lower rows moved the splice point; find it again.
			// The recursion only unlinks stale entries on lower rows, so with
			// a single owner this never fires; it keeps the splice correct
			// if lower-row cleanup ever reaches this row.
			retrying = true
			continue
		}
		a.idx(x).right = r
		a.idx(q).right = x
		return true
	}
}
