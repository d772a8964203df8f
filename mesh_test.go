package skipmap

import (
	"bytes"
	"log/slog"
	"math/rand/v2"
	"strings"
	"testing"
)

// checkInvariants walks the whole structure and fails the test if the base
// chain or the index mesh is malformed. Stale index entries are tolerated;
// every other entry must agree with the rows below it.
func checkInvariants[K any, V any](t *testing.T, m *Map[K, V]) {
	t.Helper()
	a := m.arena
	if m.head == 0 {
		if m.length != 0 {
			t.Fatalf("empty mesh but Len() = %d", m.length)
		}
		return
	}
	if a.node(m.header).state != nodeHeader {
		t.Fatalf("header slot %d has state %d", m.header, a.node(m.header).state)
	}

	pos := make(map[nodeID]int)
	live := 0
	var prev nodeID
	for n := a.node(m.header).next; n != 0; n = a.node(n).next {
		nn := a.node(n)
		switch nn.state {
		case nodeLive:
			live++
		case nodeDeleted:
		default:
			t.Fatalf("slot %d on the base chain has state %d", n, nn.state)
		}
		if prev != 0 && m.compare(a.node(prev).key, nn.key) >= 0 {
			t.Fatalf("base chain out of order at slot %d", n)
		}
		pos[n] = len(pos)
		prev = n
	}
	if live != m.length {
		t.Fatalf("base chain holds %d live nodes, Len() = %d", live, m.length)
	}

	var heads []indexID
	for q := m.head; q != 0; q = a.idx(q).down {
		if a.idx(q).node != m.header {
			t.Fatalf("row %d does not start with the header column", len(heads))
		}
		heads = append(heads, q)
	}

	// Rows are checked bottom-up so each one can be compared with the row below.
	var below map[nodeID]bool
	for i := len(heads) - 1; i >= 0; i-- {
		bottom := i == len(heads)-1
		cur := make(map[nodeID]bool)
		prevPos := -1
		for r := a.idx(heads[i]).right; r != 0; r = a.idx(r).right {
			x := a.idx(r)
			if !x.live {
				t.Fatalf("row %d links freed index slot %d", i, r)
			}
			if m.stale(r) {
				continue
			}
			p, ok := pos[x.node]
			if !ok {
				t.Fatalf("row %d indexes slot %d which is not on the base chain", i, x.node)
			}
			if p <= prevPos {
				t.Fatalf("row %d out of order at index slot %d", i, r)
			}
			prevPos = p
			if bottom {
				if x.down != 0 {
					t.Fatalf("bottom row entry %d has a down link", r)
				}
			} else {
				if x.down == 0 || a.idx(x.down).node != x.node {
					t.Fatalf("row %d entry %d has a broken down link", i, r)
				}
				if !below[x.node] {
					t.Fatalf("row %d indexes slot %d which the row below does not", i, x.node)
				}
			}
			cur[x.node] = true
		}
		below = cur
	}
}

// countStale returns the number of stale entries still linked into the mesh.
func countStale[K any, V any](m *Map[K, V]) int {
	stale := 0
	for row := m.head; row != 0; row = m.arena.idx(row).down {
		for r := m.arena.idx(row).right; r != 0; r = m.arena.idx(r).right {
			if m.stale(r) {
				stale++
			}
		}
	}
	return stale
}

// countTombstones returns the number of deleted nodes still on the base chain.
func countTombstones[K any, V any](m *Map[K, V]) int {
	if m.header == 0 {
		return 0
	}
	n := 0
	for id := m.arena.node(m.header).next; id != 0; id = m.arena.node(id).next {
		if m.arena.node(id).state == nodeDeleted {
			n++
		}
	}
	return n
}

// bottomRow returns the nodes indexed by live entries of the bottom row, in order.
func bottomRow[K any, V any](m *Map[K, V]) []nodeID {
	q := m.head
	for q != 0 && m.arena.idx(q).down != 0 {
		q = m.arena.idx(q).down
	}
	var out []nodeID
	for r := m.arena.idx(q).right; r != 0; r = m.arena.idx(r).right {
		if !m.stale(r) {
			out = append(out, m.arena.idx(r).node)
		}
	}
	return out
}

func TestMesh_GrowsAtMostOneRowPerInsert(t *testing.T) {
	m := New[int, int](WithSeed[int, int](5))
	r := rand.New(rand.NewPCG(5, 6))

	maxHeight := 0
	for i, k := range r.Perm(20000) {
		before := m.Height()
		m.Put(k, i)
		after := m.Height()
		if after > max(before, 1)+1 {
			t.Fatalf("Put(%d) grew the mesh from %d to %d rows", k, before, after)
		}
		maxHeight = max(maxHeight, after)
	}
	if maxHeight < 3 {
		t.Errorf("20000 inserts produced only %d rows", maxHeight)
	}
	checkInvariants(t, m)
}

func TestMesh_IndexDensity(t *testing.T) {
	m := New[int, int](WithSeed[int, int](9))
	const n = 40000
	for i := range n {
		m.Put(i, i)
	}
	// About one node in four gets a column.
	indexed := len(bottomRow(m))
	if indexed < n/8 || indexed > n/2 {
		t.Errorf("%d of %d nodes indexed on the bottom row, want roughly a quarter", indexed, n)
	}
}

func TestMesh_ShrinksAfterBulkRemoval(t *testing.T) {
	const n = 10000

	// Each pick returns the key that survives; -1 removes every key.
	tests := []struct {
		name string
		pick func(m *Map[int, int]) int
	}{
		{
			name: "Unindexed",
			pick: func(m *Map[int, int]) int {
				indexed := make(map[nodeID]bool)
				for _, id := range bottomRow(m) {
					indexed[id] = true
				}
				for id := m.arena.node(m.header).next; id != 0; id = m.arena.node(id).next {
					if !indexed[id] {
						return m.arena.node(id).key
					}
				}
				return -1
			},
		},
		{
			name: "Indexed",
			pick: func(m *Map[int, int]) int {
				row := bottomRow(m)
				return m.arena.node(row[len(row)/2]).key
			},
		},
		{
			name: "Tallest",
			pick: func(m *Map[int, int]) int {
				return m.arena.node(m.arena.idx(m.arena.idx(m.head).right).node).key
			},
		},
		{
			name: "Random",
			pick: func(m *Map[int, int]) int {
				return rand.New(rand.NewPCG(3, 4)).IntN(n)
			},
		},
		{
			name: "None",
			pick: func(m *Map[int, int]) int { return -1 },
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New[int, int](WithSeed[int, int](uint64(7 + i)))
			for _, k := range rand.New(rand.NewPCG(1, 2)).Perm(n) {
				m.Put(k, k)
			}
			if h := m.Height(); h < 3 {
				t.Fatalf("Height() = %d after %d inserts, want a multi-row mesh", h, n)
			}
			keep := tt.pick(m)

			for k := range n {
				if k == keep {
					continue
				}
				if _, ok := m.Remove(k); !ok {
					t.Fatalf("Remove(%d) = false", k)
				}
			}

			wantLen := 1
			if keep < 0 {
				wantLen = 0
			}
			if m.Len() != wantLen {
				t.Fatalf("Len() = %d, want %d", m.Len(), wantLen)
			}
			if h := m.Height(); h != 1 {
				t.Errorf("Height() = %d after removing all but %d keys, want 1", h, wantLen)
			}
			if s := m.Stats(); s.Indexes != 0 {
				t.Errorf("Stats().Indexes = %d, want 0", s.Indexes)
			}
			if keep >= 0 {
				if v, ok := m.Get(keep); !ok || v != keep {
					t.Errorf("Get(%d) = (%d, %v), want (%d, true)", keep, v, ok, keep)
				}
			}
			checkInvariants(t, m)

			// The collapsed mesh keeps working.
			for k := range 1000 {
				m.Put(k+n, k)
			}
			if m.Len() != wantLen+1000 {
				t.Errorf("Len() = %d after refilling, want %d", m.Len(), wantLen+1000)
			}
			checkInvariants(t, m)
		})
	}
}

func TestMesh_IteratorRemoveCollapses(t *testing.T) {
	m := New[int, int](WithSeed[int, int](2), WithIndexGate[int, int](0))
	for i := range 500 {
		m.Put(i, i)
	}
	it := m.NewIterator()
	for it.Next() {
		if it.Key() != 250 {
			it.Remove()
		}
	}
	if m.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", m.Len())
	}
	if h := m.Height(); h != 1 {
		t.Errorf("Height() = %d after removing all but one key through an iterator, want 1", h)
	}
	if v, ok := m.Get(250); !ok || v != 250 {
		t.Errorf("Get(250) = (%d, %v), want (250, true)", v, ok)
	}
	checkInvariants(t, m)
}

func TestMesh_DropsEmptyTopRows(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option[int, int]
		extraRows int // empty rows left above the populated mesh
	}{
		{name: "Default", extraRows: 2},
		{name: "Window2Drop1", opts: []Option[int, int]{WithShrinkWindow[int, int](2, 1)}, extraRows: 1},
		{name: "Window4Drop3", opts: []Option[int, int]{WithShrinkWindow[int, int](4, 3)}, extraRows: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option[int, int]{WithSeed[int, int](1), WithIndexGate[int, int](0)}, tt.opts...)
			m := New[int, int](opts...)
			m.Put(1, 1)
			m.Put(2, 2)
			populated := m.Height()

			// Stack four header-only rows on top of the mesh.
			for range 4 {
				m.head = m.arena.allocIndex(m.header, m.head, 0)
			}
			m.tryReduceLevel()

			if got, want := m.Height(), populated+tt.extraRows; got != want {
				t.Errorf("Height() = %d, want %d", got, want)
			}
			checkInvariants(t, m)
		})
	}
}

func TestWithShrinkWindow_IgnoresInvalidValues(t *testing.T) {
	for _, wd := range [][2]int{{2, 2}, {3, 0}, {17, 2}, {1, 1}} {
		m := New[int, int](WithShrinkWindow[int, int](wd[0], wd[1]))
		if m.shrinkWindow != defaultShrinkWindow || m.shrinkDrop != defaultShrinkDrop {
			t.Errorf("WithShrinkWindow(%d, %d) applied window=%d drop=%d", wd[0], wd[1], m.shrinkWindow, m.shrinkDrop)
		}
	}
}

func TestWithIndexGate(t *testing.T) {
	const n = 40000

	t.Run("EveryNode", func(t *testing.T) {
		m := New[int, int](WithSeed[int, int](1), WithIndexGate[int, int](0))
		for i := range 1000 {
			m.Put(i, i)
		}
		if got := len(bottomRow(m)); got != 1000 {
			t.Errorf("%d of 1000 nodes indexed, want all", got)
		}
		checkInvariants(t, m)
	})

	t.Run("Sparse", func(t *testing.T) {
		m := New[int, int](WithSeed[int, int](1), WithIndexGate[int, int](8))
		for i := range n {
			m.Put(i, i)
		}
		// Expected about n/256.
		if got := len(bottomRow(m)); got == 0 || got > n/64 {
			t.Errorf("%d of %d nodes indexed, want roughly 1/256", got, n)
		}
		checkInvariants(t, m)
	})

	t.Run("IgnoresOutOfRange", func(t *testing.T) {
		m := New[int, int](WithIndexGate[int, int](9))
		if m.gateMask != 1<<defaultGateBits-1 {
			t.Errorf("gate mask = %#x after an out-of-range option", m.gateMask)
		}
	})
}

func TestStats_SkipsStaleEntries(t *testing.T) {
	m := New[int, int](WithSeed[int, int](3), WithIndexGate[int, int](0))
	for i := range 100 {
		m.Put(i, i)
	}
	before := m.Stats().Indexes

	// Height of the column of key 50.
	var target nodeID
	for id := m.arena.node(m.header).next; id != 0; id = m.arena.node(id).next {
		if m.arena.node(id).key == 50 {
			target = id
		}
	}
	column := 0
	for row := m.head; row != 0; row = m.arena.idx(row).down {
		for r := m.arena.idx(row).right; r != 0; r = m.arena.idx(r).right {
			if m.arena.idx(r).node == target {
				column++
			}
		}
	}
	if column == 0 {
		t.Fatal("key 50 has no index column although every node is indexed")
	}

	it := m.NewIterator()
	for it.Next() {
		if it.Key() == 50 {
			it.Remove()
			break
		}
	}

	staleBefore := countStale(m)
	if got := m.Stats().Indexes; got != before-column {
		t.Errorf("Stats().Indexes = %d after tombstoning key 50, want %d", got, before-column)
	}
	if staleAfter := countStale(m); staleAfter != staleBefore {
		t.Errorf("Stats() unlinked entries: %d stale before, %d after", staleBefore, staleAfter)
	}
}

func TestStale_FreedIndexSlot(t *testing.T) {
	m := New[int, int]()
	m.Put(1, 1)
	id := m.arena.allocIndex(m.arena.node(m.header).next, 0, 0)
	if m.stale(id) {
		t.Fatal("fresh index on a live node reported stale")
	}
	m.arena.freeIndex(id)
	if !m.stale(id) {
		t.Error("freed index slot not reported stale")
	}
}

func TestMesh_RemoveDropsWholeColumn(t *testing.T) {
	m := New[int, int](WithSeed[int, int](21))
	for i := range 2000 {
		m.Put(i, i)
	}
	for i := 0; i < 2000; i += 3 {
		m.Remove(i)
		if s := countStale(m); s != 0 {
			t.Fatalf("Remove(%d) left %d stale index entries", i, s)
		}
		if tomb := countTombstones(m); tomb != 0 {
			t.Fatalf("Remove(%d) left %d tombstones on the base chain", i, tomb)
		}
	}
	checkInvariants(t, m)
}

func TestMesh_TraversalsUnlinkTombstones(t *testing.T) {
	m := New[int, string](WithSeed[int, string](3))
	for i := range 1000 {
		m.Put(i, "v")
	}

	it := m.NewIterator()
	for it.Next() {
		if it.Key()%2 == 0 {
			if !it.Remove() {
				t.Fatalf("Iterator.Remove() at %d = false", it.Key())
			}
		}
	}
	if m.Len() != 500 {
		t.Fatalf("Len() = %d after removing even keys, want 500", m.Len())
	}
	if tomb := countTombstones(m); tomb != 500 {
		t.Fatalf("%d tombstones on the base chain, want 500 before any search", tomb)
	}
	if free := m.Stats().FreeNodes; free != 0 {
		t.Fatalf("FreeNodes = %d before any search, want 0", free)
	}
	checkInvariants(t, m)

	for k := 0; k < 1000; k += 2 {
		if _, ok := m.Get(k); ok {
			t.Fatalf("Get(%d) found a removed key", k)
		}
	}
	if tomb := countTombstones(m); tomb != 0 {
		t.Errorf("%d tombstones left after searching every removed key", tomb)
	}
	if s := countStale(m); s != 0 {
		t.Errorf("%d stale index entries left after searching every removed key", s)
	}
	if free := m.Stats().FreeNodes; free != 500 {
		t.Errorf("FreeNodes = %d, want 500 recycled slots", free)
	}
	for k := 1; k < 1000; k += 2 {
		if !m.ContainsKey(k) {
			t.Fatalf("ContainsKey(%d) = false", k)
		}
	}
	checkInvariants(t, m)
}

func TestMesh_GenerationDetectsReusedSlot(t *testing.T) {
	m := New[int, int](WithSeed[int, int](11))
	for i := range 200 {
		m.Put(i*10, i)
	}
	row := bottomRow(m)
	if len(row) < 2 {
		t.Fatalf("only %d indexed nodes, want at least 2", len(row))
	}
	victim := row[len(row)-1]
	victimKey := m.arena.node(victim).key

	it := m.NewIterator()
	for it.Next() {
		if it.Key() == victimKey {
			it.Remove()
			break
		}
	}
	// Unlink the tombstone from the base chain without touching the mesh.
	m.seekBase(m.header, victimKey+1)
	if m.arena.node(victim).state != nodeFree {
		t.Fatalf("victim slot %d was not freed", victim)
	}

	m.Put(5, 5)
	if got := m.arena.node(victim).key; got != 5 {
		t.Fatalf("slot %d holds key %d, want it reused for key 5", victim, got)
	}

	foundStale := false
	for q := m.head; q != 0; q = m.arena.idx(q).down {
		for r := m.arena.idx(q).right; r != 0; r = m.arena.idx(r).right {
			x := m.arena.idx(r)
			if x.node == victim && x.gen != m.arena.node(victim).gen {
				foundStale = true
			}
		}
	}
	if !foundStale {
		t.Fatal("no index entry still refers to the old generation of the reused slot")
	}
	checkInvariants(t, m)

	if _, ok := m.Get(victimKey); ok {
		t.Errorf("Get(%d) found a removed key through a stale index entry", victimKey)
	}
	if v, ok := m.Get(5); !ok || v != 5 {
		t.Errorf("Get(5) = (%d, %v), want (5, true)", v, ok)
	}
	if s := countStale(m); s != 0 {
		t.Errorf("%d stale index entries left after searching the removed key", s)
	}
	checkInvariants(t, m)
}

func TestColumnHeight_Bounded(t *testing.T) {
	m := New[int, int](WithSeed[int, int](1))
	for levels := range 5 {
		for range 1000 {
			h := m.columnHeight(levels)
			if h < 1 || h > levels+2 {
				t.Fatalf("columnHeight(%d) = %d, want within [1, %d]", levels, h, levels+2)
			}
		}
	}
}

func TestMap_LoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := New[int, int](WithSeed[int, int](4), WithLogger[int, int](logger))

	for i := range 5000 {
		m.Put(i, i)
	}
	for i := range 5000 {
		m.Remove(i)
	}
	m.Clear()

	out := buf.String()
	for _, event := range []string{"skipmap.mesh.grow", "skipmap.mesh.shrink", "skipmap.arena.grow", "skipmap.clear"} {
		if !strings.Contains(out, "msg="+event) {
			t.Errorf("log output lacks %s", event)
		}
	}
}
