// Package skipmap implements a generic ordered map on top of a multi-level
// probabilistic skip list.
//
// Entries live on a sorted base chain headed by a sentinel node. A sparse
// mesh of index entries (right/down links) shortcuts the chain. Removal
// first tombstones an entry and index entries that still point at it are
// unlinked lazily by later traversals, so searches can mutate the mesh.
//
// A Map is not safe for concurrent use. Callers that share one between
// goroutines must serialize access themselves.
package skipmap

import (
	"cmp"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"reflect"
)

// Comparator is a function that compares two keys.
// It should return:
//   - a negative value if a < b
//   - zero if a == b
//   - a positive value if a > b
//
// Comparator คือฟังก์ชันสำหรับเปรียบเทียบ key สองตัว
type Comparator[K any] func(a, b K) int

// Map is an ordered key-value map backed by a skip list.
// The zero value for a Map is not ready to use; one of the New functions must be called.
// ค่า zero value ของ Map จะยังไม่พร้อมใช้งาน ต้องสร้างผ่านฟังก์ชัน New... เท่านั้น
type Map[K any, V any] struct {
	head    indexID       // top-left entry of the mesh, 0 until the first Put
	header  nodeID        // sentinel at the front of the base chain
	length  int           // live entries
	arena   *arena[K, V]  // node and index storage
	rand    *rand.Rand    // source for the leveling policy
	compare Comparator[K] // total order over keys
	isNil   func(K) bool  // nil check for nilable key types, nil otherwise
	log     *slog.Logger

	gateMask     uint64 // a draw with none of these bits set gets a column
	shrinkWindow int    // empty top rows that trigger a shrink
	shrinkDrop   int    // rows dropped per shrink step

	arenaCfg arenaConfig
	source   rand.Source
}

// Option is a function that configures a Map.
type Option[K any, V any] func(*Map[K, V])

// WithArena preallocates arena capacity for roughly sizeInBytes of nodes and index entries.
// WithArena กำหนดขนาดเริ่มต้นของ arena (เป็น byte)
func WithArena[K any, V any](sizeInBytes int) Option[K, V] {
	return func(m *Map[K, V]) {
		if sizeInBytes > 0 {
			m.arenaCfg.initialBytes = sizeInBytes
		}
	}
}

// WithArenaGrowthFactor makes the arena grow by a factor of its current capacity.
// For example, a factor of 2.0 doubles the slot capacity on every growth.
func WithArenaGrowthFactor[K any, V any](factor float64) Option[K, V] {
	return func(m *Map[K, V]) {
		if factor > 1.0 {
			m.arenaCfg.growthFactor = factor
		}
	}
}

// WithArenaGrowthBytes makes the arena grow by a fixed number of bytes.
// It takes precedence over WithArenaGrowthFactor.
func WithArenaGrowthBytes[K any, V any](bytes int) Option[K, V] {
	return func(m *Map[K, V]) {
		if bytes > 0 {
			m.arenaCfg.growthBytes = bytes
		}
	}
}

// WithArenaGrowthThreshold configures proactive growth (e.g., 0.9 for 90%).
// If an allocation would push usage past this fraction of the capacity,
// the arena grows first.
func WithArenaGrowthThreshold[K any, V any](threshold float64) Option[K, V] {
	return func(m *Map[K, V]) {
		if threshold > 0.0 && threshold < 1.0 {
			m.arenaCfg.growthThreshold = threshold
		}
	}
}

// WithSource sets the random source used by the leveling policy.
func WithSource[K any, V any](src rand.Source) Option[K, V] {
	return func(m *Map[K, V]) {
		if src != nil {
			m.source = src
		}
	}
}

// WithSeed makes the leveling policy deterministic.
func WithSeed[K any, V any](seed uint64) Option[K, V] {
	return WithSource[K, V](rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// WithLogger enables debug events for mesh growth, mesh shrink and arena growth.
func WithLogger[K any, V any](logger *slog.Logger) Option[K, V] {
	return func(m *Map[K, V]) {
		m.log = logger
	}
}

// New creates a new map for key types that implement cmp.Ordered (e.g., int, string).
// It uses cmp.Compare as the comparator.
// New สร้าง map ใหม่สำหรับ key type ที่รองรับ `cmp.Ordered` โดยใช้ `cmp.Compare`
func New[K cmp.Ordered, V any](opts ...Option[K, V]) *Map[K, V] {
	return NewWithComparator(cmp.Compare[K], opts...)
}

// NewWithComparator creates a new map ordered by a custom comparator function.
// The comparator function must not be nil.
// NewWithComparator สร้าง map ใหม่พร้อมกับฟังก์ชันเปรียบเทียบที่กำหนดเอง
func NewWithComparator[K any, V any](compare Comparator[K], opts ...Option[K, V]) *Map[K, V] {
	if compare == nil {
		panic("skipmap: comparator cannot be nil")
	}

	m := &Map[K, V]{
		compare:      compare,
		isNil:        nilCheck[K](),
		gateMask:     1<<defaultGateBits - 1,
		shrinkWindow: defaultShrinkWindow,
		shrinkDrop:   defaultShrinkDrop,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.source == nil {
		// PCG is the default generator since Go 1.22.
		m.source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	m.rand = rand.New(m.source)
	m.arena = newArena[K, V](m.arenaCfg, m.log)
	return m
}

// nilCheck returns a nil test for key types that can hold nil.
func nilCheck[K any]() func(K) bool {
	switch reflect.TypeFor[K]().Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice,
		reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return func(key K) bool {
			return reflect.ValueOf(&key).Elem().IsNil()
		}
	}
	return nil
}

// checkKey panics when key is nil. Every public operation calls it before
// touching the structure.
func (m *Map[K, V]) checkKey(key K) {
	if m.isNil != nil && m.isNil(key) {
		panic(fmt.Errorf("%w: %T", ErrNilKey, key))
	}
}

// Get returns the value stored under key.
// Get คืนค่า value ของ key ที่กำหนด และ true หากพบ
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.checkKey(key)
	if id := m.findNode(key); id != 0 {
		return m.arena.node(id).value, true
	}
	var zero V
	return zero, false
}

// ContainsKey reports whether key is present.
func (m *Map[K, V]) ContainsKey(key K) bool {
	m.checkKey(key)
	return m.findNode(key) != 0
}

// Put stores value under key.
// If the key already exists its value is replaced in place and the previous
// value is returned with replaced set to true.
// Put เพิ่มหรืออัปเดต key-value หาก key มีอยู่แล้วจะคืนค่าเดิมพร้อม true
func (m *Map[K, V]) Put(key K, value V) (old V, replaced bool) {
	m.checkKey(key)
	return m.doPut(key, value)
}

// Remove deletes key and returns the value it held.
// Removing an absent key is not an error; it returns false.
// Remove ลบ key ออกจาก map และคืนค่า value เดิม
func (m *Map[K, V]) Remove(key K) (old V, removed bool) {
	m.checkKey(key)
	return m.doRemove(key)
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	return m.length
}

// IsEmpty reports whether the map has no entries.
func (m *Map[K, V]) IsEmpty() bool {
	return m.length == 0
}

// Clear removes all entries. The arena keeps its capacity for reuse.
// Clear ลบรายการทั้งหมดและรีเซ็ต arena เพื่อนำหน่วยความจำกลับมาใช้ใหม่
func (m *Map[K, V]) Clear() {
	m.arena.reset()
	m.head, m.header, m.length = 0, 0, 0
	if m.log != nil {
		m.log.Debug("skipmap.clear")
	}
}

// Min returns the entry with the smallest key.
func (m *Map[K, V]) Min() (K, V, bool) {
	if m.header != 0 {
		if id := m.firstLive(m.arena.node(m.header).next); id != 0 {
			n := m.arena.node(id)
			return n.key, n.value, true
		}
	}
	var zeroK K
	var zeroV V
	return zeroK, zeroV, false
}

// Max returns the entry with the largest key.
func (m *Map[K, V]) Max() (K, V, bool) {
	if id := m.findLast(); id != 0 {
		n := m.arena.node(id)
		return n.key, n.value, true
	}
	var zeroK K
	var zeroV V
	return zeroK, zeroV, false
}

// EqualFunc reports whether m and other hold the same keys, in the same
// order, with values equal under eq. Keys are compared with m's comparator.
func (m *Map[K, V]) EqualFunc(other *Map[K, V], eq func(a, b V) bool) bool {
	if m == other {
		return true
	}
	if other == nil || m.length != other.length {
		return false
	}
	a, b := m.NewIterator(), other.NewIterator()
	for a.Next() {
		if !b.Next() {
			return false
		}
		if m.compare(a.Key(), b.Key()) != 0 || !eq(a.Value(), b.Value()) {
			return false
		}
	}
	return !b.Next()
}

// Equal reports whether two maps hold the same entries.
func Equal[K any, V comparable](a, b *Map[K, V]) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.EqualFunc(b, func(x, y V) bool { return x == y })
}

// Stats describes the shape of the map.
type Stats struct {
	Len         int // live entries
	Height      int // index rows, including the header-only rows
	Indexes     int // live index entries excluding the header column
	NodeSlots   int // allocated node slots, sentinel included
	FreeNodes   int // node slots waiting on the free list
	IndexSlots  int // allocated index slots
	FreeIndexes int // index slots waiting on the free list
}

// Stats walks the mesh and reports its shape. Stale entries that no
// traversal has unlinked yet are not counted. Stats never mutates the mesh.
func (m *Map[K, V]) Stats() Stats {
	s := Stats{Len: m.length}
	for row := m.head; row != 0; row = m.arena.idx(row).down {
		s.Height++
		for r := m.arena.idx(row).right; r != 0; r = m.arena.idx(r).right {
			if !m.stale(r) {
				s.Indexes++
			}
		}
	}
	s.NodeSlots, s.FreeNodes, s.IndexSlots, s.FreeIndexes = m.arena.usage()
	return s
}

// Height returns the number of index rows, 0 before the first Put.
func (m *Map[K, V]) Height() int {
	h := 0
	for row := m.head; row != 0; row = m.arena.idx(row).down {
		h++
	}
	return h
}
