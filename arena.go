package skipmap

import (
	"log/slog"
	"slices"
	"unsafe"
)

const (
	// defaultGrowthFactor is used when no growth option is configured.
	defaultGrowthFactor = 2.0
	// minArenaSlots is the smallest capacity an arena slice grows to.
	minArenaSlots = 16
)

// arenaConfig mirrors the WithArena* options.
type arenaConfig struct {
	initialBytes    int
	growthFactor    float64
	growthBytes     int
	growthThreshold float64
}

// arena keeps every node and index of one map in two slices addressed by
// handles. Handles stay valid when a slice is reallocated, which is why the
// rest of the package never keeps a *node or *index across an allocation.
// Freed slots go to a free list and carry a generation counter so stale
// handles can be told apart from reused slots.
//
// arena เก็บโหนดและ index ทั้งหมดไว้ใน slice สองชุดที่อ้างถึงด้วย handle
// handle จะยังใช้ได้แม้ slice ถูกจัดสรรใหม่
type arena[K any, V any] struct {
	nodes     []node[K, V]
	indexes   []index
	freeNodes []nodeID
	freeIdx   []indexID
	cfg       arenaConfig
	log       *slog.Logger
}

func newArena[K any, V any](cfg arenaConfig, log *slog.Logger) *arena[K, V] {
	if cfg.growthFactor <= 1.0 {
		cfg.growthFactor = defaultGrowthFactor
	}
	a := &arena[K, V]{cfg: cfg, log: log}

	nodeCap, idxCap := 1, 1
	if cfg.initialBytes > 0 {
		// Half an index per node is what the 1/4 gate and the geometric
		// column height produce on average.
		perNode := int(unsafe.Sizeof(node[K, V]{})) + int(unsafe.Sizeof(index{}))/2
		nodeCap = max(cfg.initialBytes/perNode, 1)
		idxCap = max(nodeCap/2, 1)
	}
	// Slot 0 of both slices is reserved so the zero handle means "none".
	a.nodes = make([]node[K, V], 1, nodeCap+1)
	a.indexes = make([]index, 1, idxCap+1)
	return a
}

// node returns the slot behind id. The pointer is only valid until the next
// allocation.
func (a *arena[K, V]) node(id nodeID) *node[K, V] {
	return &a.nodes[id]
}

func (a *arena[K, V]) idx(id indexID) *index {
	return &a.indexes[id]
}

// allocNode hands out a slot for a live node. The generation survives from
// the slot's previous life.
func (a *arena[K, V]) allocNode(key K, value V, next nodeID, state nodeState) nodeID {
	var id nodeID
	if n := len(a.freeNodes); n > 0 {
		id = a.freeNodes[n-1]
		a.freeNodes = a.freeNodes[:n-1]
	} else {
		if a.needsGrowth(len(a.nodes), cap(a.nodes)) {
			newCap := a.nextCap(cap(a.nodes), int(unsafe.Sizeof(node[K, V]{})))
			a.nodes = slices.Grow(a.nodes, newCap-len(a.nodes))
			a.logGrowth("nodes", cap(a.nodes))
		}
		a.nodes = append(a.nodes, node[K, V]{})
		id = nodeID(len(a.nodes) - 1)
	}
	n := &a.nodes[id]
	n.key, n.value, n.next, n.state = key, value, next, state
	return id
}

// allocIndex hands out a mesh entry pointing at target.
func (a *arena[K, V]) allocIndex(target nodeID, down, right indexID) indexID {
	var id indexID
	if n := len(a.freeIdx); n > 0 {
		id = a.freeIdx[n-1]
		a.freeIdx = a.freeIdx[:n-1]
	} else {
		if a.needsGrowth(len(a.indexes), cap(a.indexes)) {
			newCap := a.nextCap(cap(a.indexes), int(unsafe.Sizeof(index{})))
			a.indexes = slices.Grow(a.indexes, newCap-len(a.indexes))
			a.logGrowth("indexes", cap(a.indexes))
		}
		a.indexes = append(a.indexes, index{})
		id = indexID(len(a.indexes) - 1)
	}
	a.indexes[id] = index{
		node:  target,
		gen:   a.nodes[target].gen,
		down:  down,
		right: right,
		live:  true,
	}
	return id
}

func (a *arena[K, V]) freeNode(id nodeID) {
	a.nodes[id].reset()
	a.freeNodes = append(a.freeNodes, id)
}

func (a *arena[K, V]) freeIndex(id indexID) {
	a.indexes[id].reset()
	a.freeIdx = append(a.freeIdx, id)
}

// reset releases every slot while keeping the capacity. Generations keep
// counting so handles from before the reset stay detectably stale.
// reset คืนหน่วยความจำทุกช่องโดยยังคง capacity ไว้ (เหมือน Arena.Reset)
func (a *arena[K, V]) reset() {
	a.freeNodes = a.freeNodes[:0]
	for i := len(a.nodes) - 1; i > 0; i-- {
		a.nodes[i].reset()
		a.freeNodes = append(a.freeNodes, nodeID(i))
	}
	a.freeIdx = a.freeIdx[:0]
	for i := len(a.indexes) - 1; i > 0; i-- {
		a.indexes[i].reset()
		a.freeIdx = append(a.freeIdx, indexID(i))
	}
}

// needsGrowth reports whether appending one more slot should reallocate.
// With a threshold configured the arena grows before it is full.
func (a *arena[K, V]) needsGrowth(length, capacity int) bool {
	if length >= capacity {
		return true
	}
	if t := a.cfg.growthThreshold; t > 0 {
		return float64(length+1) > float64(capacity)*t
	}
	return false
}

// nextCap computes the capacity after one growth step. Fixed-byte growth
// wins over the factor when both are set.
func (a *arena[K, V]) nextCap(capacity, slotSize int) int {
	var next int
	if a.cfg.growthBytes > 0 {
		next = capacity + max(a.cfg.growthBytes/slotSize, 1)
	} else {
		next = int(float64(capacity) * a.cfg.growthFactor)
	}
	return max(next, capacity+1, minArenaSlots)
}

func (a *arena[K, V]) logGrowth(kind string, capacity int) {
	if a.log == nil {
		return
	}
	a.log.Debug("skipmap.arena.grow", slog.String("slots", kind), slog.Int("capacity", capacity))
}

// usage returns allocated and free slot counts, excluding the reserved slot 0.
func (a *arena[K, V]) usage() (nodes, freeNodes, indexes, freeIndexes int) {
	return len(a.nodes) - 1, len(a.freeNodes), len(a.indexes) - 1, len(a.freeIdx)
}
