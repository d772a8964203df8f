package skipmap

// nodeID and indexID are stable handles into the map's arena.
// The zero handle means "none".
// nodeID และ indexID คือ handle ที่ชี้ไปยังช่องใน arena ค่า 0 หมายถึงไม่มี
type (
	nodeID  int32
	indexID int32
)

type nodeState uint8

const (
	nodeFree    nodeState = iota // slot sits on the free list
	nodeLive                     // holds a key/value pair
	nodeHeader                   // the immortal sentinel at the front of the base chain
	nodeDeleted                  // tombstone: logically removed, still linked from its predecessor
)

// node is one slot of the base chain.
type node[K any, V any] struct {
	key   K
	value V
	next  nodeID
	gen   uint32
	state nodeState
}

// reset clears the slot so the key and value can be collected and bumps the
// generation, which turns every index still referring to it stale.
// reset เคลียร์ข้อมูลในโหนดและเพิ่ม generation เพื่อให้ index ที่ยังอ้างถึงโหนดนี้กลายเป็น stale
func (n *node[K, V]) reset() {
	var zeroK K
	var zeroV V
	n.key, n.value, n.next = zeroK, zeroV, 0
	n.gen++
	n.state = nodeFree
}

// index is one entry of the mesh. node is a non-owning back-reference,
// pinned to the generation the node had when the column was built.
type index struct {
	node  nodeID
	gen   uint32
	down  indexID
	right indexID
	live  bool
}

func (x *index) reset() {
	*x = index{}
}
