package skipmap

import "math/bits"

const (
	// defaultGateBits gates column building: a new node gets an index column
	// only when the low two bits of a draw are zero, i.e. with chance 1/4.
	// defaultGateBits คือจำนวนบิตที่ใช้สุ่มโอกาส 1/4 ที่โหนดใหม่จะได้ index
	defaultGateBits = 2
	// maxGateBits bounds WithIndexGate; 1/256 is already a very sparse mesh.
	maxGateBits = 8
	// defaultShrinkWindow is how many top rows must be empty before the mesh shrinks.
	defaultShrinkWindow = 3
	// defaultShrinkDrop is how many rows one shrink step removes.
	defaultShrinkDrop = 2
	// maxShrinkWindow bounds WithShrinkWindow so the shrink scan needs no allocation.
	maxShrinkWindow = 16
)

// WithIndexGate sets the chance that an inserted node gets an index column
// to 1/2^bits. Zero indexes every node; the default is 2 (chance 1/4).
// Values above 8 are ignored.
// WithIndexGate กำหนดโอกาสที่โหนดใหม่จะได้ index column เป็น 1/2^bits
func WithIndexGate[K any, V any](bits uint) Option[K, V] {
	return func(m *Map[K, V]) {
		if bits <= maxGateBits {
			m.gateMask = 1<<bits - 1
		}
	}
}

// WithShrinkWindow makes the mesh drop its top drop rows whenever its top
// window rows hold nothing but the header column. It requires
// 1 <= drop < window <= 16; other values are ignored. The default is 3 and 2.
func WithShrinkWindow[K any, V any](window, drop int) Option[K, V] {
	return func(m *Map[K, V]) {
		if drop >= 1 && drop < window && window <= maxShrinkWindow {
			m.shrinkWindow, m.shrinkDrop = window, drop
		}
	}
}

// shouldIndex draws the gate that decides whether an inserted node gets an
// index column at all.
func (m *Map[K, V]) shouldIndex() bool {
	return m.rand.Uint64()&m.gateMask == 0
}

// columnHeight draws the height of a new index column. The height is one
// plus the number of leading one-bits of an independent 64-bit draw, so each
// extra row is reached with chance 1/2. The column never exceeds
// levels+2 rows: levels+1 rows reuse the existing mesh and one more asks
// for a brand-new top row.
//
// columnHeight สุ่มความสูงของ index column จากจำนวนบิต 1 ที่นำหน้าในเลขสุ่ม 64 บิต
func (m *Map[K, V]) columnHeight(levels int) int {
	h := 1 + bits.LeadingZeros64(^m.rand.Uint64())
	return min(h, levels+2)
}
