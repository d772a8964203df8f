package bench

import (
	"fmt"
	"math/rand/v2"
	"runtime"
	"strconv"
	"time"

	"github.com/INLOpen/skipmap"
)

// ArenaConfig is one arena growth strategy.
type ArenaConfig struct {
	Name string
	Opts []skipmap.Option[int, int]
}

// ArenaConfigs returns the growth strategies compared by the arena benchmark.
func ArenaConfigs() []ArenaConfig {
	return []ArenaConfig{
		{"ondemand", nil},
		{"arena-1MB", []skipmap.Option[int, int]{skipmap.WithArena[int, int](1 << 20)}},
		{"factor-2-1KB", []skipmap.Option[int, int]{skipmap.WithArena[int, int](1 << 10), skipmap.WithArenaGrowthFactor[int, int](2.0)}},
		{"bytes-64KB-1KB", []skipmap.Option[int, int]{skipmap.WithArena[int, int](1 << 10), skipmap.WithArenaGrowthBytes[int, int](64 * 1024)}},
		{"threshold-0.9-factor-2-1KB", []skipmap.Option[int, int]{skipmap.WithArena[int, int](1 << 10), skipmap.WithArenaGrowthFactor[int, int](2.0), skipmap.WithArenaGrowthThreshold[int, int](0.9)}},
	}
}

// ArenaResult is the cost of filling one map.
type ArenaResult struct {
	Name       string
	Duration   time.Duration
	TotalAlloc int64
	Len        int
	NodeSlots  int
}

// NsPerOp is the average insert cost.
func (r ArenaResult) NsPerOp() float64 {
	if r.Len == 0 {
		return 0
	}
	return float64(r.Duration.Nanoseconds()) / float64(r.Len)
}

// Row formats r for a table with the columns of ArenaHeader.
func (r ArenaResult) Row() []string {
	return []string{
		r.Name,
		r.Duration.String(),
		fmt.Sprintf("%.1f", r.NsPerOp()),
		strconv.FormatInt(r.TotalAlloc, 10),
		strconv.Itoa(r.Len),
		strconv.Itoa(r.NodeSlots),
	}
}

// ArenaHeader lists the table columns produced by ArenaResult.Row.
func ArenaHeader() []string {
	return []string{"Config", "Duration", "ns/op", "TotalAlloc(bytes)", "Len", "NodeSlots"}
}

// RandomIntKeys returns n random keys from a seeded PCG.
func RandomIntKeys(n int, seed uint64) []int {
	r := rand.New(rand.NewPCG(seed, seed+1))
	keys := make([]int, n)
	for i := range keys {
		keys[i] = r.Int()
	}
	return keys
}

// MeasureInserts fills a fresh map built with cfg and reports time and heap
// allocation spent on the inserts.
func MeasureInserts(cfg ArenaConfig, keys []int) ArenaResult {
	runtime.GC()
	m := skipmap.New[int, int](cfg.Opts...)

	var msBefore, msAfter runtime.MemStats
	runtime.ReadMemStats(&msBefore)
	start := time.Now()

	for i, k := range keys {
		m.Put(k, i)
	}

	dur := time.Since(start)
	runtime.ReadMemStats(&msAfter)

	s := m.Stats()
	return ArenaResult{
		Name:       cfg.Name,
		Duration:   dur,
		TotalAlloc: int64(msAfter.TotalAlloc) - int64(msBefore.TotalAlloc),
		Len:        s.Len,
		NodeSlots:  s.NodeSlots,
	}
}
