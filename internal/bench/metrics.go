package bench

import (
	"fmt"
	"time"

	"github.com/INLOpen/skipmap/internal/workload"
	"github.com/VictoriaMetrics/metrics"
)

// opTimer records per-operation latency histograms and counters for one
// Impl. The zero value records nothing.
type opTimer struct {
	hist  [3]*metrics.Histogram
	count [3]*metrics.Counter
}

func newOpTimer(set *metrics.Set, impl string) opTimer {
	var t opTimer
	for _, kind := range []workload.OpKind{workload.OpGet, workload.OpPut, workload.OpRemove} {
		labels := fmt.Sprintf(`{impl=%q,op=%q}`, impl, kind.String())
		t.hist[kind] = set.GetOrCreateHistogram("skipbench_op_duration_seconds" + labels)
		t.count[kind] = set.GetOrCreateCounter("skipbench_ops_total" + labels)
	}
	return t
}

// observe runs f and records its duration under kind.
func (t opTimer) observe(kind workload.OpKind, f func()) {
	if t.hist[kind] == nil {
		f()
		return
	}
	start := time.Now()
	f()
	t.hist[kind].UpdateDuration(start)
	t.count[kind].Inc()
}
