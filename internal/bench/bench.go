// Package bench runs workloads against skipmap configurations, checks the
// outcome against a builtin map and records latency metrics.
package bench

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/INLOpen/skipmap"
	"github.com/INLOpen/skipmap/internal/workload"
	"github.com/VictoriaMetrics/metrics"
	"github.com/puzpuzpuz/xsync/v3"
)

// Impl is one map configuration under test.
type Impl struct {
	Name string
	New  func() *skipmap.Map[string, int]
}

// Impls returns the configurations selected by arenaBytes: the default map,
// plus an arena-backed one when arenaBytes is positive.
func Impls(arenaBytes int, seed uint64) []Impl {
	impls := []Impl{{
		Name: "default",
		New: func() *skipmap.Map[string, int] {
			return skipmap.New[string, int](skipmap.WithSeed[string, int](seed))
		},
	}}
	if arenaBytes > 0 {
		impls = append(impls, Impl{
			Name: "arena",
			New: func() *skipmap.Map[string, int] {
				return skipmap.New[string, int](
					skipmap.WithSeed[string, int](seed),
					skipmap.WithArena[string, int](arenaBytes),
				)
			},
		})
	}
	return impls
}

// Config controls a benchmark.
type Config struct {
	Workload workload.Config
	Runs     int          // repetitions per worker
	Parallel int          // independent maps driven concurrently
	Metrics  *metrics.Set // optional latency and counter sink
	Log      *slog.Logger
}

// Result summarises all runs of one Impl.
type Result struct {
	Impl    string
	Runs    int
	Ops     int
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
	Len     int
	Height  int
	Indexes int
}

// OpsPerSec is the throughput of an average run.
func (r Result) OpsPerSec() float64 {
	if r.Avg <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Avg.Seconds()
}

// Row formats r for a table with the columns of Header.
func (r Result) Row() []string {
	return []string{
		r.Impl,
		strconv.Itoa(r.Runs),
		strconv.Itoa(r.Ops),
		fmt.Sprintf("%.3f", float64(r.Avg)/float64(time.Millisecond)),
		fmt.Sprintf("%.3f", float64(r.Min)/float64(time.Millisecond)),
		fmt.Sprintf("%.3f", float64(r.Max)/float64(time.Millisecond)),
		fmt.Sprintf("%.2f", r.OpsPerSec()),
		strconv.Itoa(r.Len),
		strconv.Itoa(r.Height),
		strconv.Itoa(r.Indexes),
	}
}

// Header lists the table columns produced by Result.Row.
func Header() []string {
	return []string{"Impl", "Runs", "Ops", "Avg(ms)", "Min(ms)", "Max(ms)", "Ops/s", "Len", "Height", "Indexes"}
}

// runResult is the outcome of a single run on a single worker.
type runResult struct {
	elapsed time.Duration
	stats   skipmap.Stats
}

// Run executes cfg against impl and returns the aggregated result. Every run
// is verified against a builtin map; a mismatch is returned as an error.
func Run(ctx context.Context, impl Impl, cfg Config) (Result, error) {
	if cfg.Runs <= 0 {
		cfg.Runs = 1
	}
	if cfg.Parallel <= 0 {
		cfg.Parallel = 1
	}
	if err := cfg.Workload.Validate(); err != nil {
		return Result{}, err
	}

	keys := workload.Keys(cfg.Workload)
	ops, err := workload.Mix(cfg.Workload, keys)
	if err != nil {
		return Result{}, err
	}

	results := xsync.NewMapOf[string, runResult]()
	errs := make(chan error, cfg.Parallel)
	var wg sync.WaitGroup
	for w := range cfg.Parallel {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range cfg.Runs {
				if err := ctx.Err(); err != nil {
					errs <- err
					return
				}
				rr, err := runOnce(impl, keys, ops, cfg.Metrics)
				if err != nil {
					errs <- fmt.Errorf("%s worker %d run %d: %w", impl.Name, w, run, err)
					return
				}
				results.Store(fmt.Sprintf("%d/%d", w, run), rr)
				if cfg.Log != nil {
					cfg.Log.Debug("skipbench.run",
						slog.String("impl", impl.Name), slog.Int("worker", w), slog.Int("run", run),
						slog.Duration("elapsed", rr.elapsed), slog.Int("height", rr.stats.Height))
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	if err := <-errs; err != nil {
		return Result{}, err
	}

	return aggregate(impl.Name, len(keys)+len(ops), results), nil
}

// runOnce loads the key universe into a fresh map, replays ops and checks the
// map against a builtin map that saw the same operations.
func runOnce(impl Impl, keys []string, ops []workload.Op, set *metrics.Set) (runResult, error) {
	m := impl.New()
	ref := make(map[string]int, len(keys))

	var timer opTimer
	if set != nil {
		timer = newOpTimer(set, impl.Name)
	}

	start := time.Now()
	for i, k := range keys {
		timer.observe(workload.OpPut, func() { m.Put(k, i) })
		ref[k] = i
	}
	for i, op := range ops {
		switch op.Kind {
		case workload.OpPut:
			timer.observe(op.Kind, func() { m.Put(op.Key, i) })
			ref[op.Key] = i
		case workload.OpGet:
			var v int
			var ok bool
			timer.observe(op.Kind, func() { v, ok = m.Get(op.Key) })
			if want, wantOK := ref[op.Key]; ok != wantOK || v != want {
				return runResult{}, fmt.Errorf("get %q = (%d, %v), want (%d, %v)", op.Key, v, ok, want, wantOK)
			}
		case workload.OpRemove:
			timer.observe(op.Kind, func() { m.Remove(op.Key) })
			delete(ref, op.Key)
		}
	}
	elapsed := time.Since(start)

	if m.Len() != len(ref) {
		return runResult{}, fmt.Errorf("length mismatch: map has %d entries, reference has %d", m.Len(), len(ref))
	}
	if !slices.IsSorted(slices.Collect(m.Keys())) {
		return runResult{}, fmt.Errorf("keys are not in ascending order")
	}
	return runResult{elapsed: elapsed, stats: m.Stats()}, nil
}

func aggregate(name string, ops int, results *xsync.MapOf[string, runResult]) Result {
	res := Result{Impl: name, Ops: ops}
	var total time.Duration
	results.Range(func(_ string, rr runResult) bool {
		if res.Runs == 0 || rr.elapsed < res.Min {
			res.Min = rr.elapsed
		}
		res.Max = max(res.Max, rr.elapsed)
		total += rr.elapsed
		res.Runs++
		res.Len = rr.stats.Len
		res.Height = max(res.Height, rr.stats.Height)
		res.Indexes = max(res.Indexes, rr.stats.Indexes)
		return true
	})
	if res.Runs > 0 {
		res.Avg = total / time.Duration(res.Runs)
	}
	return res
}
