package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/INLOpen/skipmap/internal/bench"
	"github.com/INLOpen/skipmap/internal/cliutil"
	"github.com/INLOpen/skipmap/internal/workload"
	"github.com/VictoriaMetrics/metrics"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run a generated workload against every map configuration",
	RunE:    runBench,
	PreRunE: bindFlags,
}

func init() {
	key := "n"
	runCmd.Flags().Int(key, 10_000, cliutil.WrapString("Number of distinct keys loaded before the operation mix"))
	key = "ops"
	runCmd.Flags().Int(key, 100_000, cliutil.WrapString("Number of operations in the mix"))
	key = "dist"
	runCmd.Flags().String(key, string(workload.Uniform), cliutil.WrapString("Key distribution (sequential, uniform, zipf, uuid)"))
	key = "zipf-s"
	runCmd.Flags().Float64(key, 1.1, cliutil.WrapString("Zipf exponent, must be greater than 1"))
	key = "seed"
	runCmd.Flags().Uint64(key, 1, cliutil.WrapString("Seed for the keys, the operation mix and the leveling policy"))
	key = "runs"
	runCmd.Flags().Int(key, 3, cliutil.WrapString("Repetitions per configuration"))
	key = "remove-ratio"
	runCmd.Flags().Float64(key, 0.2, cliutil.WrapString("Share of removes in the operation mix"))
	key = "get-ratio"
	runCmd.Flags().Float64(key, 0.5, cliutil.WrapString("Share of gets in the operation mix, the rest are puts"))
	key = "arena"
	runCmd.Flags().Int(key, 0, cliutil.WrapString("Also benchmark an arena-backed map preallocated with this many bytes (0 disables it)"))
	key = "parallel"
	runCmd.Flags().Int(key, 1, cliutil.WrapString("Number of independent maps driven concurrently"))
	key = "metrics-out"
	runCmd.Flags().String(key, "", cliutil.WrapString("Optional path to write latency histograms in Prometheus text format"))
}

func runBench(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	dist, err := workload.ParseDistribution(viper.GetString("dist"))
	if err != nil {
		return err
	}
	seed := viper.GetUint64("seed")
	wl := workload.Config{
		N:           viper.GetInt("n"),
		Ops:         viper.GetInt("ops"),
		Dist:        dist,
		Seed:        seed,
		RemoveRatio: viper.GetFloat64("remove-ratio"),
		GetRatio:    viper.GetFloat64("get-ratio"),
		ZipfS:       viper.GetFloat64("zipf-s"),
	}
	if err := wl.Validate(); err != nil {
		return err
	}

	var set *metrics.Set
	metricsOut := viper.GetString("metrics-out")
	if metricsOut != "" {
		set = metrics.NewSet()
	}

	log.Info("starting benchmark",
		slog.Int("keys", wl.N), slog.Int("ops", wl.Ops), slog.String("dist", string(dist)),
		slog.Uint64("seed", seed), slog.Int("runs", viper.GetInt("runs")), slog.Int("parallel", viper.GetInt("parallel")))

	rows := make([][]string, 0, 2)
	for _, impl := range bench.Impls(viper.GetInt("arena"), seed) {
		log.Info("benchmarking", slog.String("impl", impl.Name))
		res, err := bench.Run(cmd.Context(), impl, bench.Config{
			Workload: wl,
			Runs:     viper.GetInt("runs"),
			Parallel: viper.GetInt("parallel"),
			Metrics:  set,
			Log:      log,
		})
		if err != nil {
			return fmt.Errorf("benchmark %s: %w", impl.Name, err)
		}
		rows = append(rows, res.Row())
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(bench.Header())
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()

	if set != nil {
		if err := writeMetrics(set, metricsOut); err != nil {
			return err
		}
		log.Info("metrics written", slog.String("path", metricsOut))
	}
	return nil
}

func writeMetrics(set *metrics.Set, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics file: %w", err)
	}
	set.WritePrometheus(f)
	if err := f.Close(); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}
	return nil
}
