package main

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/INLOpen/skipmap/internal/bench"
	"github.com/INLOpen/skipmap/internal/cliutil"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var arenaCmd = &cobra.Command{
	Use:     "arena",
	Short:   "Compare arena growth strategies on a pure insert workload",
	RunE:    runArena,
	PreRunE: bindFlags,
}

func init() {
	rootCmd.AddCommand(arenaCmd)

	key := "n"
	arenaCmd.Flags().Int(key, 200_000, cliutil.WrapString("Number of random keys to insert per configuration"))
	key = "seed"
	arenaCmd.Flags().Uint64(key, 1, cliutil.WrapString("Seed for the random keys"))
}

func runArena(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}

	n := viper.GetInt("n")
	keys := bench.RandomIntKeys(n, viper.GetUint64("seed"))
	log.Info("running arena insert microbench", slog.Int("keys", n))

	var rows [][]string
	for _, cfg := range bench.ArenaConfigs() {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		runtime.GC()
		time.Sleep(50 * time.Millisecond)
		res := bench.MeasureInserts(cfg, keys)
		log.Debug("arena config done", slog.String("config", cfg.Name), slog.Duration("elapsed", res.Duration))
		rows = append(rows, res.Row())
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(bench.ArenaHeader())
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
	return nil
}
