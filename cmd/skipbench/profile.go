package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // registers pprof handlers on the default mux
	"runtime"
	"time"

	"github.com/INLOpen/skipmap"
	"github.com/INLOpen/skipmap/internal/cliutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Fill a map and keep it alive behind a pprof endpoint",
	Long: `Starts a pprof server, inserts --n keys into a map and blocks until
interrupted so heap and CPU profiles can be taken.`,
	RunE:    runProfile,
	PreRunE: bindFlags,
}

func init() {
	key := "n"
	profileCmd.Flags().Int(key, 2_000_000, cliutil.WrapString("Number of keys to insert"))
	key = "arena"
	profileCmd.Flags().Int(key, 0, cliutil.WrapString("Preallocate the arena with this many bytes (0 grows on demand)"))
	key = "addr"
	profileCmd.Flags().String(key, "localhost:6060", cliutil.WrapString("Listen address of the pprof server"))
}

func runProfile(cmd *cobra.Command, _ []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// เปิด pprof endpoint ผ่าน HTTP server ใน goroutine แยก
	srv := &http.Server{Addr: viper.GetString("addr")}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting pprof server", slog.String("url", fmt.Sprintf("http://%s/debug/pprof/", srv.Addr)))
		serveErr <- srv.ListenAndServe()
	}()

	n := viper.GetInt("n")
	opts := []skipmap.Option[int, int]{skipmap.WithLogger[int, int](log)}
	if arenaBytes := viper.GetInt("arena"); arenaBytes > 0 {
		opts = append(opts, skipmap.WithArena[int, int](arenaBytes))
		log.Info("using arena", slog.Int("mb", arenaBytes/(1024*1024)))
	}
	runtime.GC() // baseline heap before the workload

	m := skipmap.New[int, int](opts...)
	start := time.Now()
	for i := 0; i < n; i++ {
		m.Put(i, i)
	}
	s := m.Stats()
	log.Info("finished inserting",
		slog.Int("len", s.Len), slog.Int("height", s.Height), slog.Int("indexes", s.Indexes),
		slog.Duration("elapsed", time.Since(start)))
	log.Info("keeping the map alive for profiling, press Ctrl+C to exit")

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("pprof server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown pprof server: %w", err)
	}
	// keep m reachable until the profile window closes
	runtime.KeepAlive(m)
	return nil
}
