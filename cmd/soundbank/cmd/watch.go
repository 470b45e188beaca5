package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/aweris/soundbank/internal/metrics"
)

const pollInterval = 100 * time.Millisecond

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the bank synchronized",
	Long:  "Run a tick loop that applies finished work every 100ms and starts a synchronize every --interval. Optionally serves Prometheus metrics.",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().Duration("interval", 0, "time between synchronizations (default 5m)")
	watchCmd.Flags().String("metrics-addr", "", "serve /metrics on this address (e.g. :9102)")
	viper.BindPFlag("interval", watchCmd.Flags().Lookup("interval"))
	viper.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr"))
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) (err error) {
	e, err := openBank()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := e.cfg.CheckSource(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if addr := e.cfg.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
		e.log.Info("serving metrics", zap.String("addr", addr))
	}

	e.bank.RefreshIndex(ctx)

	interval := e.cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	// The first sync starts on the first tick after the initial refresh is applied.
	next := time.Now()

	e.log.Info("watching", zap.String("dir", e.bank.Dir()), zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			e.log.Info("shutting down")
			return nil
		case now := <-poll.C:
			e.bank.Poll()
			if !now.Before(next) && !e.bank.Busy() {
				if e.bank.Synchronize(ctx) != nil {
					next = now.Add(interval)
				}
			}
		}
	}
}
