package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tagsync/internal/inspect"
	"tagsync/internal/watch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	watchDebounce    time.Duration
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reindex changed Java files and re-check them until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		refresher := watch.NewRefresher(a.ws, a.inspector, func(ds []inspect.Diagnostic) {
			if len(ds) == 0 {
				fmt.Fprintln(out, render(styles.Success, "no problems in changed files"))
				return
			}
			printDiagnostics(out, ds)
		}, a.logger)

		w, err := watch.New(a.ws.Root(), refresher.Handle, watch.Options{
			Debounce:   watchDebounce,
			IgnoreDirs: a.cfg.Project.Ignore,
			Logger:     a.logger,
		})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			// the metrics server stops with the watcher
			defer cancel()
			return w.Run(ctx)
		})
		if watchMetricsAddr != "" {
			srv := &http.Server{Addr: watchMetricsAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
			g.Go(func() error {
				a.logger.Info("serving metrics", zap.String("addr", watchMetricsAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return srv.Shutdown(shutdown)
			})
		}

		title(out, "watching "+a.ws.Root())
		return g.Wait()
	},
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 300*time.Millisecond, "Quiet period before a batch of changes is handled")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")
}
