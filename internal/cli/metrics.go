package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-painpoint/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewServeMetricsCommand creates the serve-metrics command.
func NewServeMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve /metrics and /healthz until interrupted",
		Long: `Serves Prometheus metrics on metrics_addr. A background loop refreshes
the snapshot so store reachability and snapshot size stay current.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cfg, err := rootOpts.container(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			interval, _ := cmd.Flags().GetDuration("refresh-interval")
			srv := &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           NewMetricsHandler(c.Provider()),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(cmd.Context(), srv, func(ctx context.Context) {
				c.Service().ListAll(ctx, true)
			}, interval)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: metrics_addr)")
	cmd.Flags().Duration("refresh-interval", 30*time.Second, "snapshot refresh interval")
	rootOpts.mustBindPFlag("metrics_addr", cmd.Flags().Lookup("addr"))
	return cmd
}

// NewMetricsHandler serves /metrics and a /healthz endpoint reporting the
// provider's reachability.
func NewMetricsHandler(provider *store.Provider) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		stats := provider.Stats()
		w.Header().Set("Content-Type", "application/json")
		if stats.Unreachable {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"store_unreachable": stats.Unreachable,
			"retry_count":       stats.RetryCount,
			"retry_budget":      stats.RetryBudget,
		})
	})
	return r
}

func serve(ctx context.Context, srv *http.Server, refresh func(context.Context), interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("metrics listen: %w", err)
		}
		slog.Info("metrics server started", "addr", ln.Addr().String())
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	if interval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			refresh(gCtx)
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-ticker.C:
					refresh(gCtx)
				}
			}
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
