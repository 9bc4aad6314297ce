package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/plugsync/internal/metrics"
	"github.com/marcus/plugsync/internal/output"
)

const metricsShutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the server and keep the selected plugin up to date",
	Long: `Runs the sync agent in the foreground. While auto sync is enabled it polls
the server every poll interval, downloads changed files into the selected
plugin's folder and clears the server's change list.

Settings saved by "plugsync settings" or "plugsync config set" in another
terminal take effect immediately.`,
	GroupID:     "sync",
	Annotations: map[string]string{"log-level": "info"},
	RunE: func(cmd *cobra.Command, args []string) error {
		once, _ := cmd.Flags().GetBool("once")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}

		var m *metrics.Metrics
		if metricsAddr != "" {
			m = metrics.New()
		}
		if err := a.startSync(syncOptions{Notifier: output.Notifier{}, Metrics: m}); err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if once {
			res, err := a.sync.CheckForUpdates(ctx)
			if res != nil {
				output.Info("%s", output.FormatResult(res))
			}
			return err
		}

		return runAgent(ctx, a, m, metricsAddr)
	},
}

// runAgent polls until ctx is done, reloading settings from disk and serving
// metrics when addr is set.
func runAgent(ctx context.Context, a *app, m *metrics.Metrics, addr string) error {
	g, gctx := errgroup.WithContext(ctx)

	a.sync.Start(gctx)
	eff := a.store.Effective()
	if !eff.Enabled {
		a.sync.Stop()
		a.logger.Info("auto sync disabled; waiting for settings change")
	}
	a.logger.Info("agent started",
		"vault", a.ws.VaultDir,
		"plugin", eff.SelectedPluginID,
		"server", eff.ServerURL,
		"interval_ms", eff.PollInterval)

	// The watch needs the settings folder even before the first save.
	if err := os.MkdirAll(filepath.Dir(a.store.Path()), 0o755); err != nil {
		return err
	}
	g.Go(func() error {
		return a.store.Watch(gctx, a.logger)
	})

	if addr != "" {
		srv := &http.Server{
			Addr:              addr,
			Handler:           metricsMux(m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("metrics listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.sync.Wait()
		return nil
	})

	err := g.Wait()
	a.logger.Info("agent stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("once", false, "Run a single sync cycle and exit")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}
