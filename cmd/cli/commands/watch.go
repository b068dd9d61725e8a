package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsistake/dsistake/internal/config"
	"github.com/dsistake/dsistake/internal/logging"
	"github.com/dsistake/dsistake/internal/metrics"
	"github.com/dsistake/dsistake/internal/util"
	"github.com/dsistake/dsistake/internal/wallet"
)

var (
	watchRefresh     time.Duration
	watchMetricsAddr string
	watchConnect     bool
)

// NewWatchCmd creates the live dashboard command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of stats and stakes",
		Long: `Display a live dashboard of protocol stats and, when connected, your stakes.

Global stats are polled on the configured interval (client.poll_interval);
--refresh only redraws the screen, so stakes that unlock show as claimable
without a new read. Adding or removing a
keystore file switches or drops the connected account; changing the
network in the config file reloads everything.

With --metrics-addr the same figures are served for Prometheus at /metrics.

Press Ctrl+C to exit.`,
		RunE: runWatch,
	}

	cmd.Flags().DurationVarP(&watchRefresh, "refresh", "r", 5*time.Second, "Screen refresh interval")
	cmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (default: metrics.listen_addr)")
	cmd.Flags().BoolVar(&watchConnect, "connect", false, "Connect the wallet even without a cached session")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	collector := metrics.NewCollector()

	app, err := startWatchApp(ctx, collector)
	if err != nil {
		return err
	}
	defer func() { app.Close() }()

	addr := watchMetricsAddr
	if addr == "" {
		addr = app.Config.Metrics.ListenAddr
	}
	if addr != "" {
		srv := serveMetrics(addr, collector)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if err := app.Config.EnsureDirectories(); err != nil {
		return err
	}
	var events <-chan wallet.Event
	watcher, err := wallet.NewWatcher(app.Config.Wallet.KeystoreDir, ConfigPath, configChainID)
	if err != nil {
		Warning(fmt.Sprintf("Wallet changes will not be detected: %v", err))
	} else {
		watcher.Start(ctx)
		defer watcher.Close()
		events = watcher.Events()
	}

	ticker := time.NewTicker(watchRefresh)
	defer ticker.Stop()

	displayDashboard(app)
	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nExiting watch...")
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Kind == wallet.ChainChanged {
				app.Close()
				reloaded, err := startWatchApp(ctx, collector)
				if err != nil {
					return err
				}
				app = reloaded
			} else if _, err := app.Session.HandleEvent(ctx, ev); err != nil {
				logging.Warn("wallet event handling failed", "kind", ev.Kind.String(), logging.Err(err))
			}
			displayDashboard(app)
		case <-ticker.C:
			redraw(app)
		}
	}
}

// startWatchApp builds an App, resumes or opens the wallet connection and
// starts stats polling.
func startWatchApp(ctx context.Context, collector *metrics.Collector) (*App, error) {
	app, err := newApp(ctx, withCollector(collector))
	if err != nil {
		return nil, err
	}

	connected, err := app.resume(ctx)
	if err != nil {
		logging.Warn("cached session could not be resumed", logging.Err(err))
	}
	if !connected && watchConnect {
		if err := app.connect(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	app.Stats.Start(ctx)
	return app, nil
}

func configChainID() (int64, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return 0, err
	}
	return cfg.Network.ChainID, nil
}

func serveMetrics(addr string, m *metrics.Collector) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	util.SafeGoWithName("metrics-server", func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", "addr", addr, logging.Err(err))
		}
	})
	return srv
}

// redraw re-renders from cached state. Claimability is re-derived against
// the clock; the ledger itself only reloads on connect or after an action,
// and global stats follow the poller.
func redraw(app *App) {
	displayDashboard(app)
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func displayDashboard(app *App) {
	now := time.Now()
	snap := app.Session.Snapshot()

	if isTTY() {
		clearScreen()
	}
	fmt.Println(Logo() + " " + StyleMuted.Render(app.Network.Name))
	fmt.Println(StatusBox("DSI Staking", statsFields(snap.Stats)))

	if snap.Connected {
		fields := append(accountFields(app, snap),
			[2]string{"Share", FormatPercent(snap.SharePercent)},
			[2]string{"Tier", tierLabel(snap.Tier)},
		)
		fmt.Println(StatusBox("Your position", fields))
		fmt.Println(renderStakes(snap.Ledger, now, false))
	} else {
		fmt.Println(StatusBadge("disconnected") + " " + Hint("dsistake connect"))
	}

	fmt.Println(Hint(fmt.Sprintf("Last updated %s. Press Ctrl+C to exit.", now.Format("2006-01-02 15:04:05"))))
}
