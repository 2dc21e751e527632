package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/matrixise/tip3-raffle/internal/api"
	"github.com/matrixise/tip3-raffle/internal/blockchain"
	"github.com/matrixise/tip3-raffle/internal/config"
	"github.com/matrixise/tip3-raffle/internal/health"
	"github.com/matrixise/tip3-raffle/internal/manifest"
	"github.com/matrixise/tip3-raffle/internal/metrics"
	"github.com/matrixise/tip3-raffle/internal/raffle"
	"github.com/matrixise/tip3-raffle/internal/token"
)

// app is the wiring shared by the commands: one gateway session, the
// token resolver and the balance oracle.
type app struct {
	cfg      *config.Config
	client   *blockchain.Client
	metrics  *metrics.Metrics
	resolver *token.Resolver
	oracle   *token.Oracle
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	m := metrics.New("")

	client, err := blockchain.NewClient(ctx, cfg.RPCUrls,
		blockchain.WithTimeout(cfg.RPCTimeout),
		blockchain.WithObserver(m),
	)
	if err != nil {
		slog.Error("Failed to connect to gateway", "error", err)
		return nil, err
	}

	state, err := client.Connect(ctx)
	if err != nil {
		client.Close()
		slog.Error("Gateway session refused", "error", err)
		return nil, err
	}

	if len(cfg.RPCUrls) == 1 {
		slog.Info("Gateway connection established", "endpoint", cfg.RPCUrls[0])
	} else {
		slog.Info("Gateway connection established with failover",
			"endpoints", len(cfg.RPCUrls),
			"primary", cfg.RPCUrls[0])
	}
	slog.Info("Selected connection", "network", state.SelectedConnection, "version", state.Version)

	manifests := manifest.NewClient(cfg.ManifestURL, cfg.ManifestTimeout)

	return &app{
		cfg:      cfg,
		client:   client,
		metrics:  m,
		resolver: token.NewResolver(client, manifests),
		oracle:   token.NewOracle(client, m, slog.Default()),
	}, nil
}

func (a *app) Close() {
	a.client.Close()
}

func (a *app) runner(opts ...raffle.Option) *raffle.Runner {
	opts = append([]raffle.Option{
		raffle.WithMetrics(a.metrics),
		raffle.WithLogger(slog.Default()),
	}, opts...)
	return raffle.NewRunner(a.resolver, a.oracle, opts...)
}

// serveHTTP runs the API until ctx is done.
func (a *app) serveHTTP(ctx context.Context, runner *raffle.Runner, checker *health.Checker) error {
	port := a.cfg.HTTPPort
	if port == 0 {
		port = 8080
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", port),
		Handler: (&api.Server{
			Scanner:  runner,
			Resolver: a.resolver,
			Health:   checker,
			Metrics:  a.metrics,
			Logger:   slog.Default(),
		}).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "port", port, "endpoints", "/health /metrics /tokens /scans")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	return nil
}
