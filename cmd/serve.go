package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixise/tip3-raffle/internal/health"
	"github.com/matrixise/tip3-raffle/internal/raffle"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve token resolution and on-demand scans over HTTP:

  GET  /health               gateway and draw health
  GET  /metrics              Prometheus metrics
  GET  /tokens/{identifier}  resolve a symbol or root address
  POST /scans                run a scan request, JSON result
  GET  /scans/ws             stream a scan over a websocket`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runner := a.runner(raffle.WithSink(raffle.LogSink{Logger: slog.Default()}))
	return a.serveHTTP(ctx, runner, health.NewChecker(a.client, 0))
}
