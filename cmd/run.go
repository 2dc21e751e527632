package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matrixise/tip3-raffle/internal/health"
	"github.com/matrixise/tip3-raffle/internal/raffle"
	"github.com/matrixise/tip3-raffle/internal/scheduler"
)

var (
	requestSource string
	interval      string
	once          bool
	seed          uint64
	output        string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan balances and draw a winner",
	Long: `Read the scan request, check the token balance of every listed address
and draw one address among those holding at least the threshold.

The request is a JSON document {"filter": {"symbol" | "rootAddress",
"balance"}, "list": [addresses]} read from a file, "-" (stdin) or an
http(s) URL. With an interval the draw repeats on a clock-aligned
schedule and the HTTP API is served alongside.`,
	RunE: runRaffle,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&requestSource, "request", "", "scan request: file path, - for stdin, or http(s) URL (default: request from config)")
	runCmd.Flags().StringVar(&interval, "interval", "", "draw interval - duration (5m, 1h) or cron (\"*/5 * * * *\") - empty for a single draw")
	runCmd.Flags().BoolVar(&once, "once", false, "draw once and exit even if an interval is configured")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible draw")
	runCmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
}

func runRaffle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", output)
	}

	source := requestSource
	if source == "" {
		source = cfg.Request
	}
	if source == "" {
		return fmt.Errorf("no scan request: pass --request or set request in the config")
	}

	if interval != "" {
		cfg.Interval = interval
	}
	if once {
		cfg.Interval = ""
	}
	if err := scheduler.ValidateScheduleInterval(cfg.Interval); err != nil {
		return fmt.Errorf("invalid interval %q: %w", cfg.Interval, err)
	}

	slog.Info("Configuration loaded",
		"config_path", cfgFile,
		"request", source,
		"interval", cfg.Interval,
		"endpoints", len(cfg.RPCUrls),
	)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var opts []raffle.Option
	if cmd.Flags().Changed("seed") {
		opts = append(opts, raffle.WithPicker(raffle.SeededPicker(seed)))
	}

	if !cfg.Daemon() {
		return drawOnce(ctx, cmd.OutOrStdout(), a, source, opts)
	}
	return runDaemon(ctx, a, source, opts)
}

func drawOnce(ctx context.Context, out io.Writer, a *app, source string, opts []raffle.Option) error {
	req, err := raffle.LoadRequest(ctx, source, nil)
	if err != nil {
		slog.Error("Scan request rejected", "source", source, "error", err)
		return err
	}

	if output == "text" {
		opts = append(opts, raffle.WithSink(raffle.NewTextSink(out)))
	}

	result, err := a.runner(opts...).Run(ctx, req)
	if err != nil {
		slog.Error("Draw failed", "error", err)
		return err
	}

	if output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return nil
}

func runDaemon(ctx context.Context, a *app, source string, opts []raffle.Option) error {
	runInterval := a.cfg.Interval
	slog.Info("Starting daemon mode with scheduler",
		"interval", runInterval,
		"cron", a.cfg.IsCronExpression(),
		"timezone", a.cfg.GetTimezone().String(),
		"run_immediately", a.cfg.ShouldRunImmediately())

	checker := health.NewChecker(a.client, scheduler.ExpectedInterval(runInterval))
	runner := a.runner(append(opts, raffle.WithSink(raffle.LogSink{Logger: slog.Default()}))...)

	// The request is reloaded on every draw so a remote list can change
	// between draws.
	draw := func(ctx context.Context) error {
		req, err := raffle.LoadRequest(ctx, source, nil)
		if err != nil {
			checker.RecordRun("", err)
			return err
		}
		result, err := runner.Run(ctx, req)
		if err != nil {
			checker.RecordRun("", err)
			return err
		}
		checker.RecordRun(result.RunID, nil)
		return nil
	}

	sched, err := scheduler.New(ctx, scheduler.Config{
		Interval:       runInterval,
		Timezone:       a.cfg.GetTimezone(),
		RunImmediately: a.cfg.ShouldRunImmediately(),
		Logger:         slog.Default(),
	}, draw)
	if err != nil {
		slog.Error("Failed to create scheduler", "error", err)
		return fmt.Errorf("scheduler creation failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.serveHTTP(gctx, runner, checker)
	})

	sched.Start()
	slog.Info("Daemon mode started with clock-aligned scheduling")

	<-gctx.Done()
	slog.Info("Shutdown requested, stopping daemon")
	if err := sched.Stop(); err != nil {
		slog.Error("Scheduler shutdown error", "error", err)
	}
	return g.Wait()
}
