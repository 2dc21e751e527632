package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixise/tip3-raffle/internal/raffle"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration and scan request",
	Long: `Validate the configuration file syntax and values, and the scan request
when one is configured or passed with --request, without contacting the
gateway.`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&requestSource, "request", "", "scan request to validate: file path, - for stdin, or http(s) URL")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	slog.Info("✓ Configuration valid",
		"rpc_urls", len(cfg.RPCUrls),
		"manifest_url", cfg.ManifestURL,
		"interval", cfg.Interval,
		"log_level", cfg.LogLevel,
	)

	source := requestSource
	if source == "" {
		source = cfg.Request
	}
	if source == "" {
		return nil
	}

	req, err := raffle.LoadRequest(cmd.Context(), source, nil)
	if err != nil {
		slog.Error("Scan request validation failed", "source", source, "error", err)
		return err
	}

	slog.Info("✓ Scan request valid",
		"token", req.TokenIdentifier(),
		"min_balance", req.Filter.Balance.String(),
		"addresses", len(req.List),
	)
	return nil
}
