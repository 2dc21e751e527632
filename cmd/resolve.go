package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <symbol|root-address>",
	Short: "Resolve a TIP-3 token",
	Long: `Resolve a token symbol through the assets manifest, or a root address
through the token root contract, and print its symbol, decimals and root.`,
	Args: cobra.ExactArgs(1),
	RunE: resolveToken,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
}

func resolveToken(cmd *cobra.Command, args []string) error {
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

	tok, err := a.resolver.Resolve(ctx, args[0])
	if err != nil {
		return fmt.Errorf("resolve token %q: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if output == "json" {
		return json.NewEncoder(out).Encode(tok)
	}
	fmt.Fprintf(out, "Symbol:   %s\nDecimals: %d\nRoot:     %s\n", tok.Symbol, tok.Decimals, tok.Root)
	return nil
}
