// Package token resolves TIP-3 token descriptors and reads owner
// balances through the gateway session.
package token

import (
	"context"
	"fmt"

	"github.com/matrixise/tip3-raffle/internal/manifest"
)

// Token describes a resolved fungible token. It is immutable and only
// lives for the duration of one scan.
type Token struct {
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	Root     string `json:"rootAddress"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s (%s, %d decimals)", t.Symbol, t.Root, t.Decimals)
}

// Contracts is the subset of the gateway session used by this package.
// *blockchain.Client implements it.
type Contracts interface {
	RootDecimals(ctx context.Context, root string) (uint8, error)
	RootSymbol(ctx context.Context, root string) (string, error)
	WalletOf(ctx context.Context, root, owner string) (string, error)
	WalletBalance(ctx context.Context, wallet string) (string, error)
}

// ManifestSource supplies the token list. *manifest.Client implements it.
type ManifestSource interface {
	Fetch(ctx context.Context) (*manifest.Manifest, error)
}
