package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matrixise/tip3-raffle/internal/blockchain"
	"github.com/matrixise/tip3-raffle/internal/manifest"
)

var (
	// ErrUnknownSymbol is returned when no manifest entry carries the
	// requested symbol.
	ErrUnknownSymbol = errors.New("unknown token symbol")
	// ErrContractCall is returned when a token root getter fails during
	// resolution.
	ErrContractCall = errors.New("token root call failed")
)

// Resolver turns a root address or a symbol into a Token. Results are
// not cached: every call does fresh network work.
type Resolver struct {
	contracts Contracts
	manifests ManifestSource
}

// NewResolver creates a resolver.
func NewResolver(contracts Contracts, manifests ManifestSource) *Resolver {
	return &Resolver{contracts: contracts, manifests: manifests}
}

// Resolve treats identifier as a root address when it has the
// workchain:hex form, and as a manifest symbol otherwise.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Token, error) {
	if blockchain.LooksLikeAddress(identifier) {
		return r.resolveByAddress(ctx, identifier)
	}
	return r.resolveBySymbol(ctx, identifier)
}

func (r *Resolver) resolveByAddress(ctx context.Context, identifier string) (Token, error) {
	root, err := blockchain.ParseAddress(identifier)
	if err != nil {
		return Token{}, err
	}

	decimals, err := r.contracts.RootDecimals(ctx, root)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s: %v", ErrContractCall, root, err)
	}
	symbol, err := r.contracts.RootSymbol(ctx, root)
	if err != nil {
		return Token{}, fmt.Errorf("%w: %s: %v", ErrContractCall, root, err)
	}

	slog.Debug("Token resolved from root", "root", root, "symbol", symbol, "decimals", decimals)
	return Token{Symbol: symbol, Decimals: decimals, Root: root}, nil
}

func (r *Resolver) resolveBySymbol(ctx context.Context, symbol string) (Token, error) {
	if symbol == "" {
		return Token{}, fmt.Errorf("%w: empty identifier", ErrUnknownSymbol)
	}

	m, err := r.manifests.Fetch(ctx)
	if err != nil {
		return Token{}, err
	}

	entry, ok, err := m.Lookup(symbol)
	if err != nil {
		return Token{}, err
	}
	if !ok {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}

	if entry.Address == nil || *entry.Address == "" {
		return Token{}, fmt.Errorf("%w: entry %q has no address", manifest.ErrMalformed, symbol)
	}
	root, err := blockchain.ParseAddress(*entry.Address)
	if err != nil {
		return Token{}, fmt.Errorf("%w: entry %q: %v", manifest.ErrMalformed, symbol, err)
	}

	var decimals uint8
	switch {
	case entry.Decimals == nil:
		// Some entries omit decimals; the root knows them.
		decimals, err = r.contracts.RootDecimals(ctx, root)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %s: %v", ErrContractCall, root, err)
		}
	case *entry.Decimals < 0 || *entry.Decimals > 255:
		return Token{}, fmt.Errorf("%w: entry %q: decimals %d out of range", manifest.ErrMalformed, symbol, *entry.Decimals)
	default:
		decimals = uint8(*entry.Decimals)
	}

	slog.Debug("Token resolved from manifest", "symbol", entry.Symbol, "root", root, "decimals", decimals)
	return Token{Symbol: entry.Symbol, Decimals: decimals, Root: root}, nil
}
