package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TokenRoot and TokenWallet ABI subsets (TIP-3.1). Only the read-only
// responsible getters used for balance lookups are declared.
const tokenRootABI = `{
	"ABI version": 2,
	"version": "2.2",
	"header": ["pubkey", "time", "expire"],
	"functions": [
		{"name":"decimals","inputs":[{"name":"answerId","type":"uint32"}],"outputs":[{"name":"value0","type":"uint8"}]},
		{"name":"symbol","inputs":[{"name":"answerId","type":"uint32"}],"outputs":[{"name":"value0","type":"string"}]},
		{"name":"walletOf","inputs":[{"name":"answerId","type":"uint32"},{"name":"walletOwner","type":"address"}],"outputs":[{"name":"value0","type":"address"}]}
	],
	"data": [],
	"events": []
}`

const tokenWalletABI = `{
	"ABI version": 2,
	"version": "2.2",
	"header": ["pubkey", "time", "expire"],
	"functions": [
		{"name":"balance","inputs":[{"name":"answerId","type":"uint32"}],"outputs":[{"name":"value0","type":"uint128"}]}
	],
	"data": [],
	"events": []
}`

const (
	MethodDecimals = "decimals"
	MethodSymbol   = "symbol"
	MethodWalletOf = "walletOf"
	MethodBalance  = "balance"
)

// ErrMalformedOutput is returned when a getter answers with fields of
// the wrong shape.
var ErrMalformedOutput = errors.New("malformed contract output")

// ExecutionError reports a getter that ran but exited with a non-zero
// TVM code, typically because the account is not deployed.
type ExecutionError struct {
	Address string
	Method  string
	Code    int
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s on %s exited with code %d", e.Method, e.Address, e.Code)
}

// RootDecimals calls decimals() on a token root.
func (c *Client) RootDecimals(ctx context.Context, root string) (uint8, error) {
	out, err := c.Call(ctx, root, tokenRootABI, MethodDecimals, answerParams(nil))
	if err != nil {
		return 0, err
	}
	s, err := scalarField(out, "value0")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", MethodDecimals, err)
	}
	d, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %q is not a uint8", MethodDecimals, ErrMalformedOutput, s)
	}
	return uint8(d), nil
}

// RootSymbol calls symbol() on a token root.
func (c *Client) RootSymbol(ctx context.Context, root string) (string, error) {
	out, err := c.Call(ctx, root, tokenRootABI, MethodSymbol, answerParams(nil))
	if err != nil {
		return "", err
	}
	s, err := stringField(out, "value0")
	if err != nil {
		return "", fmt.Errorf("%s: %w", MethodSymbol, err)
	}
	return s, nil
}

// WalletOf derives the token wallet address of owner from a token root.
func (c *Client) WalletOf(ctx context.Context, root, owner string) (string, error) {
	out, err := c.Call(ctx, root, tokenRootABI, MethodWalletOf, answerParams(map[string]any{
		"walletOwner": owner,
	}))
	if err != nil {
		return "", err
	}
	s, err := stringField(out, "value0")
	if err != nil {
		return "", fmt.Errorf("%s: %w", MethodWalletOf, err)
	}
	wallet, err := ParseAddress(s)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %v", MethodWalletOf, ErrMalformedOutput, err)
	}
	return wallet, nil
}

// WalletBalance calls balance() on a token wallet and returns the raw
// integer as a decimal string.
func (c *Client) WalletBalance(ctx context.Context, wallet string) (string, error) {
	out, err := c.Call(ctx, wallet, tokenWalletABI, MethodBalance, answerParams(nil))
	if err != nil {
		return "", err
	}
	s, err := scalarField(out, "value0")
	if err != nil {
		return "", fmt.Errorf("%s: %w", MethodBalance, err)
	}
	return s, nil
}

func answerParams(extra map[string]any) map[string]any {
	params := map[string]any{"answerId": 0}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

func stringField(out map[string]json.RawMessage, name string) (string, error) {
	raw, ok := out[name]
	if !ok || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedOutput, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedOutput, name)
	}
	return s, nil
}

// scalarField reads an integer output that providers encode either as a
// JSON string or as a bare JSON number.
func scalarField(out map[string]json.RawMessage, name string) (string, error) {
	raw, ok := out[name]
	if !ok || string(raw) == "null" {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedOutput, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: %s is neither string nor number", ErrMalformedOutput, name)
	}
	return n.String(), nil
}
