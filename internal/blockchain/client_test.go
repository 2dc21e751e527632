package blockchain_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/tip3-raffle/internal/blockchain"
	"github.com/matrixise/tip3-raffle/internal/blockchain/gatewaytest"
)

func newClient(t *testing.T, gw *gatewaytest.Gateway, opts ...blockchain.Option) *blockchain.Client {
	t.Helper()
	client, err := blockchain.NewClient(context.Background(), []string{gw.URL}, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestConnect(t *testing.T) {
	t.Run("basic already granted", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		client := newClient(t, gw)

		state, err := client.Connect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "localnet", state.SelectedConnection)
		assert.True(t, state.Permissions.Basic)
	})

	t.Run("permission requested when missing", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		gw.RequirePermissionRequest()
		client := newClient(t, gw)

		state, err := client.Connect(context.Background())
		require.NoError(t, err)
		assert.True(t, state.Permissions.Basic)
	})

	t.Run("permission denied", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		gw.DenyPermissions()
		client := newClient(t, gw)

		_, err := client.Connect(context.Background())
		assert.ErrorIs(t, err, blockchain.ErrPermissionDenied)
	})
}

func TestTokenGetters(t *testing.T) {
	gw := gatewaytest.Start(t)
	root := gatewaytest.Address("root")
	owner := gatewaytest.Address("owner")
	gw.AddRoot(root, "USDT", 6)
	gw.SetBalance(root, owner, "1500000")

	client := newClient(t, gw)
	ctx := context.Background()

	decimals, err := client.RootDecimals(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)

	symbol, err := client.RootSymbol(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, "USDT", symbol)

	wallet, err := client.WalletOf(ctx, root, owner)
	require.NoError(t, err)
	assert.Equal(t, gatewaytest.WalletAddress(root, owner), wallet)

	balance, err := client.WalletBalance(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, "1500000", balance)

	calls := gw.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, blockchain.MethodBalance, calls[3].Method)
	assert.Equal(t, wallet, calls[3].Address)
}

func TestGetterOutputShapes(t *testing.T) {
	tests := []struct {
		name      string
		decimals  string
		want      uint8
		wantError bool
	}{
		{name: "string encoded", decimals: `"9"`, want: 9},
		{name: "number encoded", decimals: `18`, want: 18},
		{name: "negative", decimals: `"-1"`, wantError: true},
		{name: "fractional", decimals: `6.5`, wantError: true},
		{name: "out of range", decimals: `256`, wantError: true},
		{name: "null", decimals: `null`, wantError: true},
		{name: "boolean", decimals: `true`, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gatewaytest.Start(t)
			root := gatewaytest.Address("root")
			gw.AddRawRoot(root, json.RawMessage(`"TKN"`), json.RawMessage(tt.decimals))
			client := newClient(t, gw)

			got, err := client.RootDecimals(context.Background(), root)
			if tt.wantError {
				assert.ErrorIs(t, err, blockchain.ErrMalformedOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalletBalanceNumberEncoded(t *testing.T) {
	gw := gatewaytest.Start(t)
	root := gatewaytest.Address("root")
	owner := gatewaytest.Address("owner")
	gw.AddRoot(root, "WEVER", 9)
	gw.SetRawBalance(root, owner, json.RawMessage(`123456789012345678901234567890`))
	client := newClient(t, gw)

	got, err := client.WalletBalance(context.Background(), gatewaytest.WalletAddress(root, owner))
	require.NoError(t, err)
	assert.Equal(t, "123456789012345678901234567890", got)
}

func TestCallErrors(t *testing.T) {
	t.Run("undeployed account is an execution error", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		client := newClient(t, gw)

		_, err := client.WalletBalance(context.Background(), gatewaytest.Address("nobody"))
		require.Error(t, err)
		assert.True(t, blockchain.IsExecutionError(err))
		assert.True(t, client.EndpointsHealth()[gw.URL], "answers do not mark the endpoint unhealthy")
	})

	t.Run("non-zero exit code", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		root := gatewaytest.Address("root")
		gw.AddRoot(root, "TKN", 9)
		gw.SetExitCode(root, 60)
		client := newClient(t, gw)

		_, err := client.RootSymbol(context.Background(), root)
		var execErr *blockchain.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 60, execErr.Code)
		assert.Equal(t, blockchain.MethodSymbol, execErr.Method)
	})

	t.Run("timeout marks the endpoint unhealthy", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		root := gatewaytest.Address("root")
		owner := gatewaytest.Address("slow")
		gw.AddRoot(root, "TKN", 9)
		gw.SetDelay(owner, time.Second)
		client := newClient(t, gw, blockchain.WithTimeout(50*time.Millisecond))

		_, err := client.WalletOf(context.Background(), root, owner)
		require.Error(t, err)
		assert.False(t, blockchain.IsExecutionError(err))
		assert.False(t, client.EndpointsHealth()[gw.URL])

		_, err = client.RootSymbol(context.Background(), root)
		assert.ErrorIs(t, err, blockchain.ErrNoHealthyEndpoint)
	})
}

type recordingObserver struct {
	methods []string
}

func (o *recordingObserver) ObserveRPCCall(method string, _ time.Duration, _ error) {
	o.methods = append(o.methods, method)
}

func TestObserver(t *testing.T) {
	gw := gatewaytest.Start(t)
	root := gatewaytest.Address("root")
	gw.AddRoot(root, "TKN", 9)

	obs := &recordingObserver{}
	client := newClient(t, gw, blockchain.WithObserver(obs))

	_, err := client.RootSymbol(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"ever_runLocal"}, obs.methods)
}

func TestNewClientFailover(t *testing.T) {
	t.Run("no URLs", func(t *testing.T) {
		_, err := blockchain.NewClient(context.Background(), nil)
		assert.Error(t, err)
	})

	t.Run("all endpoints down", func(t *testing.T) {
		_, err := blockchain.NewClient(context.Background(), []string{"http://127.0.0.1:1"})
		assert.ErrorIs(t, err, blockchain.ErrNoHealthyEndpoint)
	})

	t.Run("one healthy endpoint is enough", func(t *testing.T) {
		gw := gatewaytest.Start(t)
		client, err := blockchain.NewClient(context.Background(), []string{"http://127.0.0.1:1", gw.URL})
		require.NoError(t, err)
		defer client.Close()

		health := client.EndpointsHealth()
		assert.False(t, health["http://127.0.0.1:1"])
		assert.True(t, health[gw.URL])

		url, err := client.Ping(context.Background())
		require.NoError(t, err)
		assert.Equal(t, gw.URL, url)
	})
}

func TestParseAddress(t *testing.T) {
	valid := gatewaytest.Address("x")

	tests := []struct {
		name      string
		address   string
		want      string
		wantError bool
	}{
		{name: "canonical", address: valid, want: valid},
		{name: "uppercase hex is normalized", address: strings.ToUpper(valid), want: valid},
		{name: "masterchain", address: "-1:" + strings.ToUpper(strings.Repeat("ab", 32)), want: "-1:" + strings.Repeat("ab", 32)},
		{name: "short account id", address: "0:111", wantError: true},
		{name: "no workchain", address: strings.TrimPrefix(valid, "0:"), wantError: true},
		{name: "symbol", address: "USDT", wantError: true},
		{name: "empty", address: "", wantError: true},
		{name: "non hex", address: "0:" + strings.Repeat("z", 64), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := blockchain.ParseAddress(tt.address)
			if tt.wantError {
				assert.ErrorIs(t, err, blockchain.ErrMalformedAddress)
				assert.False(t, blockchain.IsAddress(tt.address))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLooksLikeAddress(t *testing.T) {
	assert.True(t, blockchain.LooksLikeAddress("0:abc"))
	assert.True(t, blockchain.LooksLikeAddress("-1:abc"))
	assert.False(t, blockchain.LooksLikeAddress("USDT"))
	assert.False(t, blockchain.LooksLikeAddress("0:xyz"))
	assert.False(t, blockchain.LooksLikeAddress("a:abc"))
}
