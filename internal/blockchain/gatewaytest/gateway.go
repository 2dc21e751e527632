// Package gatewaytest runs an in-process TIP-3 gateway for tests.
//
// The gateway speaks the same JSON-RPC methods as a real provider bridge
// and is served by go-ethereum's rpc.Server behind httptest.
package gatewaytest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/matrixise/tip3-raffle/internal/blockchain"
)

// NotDeployedCode is the JSON-RPC error code returned for calls on
// accounts that do not exist.
const NotDeployedCode = -32010

// Call records one runLocal invocation.
type Call struct {
	Address string
	Method  string
}

type root struct {
	symbol   json.RawMessage
	decimals json.RawMessage
}

// Gateway is a scriptable fake. The zero value is not usable; call Start.
type Gateway struct {
	URL string

	mu              sync.Mutex
	roots           map[string]root
	balances        map[string]json.RawMessage
	exitCodes       map[string]int
	delays          map[string]time.Duration
	calls           []Call
	denyPermissions bool
	grantedUpfront  bool
}

// Start launches a gateway; it is shut down when the test ends.
func Start(t testing.TB) *Gateway {
	t.Helper()

	g := &Gateway{
		roots:          make(map[string]root),
		balances:       make(map[string]json.RawMessage),
		exitCodes:      make(map[string]int),
		delays:         make(map[string]time.Duration),
		grantedUpfront: true,
	}

	srv := rpc.NewServer()
	if err := srv.RegisterName("ever", &service{g: g}); err != nil {
		t.Fatalf("register gateway service: %v", err)
	}
	httpSrv := httptest.NewServer(srv)
	g.URL = httpSrv.URL

	t.Cleanup(func() {
		httpSrv.Close()
		srv.Stop()
	})
	return g
}

// Address builds a valid raw address from a short tag, e.g. "111".
func Address(tag string) string {
	sum := sha256.Sum256([]byte(tag))
	return "0:" + hex.EncodeToString(sum[:])
}

// WalletAddress is the wallet the gateway derives for owner under root.
func WalletAddress(rootAddr, owner string) string {
	sum := sha256.Sum256([]byte("wallet:" + rootAddr + ":" + owner))
	return "0:" + hex.EncodeToString(sum[:])
}

// AddRoot deploys a token root.
func (g *Gateway) AddRoot(addr, symbol string, decimals uint8) {
	g.AddRawRoot(addr, mustJSON(symbol), mustJSON(fmt.Sprint(decimals)))
}

// AddRawRoot deploys a token root whose getters return the given JSON.
func (g *Gateway) AddRawRoot(addr string, symbol, decimals json.RawMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roots[addr] = root{symbol: symbol, decimals: decimals}
}

// SetBalance deploys the wallet of owner with a raw balance string.
func (g *Gateway) SetBalance(rootAddr, owner, raw string) {
	g.SetRawBalance(rootAddr, owner, mustJSON(raw))
}

// SetRawBalance deploys the wallet of owner answering balance() with
// the given JSON value.
func (g *Gateway) SetRawBalance(rootAddr, owner string, raw json.RawMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balances[WalletAddress(rootAddr, owner)] = raw
}

// SetExitCode makes every getter on addr exit with code.
func (g *Gateway) SetExitCode(addr string, code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exitCodes[addr] = code
}

// SetDelay slows down walletOf for owner.
func (g *Gateway) SetDelay(owner string, d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.delays[owner] = d
}

// DenyPermissions makes requestPermissions refuse the basic permission.
func (g *Gateway) DenyPermissions() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.denyPermissions = true
	g.grantedUpfront = false
}

// RequirePermissionRequest reports basic as not yet granted.
func (g *Gateway) RequirePermissionRequest() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.grantedUpfront = false
}

// Calls returns the runLocal invocations seen so far.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

type notDeployedError struct {
	address string
}

func (e notDeployedError) Error() string  { return "account " + e.address + " is not deployed" }
func (e notDeployedError) ErrorCode() int { return NotDeployedCode }

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type service struct {
	g *Gateway
}

func (s *service) GetProviderState(ctx context.Context) (blockchain.ProviderState, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	return blockchain.ProviderState{
		Version:            "gatewaytest",
		SelectedConnection: "localnet",
		Permissions:        blockchain.Permissions{Basic: s.g.grantedUpfront},
	}, nil
}

func (s *service) RequestPermissions(ctx context.Context, req permissionsRequest) (blockchain.Permissions, error) {
	s.g.mu.Lock()
	defer s.g.mu.Unlock()
	for _, p := range req.Permissions {
		if p == "basic" && !s.g.denyPermissions {
			return blockchain.Permissions{Basic: true}, nil
		}
	}
	return blockchain.Permissions{}, nil
}

func (s *service) RunLocal(ctx context.Context, req blockchain.RunLocalRequest) (*blockchain.RunLocalResponse, error) {
	method := req.FunctionCall.Method

	s.g.mu.Lock()
	s.g.calls = append(s.g.calls, Call{Address: req.Address, Method: method})
	code, hasCode := s.g.exitCodes[req.Address]
	r, isRoot := s.g.roots[req.Address]
	balance, isWallet := s.g.balances[req.Address]
	owner, _ := req.FunctionCall.Params["walletOwner"].(string)
	delay := s.g.delays[owner]
	s.g.mu.Unlock()

	if hasCode {
		return &blockchain.RunLocalResponse{Code: code}, nil
	}

	switch {
	case isRoot && method == blockchain.MethodDecimals:
		return output(r.decimals), nil
	case isRoot && method == blockchain.MethodSymbol:
		return output(r.symbol), nil
	case isRoot && method == blockchain.MethodWalletOf:
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return output(mustJSON(WalletAddress(req.Address, owner))), nil
	case isWallet && method == blockchain.MethodBalance:
		return output(balance), nil
	case isRoot || isWallet:
		return nil, fmt.Errorf("method %s not found", method)
	default:
		return nil, notDeployedError{address: req.Address}
	}
}

func output(value json.RawMessage) *blockchain.RunLocalResponse {
	return &blockchain.RunLocalResponse{
		Output: map[string]json.RawMessage{"value0": value},
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
