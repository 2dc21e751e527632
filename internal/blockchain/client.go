package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

const defaultRPCTimeout = 10 * time.Second

// Gateway JSON-RPC methods. The gateway mirrors the inpage provider API:
// capability discovery, permission request and local getter execution.
const (
	rpcGetProviderState   = "ever_getProviderState"
	rpcRequestPermissions = "ever_requestPermissions"
	rpcRunLocal           = "ever_runLocal"
	permissionBasic       = "basic"
)

// ErrPermissionDenied is returned when the gateway refuses the basic
// permission needed for read-only calls.
var ErrPermissionDenied = errors.New("permission denied by provider")

// ProviderState is the capability report of a gateway.
type ProviderState struct {
	Version            string      `json:"version"`
	SelectedConnection string      `json:"selectedConnection"`
	Permissions        Permissions `json:"permissions"`
}

// Permissions granted to this session.
type Permissions struct {
	Basic bool `json:"basic"`
}

type permissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// FunctionCall describes one ABI method invocation.
type FunctionCall struct {
	ABI    string         `json:"abi"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// RunLocalRequest executes a getter against the latest account state.
type RunLocalRequest struct {
	Address      string       `json:"address"`
	FunctionCall FunctionCall `json:"functionCall"`
	Responsible  bool         `json:"responsible"`
}

// RunLocalResponse carries decoded output fields and the TVM exit code.
type RunLocalResponse struct {
	Output map[string]json.RawMessage `json:"output"`
	Code   int                        `json:"code"`
}

// CallObserver receives the duration and outcome of every gateway call.
type CallObserver interface {
	ObserveRPCCall(method string, elapsed time.Duration, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every gateway call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithObserver reports call latency, e.g. to metrics.
func WithObserver(o CallObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// Client is the authorized read-only session shared by the resolver and
// the balance oracle. It is safe for concurrent use.
type Client struct {
	failoverClient *FailoverClient
	timeout        time.Duration
	observer       CallObserver
}

// NewClient dials the gateway endpoints with failover support.
func NewClient(ctx context.Context, rpcURLs []string, opts ...Option) (*Client, error) {
	failoverClient, err := NewFailoverClient(ctx, rpcURLs)
	if err != nil {
		return nil, err
	}

	c := &Client{
		failoverClient: failoverClient,
		timeout:        defaultRPCTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes all RPC client connections.
func (c *Client) Close() {
	c.failoverClient.Close()
}

// Connect performs capability discovery and requests the basic
// permission. It must succeed before any scan is started.
func (c *Client) Connect(ctx context.Context) (ProviderState, error) {
	state, err := c.ProviderState(ctx)
	if err != nil {
		return ProviderState{}, fmt.Errorf("provider state: %w", err)
	}
	if state.Permissions.Basic {
		return state, nil
	}

	granted, err := c.RequestPermissions(ctx, permissionBasic)
	if err != nil {
		return ProviderState{}, fmt.Errorf("request permissions: %w", err)
	}
	if !granted.Basic {
		return ProviderState{}, ErrPermissionDenied
	}
	state.Permissions = granted
	return state, nil
}

// ProviderState asks the gateway for its capabilities.
func (c *Client) ProviderState(ctx context.Context) (ProviderState, error) {
	var state ProviderState
	if err := c.invoke(ctx, &state, rpcGetProviderState); err != nil {
		return ProviderState{}, err
	}
	return state, nil
}

// RequestPermissions asks the gateway to grant the named permissions.
func (c *Client) RequestPermissions(ctx context.Context, permissions ...string) (Permissions, error) {
	var granted Permissions
	err := c.invoke(ctx, &granted, rpcRequestPermissions, permissionsRequest{Permissions: permissions})
	if err != nil {
		return Permissions{}, err
	}
	return granted, nil
}

// Call runs a responsible getter on a contract and returns its output
// fields. A non-zero exit code is reported as *ExecutionError.
func (c *Client) Call(ctx context.Context, address, abi, method string, params map[string]any) (map[string]json.RawMessage, error) {
	req := RunLocalRequest{
		Address: address,
		FunctionCall: FunctionCall{
			ABI:    abi,
			Method: method,
			Params: params,
		},
		Responsible: true,
	}

	var resp RunLocalResponse
	if err := c.invoke(ctx, &resp, rpcRunLocal, req); err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, address, err)
	}
	if resp.Code != 0 {
		return nil, &ExecutionError{Address: address, Method: method, Code: resp.Code}
	}
	if resp.Output == nil {
		return nil, fmt.Errorf("%s on %s: %w: empty output", method, address, ErrMalformedOutput)
	}
	return resp.Output, nil
}

// EndpointsHealth reports the health flag of every gateway endpoint.
func (c *Client) EndpointsHealth() map[string]bool {
	return c.failoverClient.EndpointsHealth()
}

// Ping checks that a healthy endpoint answers getProviderState.
func (c *Client) Ping(ctx context.Context) (string, error) {
	client, url, err := c.failoverClient.GetClient()
	if err != nil {
		return "", err
	}
	var state ProviderState
	if err := client.CallContext(ctx, &state, rpcGetProviderState); err != nil {
		return url, err
	}
	return url, nil
}

func (c *Client) invoke(ctx context.Context, result any, method string, args ...any) error {
	client, url, err := c.failoverClient.GetClient()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err = client.CallContext(callCtx, result, method, args...)
	if c.observer != nil {
		c.observer.ObserveRPCCall(method, time.Since(start), err)
	}

	// The endpoint is only blamed for failures that are not answers and
	// not caused by the caller giving up.
	if err != nil && !IsExecutionError(err) && ctx.Err() == nil {
		c.failoverClient.MarkUnhealthy(url, err)
	}
	return err
}

// IsExecutionError reports whether err came back from the gateway as an
// answer (a JSON-RPC error object or a non-zero exit code) rather than a
// transport failure.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}
