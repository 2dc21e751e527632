package blockchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	unhealthyDuration  = 5 * time.Minute // Cooldown before redialing
	healthCheckTimeout = 5 * time.Second
)

// ErrNoHealthyEndpoint is returned when every gateway endpoint is down.
var ErrNoHealthyEndpoint = errors.New("no healthy RPC endpoints available")

type endpointStatus struct {
	url           string
	client        *rpc.Client
	healthy       bool
	lastError     error
	lastErrorTime time.Time
	mu            sync.RWMutex
}

// FailoverClient keeps one JSON-RPC connection per gateway endpoint and
// hands out the first healthy one, round-robin from the last used.
type FailoverClient struct {
	endpoints    []*endpointStatus
	currentIndex int
	mu           sync.Mutex
}

// NewFailoverClient dials every endpoint and probes it with
// getProviderState. At least one endpoint must answer.
func NewFailoverClient(ctx context.Context, urls []string) (*FailoverClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one RPC URL is required")
	}

	fc := &FailoverClient{
		endpoints: make([]*endpointStatus, 0, len(urls)),
	}

	healthyCount := 0
	for _, url := range urls {
		client, err := dialAndProbe(ctx, url)

		fc.endpoints = append(fc.endpoints, &endpointStatus{
			url:           url,
			client:        client,
			healthy:       err == nil,
			lastError:     err,
			lastErrorTime: time.Now(),
		})

		if err == nil {
			healthyCount++
			slog.Info("Connected to RPC endpoint", "url", url)
		} else {
			slog.Warn("Failed to connect to RPC endpoint, will retry later", "url", url, "error", err)
		}
	}

	if healthyCount == 0 {
		return nil, ErrNoHealthyEndpoint
	}

	return fc, nil
}

func dialAndProbe(ctx context.Context, url string) (*rpc.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}

	var state ProviderState
	if err := client.CallContext(ctx, &state, rpcGetProviderState); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// GetClient returns a healthy client, redialing endpoints whose cooldown
// has expired.
func (fc *FailoverClient) GetClient() (*rpc.Client, string, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	startIndex := fc.currentIndex

	for i := 0; i < len(fc.endpoints); i++ {
		idx := (startIndex + i) % len(fc.endpoints)
		ep := fc.endpoints[idx]

		ep.mu.RLock()
		healthy := ep.healthy
		client := ep.client
		canRetry := time.Since(ep.lastErrorTime) > unhealthyDuration
		ep.mu.RUnlock()

		if healthy && client != nil {
			fc.currentIndex = idx
			return client, ep.url, nil
		}

		if !healthy && canRetry {
			newClient, err := dialAndProbe(context.Background(), ep.url)
			ep.mu.Lock()
			if err != nil {
				ep.lastError = err
				ep.lastErrorTime = time.Now()
				ep.mu.Unlock()
				continue
			}
			ep.client = newClient
			ep.healthy = true
			ep.lastError = nil
			ep.mu.Unlock()

			fc.currentIndex = idx
			slog.Info("Reconnected to RPC endpoint", "url", ep.url)
			return newClient, ep.url, nil
		}
	}

	return nil, "", ErrNoHealthyEndpoint
}

// MarkUnhealthy takes an endpoint out of rotation until its cooldown
// expires.
func (fc *FailoverClient) MarkUnhealthy(url string, err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, ep := range fc.endpoints {
		if ep.url != url {
			continue
		}
		ep.mu.Lock()
		ep.healthy = false
		ep.lastError = err
		ep.lastErrorTime = time.Now()
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
		ep.mu.Unlock()

		slog.Warn("Marked RPC endpoint as unhealthy, will retry after cooldown",
			"url", url,
			"error", err,
			"retry_after", unhealthyDuration)
		return
	}
}

// EndpointsHealth reports the health flag of every endpoint by URL.
func (fc *FailoverClient) EndpointsHealth() map[string]bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	status := make(map[string]bool, len(fc.endpoints))
	for _, ep := range fc.endpoints {
		ep.mu.RLock()
		status[ep.url] = ep.healthy
		ep.mu.RUnlock()
	}
	return status
}

// Close closes all endpoint connections.
func (fc *FailoverClient) Close() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	for _, ep := range fc.endpoints {
		ep.mu.Lock()
		if ep.client != nil {
			ep.client.Close()
			ep.client = nil
		}
		ep.mu.Unlock()
	}
}
