package raffle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/matrixise/tip3-raffle/internal/metrics"
	"github.com/matrixise/tip3-raffle/internal/token"
)

// TokenResolver resolves the token of a request. *token.Resolver
// implements it.
type TokenResolver interface {
	Resolve(ctx context.Context, identifier string) (token.Token, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink adds a sink receiving the events of every run.
func WithSink(s Sink) Option {
	return func(r *Runner) {
		r.sinks = append(r.sinks, s)
	}
}

// WithPicker replaces the uniform random draw.
func WithPicker(p Picker) Option {
	return func(r *Runner) {
		r.pick = p
	}
}

// WithMetrics records run outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithLogger sets the logger used for run lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// Runner executes the full pipeline: resolve, scan, filter and draw.
// It keeps no state between runs.
type Runner struct {
	resolver TokenResolver
	oracle   BalanceOracle
	sinks    []Sink
	pick     Picker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(resolver TokenResolver, oracle BalanceOracle, opts ...Option) *Runner {
	r := &Runner{
		resolver: resolver,
		oracle:   oracle,
		pick:     UniformPicker(nil),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one scan. Resolution failures abort before any address
// is scanned. extra sinks receive this run's events only.
func (r *Runner) Run(ctx context.Context, req Request, extra ...Sink) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	sink := runSink{runID: runID, next: MultiSink(append(append([]Sink{}, r.sinks...), extra...))}

	identifier := req.TokenIdentifier()
	tok, err := r.resolver.Resolve(ctx, identifier)
	if err != nil {
		r.metrics.ScanFinished(metrics.OutcomeFailed, time.Since(start))
		logger.Error("Token resolution failed", "token", identifier, "error", err)
		return nil, fmt.Errorf("resolve token %q: %w", identifier, err)
	}

	sink.Emit(Event{Kind: EventStart, Token: tok, Total: len(req.List)})

	scanner := NewScanner(r.oracle, r.metrics)
	records, err := scanner.Scan(ctx, tok, req.List, sink)
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeCancelled
		}
		r.metrics.ScanFinished(outcome, time.Since(start))
		logger.Warn("Scan interrupted", "scanned", len(records), "total", len(req.List), "error", err)
		return nil, fmt.Errorf("scan interrupted after %d of %d addresses: %w", len(records), len(req.List), err)
	}

	sel := FilterAndSelect(records, req.Filter.Balance, r.pick)
	result := &Result{
		RunID:      runID,
		Token:      tok,
		MinBalance: req.Filter.Balance,
		Records:    records,
		Filtered:   sel.Filtered,
		Selected:   sel.Selected,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}

	outcome := metrics.OutcomeSelected
	if result.Selected == nil {
		outcome = metrics.OutcomeNoCandidate
	} else {
		r.metrics.Selected(result.Selected.Balance.Float64())
	}
	r.metrics.ScanFinished(outcome, time.Since(start))

	sink.Emit(Event{Kind: EventSummary, Token: tok, Total: len(req.List), Result: result})
	return result, nil
}
