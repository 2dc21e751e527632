package raffle

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// TextSink renders the scan for a terminal: a header, one
// "address<TAB>balance" line per address and a summary.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink writes to w.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Emit(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e.Kind {
	case EventStart:
		fmt.Fprintf(s.w, "Check balance %s of %d accounts\n", e.Token.Symbol, e.Total)
	case EventRecord:
		if e.Record != nil {
			fmt.Fprintf(s.w, "%s\t%s\n", e.Record.Address, e.Record.Balance.Fixed(2))
		}
	case EventSummary:
		if e.Result != nil {
			fmt.Fprint(s.w, Summary(e.Result))
		}
	}
}

// Summary is the closing message of a run.
func Summary(r *Result) string {
	msg := fmt.Sprintf("Checked %d accounts.\nFiltered %d address with balance %s greater than and equal %s.\n",
		r.Scanned(), r.Qualifying(), r.Token.Symbol, r.MinBalance.String())
	if r.Selected == nil {
		return msg + fmt.Sprintf("No candidate: %d of %d qualifying.\n", r.Qualifying(), r.Scanned())
	}
	return msg + fmt.Sprintf("And random selected:\n🎉 %s 🎉\n", r.Selected.Address)
}

// LogSink reports events through slog.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Emit(e Event) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch e.Kind {
	case EventStart:
		logger.Info("Scan started",
			"run_id", e.RunID,
			"symbol", e.Token.Symbol,
			"root", e.Token.Root,
			"addresses", e.Total,
		)
	case EventRecord:
		if e.Record == nil {
			return
		}
		logger.Info("Balance retrieved",
			"run_id", e.RunID,
			"position", e.Index+1,
			"total", e.Total,
			"wallet", e.Record.Address,
			"balance", e.Record.Balance.String(),
		)
	case EventSummary:
		if e.Result == nil {
			return
		}
		attrs := []any{
			"run_id", e.RunID,
			"scanned", e.Result.Scanned(),
			"qualifying", e.Result.Qualifying(),
			"min_balance", e.Result.MinBalance.String(),
		}
		if e.Result.Selected != nil {
			logger.Info("Winner selected", append(attrs, "winner", e.Result.Selected.Address)...)
			return
		}
		logger.Info("No qualifying address", attrs...)
	}
}
