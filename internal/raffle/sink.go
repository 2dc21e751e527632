package raffle

import (
	"sync"

	"github.com/matrixise/tip3-raffle/internal/token"
)

// EventKind tags scan progress events.
type EventKind string

const (
	EventStart   EventKind = "start"
	EventRecord  EventKind = "record"
	EventSummary EventKind = "summary"
)

// Event is emitted in order: one start, one record per address, one
// summary.
type Event struct {
	Kind   EventKind   `json:"kind"`
	RunID  string      `json:"runId"`
	Token  token.Token `json:"token"`
	Total  int         `json:"total"`
	Index  int         `json:"index"`
	Record *Record     `json:"record,omitempty"`
	Result *Result     `json:"result,omitempty"`
}

// Sink receives scan events. Emit must not fail; sinks that can fail
// log and move on.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// MultiSink forwards to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// runSink stamps the run ID on every event.
type runSink struct {
	runID string
	next  Sink
}

func (s runSink) Emit(e Event) {
	e.RunID = s.runID
	s.next.Emit(e)
}

// AsyncSink decouples a slow consumer from the scan. Emit never blocks:
// events are queued without bound and delivered by one goroutine in
// emission order.
type AsyncSink struct {
	next Sink

	mu     sync.Mutex
	queue  []Event
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

// NewAsyncSink starts the delivery goroutine. Call Close to flush.
func NewAsyncSink(next Sink) *AsyncSink {
	a := &AsyncSink{
		next: next,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

// Emit queues e. Events emitted after Close are dropped.
func (a *AsyncSink) Emit(e Event) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.queue = append(a.queue, e)
	a.mu.Unlock()
	a.signal()
}

// Close delivers the pending events and stops the goroutine.
func (a *AsyncSink) Close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.signal()
	<-a.done
}

func (a *AsyncSink) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

func (a *AsyncSink) run() {
	defer close(a.done)
	for {
		a.mu.Lock()
		for len(a.queue) == 0 && !a.closed {
			a.mu.Unlock()
			<-a.wake
			a.mu.Lock()
		}
		batch := a.queue
		a.queue = nil
		closed := a.closed
		a.mu.Unlock()

		for _, e := range batch {
			a.next.Emit(e)
		}
		if closed && len(batch) == 0 {
			return
		}
	}
}
