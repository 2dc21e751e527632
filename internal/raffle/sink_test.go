package raffle

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSinkKeepsOrder(t *testing.T) {
	collected := &collectSink{}
	async := NewAsyncSink(collected)

	for i := 0; i < 500; i++ {
		async.Emit(Event{Kind: EventRecord, Index: i})
	}
	async.Close()

	events := collected.Events()
	require.Len(t, events, 500)
	for i, e := range events {
		assert.Equal(t, i, e.Index)
	}
}

func TestAsyncSinkDoesNotBlockOnSlowConsumer(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	slow := SinkFunc(func(Event) {
		<-release
	})
	async := NewAsyncSink(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			async.Emit(Event{Kind: EventRecord, Index: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a slow consumer")
	}

	once.Do(func() { close(release) })
	async.Close()
}

func TestAsyncSinkDropsAfterClose(t *testing.T) {
	collected := &collectSink{}
	async := NewAsyncSink(collected)
	async.Emit(Event{Kind: EventStart})
	async.Close()
	async.Emit(Event{Kind: EventRecord})

	assert.Len(t, collected.Events(), 1)
}

func TestRunSinkStampsRunID(t *testing.T) {
	collected := &collectSink{}
	s := runSink{runID: "run-1", next: MultiSink{collected, Discard}}
	s.Emit(Event{Kind: EventStart})

	require.Len(t, collected.Events(), 1)
	assert.Equal(t, "run-1", collected.Events()[0].RunID)
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewTextSink(&buf)

	r1 := rec(t, "0:aa", "1500000", 6)
	r2 := rec(t, "0:bb", "0", 6)
	result := &Result{
		Token:      usdt,
		MinBalance: decimal.NewFromInt(1),
		Records:    []Record{r1, r2},
		Filtered:   []Record{r1},
		Selected:   &r1,
	}

	s.Emit(Event{Kind: EventStart, Token: usdt, Total: 2})
	s.Emit(Event{Kind: EventRecord, Token: usdt, Total: 2, Index: 0, Record: &r1})
	s.Emit(Event{Kind: EventRecord, Token: usdt, Total: 2, Index: 1, Record: &r2})
	s.Emit(Event{Kind: EventSummary, Token: usdt, Total: 2, Result: result})

	want := "Check balance USDT of 2 accounts\n" +
		"0:aa\t1.50\n" +
		"0:bb\t0.00\n" +
		"Checked 2 accounts.\n" +
		"Filtered 1 address with balance USDT greater than and equal 1.\n" +
		"And random selected:\n" +
		"🎉 0:aa 🎉\n"
	assert.Equal(t, want, buf.String())
}

func TestSummaryWithoutCandidate(t *testing.T) {
	result := &Result{
		Token:      usdt,
		MinBalance: decimal.NewFromInt(5),
		Records:    []Record{rec(t, "0:aa", "1500000", 6), rec(t, "0:bb", "0", 6)},
		Filtered:   []Record{},
	}

	assert.Equal(t, "Checked 2 accounts.\n"+
		"Filtered 0 address with balance USDT greater than and equal 5.\n"+
		"No candidate: 0 of 2 qualifying.\n", Summary(result))
}
