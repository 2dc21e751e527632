package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRPCCall("ever_runLocal", time.Millisecond, nil)
		m.BalanceFailure("rpc_unavailable")
		m.AddressScanned()
		m.ScanFinished(OutcomeSelected, time.Second)
		m.Selected(1.5)
	})
}

func TestCounters(t *testing.T) {
	m := New("")

	m.BalanceFailure("wallet_unavailable")
	m.BalanceFailure("wallet_unavailable")
	m.BalanceFailure("rpc_unavailable")
	m.AddressScanned()
	m.ObserveRPCCall("ever_runLocal", time.Millisecond, errors.New("boom"))
	m.ScanFinished(OutcomeNoCandidate, time.Second)
	m.Selected(2.25)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BalanceFailures.WithLabelValues("wallet_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BalanceFailures.WithLabelValues("rpc_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AddressesScanned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("ever_runLocal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScansTotal.WithLabelValues(OutcomeNoCandidate)))
	assert.Greater(t, testutil.ToFloat64(m.LastScanTimestamp), 0.0)
	assert.Equal(t, 2.25, testutil.ToFloat64(m.SelectedBalance))
}

func TestHandler(t *testing.T) {
	m := New("raffle_test")
	m.AddressScanned()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "raffle_test_addresses_scanned_total 1")
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New("same")
		New("same")
	}, "each instance owns its registry so tests can create many")
}
