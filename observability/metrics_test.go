package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerMetricsRecordTransactions(t *testing.T) {
	m := Ledger()
	if Ledger() != m {
		t.Fatalf("expected ledger metrics singleton")
	}
	before := testutil.ToFloat64(m.txs.WithLabelValues("participate", "failed"))
	m.RecordTransaction("participate", false, 5*time.Millisecond)
	m.RecordTransaction("participate", true, time.Millisecond)
	if got := testutil.ToFloat64(m.txs.WithLabelValues("participate", "failed")); got != before+1 {
		t.Fatalf("unexpected failed count %v", got)
	}

	m.SubscriberAdded()
	m.SubscriberAdded()
	m.SubscriberRemoved()
	if got := testutil.ToFloat64(m.subscribers); got < 1 {
		t.Fatalf("unexpected subscriber gauge %v", got)
	}

	var nilMetrics *LedgerMetrics
	nilMetrics.RecordTransaction("x", true, 0)
	nilMetrics.RecordEvent("x")
}

func TestMetricsHandlerExposesLedgerSeries(t *testing.T) {
	Ledger().RecordEvent("campaign.created")
	ModuleMetrics().Observe("campaign", "campaign_get", 200, time.Millisecond)
	ModuleMetrics().RecordThrottle("ledger", "rate_limit")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, series := range []string{
		"r2s_ledger_events_total",
		"r2s_rpc_requests_total",
		"r2s_rpc_throttles_total",
	} {
		if !strings.Contains(string(body), series) {
			t.Fatalf("metrics output missing %s", series)
		}
	}
}
