package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCycle(t *testing.T) {
	m := New()
	now := time.Unix(1700000000, 0)

	m.ObserveCycle(ResultUpdated, 200*time.Millisecond, now)
	m.ObserveCycle(ResultError, time.Second, now.Add(time.Minute))
	m.ObserveCycle(ResultCoalesced, 0, now.Add(2*time.Minute))

	if got := testutil.ToFloat64(m.Cycles.WithLabelValues(ResultUpdated)); got != 1 {
		t.Errorf("updated cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Cycles.WithLabelValues(ResultCoalesced)); got != 1 {
		t.Errorf("coalesced cycles = %v, want 1", got)
	}
	// Error and coalesced cycles do not move the success timestamp.
	if got := testutil.ToFloat64(m.LastSuccess); got != float64(now.Unix()) {
		t.Errorf("last success = %v, want %d", got, now.Unix())
	}
	if count := testutil.CollectAndCount(m.CycleDuration); count != 1 {
		t.Errorf("duration series = %d, want 1", count)
	}
}

func TestObserveFileAndHandler(t *testing.T) {
	m := New()
	m.ObserveFile("written")
	m.ObserveFile("written")
	m.ObserveFile("failed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	if !strings.Contains(string(body), `plugsync_files_total{status="written"} 2`) {
		t.Errorf("metrics output missing written count:\n%s", body)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle(ResultUpdated, time.Second, time.Now())
	m.ObserveFile("written")
}
