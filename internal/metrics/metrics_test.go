package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"vaultDeposit/internal/model"
)

func TestObserveCountsOutcomes(t *testing.T) {
	r := NewRecorder()
	clock := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return clock }

	r.Observe("s", model.TransactionStep{Index: 0, Status: model.StepPending})
	r.Observe("s", model.TransactionStep{Index: 0, Status: model.StepWaiting})
	clock = clock.Add(3 * time.Second)
	r.Observe("s", model.TransactionStep{Index: 0, Status: model.StepSuccess})

	r.Observe("s", model.TransactionStep{Index: 1, Status: model.StepPending})
	r.Observe("s", model.TransactionStep{Index: 1, Status: model.StepError})

	if got := testutil.ToFloat64(r.outcomes.WithLabelValues("0", "success")); got != 1 {
		t.Fatalf("success outcomes: %v", got)
	}
	if got := testutil.ToFloat64(r.outcomes.WithLabelValues("1", "error")); got != 1 {
		t.Fatalf("error outcomes: %v", got)
	}
	if got := testutil.ToFloat64(r.transitions.WithLabelValues("0", "waiting")); got != 1 {
		t.Fatalf("waiting transitions: %v", got)
	}
	if n := testutil.CollectAndCount(r.duration); n != 2 {
		t.Fatalf("expected two duration series, got %d", n)
	}
	if len(r.started) != 0 {
		t.Fatalf("start times leaked: %v", r.started)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := NewRecorder()
	r.Observe("s", model.TransactionStep{Index: 2, Status: model.StepPending})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `vaultdeposit_step_transitions_total{status="pending",step="2"} 1`) {
		t.Fatalf("metric missing from output:\n%s", rec.Body.String())
	}
}
