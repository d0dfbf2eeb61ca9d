package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mmdatafocus/fund_ledger/ledger"
	"github.com/mmdatafocus/fund_ledger/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLedgerMetrics_CountsEvents(t *testing.T) {
	m := New()
	m.Notify(models.LedgerEvent{Kind: models.EventFundsAllocated, Amount: 300})
	m.Notify(models.LedgerEvent{Kind: models.EventFundsAllocated, Amount: 200})
	m.Notify(models.LedgerEvent{Kind: models.EventBudgetRequestCreated, Amount: 999})

	if got := testutil.ToFloat64(m.events.WithLabelValues(string(models.EventFundsAllocated))); got != 2 {
		t.Fatalf("expected 2 allocation events, got %v", got)
	}
	if got := testutil.ToFloat64(m.amounts.WithLabelValues(string(models.EventFundsAllocated))); got != 500 {
		t.Fatalf("expected 500 allocated, got %v", got)
	}
	if got := testutil.CollectAndCount(m.amounts); got != 1 {
		t.Fatalf("request amounts must not count as moved funds, got %d series", got)
	}
}

func TestLedgerMetrics_ExposesGaugesAndHTTP(t *testing.T) {
	ctx := context.Background()
	m := New()
	l, err := ledger.Open(ctx, ledger.NewMemoryStore(), ledger.Options{Operator: "admin-1", Notifiers: []ledger.Notifier{m}})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	m.RegisterLedgerGauges(l)

	admin := ledger.Admin("admin-1")
	r, err := l.SubmitRequest(ctx, admin, models.NewBudgetRequest{Department: "IT", Project: "P", Amount: 10})
	if err != nil {
		t.Fatalf("SubmitRequest error: %v", err)
	}
	if _, err := l.RejectRequest(ctx, admin, r.ID, "no"); err != nil {
		t.Fatalf("RejectRequest error: %v", err)
	}
	m.ObserveRequest(http.MethodPost, "/requests/:id/reject", http.StatusOK, 20*time.Millisecond)
	m.ObserveRejection("invalid_state")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"fund_ledger_transactions 1",
		`fund_ledger_events_total{kind="TransactionRecorded"} 1`,
		`fund_ledger_http_requests_total{method="POST",route="/requests/:id/reject",status="200"} 1`,
		`fund_ledger_rejected_operations_total{kind="invalid_state"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}
