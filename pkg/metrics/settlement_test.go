package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSettlementMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.ObserveSettlement(ResultSettled, 40*time.Millisecond)
	m.ObserveSettlement(ResultSettled, 10*time.Millisecond)
	m.ObserveSettlement(ResultInsufficientStock, time.Millisecond)
	m.IncRetry()
	m.IncConfirmation("razorpay", "success")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "settlement_total", "result", ResultSettled); err != nil {
		t.Fatalf("fetch settled: %v", err)
	} else if got != 2 {
		t.Fatalf("expected settled=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "settlement_total", "result", ResultInsufficientStock); err != nil {
		t.Fatalf("fetch insufficient: %v", err)
	} else if got != 1 {
		t.Fatalf("expected insufficient_stock=1, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "settlement_duration_seconds", "result", ResultSettled); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "settlement_gateway_confirmations_total", "gateway", "razorpay"); err != nil {
		t.Fatalf("fetch confirmations: %v", err)
	} else if got != 1 {
		t.Fatalf("expected confirmations=1, got %f", got)
	}
	if mf := findMetricFamily(mfs, "settlement_retries_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one retry recorded")
	}
}

func TestNilSettlementMetricsAreNoOps(t *testing.T) {
	var m *SettlementMetrics
	m.ObserveSettlement(ResultFailed, time.Second)
	m.IncRetry()
	m.IncConfirmation("payu", "failed")

	empty := NewSettlementMetrics(nil)
	empty.ObserveSettlement(ResultFailed, time.Second)
}
