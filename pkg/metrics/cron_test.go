package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestCronMetricsTalliesRowsPerKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronMetrics(reg)
	m.AddRows("offer-token-expiry", "tokens_expired", 5)
	m.AddRows("offer-token-expiry", "tokens_expired", 2)
	m.AddRows("offer-token-expiry", "offers_expired", 0)
	m.AddRows("invite-purge", "invites_purged", 3)

	if got := testutil.ToFloat64(m.rows.WithLabelValues("offer-token-expiry", "tokens_expired")); got != 7 {
		t.Fatalf("expected 7 expired tokens, got %f", got)
	}
	if got := testutil.ToFloat64(m.rows.WithLabelValues("invite-purge", "invites_purged")); got != 3 {
		t.Fatalf("expected 3 purged invites, got %f", got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchCounterValue(mfs, "boost_cron_rows_total", "kind", "offers_expired"); err == nil {
		t.Fatal("expected zero counts to leave no series")
	}
}

func TestCronMetricsLastSuccessOnlyMovesOnCleanRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronMetrics(reg)
	first := time.Unix(1_780_000_000, 0)
	m.ObserveRun("ledger-reconcile", 250*time.Millisecond, first, nil)
	m.ObserveRun("ledger-reconcile", time.Second, first.Add(time.Hour), errors.New("out of balance"))

	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues("ledger-reconcile")); got != float64(first.Unix()) {
		t.Fatalf("expected last success %d, got %f", first.Unix(), got)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramCount(mfs, "boost_cron_run_seconds", "result", ResultError); err != nil {
		t.Fatalf("fetch error runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one failed run, got %d", got)
	}
	if got, err := fetchHistogramCount(mfs, "boost_cron_run_seconds", "result", ResultOK); err != nil {
		t.Fatalf("fetch ok runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected one clean run, got %d", got)
	}
}

func TestNilCronMetricsAreNoops(t *testing.T) {
	var m *CronMetrics
	m.ObserveRun("x", time.Second, time.Now(), nil)
	m.AddRows("x", "y", 1)
	NewCronMetrics(nil).AddRows("x", "y", 1)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramCount(mfs []*dto.MetricFamily, name, label, value string) (uint64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleCount(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
