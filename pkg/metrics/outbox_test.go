package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncEvent("agreement_signed", OutboxPublished)
	m.IncEvent("agreement_signed", OutboxPublished)
	m.IncEvent("links_expired", OutboxDeadLettered)
	m.ObserveBatch(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "ledgerly_outbox_events_total", "outcome", OutboxPublished); err != nil || got != 2 {
		t.Fatalf("expected 2 published, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "ledgerly_outbox_events_total", "event_type", "links_expired"); err != nil || got != 1 {
		t.Fatalf("expected 1 dead lettered, got %f err=%v", got, err)
	}
	batch := findMetricFamily(mfs, "ledgerly_outbox_batch_size")
	if batch == nil || batch.GetMetric()[0].GetHistogram().GetSampleSum() != 3 {
		t.Fatalf("expected batch sum 3, got %v", batch)
	}
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncEvent("x", OutboxRetried)
	m.ObserveBatch(1)
	NewOutboxMetrics(nil).IncEvent("x", OutboxRetried)
}
