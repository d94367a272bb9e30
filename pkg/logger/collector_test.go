package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *memPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *memPublisher) snapshot() ([]string, [][]AggregatedLogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...), append([][]AggregatedLogEntry(nil), p.batches...)
}

// waitForBatches polls until the publisher has received n batches; the flush
// hands off to a goroutine, so delivery is asynchronous.
func waitForBatches(t *testing.T, p *memPublisher, n int) [][]AggregatedLogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_, batches := p.snapshot()
		if len(batches) >= n {
			return batches
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("publisher never received %d batches", n)
	return nil
}

func TestCollectorFlushesOnCountThreshold(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs:aggregated",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "store write failed", map[string]interface{}{"source": "grid"}, "a.go:1")
	c.AddLog("error", "fetch failed", map[string]interface{}{"source": "market"}, "b.go:2")

	batches := waitForBatches(t, pub, 1)
	if len(batches[0]) != 2 {
		t.Fatalf("expected 2 aggregated entries, got %d", len(batches[0]))
	}
	topics, _ := pub.snapshot()
	if topics[0] != "logs:aggregated" {
		t.Fatalf("unexpected topic %q", topics[0])
	}
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &memPublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs:aggregated",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "store write failed", map[string]interface{}{"source": "grid"}, "a.go:1")
	}
	c.Close()

	batches := waitForBatches(t, pub, 1)
	if len(batches[0]) != 1 {
		t.Fatalf("expected one deduplicated entry, got %d", len(batches[0]))
	}
	if batches[0][0].Count != 3 {
		t.Fatalf("expected count 3, got %d", batches[0][0].Count)
	}
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	l, err := New(&Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	pub := &memPublisher{}
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 1,
		Topic:          "logs:aggregated",
		Publisher:      pub,
	})
	defer l.RemoveCollector()

	l.Error("backtest failed", String("granularity", "daily"))

	batches := waitForBatches(t, pub, 1)
	entry := batches[0][0]
	if entry.Level != "error" || entry.Message != "backtest failed" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Fields["granularity"] != "daily" {
		t.Fatalf("fields not carried: %v", entry.Fields)
	}
}
