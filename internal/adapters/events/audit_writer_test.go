package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/viralforge/license-service/internal/domain"
)

type fakeSink struct {
	mu       sync.Mutex
	entries  []domain.AuditEntry
	failures int
}

func (s *fakeSink) Append(_ context.Context, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id string) domain.AuditEntry {
	return domain.AuditEntry{
		EntryID:    id,
		LicenseKey: "LIC-TEST-00001-00001",
		DeviceID:   "D1",
		OccurredAt: time.Now().UTC(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached within deadline")
}

func TestWriterDeliversQueuedEntries(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	writer := NewAuditWriter(testLogger(), sink, 8, 1, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go writer.Run(ctx)

	writer.Record(entry("e1"))
	writer.Record(entry("e2"))
	waitFor(t, func() bool { return sink.count() == 2 })

	cancel()
	select {
	case <-writer.Done():
	case <-time.After(time.Second):
		t.Fatalf("writer did not finish after cancel")
	}
}

func TestWriterRetriesTransientSinkFailures(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{failures: 2}
	writer := NewAuditWriter(testLogger(), sink, 8, 3, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go writer.Run(ctx)

	writer.Record(entry("e1"))
	waitFor(t, func() bool { return sink.count() == 1 })
}

func TestWriterDrainsBufferOnShutdown(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	writer := NewAuditWriter(testLogger(), sink, 8, 1, time.Millisecond)

	// Queue before Run so cancellation races cannot lose the entries.
	writer.Record(entry("e1"))
	writer.Record(entry("e2"))
	writer.Record(entry("e3"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = writer.Run(ctx)

	if got := sink.count(); got != 3 {
		t.Fatalf("expected 3 drained entries, got %d", got)
	}
}

func TestRecordDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	writer := NewAuditWriter(testLogger(), sink, 1, 1, time.Millisecond)

	// Writer is not running, so the second entry cannot fit.
	writer.Record(entry("e1"))
	writer.Record(entry("e2"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = writer.Run(ctx)

	if got := sink.count(); got != 1 {
		t.Fatalf("expected exactly 1 delivered entry, got %d", got)
	}
}
