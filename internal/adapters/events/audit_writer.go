// Package events carries side-channel deliveries that must stay off the
// request path. Today that is the activation audit trail.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/viralforge/license-service/internal/domain"
	"github.com/viralforge/license-service/internal/ports"
)

// AuditWriter drains queued audit entries into the sink with a small bounded
// retry. Delivery is best-effort: a failed or dropped entry never rolls back
// or blocks the activation that produced it.
type AuditWriter struct {
	logger     *slog.Logger
	sink       ports.AuditSink
	queue      chan domain.AuditEntry
	maxRetries int
	retryDelay time.Duration
	done       chan struct{}
}

// NewAuditWriter constructs the writer with sane defaults.
func NewAuditWriter(logger *slog.Logger, sink ports.AuditSink, bufferSize, maxRetries int, retryDelay time.Duration) *AuditWriter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 200 * time.Millisecond
	}
	return &AuditWriter{
		logger:     logger,
		sink:       sink,
		queue:      make(chan domain.AuditEntry, bufferSize),
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		done:       make(chan struct{}),
	}
}

// Record enqueues an entry without blocking. When the buffer is full the
// entry is dropped with a warning; audit writes are best-effort.
func (w *AuditWriter) Record(entry domain.AuditEntry) {
	select {
	case w.queue <- entry:
	default:
		w.logger.Warn("audit entry dropped, buffer full",
			"module", "events.audit_writer",
			"operation", "record_audit_entry",
			"outcome", "failure",
			"license_key", entry.LicenseKey,
			"device_id", entry.DeviceID,
		)
	}
}

// Run delivers entries until the context is cancelled, then drains whatever
// is still buffered before returning.
func (w *AuditWriter) Run(ctx context.Context) error {
	defer close(w.done)
	for {
		select {
		case entry := <-w.queue:
			w.deliver(ctx, entry)
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		}
	}
}

// Done is closed once Run has finished draining.
func (w *AuditWriter) Done() <-chan struct{} {
	return w.done
}

func (w *AuditWriter) drain() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case entry := <-w.queue:
			w.deliver(drainCtx, entry)
		default:
			return
		}
	}
}

func (w *AuditWriter) deliver(ctx context.Context, entry domain.AuditEntry) {
	var err error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err = w.sink.Append(ctx, entry)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
	w.logger.Error("audit entry delivery failed",
		"module", "events.audit_writer",
		"operation", "append_audit_entry",
		"outcome", "failure",
		"entry_id", entry.EntryID,
		"license_key", entry.LicenseKey,
		"device_id", entry.DeviceID,
		"retries", w.maxRetries,
		"error", err,
	)
}
