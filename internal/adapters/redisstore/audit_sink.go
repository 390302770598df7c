package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/license-service/internal/domain"
)

// AuditSink writes activation audit entries as TTL'd JSON blobs. Keys embed
// the occurrence timestamp in nanoseconds so lexical key order is time
// order; the retention TTL lets the store purge old entries on its own.
type AuditSink struct {
	client    *redis.Client
	retention time.Duration
	opTimeout time.Duration
}

// NewAuditSink builds a sink with the given retention window.
func NewAuditSink(client *redis.Client, retention, opTimeout time.Duration) *AuditSink {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	return &AuditSink{client: client, retention: retention, opTimeout: opTimeout}
}

// Append persists one entry. Failures are transient; the caller decides
// whether to retry, and a lost entry never affects the activation outcome.
func (s *AuditSink) Append(ctx context.Context, entry domain.AuditEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	key := fmt.Sprintf("%s%020d:%s", auditKeyPrefix, entry.OccurredAt.UTC().UnixNano(), entry.EntryID)
	if err := s.client.Set(ctx, key, payload, s.retention).Err(); err != nil {
		return storeErr("append audit entry", err)
	}
	return nil
}
