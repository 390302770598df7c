package ports

import (
	"context"
	"time"

	"github.com/viralforge/license-service/internal/domain"
)

// LicenseRegistry is durable read/write access to license records.
type LicenseRegistry interface {
	// GetLicense returns the record for key or domain.ErrLicenseNotFound.
	GetLicense(ctx context.Context, key string) (domain.License, error)
	// CreateLicense stores a new record. It fails with domain.ErrLicenseExists
	// when the key is already present; callers seeding idempotently must
	// pre-check and skip rather than overwrite.
	CreateLicense(ctx context.Context, lic domain.License) error
	// ListLicenses returns every known record.
	ListLicenses(ctx context.Context) ([]domain.License, error)
	// DeactivateLicense clears the active flag. Idempotent; the flag is
	// never restored.
	DeactivateLicense(ctx context.Context, key string) error
}

// BindingStore resolves existing device bindings.
type BindingStore interface {
	// GetBinding returns the license key bound to deviceID, or the empty
	// string when the device is unbound.
	GetBinding(ctx context.Context, deviceID string) (string, error)
}

// ActivationStore executes the first-activation side effects.
//
// ActivateDevice must re-evaluate the activation decision against fresh
// store state and, when activation is permitted, create the device binding
// and increment the license counter as one atomic unit visible to all
// concurrent callers across processes. Two racing activations must never
// both consume the last slot. A racer that bound the same device first
// downgrades this call to DecisionValidated.
type ActivationStore interface {
	ActivateDevice(ctx context.Context, licenseKey, deviceID string, now time.Time) (domain.Decision, domain.License, error)
}

// AuditSink persists activation audit entries with the configured retention.
type AuditSink interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
}

// AuditRecorder accepts audit entries off the request path. Implementations
// must never block the caller; delivery is best-effort with bounded retry.
type AuditRecorder interface {
	Record(entry domain.AuditEntry)
}
