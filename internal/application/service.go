package application

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/license-service/internal/domain"
	"github.com/viralforge/license-service/internal/ports"
)

const (
	maxActivationsCap = 10000
	maxValidityDays   = 3650
)

type Config struct {
	// DefaultValidity is applied when an admin creates a license without an
	// explicit validity duration.
	DefaultValidity time.Duration
}

type Service struct {
	cfg         Config
	registry    ports.LicenseRegistry
	bindings    ports.BindingStore
	activations ports.ActivationStore
	audit       ports.AuditRecorder
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Registry    ports.LicenseRegistry
	Bindings    ports.BindingStore
	Activations ports.ActivationStore
	Audit       ports.AuditRecorder
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.DefaultValidity <= 0 {
		cfg.DefaultValidity = 30 * 24 * time.Hour
	}
	return &Service{
		cfg:         cfg,
		registry:    deps.Registry,
		bindings:    deps.Bindings,
		activations: deps.Activations,
		audit:       deps.Audit,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}

// Activate resolves an activate-or-validate request. A device that already
// holds a matching binding is validated without mutation; an unbound device
// goes through the store's atomic activation transaction.
func (s *Service) Activate(ctx context.Context, req ActivateRequest) (ActivateResponse, error) {
	if err := domain.ValidateLicenseKey(req.LicenseKey); err != nil {
		return ActivateResponse{}, err
	}
	if err := domain.ValidateDeviceID(req.DeviceID); err != nil {
		return ActivateResponse{}, err
	}
	now := s.nowFn()

	bound, err := s.bindings.GetBinding(ctx, req.DeviceID)
	if err != nil {
		return ActivateResponse{}, err
	}

	if bound != "" {
		// Repeat check: no mutation can be needed, so decide on plain reads.
		lic, err := s.getLicenseForDecision(ctx, req.LicenseKey)
		if err != nil {
			return ActivateResponse{}, err
		}
		decision, err := domain.DecideActivation(lic, bound, now)
		if err != nil {
			return ActivateResponse{}, err
		}
		if decision != domain.DecisionValidated {
			// A bound device can only validate or conflict.
			return ActivateResponse{}, domain.ErrBindingConflict
		}
		return ActivateResponse{Result: ResultValidated, ExpiresAt: lic.ExpiresAt}, nil
	}

	// First-time activation path. The store re-evaluates the decision on
	// fresh state inside its transaction, so a racing activation cannot
	// slip past the limit between our reads and the write.
	decision, lic, err := s.activations.ActivateDevice(ctx, req.LicenseKey, req.DeviceID, now)
	if err != nil {
		return ActivateResponse{}, err
	}
	if decision == domain.DecisionActivate {
		s.audit.Record(domain.AuditEntry{
			EntryID:    uuid.NewString(),
			LicenseKey: req.LicenseKey,
			DeviceID:   req.DeviceID,
			OccurredAt: now,
			IPAddress:  req.IPAddress,
			UserAgent:  req.UserAgent,
			RequestID:  req.RequestID,
		})
		return ActivateResponse{Result: ResultActivated, ExpiresAt: lic.ExpiresAt}, nil
	}
	return ActivateResponse{Result: ResultValidated, ExpiresAt: lic.ExpiresAt}, nil
}

// Check is the read-only status probe. It requires an existing matching
// binding and never creates one, even for an otherwise valid license.
func (s *Service) Check(ctx context.Context, req CheckRequest) (CheckResponse, error) {
	if err := domain.ValidateLicenseKey(req.LicenseKey); err != nil {
		return CheckResponse{}, err
	}
	if err := domain.ValidateDeviceID(req.DeviceID); err != nil {
		return CheckResponse{}, err
	}

	lic, err := s.getLicenseForDecision(ctx, req.LicenseKey)
	if err != nil {
		return CheckResponse{}, err
	}
	bound, err := s.bindings.GetBinding(ctx, req.DeviceID)
	if err != nil {
		return CheckResponse{}, err
	}
	if err := domain.DecideCheck(lic, bound, s.nowFn()); err != nil {
		return CheckResponse{}, err
	}
	return CheckResponse{Result: ResultValid, ExpiresAt: lic.ExpiresAt}, nil
}

// CreateLicense mints a new license record with a generated key.
func (s *Service) CreateLicense(ctx context.Context, req CreateLicenseRequest) (CreateLicenseResponse, error) {
	if req.MaxActivations < 1 || req.MaxActivations > maxActivationsCap {
		return CreateLicenseResponse{}, fmt.Errorf("%w: max_activations must be between 1 and %d", domain.ErrInvalidInput, maxActivationsCap)
	}
	if req.ValidityDays < 0 || req.ValidityDays > maxValidityDays {
		return CreateLicenseResponse{}, fmt.Errorf("%w: validity_days must be between 0 and %d", domain.ErrInvalidInput, maxValidityDays)
	}

	validity := s.cfg.DefaultValidity
	if req.ValidityDays > 0 {
		validity = time.Duration(req.ValidityDays) * 24 * time.Hour
	}

	now := s.nowFn()
	key, err := generateLicenseKey()
	if err != nil {
		return CreateLicenseResponse{}, fmt.Errorf("generate license key: %w", err)
	}
	lic := domain.License{
		Key:            key,
		MaxActivations: req.MaxActivations,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      now.Add(validity),
	}
	if err := s.registry.CreateLicense(ctx, lic); err != nil {
		return CreateLicenseResponse{}, err
	}
	return CreateLicenseResponse{
		LicenseKey:     lic.Key,
		MaxActivations: lic.MaxActivations,
		ExpiresAt:      lic.ExpiresAt,
	}, nil
}

// ListLicenses returns all known records for the admin surface.
func (s *Service) ListLicenses(ctx context.Context) ([]LicenseItem, error) {
	licenses, err := s.registry.ListLicenses(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]LicenseItem, 0, len(licenses))
	for _, lic := range licenses {
		items = append(items, toLicenseItem(lic))
	}
	return items, nil
}

// DeactivateLicense permanently disables a record for new activations.
func (s *Service) DeactivateLicense(ctx context.Context, key string) error {
	if err := domain.ValidateLicenseKey(key); err != nil {
		return err
	}
	return s.registry.DeactivateLicense(ctx, key)
}

// EnsureLicense creates a record with a fixed key when it does not exist
// yet. Used by demo seeding; an existing record is left untouched.
func (s *Service) EnsureLicense(ctx context.Context, key string, maxActivations int, validity time.Duration) error {
	if err := domain.ValidateLicenseKey(key); err != nil {
		return err
	}
	if _, err := s.registry.GetLicense(ctx, key); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrLicenseNotFound) {
		return err
	}

	now := s.nowFn()
	err := s.registry.CreateLicense(ctx, domain.License{
		Key:            key,
		MaxActivations: maxActivations,
		IsActive:       true,
		CreatedAt:      now,
		ExpiresAt:      now.Add(validity),
	})
	if errors.Is(err, domain.ErrLicenseExists) {
		// Lost a race with another seeder; the record is there either way.
		return nil
	}
	return err
}

// getLicenseForDecision reads a record for the decision procedure, which
// models an absent record as a nil license rather than an error.
func (s *Service) getLicenseForDecision(ctx context.Context, key string) (*domain.License, error) {
	lic, err := s.registry.GetLicense(ctx, key)
	if errors.Is(err, domain.ErrLicenseNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lic, nil
}

// generateLicenseKey mints a XXXXX-XXXXX-XXXXX-XXXXX key from crypto/rand.
func generateLicenseKey() (string, error) {
	raw := make([]byte, 13)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)[:20]
	groups := make([]string, 0, 4)
	for i := 0; i < 20; i += 5 {
		groups = append(groups, encoded[i:i+5])
	}
	return strings.Join(groups, "-"), nil
}
