package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/license-service/internal/domain"
)

// Store implements the license registry, binding lookup, and activation
// transaction on Redis. Redis is the single source of truth; all atomicity
// guarantees come from its WATCH/MULTI primitives rather than in-process
// locking, so the guarantees hold across processes.
type Store struct {
	client    *redis.Client
	opTimeout time.Duration
	txRetries int
}

// NewStore wraps a Redis client with bounded per-operation timeouts and a
// retry budget for optimistic transaction conflicts.
func NewStore(client *redis.Client, opTimeout time.Duration, txRetries int) *Store {
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}
	if txRetries <= 0 {
		txRetries = 5
	}
	return &Store{client: client, opTimeout: opTimeout, txRetries: txRetries}
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// GetLicense returns the record stored under key.
func (s *Store) GetLicense(ctx context.Context, key string) (domain.License, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	fields, err := s.client.HGetAll(ctx, licenseKeyFor(key)).Result()
	if err != nil {
		return domain.License{}, storeErr("get license", err)
	}
	if len(fields) == 0 {
		return domain.License{}, domain.ErrLicenseNotFound
	}
	return decodeLicense(key, fields)
}

// CreateLicense stores a new record, guarding against overwrites with a
// WATCH on the record key. Seeding callers rely on ErrLicenseExists to skip.
func (s *Store) CreateLicense(ctx context.Context, lic domain.License) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	recordKey := licenseKeyFor(lic.Key)
	txn := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, recordKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrLicenseExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, encodeLicense(lic))
			pipe.SAdd(ctx, licenseIndexKey, lic.Key)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.txRetries; attempt++ {
		err := s.client.Watch(ctx, txn, recordKey)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, domain.ErrLicenseExists):
			return err
		default:
			return storeErr("create license", err)
		}
	}
	return fmt.Errorf("%w: create license: transaction kept conflicting", domain.ErrStoreUnavailable)
}

// ListLicenses returns every record reachable through the index set.
func (s *Store) ListLicenses(ctx context.Context) ([]domain.License, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	keys, err := s.client.SMembers(ctx, licenseIndexKey).Result()
	if err != nil {
		return nil, storeErr("list licenses", err)
	}

	licenses := make([]domain.License, 0, len(keys))
	for _, key := range keys {
		fields, err := s.client.HGetAll(ctx, licenseKeyFor(key)).Result()
		if err != nil {
			return nil, storeErr("list licenses", err)
		}
		if len(fields) == 0 {
			// Index entry without a record; records are never deleted in
			// normal operation, so just skip.
			continue
		}
		lic, err := decodeLicense(key, fields)
		if err != nil {
			return nil, err
		}
		licenses = append(licenses, lic)
	}
	return licenses, nil
}

// DeactivateLicense clears the active flag. The flag is never restored.
func (s *Store) DeactivateLicense(ctx context.Context, key string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	recordKey := licenseKeyFor(key)
	n, err := s.client.Exists(ctx, recordKey).Result()
	if err != nil {
		return storeErr("deactivate license", err)
	}
	if n == 0 {
		return domain.ErrLicenseNotFound
	}
	if err := s.client.HSet(ctx, recordKey, fieldIsActive, "0").Err(); err != nil {
		return storeErr("deactivate license", err)
	}
	return nil
}

// GetBinding returns the license key bound to deviceID, or "" when unbound.
func (s *Store) GetBinding(ctx context.Context, deviceID string) (string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	bound, err := s.client.Get(ctx, deviceKeyFor(deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", storeErr("get binding", err)
	}
	return bound, nil
}

// ActivateDevice runs the activation decision against fresh state under a
// WATCH on both the license hash and the device key, then applies the
// binding SET and counter HINCRBY in one MULTI. A conflicting concurrent
// writer fails the EXEC and the whole decision is re-evaluated on retry, so
// two activations can never both consume the last slot. A racer that bound
// the same device first downgrades this call to a validation.
func (s *Store) ActivateDevice(ctx context.Context, licenseKey, deviceID string, now time.Time) (domain.Decision, domain.License, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	recordKey := licenseKeyFor(licenseKey)
	bindingKey := deviceKeyFor(deviceID)

	var (
		decision domain.Decision
		result   domain.License
	)
	txn := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, recordKey).Result()
		if err != nil {
			return err
		}
		var lic *domain.License
		if len(fields) > 0 {
			decoded, decodeErr := decodeLicense(licenseKey, fields)
			if decodeErr != nil {
				return decodeErr
			}
			lic = &decoded
		}

		bound, err := tx.Get(ctx, bindingKey).Result()
		if errors.Is(err, redis.Nil) {
			bound = ""
		} else if err != nil {
			return err
		}

		decision, err = domain.DecideActivation(lic, bound, now)
		if err != nil {
			return err
		}
		if decision == domain.DecisionValidated {
			result = *lic
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, recordKey, fieldCurrentActivations, 1)
			pipe.Set(ctx, bindingKey, licenseKey, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = *lic
		result.CurrentActivations++
		return nil
	}

	for attempt := 0; attempt < s.txRetries; attempt++ {
		err := s.client.Watch(ctx, txn, recordKey, bindingKey)
		switch {
		case err == nil:
			return decision, result, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case isBusinessErr(err):
			return 0, domain.License{}, err
		default:
			return 0, domain.License{}, storeErr("activate device", err)
		}
	}
	return 0, domain.License{}, fmt.Errorf("%w: activate device: transaction kept conflicting", domain.ErrStoreUnavailable)
}

func isBusinessErr(err error) bool {
	for _, sentinel := range []error{
		domain.ErrLicenseNotFound,
		domain.ErrLicenseDeactivated,
		domain.ErrLicenseExpired,
		domain.ErrBindingConflict,
		domain.ErrActivationLimitReached,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// storeErr classifies adapter failures as transient so callers can retry the
// whole request. Expected business conditions never pass through here.
func storeErr(operation string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, operation, err)
}
