package domain

import (
	"fmt"
	"time"
)

// License is the canonical record for one issuable license and its
// activation budget. All consumers work with typed fields; conversion to and
// from the store's string representation happens only at the storage boundary.
type License struct {
	Key                string
	MaxActivations     int
	CurrentActivations int
	IsActive           bool
	CreatedAt          time.Time
	ExpiresAt          time.Time
}

// DeviceBinding is the 1:1 mapping from a hardware identity to the license
// it first activated. A binding is created once and never reassigned.
type DeviceBinding struct {
	DeviceID   string
	LicenseKey string
}

// AuditEntry records one successful activation event.
// The protocol only ever writes these; it never reads them back.
type AuditEntry struct {
	EntryID    string    `json:"entry_id"`
	LicenseKey string    `json:"license_key"`
	DeviceID   string    `json:"device_id"`
	OccurredAt time.Time `json:"occurred_at"`
	IPAddress  string    `json:"ip_address,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// IsExpired reports whether the license is past its expiry at the given instant.
func (l License) IsExpired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// RemainingActivations returns how many activation slots are left.
func (l License) RemainingActivations() int {
	remaining := l.MaxActivations - l.CurrentActivations
	if remaining < 0 {
		return 0
	}
	return remaining
}

const (
	maxLicenseKeyLength = 64
	maxDeviceIDLength   = 128
)

// ValidateLicenseKey enforces baseline shape constraints on a license key.
// Key format and entropy guarantees are out of scope; this only rejects
// values that cannot be a key at all.
func ValidateLicenseKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: license key is required", ErrInvalidInput)
	}
	if len(key) > maxLicenseKeyLength {
		return fmt.Errorf("%w: license key must be <= %d characters", ErrInvalidInput, maxLicenseKeyLength)
	}
	for _, r := range key {
		if !isKeyRune(r) {
			return fmt.Errorf("%w: license key contains invalid characters", ErrInvalidInput)
		}
	}
	return nil
}

// ValidateDeviceID enforces baseline shape constraints on a hardware identity.
func ValidateDeviceID(deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	if len(deviceID) > maxDeviceIDLength {
		return fmt.Errorf("%w: device id must be <= %d characters", ErrInvalidInput, maxDeviceIDLength)
	}
	for _, r := range deviceID {
		if !isKeyRune(r) && r != ':' && r != '.' {
			return fmt.Errorf("%w: device id contains invalid characters", ErrInvalidInput)
		}
	}
	return nil
}

func isKeyRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z':
		return true
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	default:
		return false
	}
}
