package application

import (
	"time"

	"github.com/viralforge/license-service/internal/domain"
)

// Result values returned to clients alongside successful outcomes.
const (
	ResultActivated = "activated"
	ResultValidated = "validated"
	ResultValid     = "valid"
)

type ActivateRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`

	// Request metadata carried into the audit trail only.
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
	RequestID string `json:"-"`
}

type ActivateResponse struct {
	Result    string    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CheckRequest struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
}

type CheckResponse struct {
	Result    string    `json:"result"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateLicenseRequest struct {
	MaxActivations int `json:"max_activations"`
	ValidityDays   int `json:"validity_days"`
}

type CreateLicenseResponse struct {
	LicenseKey     string    `json:"license_key"`
	MaxActivations int       `json:"max_activations"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type LicenseItem struct {
	LicenseKey           string    `json:"license_key"`
	MaxActivations       int       `json:"max_activations"`
	CurrentActivations   int       `json:"current_activations"`
	RemainingActivations int       `json:"remaining_activations"`
	IsActive             bool      `json:"is_active"`
	CreatedAt            time.Time `json:"created_at"`
	ExpiresAt            time.Time `json:"expires_at"`
}

func toLicenseItem(lic domain.License) LicenseItem {
	return LicenseItem{
		LicenseKey:           lic.Key,
		MaxActivations:       lic.MaxActivations,
		CurrentActivations:   lic.CurrentActivations,
		RemainingActivations: lic.RemainingActivations(),
		IsActive:             lic.IsActive,
		CreatedAt:            lic.CreatedAt,
		ExpiresAt:            lic.ExpiresAt,
	}
}
