package domain

import "errors"

var (
	// ErrLicenseNotFound is returned when no record exists for the requested key.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/INVALID_LICENSE.
	ErrLicenseNotFound = errors.New("license not found")
	// ErrLicenseDeactivated signals an administratively disabled record.
	// Once the active flag is cleared the record is permanently inert for new activations.
	ErrLicenseDeactivated = errors.New("license deactivated")
	ErrLicenseExpired     = errors.New("license expired")
	// ErrBindingConflict is returned when a device is already bound to a
	// different license. The existing binding is never overwritten.
	ErrBindingConflict        = errors.New("device bound to a different license")
	ErrActivationLimitReached = errors.New("activation limit reached")
	// ErrDeviceNotBound is the check-only outcome for devices that have not
	// activated yet; it tells clients to run activation first.
	ErrDeviceNotBound = errors.New("device not bound")
	ErrLicenseExists  = errors.New("license already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	// ErrStoreUnavailable wraps store connectivity and timeout failures.
	// Callers may retry the whole request; writes that did not confirm are treated as not applied.
	ErrStoreUnavailable = errors.New("store unavailable")
)
