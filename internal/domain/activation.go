package domain

import "time"

// Decision is the outcome of the activation decision procedure for requests
// that are permitted to proceed. Rejections are expressed as sentinel errors.
type Decision int

const (
	// DecisionValidated means an existing binding matches the requested
	// license; the request is a repeat check and mutates nothing.
	DecisionValidated Decision = iota
	// DecisionActivate authorizes a first-time activation: create the
	// binding and consume one activation slot in a single atomic unit.
	DecisionActivate
)

// DecideActivation applies the activation rule table to a snapshot of
// (license record, existing binding for the device, now). Rules are ordered;
// the first match wins. lic is nil when no record exists for the requested
// key; boundKey is empty when the device has no binding yet.
//
// The function is pure so the store adapter can re-apply it to fresh reads
// inside its optimistic transaction.
func DecideActivation(lic *License, boundKey string, now time.Time) (Decision, error) {
	if lic == nil {
		return 0, ErrLicenseNotFound
	}
	if !lic.IsActive {
		return 0, ErrLicenseDeactivated
	}
	if lic.IsExpired(now) {
		return 0, ErrLicenseExpired
	}
	if boundKey != "" {
		if boundKey == lic.Key {
			return DecisionValidated, nil
		}
		return 0, ErrBindingConflict
	}
	if lic.CurrentActivations >= lic.MaxActivations {
		return 0, ErrActivationLimitReached
	}
	return DecisionActivate, nil
}

// DecideCheck is the read-only variant: it requires an existing matching
// binding and never authorizes mutation. A license that would otherwise be
// activatable still fails with ErrDeviceNotBound when no binding exists.
func DecideCheck(lic *License, boundKey string, now time.Time) error {
	if lic == nil {
		return ErrLicenseNotFound
	}
	if !lic.IsActive {
		return ErrLicenseDeactivated
	}
	if lic.IsExpired(now) {
		return ErrLicenseExpired
	}
	if boundKey == "" {
		return ErrDeviceNotBound
	}
	if boundKey != lic.Key {
		return ErrBindingConflict
	}
	return nil
}
