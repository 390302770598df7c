package redisstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/viralforge/license-service/internal/domain"
)

// Key layout in the store. License records are hashes, bindings are plain
// string keys, audit entries are TTL'd JSON blobs whose keys sort by time.
const (
	licenseKeyPrefix = "license:"
	deviceKeyPrefix  = "device:"
	auditKeyPrefix   = "audit:"
	licenseIndexKey  = "license:index"
)

// Hash field names for license records. All values round-trip as strings;
// this codec is the only place that parses them.
const (
	fieldMaxActivations     = "max_activations"
	fieldCurrentActivations = "current_activations"
	fieldIsActive           = "is_active"
	fieldCreatedAt          = "created_at"
	fieldExpiresAt          = "expires_at"
)

func licenseKeyFor(key string) string {
	return licenseKeyPrefix + key
}

func deviceKeyFor(deviceID string) string {
	return deviceKeyPrefix + deviceID
}

func encodeLicense(lic domain.License) map[string]any {
	active := "0"
	if lic.IsActive {
		active = "1"
	}
	return map[string]any{
		fieldMaxActivations:     strconv.Itoa(lic.MaxActivations),
		fieldCurrentActivations: strconv.Itoa(lic.CurrentActivations),
		fieldIsActive:           active,
		fieldCreatedAt:          strconv.FormatInt(lic.CreatedAt.UTC().Unix(), 10),
		fieldExpiresAt:          strconv.FormatInt(lic.ExpiresAt.UTC().Unix(), 10),
	}
}

func decodeLicense(key string, fields map[string]string) (domain.License, error) {
	maxAct, err := strconv.Atoi(fields[fieldMaxActivations])
	if err != nil {
		return domain.License{}, fmt.Errorf("decode license %q: field %s: %w", key, fieldMaxActivations, err)
	}
	curAct, err := strconv.Atoi(fields[fieldCurrentActivations])
	if err != nil {
		return domain.License{}, fmt.Errorf("decode license %q: field %s: %w", key, fieldCurrentActivations, err)
	}
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return domain.License{}, fmt.Errorf("decode license %q: field %s: %w", key, fieldCreatedAt, err)
	}
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return domain.License{}, fmt.Errorf("decode license %q: field %s: %w", key, fieldExpiresAt, err)
	}

	return domain.License{
		Key:                key,
		MaxActivations:     maxAct,
		CurrentActivations: curAct,
		IsActive:           fields[fieldIsActive] == "1",
		CreatedAt:          time.Unix(createdAt, 0).UTC(),
		ExpiresAt:          time.Unix(expiresAt, 0).UTC(),
	}, nil
}
