// Package sizelimit resolves the maximum byte size the storage provider will
// accept for a single uploaded object.
package sizelimit

import (
	"os"
	"strconv"
	"strings"
)

// DefaultLimit is the provider's baseline per-attachment ceiling (10 MiB).
const DefaultLimit int64 = 10 << 20

// Environment variable names. Overrides are read at call time, not cached,
// so limit changes take effect without a restart.
const (
	// EnvGlobalLimit overrides the limit for every destination and mode.
	EnvGlobalLimit = "UPLOAD_LIMIT_BYTES"
	// EnvWebhookLimit overrides the limit for webhook (fallback) delivery.
	EnvWebhookLimit = "UPLOAD_LIMIT_WEBHOOK_BYTES"
	// Per-target overrides are EnvGlobalLimit or EnvWebhookLimit with
	// "_<TARGET_ID>" appended, e.g. UPLOAD_LIMIT_BYTES_C4012.
)

// Detector resolves upload size limits from the environment.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector { return &Detector{} }

// Detect returns the byte ceiling for an upload to targetID. useBot selects
// the delivery mode: true for first-party bot delivery, false for the
// webhook fallback. Resolution order, most specific first:
//
//  1. per-target override for the delivery mode
//  2. webhook-wide override (fallback mode only)
//  3. global override
//  4. DefaultLimit
//
// Detect never fails; it always returns a positive value.
func (d *Detector) Detect(targetID string, useBot bool) int64 {
	if targetID != "" {
		prefix := EnvGlobalLimit
		if !useBot {
			prefix = EnvWebhookLimit
		}
		if v, ok := readLimit(prefix + "_" + envKey(targetID)); ok {
			return v
		}
	}

	if !useBot {
		if v, ok := readLimit(EnvWebhookLimit); ok {
			return v
		}
	}

	if v, ok := readLimit(EnvGlobalLimit); ok {
		return v
	}

	return DefaultLimit
}

// readLimit parses an environment variable as a positive byte count.
func readLimit(name string) (int64, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// envKey normalizes a target ID into an environment variable suffix.
func envKey(targetID string) string {
	key := strings.ToUpper(targetID)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
}
