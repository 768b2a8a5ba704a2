// Package availability derives device liveness from merge recency.
// Availability is a policy over store timestamps, not an upstream flag:
// a device flips unavailable once its last accepted merge is older than
// the threshold or a channel has failed too many times in a row, and
// recovers on the next fresh merge with no manual reset.
package availability

import (
	"sync"
	"time"

	"climate_hub/internal/models"
)

// Defaults: a device is stale after missing three expected poll cycles.
const (
	DefaultThreshold = 3 * time.Minute
	DefaultMaxErrors = 5
)

// Policy holds the staleness thresholds.
type Policy struct {
	// Threshold is the maximum age of the last accepted merge.
	Threshold time.Duration
	// MaxErrors bounds consecutive channel failures per device before
	// the device is reported unavailable regardless of record age.
	MaxErrors int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, MaxErrors: DefaultMaxErrors}
}

// Tracker counts consecutive per-device channel failures and applies
// the policy. Safe for concurrent use by the poll and push channels.
type Tracker struct {
	policy Policy

	mu       sync.Mutex
	failures map[string]int
}

// NewTracker builds a tracker with the given policy, filling in
// defaults for zero values.
func NewTracker(policy Policy) *Tracker {
	if policy.Threshold <= 0 {
		policy.Threshold = DefaultThreshold
	}
	if policy.MaxErrors <= 0 {
		policy.MaxErrors = DefaultMaxErrors
	}
	return &Tracker{
		policy:   policy,
		failures: make(map[string]int),
	}
}

// RecordFailure increments the consecutive failure count for a device.
// The count is bounded so a long outage cannot overflow it.
func (t *Tracker) RecordFailure(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.failures[deviceID] < t.policy.MaxErrors {
		t.failures[deviceID]++
	}
}

// RecordSuccess resets the failure count after a successful fetch or merge.
func (t *Tracker) RecordSuccess(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, deviceID)
}

// Failures returns the current consecutive failure count for a device.
func (t *Tracker) Failures(deviceID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[deviceID]
}

// Available reports whether a device should be shown as reachable at
// now. Last known values stay readable either way; this only drives the
// availability flag.
func (t *Tracker) Available(dev models.Device, now time.Time) bool {
	if dev.LastUpdated.IsZero() {
		return false
	}
	if now.Sub(dev.LastUpdated) > t.policy.Threshold {
		return false
	}
	return t.Failures(dev.ID) < t.policy.MaxErrors
}
