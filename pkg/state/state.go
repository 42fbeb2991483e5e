// Package state holds deployment state shared between runs: a per-device
// lock so two runs never configure one device at once, and the hash of the
// last plan applied to each device.
package state

import (
	"context"
	"time"
)

// DefaultLockTTL bounds how long a crashed run can hold a device
const DefaultLockTTL = 15 * time.Minute

// LockInfo describes the current holder of a device lock
type LockInfo struct {
	Holder   string
	Address  string
	Acquired time.Time
}

// Locker grants exclusive per-device deployment locks. Acquire returns
// util.ErrDeviceLocked when another holder owns the lock.
type Locker interface {
	Acquire(ctx context.Context, device, holder, address string, ttl time.Duration) error
	Release(ctx context.Context, device, holder string) error
	// Holder returns nil when the device is not locked.
	Holder(ctx context.Context, device string) (*LockInfo, error)
}

// AppliedRecord is the last plan confirmed saved on a device
type AppliedRecord struct {
	PlanHash  string
	RunID     string
	AppliedAt time.Time
}

// HashStore remembers the last applied plan per device. LastApplied
// returns nil when nothing has been recorded.
type HashStore interface {
	LastApplied(ctx context.Context, device string) (*AppliedRecord, error)
	RecordApplied(ctx context.Context, device string, rec AppliedRecord) error
}
