package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/netcfg-io/netcfg/pkg/util"
)

type memLock struct {
	info    LockInfo
	expires time.Time
}

// MemoryStore is an in-process Locker and HashStore. It only coordinates
// runs inside one process.
type MemoryStore struct {
	mu      sync.Mutex
	locks   map[string]memLock
	applied map[string]AppliedRecord
	now     func() time.Time
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:   make(map[string]memLock),
		applied: make(map[string]AppliedRecord),
		now:     time.Now,
	}
}

func (m *MemoryStore) Acquire(_ context.Context, device, holder, address string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if l, ok := m.locks[device]; ok && now.Before(l.expires) {
		if l.info.Holder == holder {
			return nil
		}
		return fmt.Errorf("%s held by %s: %w", device, l.info.Holder, util.ErrDeviceLocked)
	}
	m.locks[device] = memLock{
		info:    LockInfo{Holder: holder, Address: address, Acquired: now},
		expires: now.Add(ttl),
	}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, device, holder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[device]
	if !ok {
		return nil
	}
	if l.info.Holder != holder {
		return fmt.Errorf("lock holder mismatch for %s", device)
	}
	delete(m.locks, device)
	return nil
}

func (m *MemoryStore) Holder(_ context.Context, device string) (*LockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[device]
	if !ok || !m.now().Before(l.expires) {
		return nil, nil
	}
	info := l.info
	return &info, nil
}

func (m *MemoryStore) LastApplied(_ context.Context, device string) (*AppliedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.applied[device]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) RecordApplied(_ context.Context, device string, rec AppliedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applied[device] = rec
	return nil
}
