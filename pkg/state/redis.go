package state

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/netcfg-io/netcfg/pkg/util"
)

const (
	lockPrefix    = "NETCFG_LOCK|"
	appliedPrefix = "NETCFG_APPLIED|"
)

// acquireLockScript atomically takes the lock. Returns 1 on success, 0 if
// another holder owns it. Re-acquiring by the same holder refreshes the TTL.
var acquireLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	if redis.call("HGET", key, "holder") ~= ARGV[1] then
		return 0
	end
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3], "address", ARGV[4])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseLockScript deletes the lock only for its holder. Returns 1 on
// success, 0 on holder mismatch, -1 if no lock exists.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
if redis.call("HGET", key, "holder") ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisStore is a Locker and HashStore backed by Redis, shared by every
// run pointed at the same server.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store for the Redis server at addr
func NewRedisStore(addr string, db int) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
	}
}

// Connect tests the connection
func (s *RedisStore) Connect(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connecting to state store: %w", err)
	}
	return nil
}

// Close closes the connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Acquire(ctx context.Context, device, holder, address string, ttl time.Duration) error {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := acquireLockScript.Run(ctx, s.client, []string{lockPrefix + device},
		holder, now, strconv.Itoa(secs), address).Int()
	if err != nil {
		return fmt.Errorf("acquiring lock for %s: %w", device, err)
	}
	if result == 0 {
		if info, _ := s.Holder(ctx, device); info != nil {
			return fmt.Errorf("%s held by %s since %s: %w", device, info.Holder,
				info.Acquired.Format(time.RFC3339), util.ErrDeviceLocked)
		}
		return fmt.Errorf("%s: %w", device, util.ErrDeviceLocked)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, device, holder string) error {
	result, err := releaseLockScript.Run(ctx, s.client, []string{lockPrefix + device}, holder).Int()
	if err != nil {
		return fmt.Errorf("releasing lock for %s: %w", device, err)
	}
	if result == 0 {
		return fmt.Errorf("lock holder mismatch for %s", device)
	}
	return nil
}

func (s *RedisStore) Holder(ctx context.Context, device string) (*LockInfo, error) {
	vals, err := s.client.HGetAll(ctx, lockPrefix+device).Result()
	if err != nil {
		return nil, fmt.Errorf("getting lock holder for %s: %w", device, err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	info := &LockInfo{Holder: vals["holder"], Address: vals["address"]}
	if ts, ok := vals["acquired"]; ok {
		info.Acquired, _ = time.Parse(time.RFC3339, ts)
	}
	return info, nil
}

func (s *RedisStore) LastApplied(ctx context.Context, device string) (*AppliedRecord, error) {
	vals, err := s.client.HGetAll(ctx, appliedPrefix+device).Result()
	if err != nil {
		return nil, fmt.Errorf("reading applied hash for %s: %w", device, err)
	}
	if vals["plan_hash"] == "" {
		return nil, nil
	}
	rec := &AppliedRecord{PlanHash: vals["plan_hash"], RunID: vals["run_id"]}
	if ts, ok := vals["applied_at"]; ok {
		rec.AppliedAt, _ = time.Parse(time.RFC3339, ts)
	}
	return rec, nil
}

func (s *RedisStore) RecordApplied(ctx context.Context, device string, rec AppliedRecord) error {
	err := s.client.HSet(ctx, appliedPrefix+device,
		"plan_hash", rec.PlanHash,
		"run_id", rec.RunID,
		"applied_at", rec.AppliedAt.UTC().Format(time.RFC3339),
	).Err()
	if err != nil {
		return fmt.Errorf("recording applied hash for %s: %w", device, err)
	}
	return nil
}

var (
	_ Locker    = (*RedisStore)(nil)
	_ HashStore = (*RedisStore)(nil)
	_ Locker    = (*MemoryStore)(nil)
	_ HashStore = (*MemoryStore)(nil)
)
