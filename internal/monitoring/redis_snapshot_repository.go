package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"rivalwatch/internal/constants"
)

const (
	fieldCurrent  = "current"
	fieldPrevious = "previous"
)

// commitScript shifts every snapshot hash and stores the result in one
// script run. KEYS holds the snapshot hashes followed by the result key,
// ARGV the matching payloads. Key types are checked before the first write
// because Redis does not roll back a script that fails halfway.
var commitScript = redis.NewScript(`
local n = #KEYS - 1
for i = 1, n do
	local t = redis.call('TYPE', KEYS[i]).ok
	if t ~= 'none' and t ~= 'hash' then
		return redis.error_reply('WRONGTYPE snapshot key ' .. KEYS[i])
	end
end
local rt = redis.call('TYPE', KEYS[#KEYS]).ok
if rt ~= 'none' and rt ~= 'string' then
	return redis.error_reply('WRONGTYPE result key ' .. KEYS[#KEYS])
end
for i = 1, n do
	local old = redis.call('HGET', KEYS[i], 'current')
	if old then
		redis.call('HSET', KEYS[i], 'previous', old)
	end
	redis.call('HSET', KEYS[i], 'current', ARGV[i])
end
redis.call('SET', KEYS[#KEYS], ARGV[#ARGV])
return n
`)

type RedisSnapshotRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisSnapshotRepository(client redis.UniversalClient, keyPrefix string) *RedisSnapshotRepository {
	if keyPrefix == "" {
		keyPrefix = constants.DefaultRedisKeyPrefix
	}
	return &RedisSnapshotRepository{client: client, keyPrefix: keyPrefix}
}

// Keywords and competitor names are free text, so they are escaped before
// being joined into a key. The keyword sits in a hash tag so every key of
// one keyword maps to the same cluster slot.
func (r *RedisSnapshotRepository) snapshotKey(keyword, competitor string) string {
	return fmt.Sprintf("%ssnapshot:{%s}:%s", r.keyPrefix, url.QueryEscape(keyword), url.QueryEscape(competitor))
}

func (r *RedisSnapshotRepository) resultKey(keyword string) string {
	return fmt.Sprintf("%sresult:{%s}", r.keyPrefix, url.QueryEscape(keyword))
}

func (r *RedisSnapshotRepository) CommitCycle(ctx context.Context, result *MonitoringResult, snaps []ProductSnapshot) (err error) {
	defer observeStore(storeSnapshot, constants.BackendRedis, "commit", time.Now(), &err)

	keys := make([]string, 0, len(snaps)+1)
	args := make([]interface{}, 0, len(snaps)+1)
	for _, snap := range snaps {
		data, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		keys = append(keys, r.snapshotKey(result.Keyword, snap.Competitor))
		args = append(args, data)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	keys = append(keys, r.resultKey(result.Keyword))
	args = append(args, data)

	if err := commitScript.Run(ctx, r.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to commit check cycle: %w", err)
	}
	return nil
}

func (r *RedisSnapshotRepository) GetSnapshots(ctx context.Context, keyword, competitor string) (_ *ProductSnapshot, _ *ProductSnapshot, err error) {
	defer observeStore(storeSnapshot, constants.BackendRedis, "get", time.Now(), &err)

	values, err := r.client.HMGet(ctx, r.snapshotKey(keyword, competitor), fieldCurrent, fieldPrevious).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get snapshots: %w", err)
	}

	pair := make([]*ProductSnapshot, 2)
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		if pair[i], err = decodeSnapshot(raw); err != nil {
			return nil, nil, err
		}
	}

	return pair[0], pair[1], nil
}

func (r *RedisSnapshotRepository) LatestResult(ctx context.Context, keyword string) (_ *MonitoringResult, err error) {
	defer observeStore(storeSnapshot, constants.BackendRedis, "latest_result", time.Now(), &err)

	data, err := r.client.Get(ctx, r.resultKey(keyword)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest result: %w", err)
	}

	var result MonitoringResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

func decodeSnapshot(raw string) (*ProductSnapshot, error) {
	var snap ProductSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}
