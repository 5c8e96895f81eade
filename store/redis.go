package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/strangelove-ventures/cctp-bridge/types"
)

const defaultRedisPrefix = "cctp-bridge"

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps each record as JSON under {prefix}:transfer:{id} and indexes
// ids by status in {prefix}:status:{status} sets.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis %s: %w", cfg.Address, err)
	}
	return NewRedisStoreWithClient(client, cfg.Prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) recordKey(id string) string {
	return fmt.Sprintf("%s:transfer:%s", r.prefix, id)
}

func (r *RedisStore) statusKey(status types.Status) string {
	return fmt.Sprintf("%s:status:%s", r.prefix, status)
}

func (r *RedisStore) allStatusKeys() []types.Status {
	return []types.Status{types.Idle, types.Approved, types.Burned, types.AttestationPending,
		types.AttestationReady, types.Minted, types.Failed}
}

// Save watches the record key so a concurrent writer aborts this transaction
// instead of being overwritten.
func (r *RedisStore) Save(ctx context.Context, rec *types.TransferRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := r.recordKey(rec.ID)
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			stored, err := decodeRecord(current)
			if err != nil {
				return err
			}
			if err := checkStale(stored, rec); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			for _, st := range r.allStatusKeys() {
				if st != rec.Status {
					pipe.SRem(ctx, r.statusKey(st), rec.ID)
				}
			}
			pipe.SAdd(ctx, r.statusKey(rec.Status), rec.ID)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, types.ErrStaleTransfer) {
		return err
	}
	if err != nil {
		return fmt.Errorf("saving transfer %s: %w", rec.ID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*types.TransferRecord, error) {
	raw, err := r.client.Get(ctx, r.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrTransferNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(raw)
}

// ListByStatus returns matching records oldest first. No statuses matches all.
func (r *RedisStore) ListByStatus(ctx context.Context, statuses ...types.Status) ([]*types.TransferRecord, error) {
	if len(statuses) == 0 {
		statuses = r.allStatusKeys()
	}

	var ids []string
	for _, st := range statuses {
		members, err := r.client.SMembers(ctx, r.statusKey(st)).Result()
		if err != nil {
			return nil, err
		}
		ids = append(ids, members...)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*types.TransferRecord, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			// index entry without a record
			continue
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Created.Before(out[j].Created)
	})
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
