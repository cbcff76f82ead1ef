package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/CyberwizD/driver-status-relay/internal/models"
)

const redisKeyPrefix = "push:token:"

// RedisDirectory stores each token record as a JSON string. Driver records
// carrying a number also maintain a number -> record key index that always
// points at the latest registration for that number.
type RedisDirectory struct {
	client *redis.Client
}

func NewRedisDirectory(client *redis.Client) *RedisDirectory {
	return &RedisDirectory{client: client}
}

func (r *RedisDirectory) Close() error {
	return r.client.Close()
}

func (r *RedisDirectory) Register(ctx context.Context, rec models.TokenRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := recordKey(rec.Key)
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		// A driver that changed number must stop answering for the old one.
		var stale string
		prev, ok, err := getRecord(ctx, tx, key)
		if err != nil {
			return err
		}
		if ok && prev.DriverNumber != "" && prev.DriverNumber != rec.DriverNumber {
			owner, err := tx.Get(ctx, numberIndexKey(prev.DriverNumber)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if owner == key {
				stale = numberIndexKey(prev.DriverNumber)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			if stale != "" {
				pipe.Del(ctx, stale)
			}
			if rec.DriverNumber != "" {
				pipe.Set(ctx, numberIndexKey(rec.DriverNumber), key, 0)
			}
			return nil
		})
		return err
	}, key)
}

func (r *RedisDirectory) Lookup(ctx context.Context, key models.RecipientKey) (models.TokenRecord, bool, error) {
	if key.Kind != models.KindDriverField {
		return getRecord(ctx, r.client, recordKey(key))
	}

	owner, err := r.client.Get(ctx, numberIndexKey(key.ID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return models.TokenRecord{}, false, err
	}
	if owner != "" {
		rec, ok, err := getRecord(ctx, r.client, owner)
		if err != nil {
			return models.TokenRecord{}, false, err
		}
		if ok && matchesDriverField(rec, key.ID) {
			return rec, true, nil
		}
	}

	// Index missing or pointing at a driver that moved on.
	rec, ok, err := getRecord(ctx, r.client, recordKey(models.DriverByNumber(key.ID)))
	if err != nil || !ok || !matchesDriverField(rec, key.ID) {
		return models.TokenRecord{}, false, err
	}
	return rec, true, nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRecord(ctx context.Context, c stringGetter, key string) (models.TokenRecord, bool, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.TokenRecord{}, false, nil
	}
	if err != nil {
		return models.TokenRecord{}, false, err
	}
	var rec models.TokenRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.TokenRecord{}, false, err
	}
	return rec, true, nil
}

func recordKey(key models.RecipientKey) string {
	return redisKeyPrefix + key.String()
}

func numberIndexKey(number string) string {
	return "push:driver:number:" + number
}
