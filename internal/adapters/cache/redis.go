package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/trust-compliance/M12-fraud-detection-engine/internal/domain"
)

const resultKeyPrefix = "txn_result:"

func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func ResultKey(transactionID uuid.UUID) string {
	return resultKeyPrefix + transactionID.String()
}

// RedisResultCache holds JSON snapshots of evaluated transactions.
type RedisResultCache struct {
	client redis.UniversalClient
}

func NewRedisResultCache(client redis.UniversalClient) *RedisResultCache {
	return &RedisResultCache{client: client}
}

func (c *RedisResultCache) Get(ctx context.Context, transactionID uuid.UUID) (domain.Transaction, bool, error) {
	raw, err := c.client.Get(ctx, ResultKey(transactionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Transaction{}, false, nil
		}
		return domain.Transaction{}, false, err
	}
	var tx domain.Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return domain.Transaction{}, false, fmt.Errorf("decode cached transaction: %w", err)
	}
	return tx, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, tx domain.Transaction, ttl time.Duration) error {
	raw, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ResultKey(tx.TransactionID), raw, ttl).Err()
}

func (c *RedisResultCache) Delete(ctx context.Context, transactionID uuid.UUID) error {
	return c.client.Del(ctx, ResultKey(transactionID)).Err()
}
