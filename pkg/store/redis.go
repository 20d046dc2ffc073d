package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"

	"xroute/pkg/types"
)

const (
	redisIndexKey = "xroute:transactions"
	redisTxPrefix = "xroute:tx:"
)

// RedisStore keeps tracked transactions as JSON values in Redis
type RedisStore struct {
	pool *redis.Pool
}

func timeoutDialOptions() []redis.DialOption {
	return []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialReadTimeout(5 * time.Second),
		redis.DialWriteTimeout(5 * time.Second),
	}
}

// NewRedisStore creates a pooled store for addr (host:port)
func NewRedisStore(addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	return NewRedisStoreWithPool(&redis.Pool{
		MaxIdle:     5,
		IdleTimeout: 240 * time.Second,
		Dial:        func() (redis.Conn, error) { return redis.Dial("tcp", addr, timeoutDialOptions()...) },
	}), nil
}

// NewRedisStoreWithPool wraps an existing pool
func NewRedisStoreWithPool(pool *redis.Pool) *RedisStore {
	return &RedisStore{pool: pool}
}

func (r *RedisStore) SaveTransaction(ctx context.Context, tx types.TrackedTransaction) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	txJSON, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("cannot marshal transaction to JSON: %w", err)
	}

	if err := conn.Send("MULTI"); err != nil {
		return err
	}
	if err := conn.Send("SET", redisTxPrefix+tx.ID, txJSON); err != nil {
		return err
	}
	if err := conn.Send("SADD", redisIndexKey, tx.ID); err != nil {
		return err
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("redis set transaction: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadTransactions(ctx context.Context) ([]types.TrackedTransaction, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis connection: %w", err)
	}
	defer conn.Close()

	ids, err := redis.Strings(conn.Do("SMEMBERS", redisIndexKey))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis list transactions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = redisTxPrefix + id
	}
	values, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		return nil, fmt.Errorf("redis get transactions: %w", err)
	}

	out := make([]types.TrackedTransaction, 0, len(values))
	for _, v := range values {
		if v == nil {
			continue
		}
		var tx types.TrackedTransaction
		if err := json.Unmarshal(v, &tx); err != nil {
			return nil, fmt.Errorf("cannot unmarshal transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.pool.Close()
}
