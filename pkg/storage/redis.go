package storage

import (
	"context"

	goredislib "github.com/redis/go-redis/v9"

	"github.com/pkg/errors"
)

const (
	pong               = "PONG"
	redisScanBatchSize = 1000
	// how often an optimistic Update transaction is retried before giving up
	updateMaxRetries = 10
)

type RedisDB struct {
	db *goredislib.Client
}

func newRedisDB(options []Option) (*RedisDB, error) {
	address, ok := findOption(options, RedisAddressOption)
	if !ok || address == "" {
		return nil, errors.New("redis address option is required")
	}
	password, _ := findOption(options, PasswordOption)

	client := goredislib.NewClient(&goredislib.Options{
		Addr:     address,
		Password: password,
	})
	return &RedisDB{db: client}, nil
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) URI() string {
	return b.db.Options().Addr
}

func (b *RedisDB) IsOpen() bool {
	res, err := b.db.Ping(context.Background()).Result()
	if err != nil {
		return false
	}
	return res == pong
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	// Zero expiration means the key has no expiration time.
	return b.db.Set(ctx, getRedisKey(namespace, key), value, 0).Err()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	v, err := b.db.Get(ctx, getRedisKey(namespace, key)).Bytes()
	if errors.Is(err, goredislib.Nil) {
		return nil, nil
	}
	return v, err
}

func (b *RedisDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	count, err := b.db.Exists(ctx, getRedisKey(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "reading all keys")
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := b.db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "getting multiple keys")
	}
	if len(keys) != len(values) {
		return nil, errors.New("key length does not match value length")
	}

	prefixLen := len(namespace) + 1
	result := make(map[string][]byte, len(keys))
	for i, val := range values {
		s, ok := val.(string)
		if !ok {
			continue
		}
		result[keys[i][prefixLen:]] = []byte(s)
	}
	return result, nil
}

// Update uses an optimistic WATCH transaction so the ceiling-style
// read-modify-write cannot interleave with a concurrent writer.
func (b *RedisDB) Update(ctx context.Context, namespace, key string, updater Updater) ([]byte, error) {
	redisKey := getRedisKey(namespace, key)
	var updated []byte

	txn := func(tx *goredislib.Tx) error {
		v, err := tx.Get(ctx, redisKey).Bytes()
		if err != nil && !errors.Is(err, goredislib.Nil) {
			return err
		}
		if errors.Is(err, goredislib.Nil) {
			v = nil
		}
		if err = updater.Validate(v); err != nil {
			return err
		}
		if updated, err = updater.Update(v); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredislib.Pipeliner) error {
			return pipe.Set(ctx, redisKey, updated, 0).Err()
		})
		return err
	}

	for i := 0; i < updateMaxRetries; i++ {
		err := b.db.Watch(ctx, txn, redisKey)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, goredislib.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, errors.New("update reached max retries")
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	return b.db.Del(ctx, getRedisKey(namespace, key)).Err()
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := b.readAllKeys(ctx, namespace)
	if err != nil {
		return errors.Wrap(err, "reading all keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return b.db.Del(ctx, keys...).Err()
}

func (b *RedisDB) readAllKeys(ctx context.Context, namespace string) ([]string, error) {
	var cursor uint64
	allKeys := make([]string, 0)
	for {
		keys, nextCursor, err := b.db.Scan(ctx, cursor, namespace+"-*", redisScanBatchSize).Result()
		if err != nil {
			return nil, errors.Wrap(err, "scanning keys")
		}
		allKeys = append(allKeys, keys...)
		if nextCursor == 0 {
			break
		}
		cursor = nextCursor
	}
	return allKeys, nil
}

func getRedisKey(namespace, key string) string {
	return namespace + "-" + key
}
