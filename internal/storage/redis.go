package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Backend in a Redis database. All keys live under Namespace so
// Keys and Clear never touch foreign data.
type Redis struct {
	c         *redis.Client
	namespace string
}

// RedisOptions configures NewRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Namespace is prepended to every key; "textgend:" when empty.
	Namespace string
}

func NewRedis(opts RedisOptions) *Redis {
	ns := opts.Namespace
	if ns == "" {
		ns = "textgend:"
	}
	return &Redis{
		c:         redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}),
		namespace: ns,
	}
}

// Ping checks connectivity.
func (b *Redis) Ping(ctx context.Context) error { return b.c.Ping(ctx).Err() }

func (b *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := b.c.Get(ctx, b.namespace+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (b *Redis) Set(ctx context.Context, key, value string) error {
	// expiry is enforced by Store on read, as for every backend
	return b.c.Set(ctx, b.namespace+key, value, 0).Err()
}

func (b *Redis) Delete(ctx context.Context, key string) error {
	return b.c.Del(ctx, b.namespace+key).Err()
}

func (b *Redis) scan(ctx context.Context) ([]string, error) {
	var out []string
	iter := b.c.Scan(ctx, 0, b.namespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

func (b *Redis) Keys(ctx context.Context) ([]string, error) {
	raw, err := b.scan(ctx)
	if err != nil {
		return nil, err
	}
	for i, k := range raw {
		raw[i] = strings.TrimPrefix(k, b.namespace)
	}
	return raw, nil
}

func (b *Redis) Clear(ctx context.Context) error {
	keys, err := b.scan(ctx)
	if err != nil || len(keys) == 0 {
		return err
	}
	return b.c.Del(ctx, keys...).Err()
}

func (b *Redis) Close() error { return b.c.Close() }
