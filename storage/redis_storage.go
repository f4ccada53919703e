package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters for the Redis instance used
// for purchase idempotency claims and short-lived session state.
type RedisConfig struct {
	Host     string `mapstructure:"host" json:"host,omitempty"`
	Port     string `mapstructure:"port" json:"port,omitempty"`
	User     string `mapstructure:"user" json:"user,omitempty"`
	Password string `mapstructure:"password" json:"password,omitempty"`
	DB       int    `mapstructure:"db" json:"db,omitempty"`
}

type RedisStorage struct {
	cfg    RedisConfig
	client *redis.Client
}

func NewRedisStorage(cfg RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		cfg:    cfg,
		client: client,
	}, nil
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return r.client.Get(ctx, key).Result()
}

func (r *RedisStorage) Set(ctx context.Context, key string, value string, expiry time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.client.Set(ctx, key, value, expiry).Err()
}

// Claim atomically marks key as seen and reports whether this caller won
// the claim. Purchase submissions carrying a nonce use it to deduplicate
// resubmitted proposals.
func (r *RedisStorage) Claim(ctx context.Context, key string, expiry time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return r.client.SetNX(ctx, key, "1", expiry).Result()
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}
