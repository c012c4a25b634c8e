package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis snapshot backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	// Prefix namespaces every key written by the backend.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// DefaultRedisPrefix is used when RedisConfig.Prefix is empty.
const DefaultRedisPrefix = "phasegen:memory"

// RedisBackend keeps one hash per phase plus a set of phase names.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("memory: connect to redis: %w", err)
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{client: client, prefix: prefix}, nil
}

// Name identifies the backend in logs.
func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) phasesKey() string  { return b.prefix + ":phases" }
func (b *RedisBackend) savedAtKey() string { return b.prefix + ":saved_at" }
func (b *RedisBackend) phaseKey(phase string) string {
	return b.prefix + ":phase:" + phase
}

// Save replaces the stored snapshot in a MULTI/EXEC transaction.
func (b *RedisBackend) Save(ctx context.Context, snap Snapshot) error {
	existing, err := b.client.SMembers(ctx, b.phasesKey()).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("list phases: %w", err)
	}
	_, err = b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		stale := make([]string, 0, len(existing)+1)
		for _, phase := range existing {
			stale = append(stale, b.phaseKey(phase))
		}
		stale = append(stale, b.phasesKey())
		pipe.Del(ctx, stale...)
		for phase, values := range snap {
			pipe.SAdd(ctx, b.phasesKey(), phase)
			if len(values) == 0 {
				continue
			}
			fields := make(map[string]any, len(values))
			for key, value := range values {
				fields[key] = value
			}
			pipe.HSet(ctx, b.phaseKey(phase), fields)
		}
		pipe.Set(ctx, b.savedAtKey(), time.Now().UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	return err
}

// Load reads the stored snapshot, or ErrNoSnapshot when none was saved.
func (b *RedisBackend) Load(ctx context.Context) (Snapshot, error) {
	if err := b.client.Get(ctx, b.savedAtKey()).Err(); err != nil {
		if err == redis.Nil {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	phases, err := b.client.SMembers(ctx, b.phasesKey()).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	snap := make(Snapshot, len(phases))
	for _, phase := range phases {
		values, err := b.client.HGetAll(ctx, b.phaseKey(phase)).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("read phase %s: %w", phase, err)
		}
		if values == nil {
			values = map[string]string{}
		}
		snap[phase] = values
	}
	return snap, nil
}

// Close releases the client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
