package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig defines the redis connection used for status caching and wake-ups.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	TTL         time.Duration
	Compression bool
	Channel     string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStatusCache stores job snapshots in redis with a TTL.
type RedisStatusCache struct {
	client      redis.Cmdable
	keyPrefix   string
	ttl         time.Duration
	compression bool
}

// NewRedisStatusCache creates a status cache over an existing client.
func NewRedisStatusCache(client redis.Cmdable, cfg RedisConfig) *RedisStatusCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisStatusCache{
		client:      client,
		keyPrefix:   cfg.KeyPrefix,
		ttl:         ttl,
		compression: cfg.Compression,
	}
}

func (rc *RedisStatusCache) GetStatus(ctx context.Context, jobID string) (*JobSnapshot, error) {
	val, err := rc.client.Get(ctx, statusKey(rc.keyPrefix, jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		cacheOps.WithLabelValues("redis", "miss").Inc()
		return nil, nil
	}
	if err != nil {
		cacheOps.WithLabelValues("redis", "error").Inc()
		return nil, err
	}
	cacheOps.WithLabelValues("redis", "hit").Inc()
	return decodeSnapshot(val)
}

func (rc *RedisStatusCache) SetStatus(ctx context.Context, snap *JobSnapshot) error {
	if snap == nil || snap.Job == nil {
		return fmt.Errorf("job snapshot is empty")
	}
	data, err := encodeSnapshot(snap, rc.compression)
	if err != nil {
		return err
	}
	if err := rc.client.Set(ctx, statusKey(rc.keyPrefix, snap.Job.ID), data, rc.ttl).Err(); err != nil {
		cacheOps.WithLabelValues("redis", "error").Inc()
		return err
	}
	cacheOps.WithLabelValues("redis", "set").Inc()
	return nil
}

func (rc *RedisStatusCache) Invalidate(ctx context.Context, jobID string) error {
	if err := rc.client.Del(ctx, statusKey(rc.keyPrefix, jobID)).Err(); err != nil {
		cacheOps.WithLabelValues("redis", "error").Inc()
		return err
	}
	return nil
}

// RedisNotifier publishes enqueue wake-ups over redis pub/sub.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a notifier on the given channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "eventclone:jobs"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Publish(ctx context.Context, jobID string) error {
	return n.client.Publish(ctx, n.channel, jobID).Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan string, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", n.channel, err)
	}

	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				default:
				}
			}
		}
	}()
	return out, nil
}
