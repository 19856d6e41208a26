package metrics

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lowc1012/cooldown/internal/log"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ensure that RedisSink satisfies the interface Sink
var _ Sink = &RedisSink{}

const (
	sortedSetMax = "+inf"
	sortedSetMin = "-inf"
)

// RedisSink keeps a running denial total per key in a hash and a time-ordered
// log of recent denials per key in a sorted set. It only observes denials;
// limiter state never lives in Redis.
type RedisSink struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
	window  time.Duration
	timeNow func() time.Time
}

type RedisOption func(*RedisSink)

// WithPrefix sets the key prefix (default "cooldown:").
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisSink) {
		s.prefix = prefix
	}
}

// WithTimeout bounds every Redis round trip made by RecordDenial (default 100ms).
func WithTimeout(d time.Duration) RedisOption {
	return func(s *RedisSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEventWindow sets how long individual denial events are kept (default 1h).
func WithEventWindow(d time.Duration) RedisOption {
	return func(s *RedisSink) {
		if d > 0 {
			s.window = d
		}
	}
}

func WithNow(now func() time.Time) RedisOption {
	return func(s *RedisSink) {
		if now != nil {
			s.timeNow = now
		}
	}
}

func NewRedisSink(client redis.UniversalClient, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client:  client,
		prefix:  "cooldown:",
		timeout: 100 * time.Millisecond,
		window:  time.Hour,
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordDenial never fails the caller: Redis errors are logged and dropped.
func (s *RedisSink) RecordDenial(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.record(ctx, key); err != nil {
		log.Logger().Error("Failed to record denial in redis",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *RedisSink) record(ctx context.Context, key string) error {
	now := s.timeNow()
	minimum := now.Add(-s.window)
	events := s.eventsKey(key)

	// Using Redis pipeline to optimize network performance
	p := s.client.Pipeline()
	incrResult := p.HIncrBy(ctx, s.totalsKey(), key, 1)
	p.ZRemRangeByScore(ctx, events, "0", strconv.FormatInt(minimum.UnixMilli(), 10))
	// assign uuid to each denial so identical timestamps do not collapse
	p.ZAdd(ctx, events, redis.Z{
		Member: uuid.New().String(),
		Score:  float64(now.UnixMilli()),
	})
	p.Expire(ctx, events, s.window)

	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("denial pipeline for key %v: %w", key, err)
	}
	return incrResult.Err()
}

// Total returns the number of denials ever recorded for key.
func (s *RedisSink) Total(ctx context.Context, key string) (int64, error) {
	n, err := s.client.HGet(ctx, s.totalsKey(), key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// Totals returns every recorded key with its denial total.
func (s *RedisSink) Totals(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, s.totalsKey()).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("total for key %v: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Recent returns the number of denials for key inside the event window.
func (s *RedisSink) Recent(ctx context.Context, key string) (int64, error) {
	minimum := s.timeNow().Add(-s.window)
	return s.client.ZCount(ctx, s.eventsKey(key), strconv.FormatInt(minimum.UnixMilli(), 10), sortedSetMax).Result()
}

// Reset clears every recorded denial for key.
func (s *RedisSink) Reset(ctx context.Context, key string) error {
	p := s.client.Pipeline()
	p.HDel(ctx, s.totalsKey(), key)
	p.ZRemRangeByScore(ctx, s.eventsKey(key), sortedSetMin, sortedSetMax)
	_, err := p.Exec(ctx)
	return err
}

func (s *RedisSink) totalsKey() string {
	return s.prefix + "denials"
}

func (s *RedisSink) eventsKey(key string) string {
	return s.prefix + "denials:" + key
}
