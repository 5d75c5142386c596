package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each day as a hash of domain -> ms under
// <prefix>:totals:<day>, plus a set of known days under <prefix>:days.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "dwell"
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) dayKey(day string) string {
	return fmt.Sprintf("%s:totals:%s", s.prefix, day)
}

func (s *RedisStore) daysKey() string {
	return s.prefix + ":days"
}

// GetDay reads the day hash. A missing key yields empty totals.
func (s *RedisStore) GetDay(ctx context.Context, day string) (DailyTotals, error) {
	raw, err := s.client.HGetAll(ctx, s.dayKey(day)).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", day, err)
	}

	totals := make(DailyTotals, len(raw))
	for domain, v := range raw {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid total for %s on %s: %w", domain, day, err)
		}
		totals[domain] = ms
	}
	return totals, nil
}

// AddDuration uses HINCRBY so concurrent writers never lose an update.
func (s *RedisStore) AddDuration(ctx context.Context, c Commit) error {
	if err := validateCommit(c); err != nil {
		return err
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, s.dayKey(c.Day), c.Domain, c.DurationMs)
		pipe.SAdd(ctx, s.daysKey(), c.Day)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hincrby %s/%s: %w", c.Day, c.Domain, err)
	}
	return nil
}

// Days lists the members of the days set, oldest first.
func (s *RedisStore) Days(ctx context.Context) ([]string, error) {
	days, err := s.client.SMembers(ctx, s.daysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", s.daysKey(), err)
	}
	sort.Strings(days)
	return days, nil
}

// PruneBefore deletes day hashes older than day and removes them from the
// days set.
func (s *RedisStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	days, err := s.Days(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, d := range days {
		if d >= day {
			continue
		}
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.dayKey(d))
			pipe.SRem(ctx, s.daysKey(), d)
			return nil
		})
		if err != nil {
			return n, fmt.Errorf("prune %s: %w", d, err)
		}
		n++
	}
	return n, nil
}

// Purge deletes the days set and every day hash it names.
func (s *RedisStore) Purge(ctx context.Context) error {
	days, err := s.Days(ctx)
	if err != nil {
		return err
	}

	keys := []string{s.daysKey()}
	for _, d := range days {
		keys = append(keys, s.dayKey(d))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
