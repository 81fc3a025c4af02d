package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"github.com/BenardMarashi/docmanagement/internal/db"
	"github.com/BenardMarashi/docmanagement/internal/retry"
)

var _ db.Store = (*Store)(nil)

// Config holds connection parameters shared by the record store and the search index.
type Config struct {
	Addrs    []string
	Password string
	DB       int
}

// Store implements db.Store over rueidis. Requires Redis 8+ (query engine built in).
type Store struct {
	client rueidis.Client
	// readiness is the ping schedule used by WaitForReady.
	readiness retry.Policy
}

// NewStore connects to Redis. Blank addresses (unset env vars) are dropped.
func NewStore(cfg Config) (*Store, error) {
	addrs := make([]string, 0, len(cfg.Addrs))
	for _, a := range cfg.Addrs {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return nil, errors.New("redis: at least one address is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  addrs,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH parsing expects RESP2 arrays
	})
	if err != nil {
		return nil, fmt.Errorf("redis: create client: %w", err)
	}
	return newStore(client), nil
}

func newStore(c rueidis.Client) *Store {
	return &Store{
		client: c,
		readiness: retry.Policy{
			MaxAttempts: 1 << 20, // bounded by the WaitForReady timeout
			BaseDelay:   100 * time.Millisecond,
			Multiplier:  2,
			MaxDelay:    2 * time.Second,
		},
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.do(ctx, s.b().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() {
	s.client.Close()
}

// WaitForReady pings with backoff until Redis answers or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	err := retry.Do(ctx, s.readiness, func(ctx context.Context) error {
		lastErr = s.Ping(ctx)
		return lastErr
	})
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("redis not ready after %s: %w", timeout, lastErr)
	}
	return fmt.Errorf("redis not ready after %s: %w", timeout, err)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr reports whether err is a server reply containing substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
