package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a fixed-window budget for one scope.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Config names the key prefix and the rule per scope.
type Config struct {
	Prefix string
	Rules  map[string]Rule
}

// Limiter enforces per-key fixed-window limits using Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	rules  map[string]Rule
}

// hitScript increments the window counter and starts the window on the first
// hit in one round trip, so a counter can never be left without a TTL.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// New creates a [Limiter] backed by client.
func New(client redis.UniversalClient, cfg Config) *Limiter {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "rl"
	}
	rules := make(map[string]Rule, len(cfg.Rules))
	for scope, r := range cfg.Rules {
		rules[scope] = r
	}
	return &Limiter{redis: client, prefix: prefix, rules: rules}
}

// Allow records one hit for key under scope. It returns [ErrRateLimited]
// once the window budget is exhausted and a wrapped [ErrRedisUnavailable]
// when the counter store cannot be reached. Unknown scopes are unlimited.
func (l *Limiter) Allow(ctx context.Context, scope, key string) error {
	rule, ok := l.rules[scope]
	if !ok || rule.Limit <= 0 || rule.Window <= 0 {
		return nil
	}
	if key == "" {
		key = "unknown"
	}

	count, err := hitScript.Run(ctx, l.redis, []string{l.key(scope, key)}, rule.Window.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count > int64(rule.Limit) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the counter for key under scope.
func (l *Limiter) Reset(ctx context.Context, scope, key string) error {
	if err := l.redis.Del(ctx, l.key(scope, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures a round trip to the counter store.
func (l *Limiter) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (l *Limiter) key(scope, key string) string {
	return l.prefix + ":" + scope + ":" + key
}
