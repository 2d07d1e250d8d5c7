package folioAuth

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration

	// RateLimiterConfigured is false when the engine was built without Redis;
	// the limiter fields are then meaningless.
	RateLimiterConfigured bool
	RateLimiterAvailable  bool
	RateLimiterLatency    time.Duration

	// Ready is Healthy evaluated under the engine's fail-open setting.
	Ready bool
}

// Healthy reports whether the engine can serve requests. An unreachable
// rate limiter only counts when the limiter fails closed.
func (h HealthStatus) Healthy(failOpen bool) bool {
	if !h.StoreAvailable {
		return false
	}
	return !h.RateLimiterConfigured || h.RateLimiterAvailable || failOpen
}

// Health probes the account store and the rate limiter.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.store == nil {
		return HealthStatus{}
	}

	var hs HealthStatus
	start := time.Now()
	if _, err := e.store.Count(ctx); err == nil {
		hs.StoreAvailable = true
		hs.StoreLatency = time.Since(start)
	} else {
		e.logger.WarnContext(ctx, "health: account store unreachable", "error", err)
	}

	if e.limiter != nil {
		hs.RateLimiterConfigured = true
		latency, err := e.limiter.Ping(ctx)
		hs.RateLimiterAvailable = err == nil
		hs.RateLimiterLatency = latency
	}
	hs.Ready = hs.Healthy(e.config.RateLimit.FailOpen)
	return hs
}

// Ready reports whether [Engine.Health] considers the engine able to serve
// requests under the configured fail-open policy.
func (e *Engine) Ready(ctx context.Context) bool {
	if e == nil {
		return false
	}
	return e.Health(ctx).Ready
}
