// Package ratelimit tracks the primary AI provider's request budget in
// Redis: a 60-second sliding counter and a calendar-day counter, each with
// its own expiry. The limiter fails open when Redis is unreachable:
// enrichment availability wins over exact quota enforcement.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

const (
	rpmKey         = "ai:quota:rpm"
	dailyKeyPrefix = "ai:quota:daily"
)

type Limits struct {
	RPM   int64
	Daily int64
}

func DefaultLimits() Limits {
	// Gemini free-tier budget.
	return Limits{RPM: 15, Daily: 1500}
}

type Limiter struct {
	rdb     *redis.Client
	limits  Limits
	tracker *Tracker

	// sleep is swapped out in tests; production uses a context-aware wait.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewLimiter(rdb *redis.Client, limits Limits) *Limiter {
	if limits.RPM <= 0 {
		limits.RPM = DefaultLimits().RPM
	}
	if limits.Daily <= 0 {
		limits.Daily = DefaultLimits().Daily
	}
	return &Limiter{
		rdb:     rdb,
		limits:  limits,
		tracker: NewTracker(rdb),
		sleep:   sleepCtx,
	}
}

func dailyKey(now time.Time) string {
	return fmt.Sprintf("%s:%s", dailyKeyPrefix, now.UTC().Format("2006-01-02"))
}

// CheckAllowed consults both counters read-only. A Redis error fails open.
func (l *Limiter) CheckAllowed(ctx context.Context) (bool, domain.QuotaReason) {
	rpm, err := l.rdb.Get(ctx, rpmKey).Int64()
	if err != nil && err != redis.Nil {
		slog.Error("rate_limit_check_failed", "error", err)
		return true, domain.ReasonNone
	}
	if err == nil && rpm >= l.limits.RPM {
		slog.Warn("rpm_limit_exceeded", "count", rpm, "limit", l.limits.RPM)
		return false, domain.ReasonRPMExceeded
	}

	daily, err := l.rdb.Get(ctx, dailyKey(time.Now())).Int64()
	if err != nil && err != redis.Nil {
		slog.Error("rate_limit_check_failed", "error", err)
		return true, domain.ReasonNone
	}
	if err == nil && daily >= l.limits.Daily {
		slog.Warn("daily_quota_exceeded", "count", daily, "limit", l.limits.Daily)
		return false, domain.ReasonDailyExceeded
	}

	return true, domain.ReasonNone
}

// Increment bumps both counters, arming each window's expiry on its first
// increment. The two counters are independently atomic; read-then-increment
// is not atomic across them.
func (l *Limiter) Increment(ctx context.Context) domain.UsageSnapshot {
	rpm, err := l.rdb.Incr(ctx, rpmKey).Result()
	if err != nil {
		slog.Error("rate_limit_increment_failed", "key", rpmKey, "error", err)
		return domain.UsageSnapshot{RPMLimit: l.limits.RPM, DailyLimit: l.limits.Daily}
	}
	if rpm == 1 {
		l.rdb.Expire(ctx, rpmKey, time.Minute)
	}

	now := time.Now().UTC()
	dk := dailyKey(now)
	daily, err := l.rdb.Incr(ctx, dk).Result()
	if err != nil {
		slog.Error("rate_limit_increment_failed", "key", dk, "error", err)
		daily = 0
	} else if daily == 1 {
		l.rdb.Expire(ctx, dk, untilEndOfDay(now))
	}

	slog.Info("ai_quota_usage",
		"rpm", rpm, "rpm_limit", l.limits.RPM,
		"daily", daily, "daily_limit", l.limits.Daily,
	)
	return l.snapshot(rpm, daily)
}

// Usage reads both counters without incrementing.
func (l *Limiter) Usage(ctx context.Context) domain.UsageSnapshot {
	rpm, err := l.rdb.Get(ctx, rpmKey).Int64()
	if err != nil {
		rpm = 0
	}
	daily, err := l.rdb.Get(ctx, dailyKey(time.Now())).Int64()
	if err != nil {
		daily = 0
	}
	return l.snapshot(rpm, daily)
}

// WaitOrFallback sleeps through the remainder of the minute window when only
// the per-minute counter is exhausted. It returns true when the caller may
// retry the primary provider, false when it should fall back. Daily
// exhaustion returns false immediately; waiting cannot help until midnight.
func (l *Limiter) WaitOrFallback(ctx context.Context, maxWait time.Duration) bool {
	allowed, reason := l.CheckAllowed(ctx)
	if allowed {
		return true
	}

	switch reason {
	case domain.ReasonDailyExceeded:
		return false
	case domain.ReasonRPMExceeded:
		ttl, err := l.rdb.TTL(ctx, rpmKey).Result()
		if err != nil {
			return true
		}
		// ttl <= 0 means the key is missing or carries no expiry, so
		// there is no deadline to sleep toward; divert to the fallback
		// rather than guess when the window clears.
		if ttl <= 0 || ttl > maxWait {
			slog.Warn("rpm_wait_skipped", "ttl_s", ttl.Seconds(), "max_wait_s", maxWait.Seconds())
			return false
		}
		slog.Info("rpm_limit_hit_waiting", "wait_s", ttl.Seconds())
		// One extra second so the counter has actually expired.
		return l.sleep(ctx, ttl+time.Second)
	}
	return false
}

// LogOutcome records one provider call in the usage history. Logging
// failures are swallowed; the enrichment outcome must not depend on them.
func (l *Limiter) LogOutcome(ctx context.Context, success bool, provider string, callErr error) {
	l.tracker.Log(ctx, success, provider, callErr)
}

// Statistics exposes the tracker's trailing-window aggregation.
func (l *Limiter) Statistics(ctx context.Context, hours int) domain.UsageStats {
	return l.tracker.Statistics(ctx, hours)
}

// ResetDailyQuota drops today's counter. Admin escape hatch.
func (l *Limiter) ResetDailyQuota(ctx context.Context) error {
	return l.rdb.Del(ctx, dailyKey(time.Now())).Err()
}

func (l *Limiter) snapshot(rpm, daily int64) domain.UsageSnapshot {
	return domain.UsageSnapshot{
		RPMCount:       rpm,
		RPMLimit:       l.limits.RPM,
		DailyCount:     daily,
		DailyLimit:     l.limits.Daily,
		RPMRemaining:   max(0, l.limits.RPM-rpm),
		DailyRemaining: max(0, l.limits.Daily-daily),
	}
}

func untilEndOfDay(now time.Time) time.Duration {
	eod := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	d := eod.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
