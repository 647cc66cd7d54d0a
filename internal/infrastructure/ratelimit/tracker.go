package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

const (
	historyKey       = "ai:usage:history"
	historyRetention = 7 * 24 * time.Hour
)

// Tracker keeps an append-only usage log in a Redis sorted set scored by
// unix time, trimmed to a trailing retention window on every append.
type Tracker struct {
	rdb *redis.Client
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

type usageEntry struct {
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	Error     string `json:"error,omitempty"`
}

// Log appends one entry and prunes expired history. Errors are logged and
// swallowed: the tracker must never fail a caller.
func (t *Tracker) Log(ctx context.Context, success bool, provider string, callErr error) {
	now := time.Now().UTC()
	entry := usageEntry{
		Timestamp: now.Format(time.RFC3339),
		Success:   success,
		Provider:  provider,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		slog.Error("usage_log_marshal_failed", "error", err)
		return
	}

	if err := t.rdb.ZAdd(ctx, historyKey, redis.Z{
		Score:  float64(now.Unix()),
		Member: string(raw),
	}).Err(); err != nil {
		slog.Error("usage_log_append_failed", "error", err)
		return
	}

	cutoff := now.Add(-historyRetention).Unix()
	if err := t.rdb.ZRemRangeByScore(ctx, historyKey, "0", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		slog.Error("usage_log_trim_failed", "error", err)
	}
}

// Statistics aggregates the last N hours of history.
func (t *Tracker) Statistics(ctx context.Context, hours int) domain.UsageStats {
	if hours <= 0 {
		hours = 24
	}
	stats := domain.UsageStats{PeriodHours: hours}

	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour).Unix()
	members, err := t.rdb.ZRangeByScore(ctx, historyKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		slog.Error("usage_stats_read_failed", "error", err)
		return stats
	}

	for _, member := range members {
		var entry usageEntry
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			continue
		}
		stats.TotalRequests++
		if entry.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
		switch entry.Provider {
		case domain.ProviderGemini:
			stats.PrimaryCount++
		case domain.ProviderOllama:
			stats.SecondaryCount++
		}
	}

	if stats.TotalRequests > 0 {
		stats.SuccessRate = round2(float64(stats.Successful) / float64(stats.TotalRequests) * 100)
		stats.FallbackRate = round2(float64(stats.SecondaryCount) / float64(stats.TotalRequests) * 100)
	}
	return stats
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
