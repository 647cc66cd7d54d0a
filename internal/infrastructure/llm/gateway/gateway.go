// Package gateway routes enrichment work between the hosted provider and
// the local fallback. The hosted provider is consulted only while the
// request budget allows it; the local provider must always produce an
// answer, degrading individual fields instead of failing the document.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
	"github.com/kirillkom/ai-file-vault/internal/infrastructure/llm/tagparse"
	"github.com/kirillkom/ai-file-vault/internal/observability/metrics"
)

const degradedSummary = "Unable to generate summary"

type Gateway struct {
	primary      ports.EnrichmentProvider
	secondary    ports.EnrichmentProvider
	limiter      ports.QuotaLimiter
	embeddingDim int
	maxWait      time.Duration
	logger       *slog.Logger
	metrics      *metrics.GatewayMetrics
}

type Config struct {
	EmbeddingDim int
	MaxQuotaWait time.Duration
}

func New(primary, secondary ports.EnrichmentProvider, limiter ports.QuotaLimiter, cfg Config, logger *slog.Logger, m *metrics.GatewayMetrics) *Gateway {
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.MaxQuotaWait <= 0 {
		cfg.MaxQuotaWait = 65 * time.Second
	}
	return &Gateway{
		primary:      primary,
		secondary:    secondary,
		limiter:      limiter,
		embeddingDim: cfg.EmbeddingDim,
		maxWait:      cfg.MaxQuotaWait,
		logger:       logger,
		metrics:      m,
	}
}

func (g *Gateway) Enrich(ctx context.Context, content, filename string) (domain.Enrichment, error) {
	if g.usePrimary(ctx) {
		enrichment, err := g.enrichWith(ctx, g.primary, content, filename, false)
		g.metrics.ObserveRequest(g.primary.Name(), err)
		g.limiter.LogOutcome(ctx, err == nil, g.primary.Name(), err)
		if err == nil {
			return enrichment, nil
		}
		g.logger.Warn("primary enrichment failed, switching to fallback",
			"provider", g.primary.Name(), "file", filename, "error", err)
	}

	enrichment, err := g.enrichWith(ctx, g.secondary, content, filename, true)
	g.metrics.ObserveRequest(g.secondary.Name(), err)
	g.limiter.LogOutcome(ctx, err == nil, g.secondary.Name(), err)
	if err != nil {
		return domain.Enrichment{}, fmt.Errorf("fallback enrichment: %w", err)
	}
	return enrichment, nil
}

func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if g.usePrimary(ctx) {
		vec, err := g.embedWith(ctx, g.primary, text)
		g.limiter.LogOutcome(ctx, err == nil, g.primary.Name(), err)
		if err == nil {
			return vec, nil
		}
		g.logger.Warn("primary query embedding failed, switching to fallback",
			"provider", g.primary.Name(), "error", err)
	}

	vec, err := g.embedWith(ctx, g.secondary, text)
	g.limiter.LogOutcome(ctx, err == nil, g.secondary.Name(), err)
	if err != nil {
		return nil, fmt.Errorf("fallback query embedding: %w", err)
	}
	return vec, nil
}

// usePrimary consults the quota and, when the answer is yes, consumes one
// request from it. A daily exhaustion diverts immediately; a minute
// exhaustion may block for the remainder of the window first.
func (g *Gateway) usePrimary(ctx context.Context) bool {
	allowed, reason := g.limiter.CheckAllowed(ctx)
	if allowed {
		g.limiter.Increment(ctx)
		return true
	}

	g.metrics.ObserveQuotaRejection(string(reason))
	if reason == domain.ReasonDailyExceeded {
		g.logger.Info("daily quota exhausted, using fallback provider")
		return false
	}
	if g.limiter.WaitOrFallback(ctx, g.maxWait) {
		g.limiter.Increment(ctx)
		return true
	}
	g.logger.Info("minute window busy, using fallback provider")
	return false
}

// enrichWith runs the four sub-operations against one provider. In degrade
// mode each sub-operation failure substitutes a usable value instead of
// failing the document, so a completely unreachable provider still yields
// a degraded enrichment.
func (g *Gateway) enrichWith(ctx context.Context, provider ports.EnrichmentProvider, content, filename string, degrade bool) (domain.Enrichment, error) {
	out := domain.Enrichment{Provider: provider.Name()}

	name, err := provider.SuggestName(ctx, content, filename)
	if err != nil {
		if !degrade {
			return domain.Enrichment{}, fmt.Errorf("suggest name: %w", err)
		}
		g.logger.Warn("name suggestion degraded to original filename", "file", filename, "error", err)
		name = stripExtension(filename)
	}
	out.SuggestedName = name

	summary, err := provider.Summarize(ctx, content)
	if err != nil {
		if !degrade {
			return domain.Enrichment{}, fmt.Errorf("summarize: %w", err)
		}
		g.logger.Warn("summary degraded", "file", filename, "error", err)
		summary = degradedSummary
	}
	out.Summary = summary

	tags, err := provider.Tags(ctx, content, filename)
	if err != nil || len(tags) == 0 {
		if !degrade && err != nil {
			return domain.Enrichment{}, fmt.Errorf("tags: %w", err)
		}
		tags = []domain.Tag{tagparse.FallbackTag}
	}
	out.Tags = tags

	vec, err := g.embedWith(ctx, provider, content)
	if err != nil {
		if !degrade {
			return domain.Enrichment{}, fmt.Errorf("embed: %w", err)
		}
		// The document still completes; it just will not be findable by
		// semantic search until reprocessed.
		g.logger.Error("embedding degraded to zero vector, document unsearchable",
			"file", filename, "error", err)
		g.metrics.ObserveEmbeddingFallback()
		vec = make([]float32, g.embeddingDim)
	}
	out.Embedding = vec

	return out, nil
}

func (g *Gateway) embedWith(ctx context.Context, provider ports.EnrichmentProvider, text string) ([]float32, error) {
	vec, err := provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != g.embeddingDim {
		return nil, fmt.Errorf("provider %s returned %d-dimensional embedding, want %d",
			provider.Name(), len(vec), g.embeddingDim)
	}
	return vec, nil
}

func stripExtension(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
