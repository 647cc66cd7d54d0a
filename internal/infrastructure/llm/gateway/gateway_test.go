package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

type fakeProvider struct {
	name       string
	nameErr    error
	summaryErr error
	tagsErr    error
	embedErr   error
	embedDim   int
	calls      []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SuggestName(ctx context.Context, text, originalName string) (string, error) {
	f.calls = append(f.calls, "name")
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return "suggested_name", nil
}

func (f *fakeProvider) Summarize(ctx context.Context, text string) (string, error) {
	f.calls = append(f.calls, "summary")
	if f.summaryErr != nil {
		return "", f.summaryErr
	}
	return "a summary", nil
}

func (f *fakeProvider) Tags(ctx context.Context, text, filename string) ([]domain.Tag, error) {
	f.calls = append(f.calls, "tags")
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return []domain.Tag{{Name: "report", Confidence: 0.9}}, nil
}

func (f *fakeProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, "embed")
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	dim := f.embedDim
	if dim == 0 {
		dim = 4
	}
	vec := make([]float32, dim)
	vec[0] = 1
	return vec, nil
}

type outcome struct {
	success  bool
	provider string
}

type fakeLimiter struct {
	allowed    bool
	reason     domain.QuotaReason
	waitResult bool
	waitCalled bool
	increments int
	outcomes   []outcome
}

func (f *fakeLimiter) CheckAllowed(ctx context.Context) (bool, domain.QuotaReason) {
	return f.allowed, f.reason
}

func (f *fakeLimiter) Increment(ctx context.Context) domain.UsageSnapshot {
	f.increments++
	return domain.UsageSnapshot{}
}

func (f *fakeLimiter) WaitOrFallback(ctx context.Context, maxWait time.Duration) bool {
	f.waitCalled = true
	return f.waitResult
}

func (f *fakeLimiter) LogOutcome(ctx context.Context, success bool, provider string, callErr error) {
	f.outcomes = append(f.outcomes, outcome{success: success, provider: provider})
}

func newGateway(primary, secondary ports.EnrichmentProvider, limiter *fakeLimiter) *Gateway {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(primary, secondary, limiter, Config{EmbeddingDim: 4}, logger, nil)
}

func TestEnrichUsesPrimaryWhenQuotaAllows(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: true}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.Provider != domain.ProviderGemini {
		t.Fatalf("expected primary provider, got %s", enrichment.Provider)
	}
	if limiter.increments != 1 {
		t.Fatalf("expected one quota increment, got %d", limiter.increments)
	}
	if len(secondary.calls) != 0 {
		t.Fatalf("secondary should be untouched, saw %v", secondary.calls)
	}
	if len(limiter.outcomes) != 1 || !limiter.outcomes[0].success || limiter.outcomes[0].provider != domain.ProviderGemini {
		t.Fatalf("unexpected usage log %+v", limiter.outcomes)
	}
}

func TestDailyExhaustionDivertsWithoutWaiting(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: false, reason: domain.ReasonDailyExceeded}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.Provider != domain.ProviderOllama {
		t.Fatalf("expected fallback provider, got %s", enrichment.Provider)
	}
	if limiter.waitCalled {
		t.Fatal("daily exhaustion must not wait for the minute window")
	}
	if limiter.increments != 0 {
		t.Fatalf("quota must not be consumed, got %d increments", limiter.increments)
	}
	if len(primary.calls) != 0 {
		t.Fatalf("primary should be untouched, saw %v", primary.calls)
	}
}

func TestMinuteExhaustionWaitsThenUsesPrimary(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: false, reason: domain.ReasonRPMExceeded, waitResult: true}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if !limiter.waitCalled {
		t.Fatal("expected a wait on the minute window")
	}
	if enrichment.Provider != domain.ProviderGemini {
		t.Fatalf("expected primary after wait, got %s", enrichment.Provider)
	}
	if limiter.increments != 1 {
		t.Fatalf("expected one quota increment, got %d", limiter.increments)
	}
}

func TestMinuteExhaustionTooLongFallsBack(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: false, reason: domain.ReasonRPMExceeded, waitResult: false}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.Provider != domain.ProviderOllama {
		t.Fatalf("expected fallback provider, got %s", enrichment.Provider)
	}
}

func TestPrimaryFailureFallsBackAndLogsBothOutcomes(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini, summaryErr: errors.New("boom")}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: true}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.Provider != domain.ProviderOllama {
		t.Fatalf("expected fallback provider, got %s", enrichment.Provider)
	}
	want := []outcome{
		{success: false, provider: domain.ProviderGemini},
		{success: true, provider: domain.ProviderOllama},
	}
	if len(limiter.outcomes) != 2 || limiter.outcomes[0] != want[0] || limiter.outcomes[1] != want[1] {
		t.Fatalf("unexpected usage log %+v", limiter.outcomes)
	}
}

func TestSecondaryDegradesPerFieldInsteadOfFailing(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &fakeProvider{
		name:       domain.ProviderOllama,
		nameErr:    errors.New("name down"),
		summaryErr: errors.New("summary down"),
		tagsErr:    errors.New("tags down"),
		embedErr:   errors.New("embed down"),
	}
	limiter := &fakeLimiter{allowed: false, reason: domain.ReasonDailyExceeded}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "report.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.SuggestedName != "report" {
		t.Fatalf("expected original basename, got %q", enrichment.SuggestedName)
	}
	if enrichment.Summary != degradedSummary {
		t.Fatalf("unexpected summary %q", enrichment.Summary)
	}
	if len(enrichment.Tags) != 1 || enrichment.Tags[0].Name != "document" {
		t.Fatalf("expected fallback tag, got %+v", enrichment.Tags)
	}
	if len(enrichment.Embedding) != 4 {
		t.Fatalf("expected zero vector of configured dimension, got %d", len(enrichment.Embedding))
	}
	for _, v := range enrichment.Embedding {
		if v != 0 {
			t.Fatalf("expected zero vector, got %v", enrichment.Embedding)
		}
	}
}

// unreachableProvider mimics a local daemon that is fully down: every
// sub-operation and the health probe refuse the connection.
type unreachableProvider struct {
	fakeProvider
}

func (p *unreachableProvider) HealthCheck(ctx context.Context) error {
	return errors.New("connection refused")
}

func TestSecondaryDaemonDownStillYieldsDegradedResult(t *testing.T) {
	refused := errors.New("connection refused")
	primary := &fakeProvider{name: domain.ProviderGemini}
	secondary := &unreachableProvider{fakeProvider{
		name:       domain.ProviderOllama,
		nameErr:    refused,
		summaryErr: refused,
		tagsErr:    refused,
		embedErr:   refused,
	}}
	limiter := &fakeLimiter{allowed: false, reason: domain.ReasonDailyExceeded}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "notes.txt")
	if err != nil {
		t.Fatalf("Enrich with unreachable fallback: %v", err)
	}
	if enrichment.SuggestedName != "notes" {
		t.Fatalf("expected original basename, got %q", enrichment.SuggestedName)
	}
	if enrichment.Summary != degradedSummary {
		t.Fatalf("unexpected summary %q", enrichment.Summary)
	}
	if len(enrichment.Tags) != 1 || enrichment.Tags[0].Name != "document" {
		t.Fatalf("expected fallback tag, got %+v", enrichment.Tags)
	}
	if len(enrichment.Embedding) != 4 {
		t.Fatalf("expected zero vector of configured dimension, got %d", len(enrichment.Embedding))
	}
	if len(limiter.outcomes) != 1 || limiter.outcomes[0].provider != domain.ProviderOllama || !limiter.outcomes[0].success {
		t.Fatalf("unexpected outcomes %+v", limiter.outcomes)
	}
}

func TestWrongEmbeddingDimensionTriggersFallback(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini, embedDim: 3}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: true}

	enrichment, err := newGateway(primary, secondary, limiter).Enrich(context.Background(), "content", "doc.pdf")
	if err != nil {
		t.Fatalf("Enrich: %v", err)
	}
	if enrichment.Provider != domain.ProviderOllama {
		t.Fatalf("expected fallback after dimension mismatch, got %s", enrichment.Provider)
	}
}

func TestEmbedQueryFallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeProvider{name: domain.ProviderGemini, embedErr: errors.New("down")}
	secondary := &fakeProvider{name: domain.ProviderOllama}
	limiter := &fakeLimiter{allowed: true}

	vec, err := newGateway(primary, secondary, limiter).EmbedQuery(context.Background(), "query")
	if err != nil {
		t.Fatalf("EmbedQuery: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("unexpected vector length %d", len(vec))
	}
}
