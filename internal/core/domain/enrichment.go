package domain

const (
	ProviderGemini = "gemini"
	ProviderOllama = "ollama"
)

// Enrichment is the full AI-derived result for one file: the four
// sub-operation outputs plus which provider actually produced them.
type Enrichment struct {
	SuggestedName string
	Summary       string
	Tags          []Tag
	Embedding     []float32
	Provider      string
}

// EnrichmentTask is the queue payload driving one file through the
// enrichment state machine. Attempt counts prior deliveries; the queue
// drops the task once the retry ceiling is reached.
type EnrichmentTask struct {
	FileID  string `json:"file_id"`
	OwnerID string `json:"owner_id"`
	Attempt int    `json:"attempt"`
}

// ThumbnailTask is the derived-artifact queue payload. It has its own
// failure domain: exhausting its retries leaves the record completed with
// no thumbnail reference.
type ThumbnailTask struct {
	FileID  string `json:"file_id"`
	Attempt int    `json:"attempt"`
}

type QuotaReason string

const (
	ReasonNone          QuotaReason = ""
	ReasonRPMExceeded   QuotaReason = "rate_limit_rpm"
	ReasonDailyExceeded QuotaReason = "quota_exceeded"
)

// UsageSnapshot reflects the primary provider's quota counters at one
// moment. The two counters are independently atomic, not jointly.
type UsageSnapshot struct {
	RPMCount       int64 `json:"rpm_count"`
	RPMLimit       int64 `json:"rpm_limit"`
	DailyCount     int64 `json:"daily_count"`
	DailyLimit     int64 `json:"daily_limit"`
	RPMRemaining   int64 `json:"rpm_remaining"`
	DailyRemaining int64 `json:"daily_remaining"`
}

// UsageStats aggregates the trailing usage log for observability.
type UsageStats struct {
	PeriodHours    int     `json:"period_hours"`
	TotalRequests  int     `json:"total_requests"`
	Successful     int     `json:"successful"`
	Failed         int     `json:"failed"`
	SuccessRate    float64 `json:"success_rate"`
	PrimaryCount   int     `json:"primary_requests"`
	SecondaryCount int     `json:"secondary_requests"`
	FallbackRate   float64 `json:"fallback_rate"`
}

// VectorFilter narrows vector-index queries; empty fields match everything.
type VectorFilter struct {
	OwnerID string
}

// VectorHit is a scored match from the vector index with its mirrored payload.
type VectorHit struct {
	ID      string
	Score   float64
	Payload map[string]any
}
