package ports

import (
	"context"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

// FileRepository persists FileRecord state in the relational store.
// Create must surface a unique-constraint hit on (owner, fingerprint,
// not-deleted) as domain.ErrDuplicate rather than a generic failure.
type FileRepository interface {
	Create(ctx context.Context, rec *domain.FileRecord) error
	GetByID(ctx context.Context, id string) (*domain.FileRecord, error)
	FindByFingerprint(ctx context.Context, ownerID, fingerprint string) (*domain.FileRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.FileStatus, errDetail string) error
	SaveMetadata(ctx context.Context, id string, metadata map[string]any) error
	SaveEnrichment(ctx context.Context, id string, enr domain.Enrichment) error
	SetThumbnailPath(ctx context.Context, id, path string) error
	SetFinalName(ctx context.Context, id, name string) error
	SoftDelete(ctx context.Context, id string) error
	// Rearm transitions a failed record back to pending, clearing the error
	// detail. It is the only path out of a terminal state.
	Rearm(ctx context.Context, id string) error
	// FailStuck force-fails records stuck in processing since before the
	// cutoff, returning the ids it transitioned.
	FailStuck(ctx context.Context, cutoff time.Time, errDetail string) ([]string, error)
}

// ObjectStorage stores source files and derived artifacts. Paths are
// deterministic so retried writes land on the same object.
type ObjectStorage interface {
	Put(ctx context.Context, path string, data []byte, contentType string, metadata map[string]string) error
	Get(ctx context.Context, path string) ([]byte, error)
	PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
}

// TaskQueue delivers tasks at-least-once to the worker pool.
type TaskQueue interface {
	EnqueueEnrichment(ctx context.Context, task domain.EnrichmentTask) error
	EnqueueThumbnail(ctx context.Context, task domain.ThumbnailTask) error
}

// VectorIndex is the semantic search store. The enrichment worker is its
// sole writer.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, embedding []float32, payload map[string]any) error
	Query(ctx context.Context, vector []float32, limit int, minScore float64, filter domain.VectorFilter) ([]domain.VectorHit, error)
	DeleteByFileID(ctx context.Context, fileID string) error
}

// QuotaLimiter answers whether the primary AI provider is usable right now
// and records outcomes. Counter-store unavailability fails open.
type QuotaLimiter interface {
	CheckAllowed(ctx context.Context) (bool, domain.QuotaReason)
	Increment(ctx context.Context) domain.UsageSnapshot
	// WaitOrFallback blocks until the minute window resets when only the
	// per-minute counter is exhausted. Daily exhaustion never waits.
	WaitOrFallback(ctx context.Context, maxWait time.Duration) bool
	// LogOutcome appends a usage entry; it never propagates logging failures.
	LogOutcome(ctx context.Context, success bool, provider string, callErr error)
}

// EnrichmentProvider is the capability set both AI providers implement.
type EnrichmentProvider interface {
	Name() string
	SuggestName(ctx context.Context, text, originalName string) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
	Tags(ctx context.Context, text, filename string) ([]domain.Tag, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EnrichmentGateway routes one enrichment request to a provider, handling
// quota consultation and primary-to-secondary fallback.
type EnrichmentGateway interface {
	Enrich(ctx context.Context, content, filename string) (domain.Enrichment, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// TextExtractor pulls plain text out of stored bytes. An empty result with
// a nil error means the file legitimately has no extractable text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType, filename string) (string, error)
}

// MetadataExtractor pulls structural metadata (dimensions, page count, ...).
// Its failures degrade enrichment output, never fail it.
type MetadataExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (map[string]any, error)
}

// ThumbnailRenderer produces a bounded preview JPEG. Unsupported mime types
// return domain.ErrUnsupported, which the pipeline records as a skip.
type ThumbnailRenderer interface {
	Render(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

// Notifier pushes terminal-transition events to the messaging collaborator.
// Delivery failure must never affect record state, so it returns nothing.
type Notifier interface {
	NotifyTerminal(ctx context.Context, event domain.FileEvent)
}
