package ports

import (
	"context"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

// FileIngestor is the inbound contract for upload orchestration and the
// thin CRUD surface around it.
type FileIngestor interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*domain.UploadResult, error)
	Get(ctx context.Context, ownerID, fileID string) (*domain.FileRecord, error)
	Rename(ctx context.Context, ownerID, fileID, name string) error
	SoftDelete(ctx context.Context, ownerID, fileID string) error
	DownloadURL(ctx context.Context, ownerID, fileID string, ttl time.Duration) (string, error)
	Reprocess(ctx context.Context, ownerID, fileID string) error
}

// EnrichmentProcessor drives one queued task through the state machine.
type EnrichmentProcessor interface {
	ProcessTask(ctx context.Context, task domain.EnrichmentTask) error
}

// ThumbnailProcessor runs the derived-artifact sub-pipeline for one task.
type ThumbnailProcessor interface {
	ProcessTask(ctx context.Context, task domain.ThumbnailTask) error
}

// FileSearcher answers semantic queries over enriched files.
type FileSearcher interface {
	Search(ctx context.Context, ownerID, query string, limit int) ([]domain.SearchHit, error)
}
