package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

type EnrichFileUseCase struct {
	repo     ports.FileRepository
	storage  ports.ObjectStorage
	gateway  ports.EnrichmentGateway
	vector   ports.VectorIndex
	queue    ports.TaskQueue
	text        ports.TextExtractor
	metadata    ports.MetadataExtractor
	notifier    ports.Notifier
	maxAttempts int
	logger      *slog.Logger
}

func NewEnrichFileUseCase(
	repo ports.FileRepository,
	storage ports.ObjectStorage,
	gateway ports.EnrichmentGateway,
	vector ports.VectorIndex,
	queue ports.TaskQueue,
	text ports.TextExtractor,
	metadata ports.MetadataExtractor,
	notifier ports.Notifier,
	maxAttempts int,
	logger *slog.Logger,
) *EnrichFileUseCase {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichFileUseCase{
		repo:        repo,
		storage:     storage,
		gateway:     gateway,
		vector:      vector,
		queue:       queue,
		text:        text,
		metadata:    metadata,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ProcessTask drives one file through the enrichment state machine. The
// task is redelivered at-least-once, so every step tolerates reruns:
// object writes are content-addressed, the vector point id is derived from
// the fingerprint, and terminal records are skipped outright.
func (uc *EnrichFileUseCase) ProcessTask(ctx context.Context, task domain.EnrichmentTask) error {
	rec, err := uc.repo.GetByID(ctx, task.FileID)
	if err != nil {
		return err
	}
	if rec.Deleted || rec.Status.IsTerminal() {
		uc.logger.Info("skipping non-actionable file",
			"file_id", rec.ID, "status", rec.Status, "deleted", rec.Deleted)
		return nil
	}

	if err := uc.repo.UpdateStatus(ctx, rec.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	data, err := uc.storage.Get(ctx, rec.StoragePath)
	if err != nil {
		return uc.retryOrFail(ctx, rec, task.Attempt, fmt.Errorf("fetch stored bytes: %w", err))
	}

	// Extraction failures degrade to an empty document, they never fail it.
	content, err := uc.text.Extract(ctx, data, rec.MimeType, rec.OriginalName)
	if err != nil {
		uc.logger.Warn("text extraction failed, treating file as content-free",
			"file_id", rec.ID, "error", err)
		content = ""
	}

	if meta, err := uc.metadata.Extract(ctx, data, rec.MimeType); err != nil {
		uc.logger.Warn("metadata extraction failed", "file_id", rec.ID, "error", err)
	} else if len(meta) > 0 {
		if err := uc.repo.SaveMetadata(ctx, rec.ID, meta); err != nil {
			return uc.retryOrFail(ctx, rec, task.Attempt, fmt.Errorf("save metadata: %w", err))
		}
	}

	if strings.TrimSpace(content) == "" {
		// Nothing for the models to read. The file is done; only the
		// thumbnail sub-pipeline may still apply.
		if err := uc.complete(ctx, rec, nil); err != nil {
			return err
		}
		return nil
	}

	enrichment, err := uc.gateway.Enrich(ctx, content, rec.OriginalName)
	if err != nil {
		uc.fail(ctx, rec, fmt.Sprintf("enrichment failed: %v", err))
		return fmt.Errorf("enrich file %s: %w", rec.ID, err)
	}

	if err := uc.repo.SaveEnrichment(ctx, rec.ID, enrichment); err != nil {
		return uc.retryOrFail(ctx, rec, task.Attempt, fmt.Errorf("save enrichment: %w", err))
	}

	if err := uc.indexEmbedding(ctx, rec, enrichment); err != nil {
		return uc.retryOrFail(ctx, rec, task.Attempt, fmt.Errorf("index embedding: %w", err))
	}

	return uc.complete(ctx, rec, &enrichment)
}

func (uc *EnrichFileUseCase) indexEmbedding(ctx context.Context, rec *domain.FileRecord, enr domain.Enrichment) error {
	tagNames := make([]string, 0, len(enr.Tags))
	for _, tag := range enr.Tags {
		tagNames = append(tagNames, tag.Name)
	}
	pointID := vectorPointID(rec.Fingerprint)
	return uc.vector.Upsert(ctx, pointID, enr.Embedding, map[string]any{
		"file_id":  rec.ID,
		"owner_id": rec.OwnerID,
		"filename": rec.OriginalName,
		"summary":  enr.Summary,
		"tags":     tagNames,
	})
}

func (uc *EnrichFileUseCase) complete(ctx context.Context, rec *domain.FileRecord, enr *domain.Enrichment) error {
	if err := uc.repo.UpdateStatus(ctx, rec.ID, domain.StatusCompleted, ""); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	event := domain.FileEvent{
		Event:   domain.EventCompleted,
		FileID:  rec.ID,
		OwnerID: rec.OwnerID,
	}
	if enr != nil {
		event.Summary = enr.Summary
		event.Tags = enr.Tags
	}
	uc.notifier.NotifyTerminal(ctx, event)

	if needsThumbnail(rec.MimeType) {
		if err := uc.queue.EnqueueThumbnail(ctx, domain.ThumbnailTask{FileID: rec.ID}); err != nil {
			// Thumbnail loss never blocks completion.
			uc.logger.Error("enqueue thumbnail failed", "file_id", rec.ID, "error", err)
		}
	}
	return nil
}

// retryOrFail decides what a mid-pipeline failure means for the record.
// While the queue still has redeliveries left, the record stays in
// processing and the error propagates so the task is re-queued. On the
// final attempt, or when the error kind means redelivery cannot help, the
// record fails carrying the real error detail instead of waiting for the
// sweep's generic timeout.
func (uc *EnrichFileUseCase) retryOrFail(ctx context.Context, rec *domain.FileRecord, attempt int, err error) error {
	permanent := domain.IsKind(err, domain.ErrFileNotFound) ||
		domain.IsKind(err, domain.ErrInvalidInput) ||
		domain.IsKind(err, domain.ErrUnsupported)
	if permanent || attempt >= uc.maxAttempts {
		uc.fail(ctx, rec, err.Error())
	}
	return err
}

func (uc *EnrichFileUseCase) fail(ctx context.Context, rec *domain.FileRecord, reason string) {
	if err := uc.repo.UpdateStatus(ctx, rec.ID, domain.StatusFailed, reason); err != nil {
		uc.logger.Error("mark failed", "file_id", rec.ID, "error", err)
		return
	}
	uc.notifier.NotifyTerminal(ctx, domain.FileEvent{
		Event:   domain.EventFailed,
		FileID:  rec.ID,
		OwnerID: rec.OwnerID,
	})
}

// vectorPointID is deterministic in the content fingerprint so that
// re-enrichment of the same bytes overwrites the existing point.
func vectorPointID(fingerprint string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fingerprint)).String()
}

func needsThumbnail(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") ||
		strings.HasPrefix(mimeType, "video/") ||
		mimeType == "application/pdf"
}
