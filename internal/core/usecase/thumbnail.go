package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

type ThumbnailUseCase struct {
	repo     ports.FileRepository
	storage  ports.ObjectStorage
	renderer ports.ThumbnailRenderer
	logger   *slog.Logger
}

func NewThumbnailUseCase(
	repo ports.FileRepository,
	storage ports.ObjectStorage,
	renderer ports.ThumbnailRenderer,
	logger *slog.Logger,
) *ThumbnailUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThumbnailUseCase{
		repo:     repo,
		storage:  storage,
		renderer: renderer,
		logger:   logger,
	}
}

// ProcessTask renders and stores one preview. Failure here never touches
// the file's status; a file without a thumbnail is still complete.
func (uc *ThumbnailUseCase) ProcessTask(ctx context.Context, task domain.ThumbnailTask) error {
	rec, err := uc.repo.GetByID(ctx, task.FileID)
	if err != nil {
		return err
	}
	if rec.Deleted {
		return nil
	}
	if rec.ThumbnailPath != "" {
		uc.logger.Debug("thumbnail already present", "file_id", rec.ID)
		return nil
	}

	data, err := uc.storage.Get(ctx, rec.StoragePath)
	if err != nil {
		return fmt.Errorf("fetch stored bytes: %w", err)
	}

	preview, err := uc.renderer.Render(ctx, data, rec.MimeType)
	if err != nil {
		if domain.IsKind(err, domain.ErrUnsupported) {
			uc.logger.Info("no thumbnail for mime type", "file_id", rec.ID, "mime", rec.MimeType)
			return nil
		}
		return fmt.Errorf("render thumbnail: %w", err)
	}

	path := thumbnailPath(rec.ID)
	if err := uc.storage.Put(ctx, path, preview, "image/jpeg", nil); err != nil {
		return fmt.Errorf("store thumbnail: %w", err)
	}
	if err := uc.repo.SetThumbnailPath(ctx, rec.ID, path); err != nil {
		return fmt.Errorf("record thumbnail path: %w", err)
	}
	return nil
}

func thumbnailPath(fileID string) string {
	return "thumbnails/" + fileID + ".jpg"
}
