package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

const stuckReason = "Processing timeout"

// SweepUseCase is the safety net under at-least-once delivery: a worker
// crash can leave a record in processing forever, and this force-fails it
// once it has sat there past the deadline.
type SweepUseCase struct {
	repo     ports.FileRepository
	notifier ports.Notifier
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewSweepUseCase(repo ports.FileRepository, notifier ports.Notifier, maxAge time.Duration, logger *slog.Logger) *SweepUseCase {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepUseCase{
		repo:     repo,
		notifier: notifier,
		maxAge:   maxAge,
		logger:   logger,
	}
}

func (uc *SweepUseCase) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-uc.maxAge)
	ids, err := uc.repo.FailStuck(ctx, cutoff, stuckReason)
	if err != nil {
		return fmt.Errorf("fail stuck files: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	uc.logger.Warn("force-failed stuck files", "count", len(ids), "cutoff", cutoff)
	for _, id := range ids {
		rec, err := uc.repo.GetByID(ctx, id)
		if err != nil {
			uc.logger.Error("load swept file for notification", "file_id", id, "error", err)
			continue
		}
		uc.notifier.NotifyTerminal(ctx, domain.FileEvent{
			Event:   domain.EventFailed,
			FileID:  rec.ID,
			OwnerID: rec.OwnerID,
		})
	}
	return nil
}
