package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

// IngestPolicy bounds what Upload accepts.
type IngestPolicy struct {
	MaxFileSize       int64
	AllowedExtensions []string
}

type IngestFileUseCase struct {
	repo    ports.FileRepository
	storage ports.ObjectStorage
	queue   ports.TaskQueue
	vector  ports.VectorIndex
	policy  IngestPolicy
	logger  *slog.Logger
}

func NewIngestFileUseCase(
	repo ports.FileRepository,
	storage ports.ObjectStorage,
	queue ports.TaskQueue,
	vector ports.VectorIndex,
	policy IngestPolicy,
	logger *slog.Logger,
) *IngestFileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestFileUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		vector:  vector,
		policy:  policy,
		logger:  logger,
	}
}

// Upload validates, fingerprints and stores one file. Identical bytes from
// the same owner resolve to the existing record without touching storage
// or the queue.
func (uc *IngestFileUseCase) Upload(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*domain.UploadResult, error) {
	if ownerID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("owner id is required"))
	}
	if filename == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("filename is required"))
	}
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("empty file"))
	}
	if uc.policy.MaxFileSize > 0 && int64(len(data)) > uc.policy.MaxFileSize {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("file size %d exceeds limit %d", len(data), uc.policy.MaxFileSize))
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !uc.extensionAllowed(ext) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload",
			fmt.Errorf("extension %q is not allowed", ext))
	}

	sum := sha256.Sum256(data)
	fingerprint := hex.EncodeToString(sum[:])

	// Fast path: the owner already has these bytes.
	if existing, err := uc.repo.FindByFingerprint(ctx, ownerID, fingerprint); err != nil {
		return nil, fmt.Errorf("lookup fingerprint: %w", err)
	} else if existing != nil {
		uc.logger.Info("duplicate upload resolved to existing file",
			"owner_id", ownerID, "file_id", existing.ID)
		return &domain.UploadResult{Record: existing, Duplicate: true}, nil
	}

	storagePath := buildStoragePath(ownerID, fingerprint, ext)
	if err := uc.storage.Put(ctx, storagePath, data, mimeType, map[string]string{
		"original-name": sanitizeHeaderValue(filename),
		"owner-id":      ownerID,
	}); err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	now := time.Now().UTC()
	rec := &domain.FileRecord{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		OriginalName: filename,
		FinalName:    filename,
		Fingerprint:  fingerprint,
		Size:         int64(len(data)),
		MimeType:     mimeType,
		StoragePath:  storagePath,
		Status:       domain.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.repo.Create(ctx, rec); err != nil {
		// A concurrent upload of the same bytes won the insert race. The
		// stored object is shared by content address, so just hand back
		// the winner's record.
		if domain.IsKind(err, domain.ErrDuplicate) {
			winner, lookupErr := uc.repo.FindByFingerprint(ctx, ownerID, fingerprint)
			if lookupErr == nil && winner != nil {
				return &domain.UploadResult{Record: winner, Duplicate: true}, nil
			}
			return nil, fmt.Errorf("resolve concurrent duplicate: %w", err)
		}
		return nil, fmt.Errorf("create file record: %w", err)
	}

	if err := uc.queue.EnqueueEnrichment(ctx, domain.EnrichmentTask{
		FileID:  rec.ID,
		OwnerID: ownerID,
	}); err != nil {
		// The record stays pending; the sweep or a manual reprocess will
		// pick it up. Upload itself succeeded.
		uc.logger.Error("enqueue enrichment failed, file stays pending",
			"file_id", rec.ID, "error", err)
	}

	return &domain.UploadResult{Record: rec, Duplicate: false}, nil
}

func (uc *IngestFileUseCase) Get(ctx context.Context, ownerID, fileID string) (*domain.FileRecord, error) {
	return uc.ownedRecord(ctx, ownerID, fileID)
}

func (uc *IngestFileUseCase) Rename(ctx context.Context, ownerID, fileID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "rename", fmt.Errorf("name is required"))
	}
	if _, err := uc.ownedRecord(ctx, ownerID, fileID); err != nil {
		return err
	}
	return uc.repo.SetFinalName(ctx, fileID, name)
}

func (uc *IngestFileUseCase) SoftDelete(ctx context.Context, ownerID, fileID string) error {
	if _, err := uc.ownedRecord(ctx, ownerID, fileID); err != nil {
		return err
	}
	if err := uc.repo.SoftDelete(ctx, fileID); err != nil {
		return err
	}
	// Stored objects are orphaned on purpose; only the search index entry
	// goes away so deleted files stop surfacing in results.
	if err := uc.vector.DeleteByFileID(ctx, fileID); err != nil {
		uc.logger.Warn("vector cleanup failed after soft delete",
			slog.String("file_id", fileID), slog.String("error", err.Error()))
	}
	return nil
}

func (uc *IngestFileUseCase) DownloadURL(ctx context.Context, ownerID, fileID string, ttl time.Duration) (string, error) {
	rec, err := uc.ownedRecord(ctx, ownerID, fileID)
	if err != nil {
		return "", err
	}
	return uc.storage.PresignedURL(ctx, rec.StoragePath, ttl)
}

// Reprocess re-arms a failed file and queues it again. Files in any other
// state are left alone.
func (uc *IngestFileUseCase) Reprocess(ctx context.Context, ownerID, fileID string) error {
	rec, err := uc.ownedRecord(ctx, ownerID, fileID)
	if err != nil {
		return err
	}
	if rec.Status != domain.StatusFailed {
		return domain.WrapError(domain.ErrInvalidInput, "reprocess",
			fmt.Errorf("file is %s, only failed files can be reprocessed", rec.Status))
	}
	if err := uc.repo.Rearm(ctx, fileID); err != nil {
		return fmt.Errorf("rearm file: %w", err)
	}
	if err := uc.queue.EnqueueEnrichment(ctx, domain.EnrichmentTask{
		FileID:  fileID,
		OwnerID: ownerID,
	}); err != nil {
		uc.logger.Error("enqueue reprocess failed, file stays pending",
			"file_id", fileID, "error", err)
	}
	return nil
}

func (uc *IngestFileUseCase) ownedRecord(ctx context.Context, ownerID, fileID string) (*domain.FileRecord, error) {
	rec, err := uc.repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatches look identical to absence from the outside.
	if rec.Deleted || rec.OwnerID != ownerID {
		return nil, domain.WrapError(domain.ErrFileNotFound, "get file",
			fmt.Errorf("file %s not visible to owner", fileID))
	}
	return rec, nil
}

func (uc *IngestFileUseCase) extensionAllowed(ext string) bool {
	if len(uc.policy.AllowedExtensions) == 0 {
		return true
	}
	for _, allowed := range uc.policy.AllowedExtensions {
		if ext == strings.ToLower(strings.TrimSpace(allowed)) {
			return true
		}
	}
	return false
}

// buildStoragePath content-addresses the object so duplicate retries are
// idempotent: <owner>/<fp[:8]>/<fp><ext>.
func buildStoragePath(ownerID, fingerprint, ext string) string {
	name := fingerprint
	if ext != "" {
		name += "." + ext
	}
	return fmt.Sprintf("%s/%s/%s", ownerID, fingerprint[:8], name)
}

func sanitizeHeaderValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r > 126 {
			return '_'
		}
		return r
	}, s)
}
