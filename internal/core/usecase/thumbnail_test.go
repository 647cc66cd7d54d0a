package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

func thumbnailFixture() (*fakeRepo, *fakeStorage) {
	rec := &domain.FileRecord{
		ID:          "f1",
		OwnerID:     "alice",
		MimeType:    "image/png",
		StoragePath: "alice/ab/abc.png",
		Status:      domain.StatusCompleted,
	}
	repo := newFakeRepo(rec)
	storage := newFakeStorage()
	storage.objects[rec.StoragePath] = []byte("png bytes")
	return repo, storage
}

func TestThumbnailStoresPreviewAndPath(t *testing.T) {
	repo, storage := thumbnailFixture()
	renderer := &fakeRenderer{preview: []byte("jpeg bytes")}
	uc := NewThumbnailUseCase(repo, storage, renderer, testLogger())

	if err := uc.ProcessTask(context.Background(), domain.ThumbnailTask{FileID: "f1"}); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
	if repo.thumbnail != "thumbnails/f1.jpg" {
		t.Fatalf("unexpected thumbnail path %q", repo.thumbnail)
	}
	if string(storage.objects["thumbnails/f1.jpg"]) != "jpeg bytes" {
		t.Fatal("preview not stored")
	}
}

func TestThumbnailIdempotentWhenAlreadyPresent(t *testing.T) {
	repo, storage := thumbnailFixture()
	repo.records["f1"].ThumbnailPath = "thumbnails/f1.jpg"
	renderer := &fakeRenderer{err: errors.New("must not render")}
	uc := NewThumbnailUseCase(repo, storage, renderer, testLogger())

	if err := uc.ProcessTask(context.Background(), domain.ThumbnailTask{FileID: "f1"}); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
}

func TestThumbnailUnsupportedMimeIsSkip(t *testing.T) {
	repo, storage := thumbnailFixture()
	renderer := &fakeRenderer{err: domain.WrapError(domain.ErrUnsupported, "thumbnail.render", errors.New("no preview"))}
	uc := NewThumbnailUseCase(repo, storage, renderer, testLogger())

	if err := uc.ProcessTask(context.Background(), domain.ThumbnailTask{FileID: "f1"}); err != nil {
		t.Fatalf("unsupported type must not error, got %v", err)
	}
	if repo.thumbnail != "" {
		t.Fatalf("no path should be recorded, got %q", repo.thumbnail)
	}
}

func TestThumbnailRenderFailurePropagatesWithoutStatusChange(t *testing.T) {
	repo, storage := thumbnailFixture()
	renderer := &fakeRenderer{err: errors.New("decoder crashed")}
	uc := NewThumbnailUseCase(repo, storage, renderer, testLogger())

	if err := uc.ProcessTask(context.Background(), domain.ThumbnailTask{FileID: "f1"}); err == nil {
		t.Fatal("expected error")
	}
	if got := repo.records["f1"].Status; got != domain.StatusCompleted {
		t.Fatalf("file status must stay completed, got %s", got)
	}
	if len(repo.statusUpdates) != 0 {
		t.Fatalf("thumbnail failures must not touch status, saw %v", repo.statusUpdates)
	}
}

func TestThumbnailSkipsDeletedFiles(t *testing.T) {
	repo, storage := thumbnailFixture()
	repo.records["f1"].Deleted = true
	renderer := &fakeRenderer{err: errors.New("must not render")}
	uc := NewThumbnailUseCase(repo, storage, renderer, testLogger())

	if err := uc.ProcessTask(context.Background(), domain.ThumbnailTask{FileID: "f1"}); err != nil {
		t.Fatalf("ProcessTask: %v", err)
	}
}
