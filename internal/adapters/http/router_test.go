package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

type fakeIngestor struct {
	result    *domain.UploadResult
	uploadErr error
	record    *domain.FileRecord
	getErr    error

	lastOwner string
	lastName  string
	renamed   string
}

func (f *fakeIngestor) Upload(ctx context.Context, ownerID, filename, mimeType string, data []byte) (*domain.UploadResult, error) {
	f.lastOwner = ownerID
	f.lastName = filename
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return f.result, nil
}

func (f *fakeIngestor) Get(ctx context.Context, ownerID, fileID string) (*domain.FileRecord, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.record, nil
}

func (f *fakeIngestor) Rename(ctx context.Context, ownerID, fileID, name string) error {
	f.renamed = name
	return nil
}

func (f *fakeIngestor) SoftDelete(ctx context.Context, ownerID, fileID string) error {
	return f.getErr
}

func (f *fakeIngestor) DownloadURL(ctx context.Context, ownerID, fileID string, ttl time.Duration) (string, error) {
	return "https://signed.example/obj", f.getErr
}

func (f *fakeIngestor) Reprocess(ctx context.Context, ownerID, fileID string) error {
	return f.getErr
}

type fakeSearcher struct {
	hits      []domain.SearchHit
	err       error
	lastQuery string
	lastLimit int
}

func (f *fakeSearcher) Search(ctx context.Context, ownerID, query string, limit int) ([]domain.SearchHit, error) {
	f.lastQuery = query
	f.lastLimit = limit
	return f.hits, f.err
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadAcceptsMultipart(t *testing.T) {
	ingestor := &fakeIngestor{result: &domain.UploadResult{
		Record: &domain.FileRecord{ID: "f1", Status: domain.StatusPending},
	}}
	handler := NewRouter(ingestor, &fakeSearcher{}, nil, 0).Handler()

	body, contentType := multipartBody(t, "doc.txt", "hello")
	req := httptest.NewRequest(http.MethodPost, "/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if ingestor.lastOwner != "alice" || ingestor.lastName != "doc.txt" {
		t.Fatalf("ingestor saw owner=%q name=%q", ingestor.lastOwner, ingestor.lastName)
	}
}

func TestUploadDuplicateReturns200(t *testing.T) {
	ingestor := &fakeIngestor{result: &domain.UploadResult{
		Record:    &domain.FileRecord{ID: "f1", Status: domain.StatusCompleted},
		Duplicate: true,
	}}
	handler := NewRouter(ingestor, &fakeSearcher{}, nil, 0).Handler()

	body, contentType := multipartBody(t, "copy.txt", "same")
	req := httptest.NewRequest(http.MethodPost, "/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var result domain.UploadResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("duplicate flag lost in response")
	}
}

func TestMissingOwnerHeaderIs401(t *testing.T) {
	handler := NewRouter(&fakeIngestor{}, &fakeSearcher{}, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/files/f1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestGetFileNotFoundIs404(t *testing.T) {
	ingestor := &fakeIngestor{getErr: domain.WrapError(domain.ErrFileNotFound, "get", errors.New("missing"))}
	handler := NewRouter(ingestor, &fakeSearcher{}, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/files/ghost", nil)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestInvalidInputIs400(t *testing.T) {
	ingestor := &fakeIngestor{uploadErr: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("extension not allowed"))}
	handler := NewRouter(ingestor, &fakeSearcher{}, nil, 0).Handler()

	body, contentType := multipartBody(t, "x.exe", "bin")
	req := httptest.NewRequest(http.MethodPost, "/v1/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestSearchPassesQueryAndLimit(t *testing.T) {
	searcher := &fakeSearcher{hits: []domain.SearchHit{{FileID: "f1", Score: 0.8}}}
	handler := NewRouter(&fakeIngestor{}, searcher, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=tax+papers&limit=5", nil)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if searcher.lastQuery != "tax papers" || searcher.lastLimit != 5 {
		t.Fatalf("searcher saw query=%q limit=%d", searcher.lastQuery, searcher.lastLimit)
	}
	if !strings.Contains(rec.Body.String(), "f1") {
		t.Fatalf("hit missing from response: %s", rec.Body.String())
	}
}

func TestRenameRejectsBadJSON(t *testing.T) {
	handler := NewRouter(&fakeIngestor{}, &fakeSearcher{}, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodPatch, "/v1/files/f1/name", strings.NewReader("{broken"))
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestDownloadReturnsSignedURL(t *testing.T) {
	handler := NewRouter(&fakeIngestor{}, &fakeSearcher{}, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/files/f1/download", nil)
	req.Header.Set(ownerHeader, "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "https://signed.example/obj") {
		t.Fatalf("missing url in %s", rec.Body.String())
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := NewRouter(&fakeIngestor{}, &fakeSearcher{}, nil, 0).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "fixed-id" {
		t.Fatalf("request id not echoed, got %q", got)
	}
}
