// Package httpadapter exposes the ingestion API. Callers identify
// themselves with the X-Owner-Id header; real authentication sits in
// front of this service.
package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
	"github.com/kirillkom/ai-file-vault/internal/core/ports"
)

const (
	ownerHeader     = "X-Owner-Id"
	downloadLinkTTL = 15 * time.Minute
)

// UsageReporter answers quota and usage-history queries for the admin
// surface. Nil disables the endpoint.
type UsageReporter interface {
	Usage(ctx context.Context) domain.UsageSnapshot
	Statistics(ctx context.Context, hours int) domain.UsageStats
}

type Router struct {
	ingestor    ports.FileIngestor
	searcher    ports.FileSearcher
	usage       UsageReporter
	maxBodySize int64
}

func NewRouter(ingestor ports.FileIngestor, searcher ports.FileSearcher, usage UsageReporter, maxBodySize int64) *Router {
	if maxBodySize <= 0 {
		maxBodySize = 50 << 20
	}
	return &Router{
		ingestor:    ingestor,
		searcher:    searcher,
		usage:       usage,
		maxBodySize: maxBodySize,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/files", rt.uploadFile)
	mux.HandleFunc("GET /v1/files/{id}", rt.getFile)
	mux.HandleFunc("DELETE /v1/files/{id}", rt.deleteFile)
	mux.HandleFunc("PATCH /v1/files/{id}/name", rt.renameFile)
	mux.HandleFunc("GET /v1/files/{id}/download", rt.downloadFile)
	mux.HandleFunc("POST /v1/files/{id}/reprocess", rt.reprocessFile)
	mux.HandleFunc("GET /v1/search", rt.search)
	mux.HandleFunc("GET /v1/usage", rt.usageStats)
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.maxBodySize)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the size limit")
		return
	}

	result, err := rt.ingestor.Upload(r.Context(), ownerID, fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	status := http.StatusAccepted
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (rt *Router) getFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	rec, err := rt.ingestor.Get(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (rt *Router) deleteFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if err := rt.ingestor.SoftDelete(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) renameFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := rt.ingestor.Rename(r.Context(), ownerID, r.PathValue("id"), payload.Name); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) downloadFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	url, err := rt.ingestor.DownloadURL(r.Context(), ownerID, r.PathValue("id"), downloadLinkTTL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (rt *Router) reprocessFile(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if err := rt.ingestor.Reprocess(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	hits, err := rt.searcher.Search(r.Context(), ownerID, query, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": hits})
}

func (rt *Router) usageStats(w http.ResponseWriter, r *http.Request) {
	if rt.usage == nil {
		writeError(w, http.StatusNotFound, "usage reporting disabled")
		return
	}
	hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
	if hours <= 0 {
		hours = 24
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"quota":   rt.usage.Usage(r.Context()),
		"history": rt.usage.Statistics(r.Context(), hours),
	})
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerHeader))
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "X-Owner-Id header is required")
		return "", false
	}
	return ownerID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
