package usecase

import (
	"context"
	"time"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

type fakeRepo struct {
	records map[string]*domain.FileRecord

	createErr         error
	findErr           error
	saveEnrichmentErr error
	statusUpdates     []domain.FileStatus
	enrichment        *domain.Enrichment
	metadata          map[string]any
	thumbnail         string
	finalName         string
	rearmed           bool
	softDeleted       bool
	stuckIDs          []string
}

func newFakeRepo(recs ...*domain.FileRecord) *fakeRepo {
	m := make(map[string]*domain.FileRecord)
	for _, rec := range recs {
		m[rec.ID] = rec
	}
	return &fakeRepo{records: m}
}

func (f *fakeRepo) Create(ctx context.Context, rec *domain.FileRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrFileNotFound, "select file", domain.ErrFileNotFound)
	}
	copied := *rec
	return &copied, nil
}

func (f *fakeRepo) FindByFingerprint(ctx context.Context, ownerID, fingerprint string) (*domain.FileRecord, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	for _, rec := range f.records {
		if rec.OwnerID == ownerID && rec.Fingerprint == fingerprint && !rec.Deleted {
			copied := *rec
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id string, status domain.FileStatus, errDetail string) error {
	rec, ok := f.records[id]
	if !ok {
		return domain.WrapError(domain.ErrFileNotFound, "update status", domain.ErrFileNotFound)
	}
	rec.Status = status
	rec.Error = errDetail
	f.statusUpdates = append(f.statusUpdates, status)
	return nil
}

func (f *fakeRepo) SaveMetadata(ctx context.Context, id string, metadata map[string]any) error {
	f.metadata = metadata
	return nil
}

func (f *fakeRepo) SaveEnrichment(ctx context.Context, id string, enr domain.Enrichment) error {
	if f.saveEnrichmentErr != nil {
		return f.saveEnrichmentErr
	}
	f.enrichment = &enr
	if rec, ok := f.records[id]; ok {
		rec.SuggestedName = enr.SuggestedName
		rec.FinalName = enr.SuggestedName
	}
	return nil
}

func (f *fakeRepo) SetThumbnailPath(ctx context.Context, id, path string) error {
	f.thumbnail = path
	if rec, ok := f.records[id]; ok {
		rec.ThumbnailPath = path
	}
	return nil
}

func (f *fakeRepo) SetFinalName(ctx context.Context, id, name string) error {
	f.finalName = name
	return nil
}

func (f *fakeRepo) SoftDelete(ctx context.Context, id string) error {
	f.softDeleted = true
	if rec, ok := f.records[id]; ok {
		rec.Deleted = true
	}
	return nil
}

func (f *fakeRepo) Rearm(ctx context.Context, id string) error {
	f.rearmed = true
	if rec, ok := f.records[id]; ok {
		rec.Status = domain.StatusPending
		rec.Error = ""
	}
	return nil
}

func (f *fakeRepo) FailStuck(ctx context.Context, cutoff time.Time, errDetail string) ([]string, error) {
	for _, id := range f.stuckIDs {
		if rec, ok := f.records[id]; ok {
			rec.Status = domain.StatusFailed
			rec.Error = errDetail
		}
	}
	return f.stuckIDs, nil
}

type fakeStorage struct {
	objects map[string][]byte
	putErr  error
	getErr  error
	puts    []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Put(ctx context.Context, path string, data []byte, contentType string, metadata map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.objects[path] = data
	f.puts = append(f.puts, path)
	return nil
}

func (f *fakeStorage) Get(ctx context.Context, path string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[path]
	if !ok {
		return nil, domain.WrapError(domain.ErrFileNotFound, "storage.get", domain.ErrFileNotFound)
	}
	return data, nil
}

func (f *fakeStorage) PresignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + path, nil
}

func (f *fakeStorage) Delete(ctx context.Context, path string) error {
	delete(f.objects, path)
	return nil
}

type fakeQueue struct {
	enrichTasks    []domain.EnrichmentTask
	thumbnailTasks []domain.ThumbnailTask
	enqueueErr     error
}

func (f *fakeQueue) EnqueueEnrichment(ctx context.Context, task domain.EnrichmentTask) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enrichTasks = append(f.enrichTasks, task)
	return nil
}

func (f *fakeQueue) EnqueueThumbnail(ctx context.Context, task domain.ThumbnailTask) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.thumbnailTasks = append(f.thumbnailTasks, task)
	return nil
}

type upsertCall struct {
	id      string
	vector  []float32
	payload map[string]any
}

type fakeVector struct {
	upserts   []upsertCall
	upsertErr error
	hits      []domain.VectorHit
	queryErr  error
	deletes   []string
	deleteErr error
	lastQuery struct {
		limit    int
		minScore float64
		filter   domain.VectorFilter
	}
}

func (f *fakeVector) Upsert(ctx context.Context, id string, embedding []float32, payload map[string]any) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{id: id, vector: embedding, payload: payload})
	return nil
}

func (f *fakeVector) Query(ctx context.Context, vector []float32, limit int, minScore float64, filter domain.VectorFilter) ([]domain.VectorHit, error) {
	f.lastQuery.limit = limit
	f.lastQuery.minScore = minScore
	f.lastQuery.filter = filter
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.hits, nil
}

func (f *fakeVector) DeleteByFileID(ctx context.Context, fileID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, fileID)
	return nil
}

type fakeGateway struct {
	enrichment domain.Enrichment
	enrichErr  error
	queryVec   []float32
	embedErr   error
}

func (f *fakeGateway) Enrich(ctx context.Context, content, filename string) (domain.Enrichment, error) {
	if f.enrichErr != nil {
		return domain.Enrichment{}, f.enrichErr
	}
	return f.enrichment, nil
}

func (f *fakeGateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.queryVec, nil
}

type fakeNotifier struct {
	events []domain.FileEvent
}

func (f *fakeNotifier) NotifyTerminal(ctx context.Context, event domain.FileEvent) {
	f.events = append(f.events, event)
}

type fakeText struct {
	text string
	err  error
}

func (f *fakeText) Extract(ctx context.Context, data []byte, mimeType, filename string) (string, error) {
	return f.text, f.err
}

type fakeMeta struct {
	meta map[string]any
	err  error
}

func (f *fakeMeta) Extract(ctx context.Context, data []byte, mimeType string) (map[string]any, error) {
	return f.meta, f.err
}

type fakeRenderer struct {
	preview []byte
	err     error
}

func (f *fakeRenderer) Render(ctx context.Context, data []byte, mimeType string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.preview, nil
}
