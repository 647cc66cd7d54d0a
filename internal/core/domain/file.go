package domain

import "time"

type FileStatus string

const (
	StatusPending    FileStatus = "pending"
	StatusProcessing FileStatus = "processing"
	StatusCompleted  FileStatus = "completed"
	StatusFailed     FileStatus = "failed"
)

// IsTerminal reports whether no further automatic transition is allowed
// without an explicit reprocess request.
func (s FileStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Tag is a single AI-generated label with the model's confidence in it.
type Tag struct {
	Name       string  `json:"tag"`
	Confidence float64 `json:"confidence"`
}

// FileRecord is one logical uploaded artifact. The (OwnerID, Fingerprint)
// pair is unique among non-deleted records; records are soft-deleted only.
type FileRecord struct {
	ID      string `json:"id"`
	OwnerID string `json:"owner_id"`

	OriginalName  string `json:"original_name"`
	SuggestedName string `json:"suggested_name,omitempty"`
	FinalName     string `json:"final_name"`

	Fingerprint string `json:"fingerprint"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type"`

	StoragePath   string `json:"storage_path"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`

	Summary  string         `json:"summary,omitempty"`
	Tags     []Tag          `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`

	Status  FileStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
	Deleted bool       `json:"deleted,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// UploadResult reports the outcome of an ingestion attempt. Duplicate means
// the owner already stored identical bytes and Record points at the
// pre-existing file; no new object or task was created.
type UploadResult struct {
	Record    *FileRecord `json:"record"`
	Duplicate bool        `json:"duplicate"`
}

const (
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// FileEvent is the terminal-transition notification handed to the messaging
// collaborator. Its delivery is lossy by contract.
type FileEvent struct {
	Event   string `json:"event"`
	FileID  string `json:"file_id"`
	OwnerID string `json:"owner_id"`
	Summary string `json:"summary,omitempty"`
	Tags    []Tag  `json:"tags,omitempty"`
}

// SearchHit is one semantic-search result joined from the vector index payload.
type SearchHit struct {
	FileID   string  `json:"file_id"`
	Filename string  `json:"filename"`
	Summary  string  `json:"summary,omitempty"`
	Score    float64 `json:"score"`
}
