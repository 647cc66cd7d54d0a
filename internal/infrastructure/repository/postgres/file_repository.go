package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/ai-file-vault/internal/core/domain"
)

const uniqueViolation = "23505"

type FileRepository struct {
	db *sql.DB
}

func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FileRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS files (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	suggested_name TEXT,
	final_name TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	thumbnail_path TEXT,
	summary TEXT,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	processed_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_files_owner_fingerprint
	ON files(owner_id, fingerprint) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_id) WHERE NOT is_deleted;
CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *FileRepository) Create(ctx context.Context, rec *domain.FileRecord) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	metaJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO files (
	id, owner_id, original_name, suggested_name, final_name, fingerprint, size_bytes,
	mime_type, storage_path, thumbnail_path, summary, tags, metadata, status,
	error_message, is_deleted, created_at, updated_at, processed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`,
		rec.ID, rec.OwnerID, rec.OriginalName, rec.SuggestedName, rec.FinalName,
		rec.Fingerprint, rec.Size, rec.MimeType, rec.StoragePath, rec.ThumbnailPath,
		rec.Summary, tagsJSON, metaJSON, string(rec.Status), rec.Error, rec.Deleted,
		rec.CreatedAt, rec.UpdatedAt, rec.ProcessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.WrapError(domain.ErrDuplicate, "insert file", err)
		}
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

const fileColumns = `
id, owner_id, original_name, suggested_name, final_name, fingerprint, size_bytes,
mime_type, storage_path, thumbnail_path, summary, tags, metadata, status,
error_message, is_deleted, created_at, updated_at, processed_at`

func (r *FileRepository) GetByID(ctx context.Context, id string) (*domain.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+fileColumns+`
FROM files
WHERE id = $1
`, id)
	return scanFile(row)
}

func (r *FileRepository) FindByFingerprint(ctx context.Context, ownerID, fingerprint string) (*domain.FileRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+fileColumns+`
FROM files
WHERE owner_id = $1 AND fingerprint = $2 AND NOT is_deleted
`, ownerID, fingerprint)
	rec, err := scanFile(row)
	if domain.IsKind(err, domain.ErrFileNotFound) {
		return nil, nil
	}
	return rec, err
}

func (r *FileRepository) UpdateStatus(ctx context.Context, id string, status domain.FileStatus, errDetail string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET status = $2,
	error_message = $3,
	processed_at = CASE WHEN $2 IN ('completed','failed') THEN NOW() ELSE processed_at END,
	updated_at = NOW()
WHERE id = $1
`, id, string(status), errDetail)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return requireRow(res, "update status")
}

func (r *FileRepository) SaveMetadata(ctx context.Context, id string, metadata map[string]any) error {
	metaJSON, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE files SET metadata = $2, updated_at = NOW() WHERE id = $1
`, id, metaJSON)
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return requireRow(res, "save metadata")
}

func (r *FileRepository) SaveEnrichment(ctx context.Context, id string, enr domain.Enrichment) error {
	tagsJSON, err := json.Marshal(enr.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	// The suggested name doubles as the display name until the owner
	// renames the file.
	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET suggested_name = $2,
	final_name = $2,
	summary = $3,
	tags = $4,
	metadata = metadata || jsonb_build_object('ai_provider', $5::text),
	updated_at = NOW()
WHERE id = $1
`, id, enr.SuggestedName, enr.Summary, tagsJSON, enr.Provider)
	if err != nil {
		return fmt.Errorf("save enrichment: %w", err)
	}
	return requireRow(res, "save enrichment")
}

func (r *FileRepository) SetThumbnailPath(ctx context.Context, id, path string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files SET thumbnail_path = $2, updated_at = NOW() WHERE id = $1
`, id, path)
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	return requireRow(res, "set thumbnail path")
}

func (r *FileRepository) SetFinalName(ctx context.Context, id, name string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files SET final_name = $2, updated_at = NOW() WHERE id = $1
`, id, name)
	if err != nil {
		return fmt.Errorf("set final name: %w", err)
	}
	return requireRow(res, "set final name")
}

func (r *FileRepository) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted
`, id)
	if err != nil {
		return fmt.Errorf("soft delete: %w", err)
	}
	return requireRow(res, "soft delete")
}

func (r *FileRepository) Rearm(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE files
SET status = 'pending', error_message = '', processed_at = NULL, updated_at = NOW()
WHERE id = $1 AND NOT is_deleted
`, id)
	if err != nil {
		return fmt.Errorf("rearm file: %w", err)
	}
	return requireRow(res, "rearm file")
}

func (r *FileRepository) FailStuck(ctx context.Context, cutoff time.Time, errDetail string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
UPDATE files
SET status = 'failed', error_message = $2, processed_at = NOW(), updated_at = NOW()
WHERE status = 'processing' AND updated_at < $1
RETURNING id
`, cutoff, errDetail)
	if err != nil {
		return nil, fmt.Errorf("fail stuck files: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stuck id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stuck ids: %w", err)
	}
	return ids, nil
}

func scanFile(row *sql.Row) (*domain.FileRecord, error) {
	var (
		rec       domain.FileRecord
		suggested sql.NullString
		thumbnail sql.NullString
		summary   sql.NullString
		errMsg    sql.NullString
		tagsJSON  []byte
		metaJSON  []byte
		status    string
		processed sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.OwnerID, &rec.OriginalName, &suggested, &rec.FinalName,
		&rec.Fingerprint, &rec.Size, &rec.MimeType, &rec.StoragePath, &thumbnail,
		&summary, &tagsJSON, &metaJSON, &status, &errMsg, &rec.Deleted,
		&rec.CreatedAt, &rec.UpdatedAt, &processed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrFileNotFound, "select file", err)
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	rec.SuggestedName = suggested.String
	rec.ThumbnailPath = thumbnail.String
	rec.Summary = summary.String
	rec.Error = errMsg.String
	rec.Status = domain.FileStatus(status)
	if processed.Valid {
		t := processed.Time
		rec.ProcessedAt = &t
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &rec.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &rec, nil
}

func requireRow(res sql.Result, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s affected rows: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrFileNotFound, operation, sql.ErrNoRows)
	}
	return nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte(`{}`), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return raw, nil
}
