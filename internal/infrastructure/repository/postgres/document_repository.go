package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
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

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026021001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	app_id TEXT NOT NULL,
	source_path TEXT NOT NULL,
	original_filename TEXT,
	source_channel TEXT,
	ingested_at TIMESTAMPTZ NOT NULL,
	state TEXT NOT NULL,
	state_times JSONB NOT NULL DEFAULT '{}'::jsonb,
	error_stage TEXT,
	error_detail TEXT,
	signature JSONB,
	match_result JSONB,
	fields JSONB,
	validation JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_state ON documents(state);
CREATE INDEX IF NOT EXISTS idx_documents_app_id ON documents(app_id);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS templates (
	id TEXT PRIMARY KEY,
	app_id TEXT NOT NULL,
	document_type TEXT,
	vendor TEXT,
	format_name TEXT,
	version INTEGER NOT NULL DEFAULT 1,
	signature JSONB NOT NULL,
	fields JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_templates_app_id ON templates(app_id);

CREATE TABLE IF NOT EXISTS template_variant_proposals (
	id TEXT PRIMARY KEY,
	app_id TEXT NOT NULL,
	base_template_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	observed JSONB NOT NULL,
	similarity DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS template_sync_metadata (
	app_id TEXT PRIMARY KEY,
	last_attempt_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	detail TEXT
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	stateTimes, err := json.Marshal(doc.StateTimes)
	if err != nil {
		return fmt.Errorf("marshal state times: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, app_id, source_path, original_filename, source_channel, ingested_at, state, state_times, error_stage, error_detail, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		doc.ID, doc.AppID, doc.SourcePath, doc.OriginalFilename, doc.SourceChannel, doc.IngestedAt,
		string(doc.State), stateTimes, doc.ErrorStage, doc.ErrorDetail, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, app_id, source_path, original_filename, source_channel, ingested_at, state, state_times, error_stage, error_detail, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, err
	}
	return doc, nil
}

// UpdateState persists the transition and stamps the entry time of the new
// state. It runs before the stage does, so a crash mid-stage resumes at
// the recorded state.
func (r *DocumentRepository) UpdateState(ctx context.Context, id string, state domain.DocumentState, errStage, errDetail string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET state = $2,
	state_times = state_times || jsonb_build_object($2::text, $3::timestamptz),
	error_stage = $4,
	error_detail = $5,
	updated_at = $3
WHERE id = $1
`, id, string(state), time.Now().UTC(), errStage, errDetail)
	if err != nil {
		return fmt.Errorf("update document state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document state", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRepository) SaveSignature(ctx context.Context, id string, sig domain.StructuralSignature) error {
	return r.saveJSON(ctx, id, "signature", sig)
}

func (r *DocumentRepository) GetSignature(ctx context.Context, id string) (*domain.StructuralSignature, error) {
	var sig domain.StructuralSignature
	if err := r.loadJSON(ctx, id, "signature", &sig); err != nil {
		return nil, err
	}
	return &sig, nil
}

func (r *DocumentRepository) SaveMatchResult(ctx context.Context, id string, match domain.MatchResult) error {
	return r.saveJSON(ctx, id, "match_result", match)
}

func (r *DocumentRepository) GetMatchResult(ctx context.Context, id string) (*domain.MatchResult, error) {
	var match domain.MatchResult
	if err := r.loadJSON(ctx, id, "match_result", &match); err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *DocumentRepository) SaveFields(ctx context.Context, id string, fields []domain.ExtractedField) error {
	return r.saveJSON(ctx, id, "fields", fields)
}

func (r *DocumentRepository) GetFields(ctx context.Context, id string) ([]domain.ExtractedField, error) {
	var fields []domain.ExtractedField
	if err := r.loadJSON(ctx, id, "fields", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *DocumentRepository) SaveValidation(ctx context.Context, id string, result domain.ValidationResult) error {
	return r.saveJSON(ctx, id, "validation", result)
}

func (r *DocumentRepository) ListByStates(ctx context.Context, states ...domain.DocumentState) ([]domain.Document, error) {
	if len(states) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(states))
	args := make([]any, len(states))
	for i, s := range states {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT id, app_id, source_path, original_filename, source_channel, ingested_at, state, state_times, error_stage, error_detail, created_at, updated_at
FROM documents
WHERE state IN (%s)
ORDER BY created_at ASC
`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("list documents by state: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) saveJSON(ctx context.Context, id, column string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}
	query := fmt.Sprintf(`UPDATE documents SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, id, raw, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", column, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save "+column, fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *DocumentRepository) loadJSON(ctx context.Context, id, column string, out any) error {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, column)
	var raw []byte
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrDocumentNotFound, "load "+column, fmt.Errorf("id %s", id))
		}
		return fmt.Errorf("load %s: %w", column, err)
	}
	if raw == nil {
		return domain.WrapError(domain.ErrDocumentNotFound, "load "+column, fmt.Errorf("document %s has no %s", id, column))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", column, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var stateTimesRaw []byte
	var state string
	var origFilename, channel, errStage, errDetail sql.NullString

	err := row.Scan(
		&doc.ID, &doc.AppID, &doc.SourcePath, &origFilename, &channel, &doc.IngestedAt,
		&state, &stateTimesRaw, &errStage, &errDetail, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.State = domain.DocumentState(state)
	doc.OriginalFilename = origFilename.String
	doc.SourceChannel = channel.String
	doc.ErrorStage = errStage.String
	doc.ErrorDetail = errDetail.String
	if len(stateTimesRaw) > 0 {
		if err := json.Unmarshal(stateTimesRaw, &doc.StateTimes); err != nil {
			return nil, fmt.Errorf("unmarshal state times: %w", err)
		}
	}
	return &doc, nil
}
